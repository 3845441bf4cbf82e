package service

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuizService struct {
	DB         *gorm.DB
	CourseRepo *repository.CourseRepository
	QuizRepo   *repository.QuizRepository
}

func NewQuizService(db *gorm.DB) *QuizService {
	return &QuizService{
		DB:         db,
		CourseRepo: repository.NewCourseRepository(db),
		QuizRepo:   repository.NewQuizRepository(db),
	}
}

type CreateQuizRequest struct {
	CourseID            uint   `json:"courseId" validate:"required"`
	ModuleID            *uint  `json:"moduleId"`
	Title               string `json:"title" validate:"required,max=255"`
	MaxAttempts         int    `json:"maxAttempts" validate:"min=0"`
	PassingScorePercent int    `json:"passingScorePercent" validate:"min=0,max=100"`
	ShuffleQuestions    bool   `json:"shuffleQuestions"`
	ShuffleAnswers      bool   `json:"shuffleAnswers"`
	AssessmentType      string `json:"assessmentType" validate:"omitempty,oneof=quiz exam"`
	Scope               string `json:"scope" validate:"omitempty,oneof=lesson module"`
	IsRetakeExam        bool   `json:"isRetakeExam"`
	PrimaryExamID       *uint  `json:"primaryExamId"`
}

type QuestionRequest struct {
	Type        string               `json:"type" validate:"required,oneof=multiple_choice true_false"`
	Prompt      string               `json:"prompt" validate:"required"`
	Points      int                  `json:"points" validate:"min=1,max=100"`
	Position    *int                 `json:"position"`
	Options     []model.AnswerOption `json:"options"`
	CorrectBool *bool                `json:"correctBool"`
}

func (s *QuizService) CreateQuiz(ctx context.Context, actor Actor, req CreateQuizRequest) (*model.Quiz, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.AssessmentType == "" {
		req.AssessmentType = model.AssessmentQuiz
	}
	if req.Scope == "" {
		req.Scope = model.ScopeLesson
	}

	quiz := &model.Quiz{
		CourseID:            req.CourseID,
		ModuleID:            req.ModuleID,
		Title:               req.Title,
		MaxAttempts:         req.MaxAttempts,
		PassingScorePercent: req.PassingScorePercent,
		ShuffleQuestions:    req.ShuffleQuestions,
		ShuffleAnswers:      req.ShuffleAnswers,
		AssessmentType:      req.AssessmentType,
		Scope:               req.Scope,
		IsRetakeExam:        req.IsRetakeExam,
		PrimaryExamID:       req.PrimaryExamID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkPlacement(ctx, tx, quiz); err != nil {
			return err
		}
		if err := s.QuizRepo.WithTx(tx).Create(ctx, quiz); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "quiz.create", "quiz", quiz.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

// checkPlacement 校验课程/模块归属以及主考试、补考的配置关系
func (s *QuizService) checkPlacement(ctx context.Context, tx *gorm.DB, quiz *model.Quiz) error {
	courses := s.CourseRepo.WithTx(tx)
	quizzes := s.QuizRepo.WithTx(tx)

	if _, err := courses.FindActiveCourse(ctx, quiz.CourseID); err != nil {
		if repository.IsNotFound(err) {
			return util.ErrCourseNotFound
		}
		return err
	}
	if quiz.ModuleID != nil {
		module, err := courses.FindModule(ctx, *quiz.ModuleID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrModuleNotFound
			}
			return err
		}
		if !module.IsActive() {
			return util.ErrModuleArchived
		}
		if module.CourseID != quiz.CourseID {
			return util.ErrContentMismatch
		}
	}

	if quiz.AssessmentType == model.AssessmentExam && quiz.Scope == model.ScopeModule && quiz.ModuleID == nil {
		return fieldError("moduleId", "is required for module-level exams")
	}
	if quiz.IsRetakeExam {
		if !quiz.IsModuleExam() {
			return fieldError("isRetakeExam", "only module-level exams can be retakes")
		}
		if quiz.PrimaryExamID == nil {
			return fieldError("primaryExamId", "is required for retake exams")
		}
		primary, err := quizzes.FindByID(ctx, *quiz.PrimaryExamID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fieldError("primaryExamId", "does not exist")
			}
			return err
		}
		if !primary.IsPrimaryExam() || *primary.ModuleID != *quiz.ModuleID {
			return fieldError("primaryExamId", "must be the primary exam of the same module")
		}
		if _, err := quizzes.FindRetakeFor(ctx, primary.ID); err == nil {
			return fieldError("primaryExamId", "already has a retake exam")
		} else if !repository.IsNotFound(err) {
			return err
		}
		return nil
	}
	if quiz.PrimaryExamID != nil {
		return fieldError("primaryExamId", "only allowed on retake exams")
	}
	if quiz.IsPrimaryExam() {
		if _, err := quizzes.FindPrimaryExam(ctx, *quiz.ModuleID); err == nil {
			return fieldError("moduleId", "module already has a primary exam")
		} else if !repository.IsNotFound(err) {
			return err
		}
	}
	return nil
}

func validateQuestion(req QuestionRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	switch req.Type {
	case model.QuestionMultipleChoice:
		if req.CorrectBool != nil {
			return fieldError("correctBool", "not allowed for multiple choice questions")
		}
		if len(req.Options) < 2 || len(req.Options) > 6 {
			return fieldError("options", "must have between 2 and 6 options")
		}
		correct := 0
		for _, o := range req.Options {
			if o.Text == "" {
				return fieldError("options", "option text is required")
			}
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			return fieldError("options", "at least one option must be correct")
		}
	case model.QuestionTrueFalse:
		if req.CorrectBool == nil {
			return fieldError("correctBool", "is required for true/false questions")
		}
		if len(req.Options) > 0 {
			return fieldError("options", "not allowed for true/false questions")
		}
	}
	return nil
}

func (s *QuizService) findQuiz(ctx context.Context, repo *repository.QuizRepository, quizID uint) (*model.Quiz, error) {
	quiz, err := repo.FindByID(ctx, quizID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

// AddQuestion 题目变更与总分重算在同一事务内完成
func (s *QuizService) AddQuestion(ctx context.Context, actor Actor, quizID uint, req QuestionRequest) (*model.QuizQuestion, error) {
	if err := validateQuestion(req); err != nil {
		return nil, err
	}
	question := &model.QuizQuestion{
		QuizID:      quizID,
		Type:        req.Type,
		Prompt:      req.Prompt,
		Points:      req.Points,
		Options:     datatypes.JSONSlice[model.AnswerOption](req.Options),
		CorrectBool: req.CorrectBool,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.QuizRepo.WithTx(tx)
		if _, err := s.findQuiz(ctx, repo, quizID); err != nil {
			return err
		}
		if req.Position != nil {
			question.Position = *req.Position
		} else {
			pos, err := repo.MaxQuestionPosition(ctx, quizID)
			if err != nil {
				return err
			}
			question.Position = pos + 1
		}
		if err := repo.CreateQuestion(ctx, question); err != nil {
			return err
		}
		if _, err := repo.RecomputeTotalPoints(ctx, quizID); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "question.add", "quiz", quizID, map[string]interface{}{
			"questionId": question.ID,
			"points":     question.Points,
		})
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuizService) UpdateQuestion(ctx context.Context, actor Actor, questionID uint, req QuestionRequest) (*model.QuizQuestion, error) {
	if err := validateQuestion(req); err != nil {
		return nil, err
	}
	var question *model.QuizQuestion
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.QuizRepo.WithTx(tx)
		var err error
		question, err = repo.FindQuestion(ctx, questionID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrUnknownQuestion
			}
			return err
		}
		question.Type = req.Type
		question.Prompt = req.Prompt
		question.Points = req.Points
		question.Options = datatypes.JSONSlice[model.AnswerOption](req.Options)
		question.CorrectBool = req.CorrectBool
		if req.Position != nil {
			question.Position = *req.Position
		}
		if err := repo.UpdateQuestion(ctx, question); err != nil {
			return err
		}
		if _, err := repo.RecomputeTotalPoints(ctx, question.QuizID); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "question.update", "quiz", question.QuizID, map[string]interface{}{
			"questionId": question.ID,
			"points":     question.Points,
		})
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuizService) RemoveQuestion(ctx context.Context, actor Actor, questionID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.QuizRepo.WithTx(tx)
		question, err := repo.FindQuestion(ctx, questionID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrUnknownQuestion
			}
			return err
		}
		if err := repo.DeleteQuestion(ctx, questionID); err != nil {
			return err
		}
		if _, err := repo.RecomputeTotalPoints(ctx, question.QuizID); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "question.remove", "quiz", question.QuizID, map[string]interface{}{
			"questionId": questionID,
		})
	})
}

// RecomputeTotalPoints 供作者端手动触发；正常流程中每次题目变更都会自动重算
func (s *QuizService) RecomputeTotalPoints(ctx context.Context, quizID uint) (int, error) {
	if _, err := s.findQuiz(ctx, s.QuizRepo, quizID); err != nil {
		return 0, err
	}
	return s.QuizRepo.RecomputeTotalPoints(ctx, quizID)
}

func (s *QuizService) PublishQuiz(ctx context.Context, actor Actor, quizID uint) (*model.Quiz, error) {
	var quiz *model.Quiz
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.QuizRepo.WithTx(tx)
		var err error
		quiz, err = s.findQuiz(ctx, repo, quizID)
		if err != nil {
			return err
		}
		if quiz.IsPublished {
			return nil
		}
		total, err := repo.RecomputeTotalPoints(ctx, quizID)
		if err != nil {
			return err
		}
		if total == 0 {
			return fieldError("questions", "a quiz needs at least one question before publishing")
		}
		quiz.TotalPoints = total
		quiz.IsPublished = true
		if err := repo.Update(ctx, quiz); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "quiz.publish", "quiz", quizID, nil)
	})
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) GetQuiz(ctx context.Context, quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, quizID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}
