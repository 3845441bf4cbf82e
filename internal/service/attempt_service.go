package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/monitoring"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/tracing"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// allocationTries 首次分配加一次重试
const allocationTries = 2

var errAllocationConflict = errors.New("allocation conflict")

// shuffleFunc 测试中可替换为确定性实现
var shuffleFunc = rand.Perm

type AttemptService struct {
	DB          *gorm.DB
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.QuizAttemptRepository
	ItemRepo    *repository.ModuleItemRepository
	Modules     *ModuleProgressService
	Grades      *GradeService
	Events      EventPublisher
}

func NewAttemptService(db *gorm.DB, modules *ModuleProgressService, grades *GradeService, events EventPublisher) *AttemptService {
	return &AttemptService{
		DB:          db,
		QuizRepo:    repository.NewQuizRepository(db),
		AttemptRepo: repository.NewQuizAttemptRepository(db),
		ItemRepo:    repository.NewModuleItemRepository(db),
		Modules:     modules,
		Grades:      grades,
		Events:      events,
	}
}

type OptionView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type QuestionView struct {
	ID      uint                   `json:"id"`
	Type    string                 `json:"type"`
	Prompt  string                 `json:"prompt"`
	Points  int                    `json:"points"`
	Options []OptionView           `json:"options,omitempty"`
	Answer  *model.SubmittedAnswer `json:"answer,omitempty"`
	Correct *bool                  `json:"correct,omitempty"`
}

// AttemptView 按持久化的顺序渲染题目，不暴露正确答案
type AttemptView struct {
	Attempt   model.QuizAttempt `json:"attempt"`
	QuizTitle string            `json:"quizTitle"`
	Questions []QuestionView    `json:"questions"`
}

// StartAttempt 已有进行中的尝试时直接返回它，不占用新的序号
func (s *AttemptService) StartAttempt(ctx context.Context, actor Actor, quizID uint) (*model.QuizAttempt, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.StartAttempt")
	defer span.End()

	quiz, err := s.QuizRepo.FindWithQuestions(ctx, quizID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotAvailable
	}
	if err := s.checkQuizAccess(ctx, actor.UserID, quiz); err != nil {
		return nil, err
	}

	for try := 1; try <= allocationTries; try++ {
		attempt, err := s.allocate(ctx, actor, quiz)
		if err == nil {
			if try > 1 {
				monitoring.AllocationConflicts.WithLabelValues("attempt", "recovered").Inc()
			}
			return attempt, nil
		}
		if !errors.Is(err, errAllocationConflict) {
			return nil, err
		}
		logger.Log.Warn("attempt number conflict",
			zap.Uint("userID", actor.UserID),
			zap.Uint("quizID", quizID),
			zap.Int("try", try))
	}
	monitoring.AllocationConflicts.WithLabelValues("attempt", "exhausted").Inc()
	return nil, util.ErrTransientConflict
}

// checkQuizAccess 模块门控、内容发布时间以及考试路径的状态
func (s *AttemptService) checkQuizAccess(ctx context.Context, userID uint, quiz *model.Quiz) error {
	moduleID, placed, err := s.Modules.ModuleForContent(ctx, model.ItemKindQuiz, quiz.ID, quiz.ModuleID)
	if err != nil {
		return err
	}
	if placed {
		if _, err := s.Modules.CheckModuleAccess(ctx, userID, moduleID); err != nil {
			if errors.Is(err, util.ErrModuleLocked) || errors.Is(err, util.ErrModuleArchived) {
				return fmt.Errorf("%v: %w", err, util.ErrQuizNotAvailable)
			}
			return err
		}
	}
	if item, err := s.ItemRepo.FindByContent(ctx, model.ItemKindQuiz, quiz.ID); err == nil {
		if !item.Released(nowFunc()) {
			return util.ErrItemNotReleased
		}
	} else if !repository.IsNotFound(err) {
		return err
	}
	if quiz.IsModuleExam() {
		return s.Modules.CheckExamAccess(ctx, userID, quiz)
	}
	return nil
}

func (s *AttemptService) allocate(ctx context.Context, actor Actor, quiz *model.Quiz) (*model.QuizAttempt, error) {
	var attempt *model.QuizAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AttemptRepo.WithTx(tx)

		existing, err := repo.FindInProgress(ctx, actor.UserID, quiz.ID)
		if err == nil {
			attempt = existing
			return nil
		}
		if !repository.IsNotFound(err) {
			return err
		}

		if !quiz.Unlimited() {
			used, err := repo.CountFinalized(ctx, actor.UserID, quiz.ID)
			if err != nil {
				return err
			}
			if used >= int64(quiz.MaxAttempts) {
				return util.ErrAttemptLimitExceeded
			}
		}

		last, err := repo.MaxAttemptNumber(ctx, actor.UserID, quiz.ID)
		if err != nil {
			return err
		}
		questionOrder, optionOrder := buildOrdering(quiz)
		attempt = &model.QuizAttempt{
			UserID:        actor.UserID,
			QuizID:        quiz.ID,
			AttemptNumber: last + 1,
			Status:        model.AttemptInProgress,
			StartTime:     nowFunc(),
			Answers:       datatypes.NewJSONType(map[uint]model.SubmittedAnswer{}),
			QuestionOrder: questionOrder,
			OptionOrder:   datatypes.NewJSONType(optionOrder),
		}
		if err := repo.Create(ctx, attempt); err != nil {
			if repository.IsDuplicateKey(err) {
				return errAllocationConflict
			}
			return err
		}
		monitoring.AttemptsStarted.WithLabelValues(quiz.AssessmentType).Inc()
		return writeAudit(ctx, tx, actor, "attempt.start", "quiz_attempt", attempt.ID, map[string]interface{}{
			"quizId":        quiz.ID,
			"attemptNumber": attempt.AttemptNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// buildOrdering 开始时生成一次并持久化，之后重新渲染保持稳定
func buildOrdering(quiz *model.Quiz) (datatypes.JSONSlice[uint], map[uint][]int) {
	order := make(datatypes.JSONSlice[uint], len(quiz.Questions))
	if quiz.ShuffleQuestions {
		for i, j := range shuffleFunc(len(quiz.Questions)) {
			order[i] = quiz.Questions[j].ID
		}
	} else {
		for i, q := range quiz.Questions {
			order[i] = q.ID
		}
	}

	options := make(map[uint][]int)
	for _, q := range quiz.Questions {
		if q.Type != model.QuestionMultipleChoice {
			continue
		}
		if quiz.ShuffleAnswers {
			options[q.ID] = shuffleFunc(len(q.Options))
			continue
		}
		identity := make([]int, len(q.Options))
		for i := range identity {
			identity[i] = i
		}
		options[q.ID] = identity
	}
	return order, options
}

func (s *AttemptService) ownAttempt(ctx context.Context, userID, attemptID uint) (*model.QuizAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return attempt, nil
}

// SubmitAnswer 覆盖该题之前的作答
func (s *AttemptService) SubmitAnswer(ctx context.Context, actor Actor, attemptID, questionID uint, answer model.SubmittedAnswer) (*model.QuizAttempt, error) {
	attempt, err := s.ownAttempt(ctx, actor.UserID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrInvalidStateTransition
	}

	question, err := s.QuizRepo.FindQuestion(ctx, questionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUnknownQuestion
		}
		return nil, err
	}
	if question.QuizID != attempt.QuizID {
		return nil, util.ErrUnknownQuestion
	}
	if err := ValidateAnswer(question, answer); err != nil {
		return nil, err
	}

	answers := attempt.AnswerMap()
	answers[questionID] = answer
	attempt.Answers = datatypes.NewJSONType(answers)
	ok, err := s.AttemptRepo.UpdateIfStatus(ctx, attempt, model.AttemptInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrInvalidStateTransition
	}
	return attempt, nil
}

// Finalize in_progress → submitted → graded，两步在同一事务内完成
func (s *AttemptService) Finalize(ctx context.Context, actor Actor, attemptID uint) (*model.QuizAttempt, error) {
	ctx, span := tracing.Start(ctx, "AttemptService.Finalize")
	defer span.End()

	attempt, err := s.ownAttempt(ctx, actor.UserID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrInvalidStateTransition
	}
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	var result ScoreResult
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AttemptRepo.WithTx(tx)

		end := nowFunc()
		attempt.Status = model.AttemptSubmitted
		attempt.EndTime = &end
		ok, err := repo.UpdateIfStatus(ctx, attempt, model.AttemptInProgress)
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrInvalidStateTransition
		}

		result = ScoreAttempt(quiz.Questions, attempt.AnswerMap(), quiz.PassingScorePercent)
		attempt.Status = model.AttemptGraded
		attempt.Score = &result.Score
		attempt.MaxScore = &result.Total
		attempt.Percentage = &result.Percentage
		attempt.Passed = result.Passed
		if ok, err = repo.UpdateIfStatus(ctx, attempt, model.AttemptSubmitted); err != nil {
			return err
		} else if !ok {
			return util.ErrInvalidStateTransition
		}

		if result.Passed {
			if item, err := s.ItemRepo.WithTx(tx).FindByContent(ctx, model.ItemKindQuiz, quiz.ID); err == nil {
				if _, err := markItemCompleted(ctx, tx, actor, item.ID); err != nil {
					return err
				}
			} else if !repository.IsNotFound(err) {
				return err
			}
		}

		return writeAudit(ctx, tx, actor, "attempt.finalize", "quiz_attempt", attempt.ID, map[string]interface{}{
			"quizId":     quiz.ID,
			"score":      result.Score,
			"total":      result.Total,
			"percentage": result.Percentage,
			"passed":     result.Passed,
			"answers":    attempt.AnswerMap(),
		})
	})
	if err != nil {
		return nil, err
	}

	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	monitoring.AttemptsGraded.WithLabelValues(quiz.AssessmentType, outcome).Inc()
	logger.Log.Info("quiz attempt graded",
		zap.Uint("userID", actor.UserID),
		zap.Uint("quizID", quiz.ID),
		zap.Int("attemptNumber", attempt.AttemptNumber),
		zap.Float64("percentage", result.Percentage))

	s.afterGraded(ctx, actor.UserID, quiz)
	s.Events.Publish(EventAttemptGraded, actor.UserID, map[string]interface{}{
		"attemptId":     attempt.ID,
		"quizId":        quiz.ID,
		"attemptNumber": attempt.AttemptNumber,
		"percentage":    result.Percentage,
		"passed":        result.Passed,
	})
	return attempt, nil
}

// afterGraded 评分已提交，联动重算模块状态与课程成绩
func (s *AttemptService) afterGraded(ctx context.Context, userID uint, quiz *model.Quiz) {
	moduleID, placed, err := s.Modules.ModuleForContent(ctx, model.ItemKindQuiz, quiz.ID, quiz.ModuleID)
	if err != nil {
		logger.Log.Warn("resolve quiz module failed", zap.Uint("quizID", quiz.ID), zap.Error(err))
	} else if placed {
		s.Modules.RecomputeQuietly(ctx, userID, moduleID)
	}
	s.Grades.RecomputeCourseGradeQuietly(ctx, userID, quiz.CourseID)
}

func (s *AttemptService) GetAttemptView(ctx context.Context, userID, attemptID uint) (*AttemptView, error) {
	attempt, err := s.ownAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]*model.QuizQuestion, len(quiz.Questions))
	for i := range quiz.Questions {
		byID[quiz.Questions[i].ID] = &quiz.Questions[i]
	}
	answers := attempt.AnswerMap()
	optionOrder := attempt.OptionOrder.Data()

	view := &AttemptView{Attempt: *attempt, QuizTitle: quiz.Title}
	for _, qid := range attempt.QuestionOrder {
		q, ok := byID[qid]
		if !ok {
			// 开始后被删除的题目不再展示
			continue
		}
		qv := QuestionView{ID: q.ID, Type: q.Type, Prompt: q.Prompt, Points: q.Points}
		order := optionOrder[q.ID]
		if len(order) != len(q.Options) {
			order = nil
			for i := range q.Options {
				order = append(order, i)
			}
		}
		for _, idx := range order {
			qv.Options = append(qv.Options, OptionView{Index: idx, Text: q.Options[idx].Text})
		}
		if ans, ok := answers[q.ID]; ok {
			qv.Answer = &ans
		}
		if attempt.Status == model.AttemptGraded {
			correct := qv.Answer != nil && IsCorrect(q, *qv.Answer)
			qv.Correct = &correct
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}

func (s *AttemptService) ListAttempts(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	exists, err := s.QuizRepo.Exists(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrQuizNotFound
	}
	return s.AttemptRepo.ListByUserQuiz(ctx, userID, quizID)
}
