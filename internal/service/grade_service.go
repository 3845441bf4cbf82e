package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/monitoring"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/tracing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GradeService struct {
	DB             *gorm.DB
	Redis          *redis.Client
	CacheTTL       time.Duration
	AssignmentRepo *repository.AssignmentRepository
	QuizRepo       *repository.QuizRepository
	AttemptRepo    *repository.QuizAttemptRepository
	ItemRepo       *repository.ModuleItemRepository
	CourseGrades   *repository.CourseGradeRepository
	Modules        *ModuleProgressService
	Events         EventPublisher
}

func NewGradeService(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration, modules *ModuleProgressService, events EventPublisher) *GradeService {
	return &GradeService{
		DB:             db,
		Redis:          rdb,
		CacheTTL:       cacheTTL,
		AssignmentRepo: repository.NewAssignmentRepository(db),
		QuizRepo:       repository.NewQuizRepository(db),
		AttemptRepo:    repository.NewQuizAttemptRepository(db),
		ItemRepo:       repository.NewModuleItemRepository(db),
		CourseGrades:   repository.NewCourseGradeRepository(db),
		Modules:        modules,
		Events:         events,
	}
}

type RecordGradeRequest struct {
	PointsAwarded float64 `json:"pointsAwarded" validate:"min=0"`
	MaxPoints     float64 `json:"maxPoints" validate:"gt=0"`
	Feedback      string  `json:"feedback"`
}

// RecordGrade 每次评分生成新版本；百分比总是由分值重新计算
func (s *GradeService) RecordGrade(ctx context.Context, actor Actor, submissionID uint, req RecordGradeRequest) (*model.Grade, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.PointsAwarded > req.MaxPoints {
		return nil, fieldError("pointsAwarded", "must not exceed maxPoints")
	}

	submission, err := s.AssignmentRepo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.Status == model.SubmissionDraft {
		return nil, util.ErrInvalidStateTransition
	}

	var grade *model.Grade
	for try := 1; try <= allocationTries; try++ {
		grade, err = s.createVersion(ctx, actor, submission, req)
		if err == nil {
			break
		}
		if !errors.Is(err, errAllocationConflict) {
			return nil, err
		}
		logger.Log.Warn("grade version conflict", zap.Uint("submissionID", submissionID), zap.Int("try", try))
	}
	if err != nil {
		monitoring.AllocationConflicts.WithLabelValues("grade", "exhausted").Inc()
		return nil, util.ErrTransientConflict
	}

	monitoring.GradesRecorded.Inc()
	s.Events.Publish(EventGradeRecorded, submission.UserID, map[string]interface{}{
		"gradeId":      grade.ID,
		"submissionId": submissionID,
		"version":      grade.Version,
	})
	s.afterGradeChange(ctx, submission)
	return grade, nil
}

func (s *GradeService) createVersion(ctx context.Context, actor Actor, submission *model.Submission, req RecordGradeRequest) (*model.Grade, error) {
	grade := &model.Grade{
		SubmissionID:      submission.ID,
		SubmissionAttempt: submission.AttemptNumber,
		PointsAwarded:     req.PointsAwarded,
		MaxPoints:         req.MaxPoints,
		Percentage:        RoundPercentage(req.PointsAwarded, req.MaxPoints),
		GradedBy:          actor.UserID,
		Feedback:          req.Feedback,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AssignmentRepo.WithTx(tx)
		last, err := repo.MaxGradeVersion(ctx, submission.ID)
		if err != nil {
			return err
		}
		grade.Version = last + 1
		if err := repo.CreateGrade(ctx, grade); err != nil {
			if repository.IsDuplicateKey(err) {
				return errAllocationConflict
			}
			return err
		}
		if _, err := repo.SetSubmissionStatus(ctx, submission.ID, nil, model.SubmissionGraded); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "grade.record", "grade", grade.ID, map[string]interface{}{
			"submissionId":  submission.ID,
			"version":       grade.Version,
			"pointsAwarded": grade.PointsAwarded,
			"maxPoints":     grade.MaxPoints,
		})
	})
	if err != nil {
		return nil, err
	}
	return grade, nil
}

// Publish 已发布时为 no-op
func (s *GradeService) Publish(ctx context.Context, actor Actor, gradeID uint) (*model.Grade, error) {
	var (
		grade      *model.Grade
		submission *model.Submission
		changed    bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AssignmentRepo.WithTx(tx)
		var err error
		grade, err = repo.FindGrade(ctx, gradeID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrGradeNotFound
			}
			return err
		}
		if grade.IsPublished {
			return nil
		}
		submission, err = repo.FindSubmissionByID(ctx, grade.SubmissionID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("grade %d references missing submission %d: %w", grade.ID, grade.SubmissionID, util.ErrIntegrityViolation)
			}
			return err
		}
		assignment, err := repo.FindByID(ctx, submission.AssignmentID)
		if err != nil {
			return err
		}

		if err := repo.PublishGrade(ctx, gradeID); err != nil {
			return err
		}
		grade.IsPublished = true
		changed = true

		if grade.Percentage >= float64(assignment.PassingScorePercent) {
			item, err := s.ItemRepo.WithTx(tx).FindByContent(ctx, model.ItemKindAssignment, assignment.ID)
			if err == nil {
				learner := Actor{UserID: submission.UserID, SourceIP: actor.SourceIP}
				if _, err := markItemCompleted(ctx, tx, learner, item.ID); err != nil {
					return err
				}
			} else if !repository.IsNotFound(err) {
				return err
			}
		}
		return writeAudit(ctx, tx, actor, "grade.publish", "grade", gradeID, nil)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.Events.Publish(EventGradePublished, submission.UserID, map[string]interface{}{
			"gradeId":      grade.ID,
			"submissionId": grade.SubmissionID,
			"percentage":   grade.Percentage,
		})
		s.afterGradeChange(ctx, submission)
	}
	return grade, nil
}

func (s *GradeService) afterGradeChange(ctx context.Context, submission *model.Submission) {
	assignment, err := s.AssignmentRepo.FindByID(ctx, submission.AssignmentID)
	if err != nil {
		logger.Log.Warn("load assignment failed", zap.Uint("assignmentID", submission.AssignmentID), zap.Error(err))
		return
	}
	moduleID, placed, err := s.Modules.ModuleForContent(ctx, model.ItemKindAssignment, assignment.ID, assignment.ModuleID)
	if err != nil {
		logger.Log.Warn("resolve assignment module failed", zap.Uint("assignmentID", assignment.ID), zap.Error(err))
	} else if placed {
		s.Modules.RecomputeQuietly(ctx, submission.UserID, moduleID)
	}
	s.RecomputeCourseGradeQuietly(ctx, submission.UserID, assignment.CourseID)
}

// ListGrades 学习者只看已发布版本，教师可看全部
func (s *GradeService) ListGrades(ctx context.Context, submissionID uint, includeUnpublished bool) ([]model.Grade, error) {
	if _, err := s.AssignmentRepo.FindSubmissionByID(ctx, submissionID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	return s.AssignmentRepo.ListGrades(ctx, submissionID, includeUnpublished)
}

// RecomputeCourseGrade 覆盖写入 (学习者, 课程) 的成绩：
// 作业取每个提交最新的已发布成绩；测验按评估槽位取最高分的已评分尝试，主考试与补考共用一个槽位
func (s *GradeService) RecomputeCourseGrade(ctx context.Context, userID, courseID uint) (*model.CourseGrade, error) {
	ctx, span := tracing.Start(ctx, "GradeService.RecomputeCourseGrade")
	defer span.End()

	var earned, total float64

	assignments, err := s.AssignmentRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	assignmentIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		assignmentIDs = append(assignmentIDs, a.ID)
	}
	submissions, err := s.AssignmentRepo.ListSubmissionsByUser(ctx, userID, assignmentIDs)
	if err != nil {
		return nil, err
	}
	submissionIDs := make([]uint, 0, len(submissions))
	for _, sub := range submissions {
		submissionIDs = append(submissionIDs, sub.ID)
	}
	latest, err := s.AssignmentRepo.LatestPublishedGrades(ctx, submissionIDs)
	if err != nil {
		return nil, err
	}
	for _, g := range latest {
		earned += g.PointsAwarded
		total += g.MaxPoints
	}

	quizzes, err := s.QuizRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	slotOf := make(map[uint]uint, len(quizzes))
	quizIDs := make([]uint, 0, len(quizzes))
	for _, q := range quizzes {
		slot := q.ID
		if q.IsRetakeExam && q.PrimaryExamID != nil {
			slot = *q.PrimaryExamID
		}
		slotOf[q.ID] = slot
		quizIDs = append(quizIDs, q.ID)
	}
	attempts, err := s.AttemptRepo.ListGraded(ctx, userID, quizIDs)
	if err != nil {
		return nil, err
	}
	best := make(map[uint]model.QuizAttempt)
	for _, a := range attempts {
		if a.Percentage == nil || a.Score == nil || a.MaxScore == nil {
			continue
		}
		slot := slotOf[a.QuizID]
		cur, ok := best[slot]
		if !ok || *a.Percentage > *cur.Percentage {
			best[slot] = a
		}
	}
	for _, a := range best {
		earned += float64(*a.Score)
		total += float64(*a.MaxScore)
	}

	grade := &model.CourseGrade{
		UserID:       userID,
		CourseID:     courseID,
		PointsEarned: earned,
		PointsTotal:  total,
		Percentage:   RoundPercentage(earned, total),
	}
	if err := s.CourseGrades.Upsert(ctx, grade); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID, courseID)

	s.Events.Publish(EventCourseGradeRecomputed, userID, map[string]interface{}{
		"courseId":   courseID,
		"percentage": grade.Percentage,
	})
	return s.CourseGrades.Find(ctx, userID, courseID)
}

func (s *GradeService) RecomputeCourseGradeQuietly(ctx context.Context, userID, courseID uint) {
	if _, err := s.RecomputeCourseGrade(ctx, userID, courseID); err != nil {
		logger.Log.Warn("course grade recompute failed",
			zap.Uint("userID", userID),
			zap.Uint("courseID", courseID),
			zap.Error(err))
	}
}

func courseGradeKey(userID, courseID uint) string {
	return fmt.Sprintf("course_grade:%d:%d", courseID, userID)
}

// GetCourseGrade 先读 Redis 缓存；没有记录时现场计算一次
func (s *GradeService) GetCourseGrade(ctx context.Context, userID, courseID uint) (*model.CourseGrade, error) {
	key := courseGradeKey(userID, courseID)
	if s.Redis != nil {
		if data, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
			var cached model.CourseGrade
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("course grade cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	grade, err := s.CourseGrades.Find(ctx, userID, courseID)
	if err != nil {
		if !repository.IsNotFound(err) {
			return nil, err
		}
		if grade, err = s.RecomputeCourseGrade(ctx, userID, courseID); err != nil {
			return nil, err
		}
	}

	if s.Redis != nil {
		if data, err := json.Marshal(grade); err == nil {
			if err := s.Redis.Set(ctx, key, data, s.CacheTTL).Err(); err != nil {
				logger.Log.Warn("course grade cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return grade, nil
}

func (s *GradeService) invalidate(ctx context.Context, userID, courseID uint) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, courseGradeKey(userID, courseID)).Err(); err != nil {
		logger.Log.Warn("course grade cache invalidate failed", zap.Uint("userID", userID), zap.Error(err))
	}
}
