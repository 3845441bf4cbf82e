package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/monitoring"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AssignmentService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	AssignmentRepo *repository.AssignmentRepository
	ItemRepo       *repository.ModuleItemRepository
	Modules        *ModuleProgressService
	Events         EventPublisher
}

func NewAssignmentService(db *gorm.DB, modules *ModuleProgressService, events EventPublisher) *AssignmentService {
	return &AssignmentService{
		DB:             db,
		CourseRepo:     repository.NewCourseRepository(db),
		AssignmentRepo: repository.NewAssignmentRepository(db),
		ItemRepo:       repository.NewModuleItemRepository(db),
		Modules:        modules,
		Events:         events,
	}
}

type CreateAssignmentRequest struct {
	CourseID            uint   `json:"courseId" validate:"required"`
	ModuleID            *uint  `json:"moduleId"`
	Title               string `json:"title" validate:"required,max=255"`
	Instructions        string `json:"instructions"`
	SubmissionType      string `json:"submissionType" validate:"required,oneof=file text url multiple"`
	TotalPoints         int    `json:"totalPoints" validate:"min=1"`
	PassingScorePercent int    `json:"passingScorePercent" validate:"min=0,max=100"`
}

type SubmitRequest struct {
	TextContent string   `json:"textContent"`
	URL         string   `json:"url" validate:"omitempty,url"`
	FileURLs    []string `json:"fileUrls"`
}

func (s *AssignmentService) CreateAssignment(ctx context.Context, actor Actor, req CreateAssignmentRequest) (*model.Assignment, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	assignment := &model.Assignment{
		CourseID:            req.CourseID,
		ModuleID:            req.ModuleID,
		Title:               req.Title,
		Instructions:        req.Instructions,
		SubmissionType:      req.SubmissionType,
		TotalPoints:         req.TotalPoints,
		PassingScorePercent: req.PassingScorePercent,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		courses := s.CourseRepo.WithTx(tx)
		if _, err := courses.FindActiveCourse(ctx, req.CourseID); err != nil {
			if repository.IsNotFound(err) {
				return util.ErrCourseNotFound
			}
			return err
		}
		if req.ModuleID != nil {
			module, err := courses.FindModule(ctx, *req.ModuleID)
			if err != nil {
				if repository.IsNotFound(err) {
					return util.ErrModuleNotFound
				}
				return err
			}
			if module.CourseID != req.CourseID {
				return util.ErrContentMismatch
			}
		}
		if err := s.AssignmentRepo.WithTx(tx).Create(ctx, assignment); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "assignment.create", "assignment", assignment.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) GetAssignment(ctx context.Context, assignmentID uint) (*model.Assignment, error) {
	a, err := s.AssignmentRepo.FindByID(ctx, assignmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// validateContent 内容形状必须与作业的提交类型一致
func validateContent(submissionType string, req SubmitRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	switch submissionType {
	case model.SubmissionTypeText:
		if req.TextContent == "" {
			return fieldError("textContent", "is required for text submissions")
		}
	case model.SubmissionTypeURL:
		if req.URL == "" {
			return fieldError("url", "is required for url submissions")
		}
	case model.SubmissionTypeFile:
		if len(req.FileURLs) == 0 {
			return fieldError("fileUrls", "at least one file is required")
		}
	case model.SubmissionTypeMultiple:
		if req.TextContent == "" && req.URL == "" && len(req.FileURLs) == 0 {
			return fieldError("content", "submission is empty")
		}
	}
	return nil
}

// Submit 已有提交时先把旧记录原样写入历史表，再覆盖当前记录
func (s *AssignmentService) Submit(ctx context.Context, actor Actor, assignmentID uint, req SubmitRequest) (*model.Submission, error) {
	assignment, err := s.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := validateContent(assignment.SubmissionType, req); err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, actor.UserID, assignment); err != nil {
		return nil, err
	}

	content := model.SubmissionContent{
		TextContent: req.TextContent,
		URL:         req.URL,
		FileURLs:    datatypes.JSONSlice[string](req.FileURLs),
	}
	if content.FileURLs == nil {
		content.FileURLs = datatypes.JSONSlice[string]{}
	}

	var submission *model.Submission
	for try := 1; try <= allocationTries; try++ {
		submission, err = s.submitOnce(ctx, actor, assignment.ID, content)
		if err == nil {
			break
		}
		if !errors.Is(err, errAllocationConflict) {
			return nil, err
		}
		logger.Log.Warn("submission attempt conflict",
			zap.Uint("userID", actor.UserID),
			zap.Uint("assignmentID", assignmentID),
			zap.Int("try", try))
	}
	if err != nil {
		monitoring.AllocationConflicts.WithLabelValues("submission", "exhausted").Inc()
		return nil, util.ErrTransientConflict
	}

	s.Events.Publish(EventAssignmentSubmitted, actor.UserID, map[string]interface{}{
		"assignmentId":  assignmentID,
		"submissionId":  submission.ID,
		"attemptNumber": submission.AttemptNumber,
	})
	return submission, nil
}

func (s *AssignmentService) checkAccess(ctx context.Context, userID uint, assignment *model.Assignment) error {
	moduleID, placed, err := s.Modules.ModuleForContent(ctx, model.ItemKindAssignment, assignment.ID, assignment.ModuleID)
	if err != nil {
		return err
	}
	if placed {
		if _, err := s.Modules.CheckModuleAccess(ctx, userID, moduleID); err != nil {
			return err
		}
	}
	item, err := s.ItemRepo.FindByContent(ctx, model.ItemKindAssignment, assignment.ID)
	if err == nil && !item.Released(nowFunc()) {
		return util.ErrItemNotReleased
	}
	if err != nil && !repository.IsNotFound(err) {
		return err
	}
	return nil
}

func (s *AssignmentService) submitOnce(ctx context.Context, actor Actor, assignmentID uint, content model.SubmissionContent) (*model.Submission, error) {
	var submission *model.Submission
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AssignmentRepo.WithTx(tx)
		now := nowFunc()

		current, err := repo.FindSubmission(ctx, actor.UserID, assignmentID)
		if err != nil && !repository.IsNotFound(err) {
			return err
		}

		if current == nil {
			submission = &model.Submission{
				UserID:            actor.UserID,
				AssignmentID:      assignmentID,
				AttemptNumber:     1,
				Status:            model.SubmissionSubmitted,
				SubmittedAt:       now,
				SubmissionContent: content,
			}
			if err := repo.CreateSubmission(ctx, submission); err != nil {
				if repository.IsDuplicateKey(err) {
					return errAllocationConflict
				}
				return err
			}
		} else {
			history := &model.SubmissionHistory{
				SubmissionID:      current.ID,
				UserID:            current.UserID,
				AssignmentID:      current.AssignmentID,
				AttemptNumber:     current.AttemptNumber,
				Status:            current.Status,
				SubmittedAt:       current.SubmittedAt,
				SubmissionContent: current.SubmissionContent,
			}
			if err := repo.AppendHistory(ctx, history); err != nil {
				if repository.IsDuplicateKey(err) {
					return errAllocationConflict
				}
				return err
			}

			submission = current
			submission.AttemptNumber = current.AttemptNumber + 1
			submission.Status = model.SubmissionSubmitted
			submission.SubmittedAt = now
			submission.SubmissionContent = content
			ok, err := repo.ReplaceSubmission(ctx, submission, submission.AttemptNumber-1)
			if err != nil {
				return err
			}
			if !ok {
				return errAllocationConflict
			}
		}

		return writeAudit(ctx, tx, actor, "assignment.submit", "submission", submission.ID, map[string]interface{}{
			"assignmentId":  assignmentID,
			"attemptNumber": submission.AttemptNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	return submission, nil
}

// ReturnForRevision 教师退回要求修改
func (s *AssignmentService) ReturnForRevision(ctx context.Context, actor Actor, submissionID uint) (*model.Submission, error) {
	var submission *model.Submission
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AssignmentRepo.WithTx(tx)
		var err error
		submission, err = repo.FindSubmissionByID(ctx, submissionID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrSubmissionNotFound
			}
			return err
		}
		ok, err := repo.SetSubmissionStatus(ctx, submissionID,
			[]model.SubmissionStatus{model.SubmissionSubmitted, model.SubmissionGraded},
			model.SubmissionReturned)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("submission %d is %s: %w", submissionID, submission.Status, util.ErrInvalidStateTransition)
		}
		submission.Status = model.SubmissionReturned
		return writeAudit(ctx, tx, actor, "submission.return", "submission", submissionID, nil)
	})
	if err != nil {
		return nil, err
	}
	return submission, nil
}

func (s *AssignmentService) GetSubmission(ctx context.Context, userID, assignmentID uint) (*model.Submission, error) {
	sub, err := s.AssignmentRepo.FindSubmission(ctx, userID, assignmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *AssignmentService) GetSubmissionByID(ctx context.Context, submissionID uint) (*model.Submission, error) {
	sub, err := s.AssignmentRepo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *AssignmentService) ListHistory(ctx context.Context, userID, assignmentID uint) ([]model.SubmissionHistory, error) {
	if _, err := s.GetAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.AssignmentRepo.ListHistory(ctx, userID, assignmentID)
}
