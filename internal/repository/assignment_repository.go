package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) WithTx(tx *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: tx}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) FindByID(ctx context.Context, id uint) (*model.Assignment, error) {
	var a model.Assignment
	if err := r.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Assignment, error) {
	var rows []model.Assignment
	err := r.DB.WithContext(ctx).Where("course_id = ?", courseID).Order("id asc").Find(&rows).Error
	return rows, err
}

func (r *AssignmentRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Assignment{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ---- Submission ----

func (r *AssignmentRepository) FindSubmission(ctx context.Context, userID, assignmentID uint) (*model.Submission, error) {
	var s model.Submission
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND assignment_id = ?", userID, assignmentID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *AssignmentRepository) FindSubmissionByID(ctx context.Context, id uint) (*model.Submission, error) {
	var s model.Submission
	if err := r.DB.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *AssignmentRepository) CreateSubmission(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

// ReplaceSubmission 乐观更新：仅当当前 attempt_number 仍为 expectedAttempt 时覆盖内容
func (r *AssignmentRepository) ReplaceSubmission(ctx context.Context, s *model.Submission, expectedAttempt int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Submission{}).
		Where("id = ? AND attempt_number = ?", s.ID, expectedAttempt).
		Updates(map[string]interface{}{
			"attempt_number": s.AttemptNumber,
			"status":         s.Status,
			"submitted_at":   s.SubmittedAt,
			"text_content":   s.TextContent,
			"url":            s.URL,
			"file_urls":      s.FileURLs,
			"updated_at":     s.SubmittedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetSubmissionStatus 状态迁移，from 为空时不校验原状态
func (r *AssignmentRepository) SetSubmissionStatus(ctx context.Context, id uint, from []model.SubmissionStatus, to model.SubmissionStatus) (bool, error) {
	q := r.DB.WithContext(ctx).Model(&model.Submission{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.UpdateColumn("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AssignmentRepository) ListSubmissionsByUser(ctx context.Context, userID uint, assignmentIDs []uint) ([]model.Submission, error) {
	var rows []model.Submission
	if len(assignmentIDs) == 0 {
		return rows, nil
	}
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND assignment_id IN ?", userID, assignmentIDs).
		Find(&rows).Error
	return rows, err
}

// ---- History ----

func (r *AssignmentRepository) AppendHistory(ctx context.Context, h *model.SubmissionHistory) error {
	return r.DB.WithContext(ctx).Create(h).Error
}

func (r *AssignmentRepository) ListHistory(ctx context.Context, userID, assignmentID uint) ([]model.SubmissionHistory, error) {
	var rows []model.SubmissionHistory
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND assignment_id = ?", userID, assignmentID).
		Order("attempt_number asc").
		Find(&rows).Error
	return rows, err
}

// ---- Grade ----

func (r *AssignmentRepository) CreateGrade(ctx context.Context, g *model.Grade) error {
	return r.DB.WithContext(ctx).Create(g).Error
}

func (r *AssignmentRepository) FindGrade(ctx context.Context, id uint) (*model.Grade, error) {
	var g model.Grade
	if err := r.DB.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *AssignmentRepository) MaxGradeVersion(ctx context.Context, submissionID uint) (int, error) {
	var v int
	err := r.DB.WithContext(ctx).Model(&model.Grade{}).
		Where("submission_id = ?", submissionID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&v).Error
	return v, err
}

func (r *AssignmentRepository) PublishGrade(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&model.Grade{}).
		Where("id = ?", id).
		UpdateColumn("is_published", true).Error
}

func (r *AssignmentRepository) ListGrades(ctx context.Context, submissionID uint, includeUnpublished bool) ([]model.Grade, error) {
	var rows []model.Grade
	q := r.DB.WithContext(ctx).Where("submission_id = ?", submissionID)
	if !includeUnpublished {
		q = q.Where("is_published = ?", true)
	}
	err := q.Order("version asc").Find(&rows).Error
	return rows, err
}

// LatestPublishedGrades 每个提交取版本号最大的已发布成绩
func (r *AssignmentRepository) LatestPublishedGrades(ctx context.Context, submissionIDs []uint) (map[uint]model.Grade, error) {
	out := make(map[uint]model.Grade, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return out, nil
	}
	var rows []model.Grade
	err := r.DB.WithContext(ctx).
		Where("submission_id IN ? AND is_published = ?", submissionIDs, true).
		Order("submission_id asc, version asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, g := range rows {
		out[g.SubmissionID] = g
	}
	return out, nil
}
