package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
)

type QuizAttemptRepository struct {
	DB *gorm.DB
}

func NewQuizAttemptRepository(db *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: db}
}

func (r *QuizAttemptRepository) WithTx(tx *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: tx}
}

func (r *QuizAttemptRepository) Create(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

// UpdateIfStatus 仅当状态仍为 from 时写入，返回是否写入成功
func (r *QuizAttemptRepository) UpdateIfStatus(ctx context.Context, attempt *model.QuizAttempt, from model.AttemptStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", attempt.ID, from).
		Updates(map[string]interface{}{
			"status":     attempt.Status,
			"end_time":   attempt.EndTime,
			"answers":    attempt.Answers,
			"score":      attempt.Score,
			"max_score":  attempt.MaxScore,
			"percentage": attempt.Percentage,
			"passed":     attempt.Passed,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *QuizAttemptRepository) FindByID(ctx context.Context, id uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	if err := r.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *QuizAttemptRepository) FindInProgress(ctx context.Context, userID, quizID uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, model.AttemptInProgress).
		Order("attempt_number desc").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountFinalized 已提交或已评分的尝试数（进行中的不计入次数上限）
func (r *QuizAttemptRepository) CountFinalized(ctx context.Context, userID, quizID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ? AND status <> ?", userID, quizID, model.AttemptInProgress).
		Count(&count).Error
	return count, err
}

func (r *QuizAttemptRepository) MaxAttemptNumber(ctx context.Context, userID, quizID uint) (int, error) {
	var n int
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&n).Error
	return n, err
}

func (r *QuizAttemptRepository) ListByUserQuiz(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempt_number asc").
		Find(&attempts).Error
	return attempts, err
}

// ListGraded 返回一组测验下已评分的尝试，按尝试序号排序
func (r *QuizAttemptRepository) ListGraded(ctx context.Context, userID uint, quizIDs []uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	if len(quizIDs) == 0 {
		return attempts, nil
	}
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id IN ? AND status = ?", userID, quizIDs, model.AttemptGraded).
		Order("quiz_id asc, attempt_number asc").
		Find(&attempts).Error
	return attempts, err
}
