package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Omit("Questions").Create(quiz).Error
}

func (r *QuizRepository) Update(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Omit("Questions").Save(quiz).Error
}

func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) FindWithQuestions(ctx context.Context, id uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) ListByCourse(ctx context.Context, courseID uint) ([]model.Quiz, error) {
	var qs []model.Quiz
	err := r.DB.WithContext(ctx).Where("course_id = ?", courseID).Order("id asc").Find(&qs).Error
	return qs, err
}

// FindPrimaryExam 模块的主考试（模块级、非补考）
func (r *QuizRepository) FindPrimaryExam(ctx context.Context, moduleID uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.WithContext(ctx).
		Where("module_id = ? AND assessment_type = ? AND scope = ? AND is_retake_exam = ?",
			moduleID, model.AssessmentExam, model.ScopeModule, false).
		Order("id asc").
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) FindRetakeFor(ctx context.Context, primaryExamID uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.WithContext(ctx).
		Where("primary_exam_id = ? AND is_retake_exam = ?", primaryExamID, true).
		Order("id asc").
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) CreateQuestion(ctx context.Context, question *model.QuizQuestion) error {
	return r.DB.WithContext(ctx).Create(question).Error
}

func (r *QuizRepository) UpdateQuestion(ctx context.Context, question *model.QuizQuestion) error {
	return r.DB.WithContext(ctx).Save(question).Error
}

func (r *QuizRepository) DeleteQuestion(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.QuizQuestion{}, id).Error
}

func (r *QuizRepository) FindQuestion(ctx context.Context, id uint) (*model.QuizQuestion, error) {
	var q model.QuizQuestion
	if err := r.DB.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) MaxQuestionPosition(ctx context.Context, quizID uint) (int, error) {
	var pos int
	err := r.DB.WithContext(ctx).Model(&model.QuizQuestion{}).
		Where("quiz_id = ?", quizID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&pos).Error
	return pos, err
}

// RecomputeTotalPoints 按当前题目重算总分并写回
func (r *QuizRepository) RecomputeTotalPoints(ctx context.Context, quizID uint) (int, error) {
	var total int
	err := r.DB.WithContext(ctx).Model(&model.QuizQuestion{}).
		Where("quiz_id = ?", quizID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	err = r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ?", quizID).
		UpdateColumn("total_points", total).Error
	return total, err
}

func (r *QuizRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Quiz{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
