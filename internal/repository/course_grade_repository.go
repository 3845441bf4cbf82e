package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseGradeRepository struct {
	DB *gorm.DB
}

func NewCourseGradeRepository(db *gorm.DB) *CourseGradeRepository {
	return &CourseGradeRepository{DB: db}
}

func (r *CourseGradeRepository) Find(ctx context.Context, userID, courseID uint) (*model.CourseGrade, error) {
	var g model.CourseGrade
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *CourseGradeRepository) Upsert(ctx context.Context, g *model.CourseGrade) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points_earned", "points_total", "percentage", "updated_at"}),
	}).Create(g).Error
}
