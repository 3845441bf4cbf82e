package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) CreateCourse(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) FindActiveCourse(ctx context.Context, id uint) (*model.Course, error) {
	var c model.Course
	if err := r.DB.WithContext(ctx).Scopes(ActiveOnly).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CourseRepository) CreateModule(ctx context.Context, module *model.Module) error {
	return r.DB.WithContext(ctx).Create(module).Error
}

func (r *CourseRepository) UpdateModule(ctx context.Context, module *model.Module) error {
	return r.DB.WithContext(ctx).Save(module).Error
}

// FindModule 返回任意状态的模块，调用方自行检查 State
func (r *CourseRepository) FindModule(ctx context.Context, id uint) (*model.Module, error) {
	var m model.Module
	if err := r.DB.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// LockModule 在事务内锁住模块行，串行化同一模块的 item 位置分配
func (r *CourseRepository) LockModule(ctx context.Context, id uint) (*model.Module, error) {
	var m model.Module
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CourseRepository) ListActiveModules(ctx context.Context, courseID uint) ([]model.Module, error) {
	var modules []model.Module
	err := r.DB.WithContext(ctx).Scopes(ActiveOnly).
		Where("course_id = ?", courseID).
		Order("position asc, id asc").
		Find(&modules).Error
	return modules, err
}

func (r *CourseRepository) MaxModulePosition(ctx context.Context, courseID uint) (int, error) {
	var pos int
	err := r.DB.WithContext(ctx).Model(&model.Module{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&pos).Error
	return pos, err
}

func (r *CourseRepository) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	return r.DB.WithContext(ctx).Create(lesson).Error
}

func (r *CourseRepository) FindLesson(ctx context.Context, id uint) (*model.Lesson, error) {
	var l model.Lesson
	if err := r.DB.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *CourseRepository) UpdateCourse(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Save(course).Error
}

func (r *CourseRepository) LessonExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *CourseRepository) FindCourse(ctx context.Context, id uint) (*model.Course, error) {
	var c model.Course
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
