package service

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"gorm.io/gorm"
)

type CourseService struct {
	DB         *gorm.DB
	CourseRepo *repository.CourseRepository
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{DB: db, CourseRepo: repository.NewCourseRepository(db)}
}

type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
}

type CreateModuleRequest struct {
	Title            string `json:"title" validate:"required,max=255"`
	RequiresExamPass bool   `json:"requiresExamPass"`
}

type CreateLessonRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body"`
}

func (s *CourseService) CreateCourse(ctx context.Context, actor Actor, req CreateCourseRequest) (*model.Course, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	course := &model.Course{
		Title:       req.Title,
		Description: req.Description,
		CreatorID:   actor.UserID,
		State:       model.StateActive,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.CourseRepo.WithTx(tx).CreateCourse(ctx, course); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "course.create", "course", course.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return course, nil
}

// ArchiveCourse 归档课程；课程内模块一并归档
func (s *CourseService) ArchiveCourse(ctx context.Context, actor Actor, courseID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.CourseRepo.WithTx(tx)
		course, err := repo.FindCourse(ctx, courseID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrCourseNotFound
			}
			return err
		}
		if course.State == model.StateArchived {
			return nil
		}
		modules, err := repo.ListActiveModules(ctx, courseID)
		if err != nil {
			return err
		}
		for i := range modules {
			modules[i].State = model.StateArchived
			if err := repo.UpdateModule(ctx, &modules[i]); err != nil {
				return err
			}
		}
		course.State = model.StateArchived
		if err := repo.UpdateCourse(ctx, course); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "course.archive", "course", courseID, nil)
	})
}

// CreateModule 追加到课程末尾
func (s *CourseService) CreateModule(ctx context.Context, actor Actor, courseID uint, req CreateModuleRequest) (*model.Module, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	module := &model.Module{
		CourseID:         courseID,
		Title:            req.Title,
		RequiresExamPass: req.RequiresExamPass,
		State:            model.StateActive,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.CourseRepo.WithTx(tx)
		if _, err := repo.FindActiveCourse(ctx, courseID); err != nil {
			if repository.IsNotFound(err) {
				return util.ErrCourseNotFound
			}
			return err
		}
		pos, err := repo.MaxModulePosition(ctx, courseID)
		if err != nil {
			return err
		}
		module.Position = pos + 1
		if err := repo.CreateModule(ctx, module); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "module.create", "module", module.ID, req)
	})
	if err != nil {
		return nil, err
	}
	return module, nil
}

func (s *CourseService) ArchiveModule(ctx context.Context, actor Actor, moduleID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.CourseRepo.WithTx(tx)
		module, err := repo.FindModule(ctx, moduleID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrModuleNotFound
			}
			return err
		}
		if !module.IsActive() {
			return nil
		}
		module.State = model.StateArchived
		if err := repo.UpdateModule(ctx, module); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "module.archive", "module", moduleID, nil)
	})
}

func (s *CourseService) ListModules(ctx context.Context, courseID uint) ([]model.Module, error) {
	if _, err := s.CourseRepo.FindActiveCourse(ctx, courseID); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return s.CourseRepo.ListActiveModules(ctx, courseID)
}

func (s *CourseService) CreateLesson(ctx context.Context, actor Actor, courseID uint, req CreateLessonRequest) (*model.Lesson, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	lesson := &model.Lesson{CourseID: courseID, Title: req.Title, Body: req.Body}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.CourseRepo.WithTx(tx)
		if _, err := repo.FindActiveCourse(ctx, courseID); err != nil {
			if repository.IsNotFound(err) {
				return util.ErrCourseNotFound
			}
			return err
		}
		if err := repo.CreateLesson(ctx, lesson); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "lesson.create", "lesson", lesson.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	return lesson, nil
}
