package service

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"gorm.io/gorm"
)

const defaultItemPageSize = 50

type ItemRegistryService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	ItemRepo       *repository.ModuleItemRepository
	QuizRepo       *repository.QuizRepository
	AssignmentRepo *repository.AssignmentRepository
	Modules        *ModuleProgressService
	PageSize       int
}

func NewItemRegistryService(db *gorm.DB, modules *ModuleProgressService, pageSize int) *ItemRegistryService {
	if pageSize <= 0 {
		pageSize = defaultItemPageSize
	}
	return &ItemRegistryService{
		DB:             db,
		CourseRepo:     repository.NewCourseRepository(db),
		ItemRepo:       repository.NewModuleItemRepository(db),
		QuizRepo:       repository.NewQuizRepository(db),
		AssignmentRepo: repository.NewAssignmentRepository(db),
		Modules:        modules,
		PageSize:       pageSize,
	}
}

// AddItemOptions Position 为空时追加到末尾
type AddItemOptions struct {
	Position  *int       `json:"position,omitempty"`
	Required  *bool      `json:"required,omitempty"`
	ReleaseAt *time.Time `json:"releaseAt,omitempty"`
}

// ResolvedContent 恰好有一个字段非空，与 Kind 对应
type ResolvedContent struct {
	Kind       model.ItemKind    `json:"kind"`
	Lesson     *model.Lesson     `json:"lesson,omitempty"`
	Quiz       *model.Quiz       `json:"quiz,omitempty"`
	Assignment *model.Assignment `json:"assignment,omitempty"`
}

type contentOwner struct {
	courseID uint
	moduleID *uint
	err      error
}

func (s *ItemRegistryService) AddItem(ctx context.Context, actor Actor, moduleID uint, ref model.ItemRef, opts AddItemOptions) (*model.ModuleItem, error) {
	if opts.Position != nil && *opts.Position < 1 {
		return nil, fieldError("position", "must be at least 1")
	}

	item := &model.ModuleItem{
		ModuleID:    moduleID,
		ContentKind: ref.Kind(),
		ContentID:   ref.ContentID(),
		Required:    true,
		ReleaseAt:   opts.ReleaseAt,
	}
	if opts.Required != nil {
		item.Required = *opts.Required
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		courses := s.CourseRepo.WithTx(tx)
		items := s.ItemRepo.WithTx(tx)

		module, err := activeModule(courses.LockModule(ctx, moduleID))
		if err != nil {
			return err
		}

		owner := s.ownerOf(ctx, tx, ref)
		if owner.err != nil {
			return owner.err
		}
		if owner.courseID != module.CourseID || (owner.moduleID != nil && *owner.moduleID != moduleID) {
			return util.ErrContentMismatch
		}

		if _, err := items.FindByContent(ctx, ref.Kind(), ref.ContentID()); err == nil {
			return util.ErrContentAlreadyPlaced
		} else if !repository.IsNotFound(err) {
			return err
		}

		maxPos, err := items.MaxPosition(ctx, moduleID)
		if err != nil {
			return err
		}
		if opts.Position == nil || *opts.Position > maxPos {
			item.Position = maxPos + 1
		} else {
			item.Position = *opts.Position
			if err := items.ShiftFrom(ctx, moduleID, item.Position, 1); err != nil {
				return err
			}
		}

		if err := items.Create(ctx, item); err != nil {
			if repository.IsDuplicateKey(err) {
				return util.ErrContentAlreadyPlaced
			}
			return err
		}
		return writeAudit(ctx, tx, actor, "item.add", "module_item", item.ID, map[string]interface{}{
			"moduleId":  moduleID,
			"kind":      item.ContentKind,
			"contentId": item.ContentID,
			"position":  item.Position,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ownerOf 查出被引用内容所属课程（以及可选的模块）
func (s *ItemRegistryService) ownerOf(ctx context.Context, tx *gorm.DB, ref model.ItemRef) contentOwner {
	notFound := func(err error, sentinel error) contentOwner {
		if repository.IsNotFound(err) {
			return contentOwner{err: sentinel}
		}
		return contentOwner{err: err}
	}
	return model.MatchRef(ref,
		func(r model.LessonRef) contentOwner {
			l, err := s.CourseRepo.WithTx(tx).FindLesson(ctx, r.LessonID)
			if err != nil {
				return notFound(err, util.ErrNotFound)
			}
			return contentOwner{courseID: l.CourseID}
		},
		func(r model.QuizRef) contentOwner {
			q, err := s.QuizRepo.WithTx(tx).FindByID(ctx, r.QuizID)
			if err != nil {
				return notFound(err, util.ErrQuizNotFound)
			}
			return contentOwner{courseID: q.CourseID, moduleID: q.ModuleID}
		},
		func(r model.AssignmentRef) contentOwner {
			a, err := s.AssignmentRepo.WithTx(tx).FindByID(ctx, r.AssignmentID)
			if err != nil {
				return notFound(err, util.ErrAssignmentNotFound)
			}
			return contentOwner{courseID: a.CourseID, moduleID: a.ModuleID}
		},
	)
}

// Reorder orderedIDs 必须恰好是模块当前全部 item 的一个排列，否则不做任何修改
func (s *ItemRegistryService) Reorder(ctx context.Context, actor Actor, moduleID uint, orderedIDs []uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := s.ItemRepo.WithTx(tx)
		if _, err := activeModule(s.CourseRepo.WithTx(tx).LockModule(ctx, moduleID)); err != nil {
			return err
		}

		current, err := items.ListByModule(ctx, moduleID)
		if err != nil {
			return err
		}
		if !isPermutation(current, orderedIDs) {
			return util.ErrInvalidOrder
		}
		for i, id := range orderedIDs {
			if err := items.SetPosition(ctx, id, i+1); err != nil {
				return err
			}
		}
		return writeAudit(ctx, tx, actor, "item.reorder", "module", moduleID, map[string]interface{}{"order": orderedIDs})
	})
}

// activeModule 把模块查询结果映射为 not found / archived 错误
func activeModule(module *model.Module, err error) (*model.Module, error) {
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if !module.IsActive() {
		return nil, util.ErrModuleArchived
	}
	return module, nil
}

func isPermutation(current []model.ModuleItem, ids []uint) bool {
	if len(current) != len(ids) {
		return false
	}
	want := make(map[uint]bool, len(current))
	for _, item := range current {
		want[item.ID] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

// ListItems 按 position 分页懒加载；每次 range 都从头开始。
// 模块不存在或已归档时只产出一个错误
func (s *ItemRegistryService) ListItems(ctx context.Context, moduleID uint) iter.Seq2[model.ModuleItem, error] {
	return func(yield func(model.ModuleItem, error) bool) {
		if _, err := activeModule(s.CourseRepo.FindModule(ctx, moduleID)); err != nil {
			yield(model.ModuleItem{}, err)
			return
		}
		afterPos, afterID := 0, uint(0)
		for {
			page, err := s.ItemRepo.ListPage(ctx, moduleID, afterPos, afterID, s.PageSize)
			if err != nil {
				yield(model.ModuleItem{}, err)
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
				afterPos, afterID = item.Position, item.ID
			}
			if len(page) < s.PageSize {
				return
			}
		}
	}
}

// CollectItems 供只需要切片的调用方使用
func (s *ItemRegistryService) CollectItems(ctx context.Context, moduleID uint) ([]model.ModuleItem, error) {
	var out []model.ModuleItem
	for item, err := range s.ListItems(ctx, moduleID) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// RemoveItem 删除 item 并压实后续位置；内容记录本身保留
func (s *ItemRegistryService) RemoveItem(ctx context.Context, actor Actor, itemID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := s.ItemRepo.WithTx(tx)
		item, err := items.FindByID(ctx, itemID)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrItemNotFound
			}
			return err
		}
		if _, err := activeModule(s.CourseRepo.WithTx(tx).LockModule(ctx, item.ModuleID)); err != nil {
			return err
		}
		if err := items.Delete(ctx, itemID); err != nil {
			return err
		}
		if err := repository.NewItemProgressRepository(tx).DeleteForItem(ctx, itemID); err != nil {
			return err
		}
		if err := items.ShiftFrom(ctx, item.ModuleID, item.Position+1, -1); err != nil {
			return err
		}
		return writeAudit(ctx, tx, actor, "item.remove", "module_item", itemID, map[string]interface{}{
			"moduleId":  item.ModuleID,
			"kind":      item.ContentKind,
			"contentId": item.ContentID,
		})
	})
}

func (s *ItemRegistryService) GetItem(ctx context.Context, itemID uint) (*model.ModuleItem, error) {
	item, err := s.ItemRepo.FindByID(ctx, itemID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// LearnerContent 学习者读取 item 内容，先经过门控与发布时间检查
func (s *ItemRegistryService) LearnerContent(ctx context.Context, userID, itemID uint) (*ResolvedContent, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.Modules.CheckItemAccess(ctx, userID, item); err != nil {
		return nil, err
	}
	return s.ResolveContent(ctx, item)
}

// ResolveContent 内容记录缺失属于数据完整性问题，不做修复
func (s *ItemRegistryService) ResolveContent(ctx context.Context, item *model.ModuleItem) (*ResolvedContent, error) {
	ref, err := item.Ref()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, util.ErrIntegrityViolation)
	}
	missing := func(err error) error {
		if repository.IsNotFound(err) {
			return fmt.Errorf("module item %d references missing %s %d: %w",
				item.ID, item.ContentKind, item.ContentID, util.ErrIntegrityViolation)
		}
		return err
	}
	type result struct {
		content *ResolvedContent
		err     error
	}
	res := model.MatchRef(ref,
		func(r model.LessonRef) result {
			l, err := s.CourseRepo.FindLesson(ctx, r.LessonID)
			if err != nil {
				return result{err: missing(err)}
			}
			return result{content: &ResolvedContent{Kind: model.ItemKindLesson, Lesson: l}}
		},
		func(r model.QuizRef) result {
			q, err := s.QuizRepo.FindByID(ctx, r.QuizID)
			if err != nil {
				return result{err: missing(err)}
			}
			return result{content: &ResolvedContent{Kind: model.ItemKindQuiz, Quiz: q}}
		},
		func(r model.AssignmentRef) result {
			a, err := s.AssignmentRepo.FindByID(ctx, r.AssignmentID)
			if err != nil {
				return result{err: missing(err)}
			}
			return result{content: &ResolvedContent{Kind: model.ItemKindAssignment, Assignment: a}}
		},
	)
	return res.content, res.err
}
