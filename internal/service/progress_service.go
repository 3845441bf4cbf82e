package service

import (
	"context"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"gorm.io/gorm"
)

type ProgressService struct {
	DB               *gorm.DB
	CourseRepo       *repository.CourseRepository
	ItemRepo         *repository.ModuleItemRepository
	ItemProgressRepo *repository.ItemProgressRepository
	Modules          *ModuleProgressService
}

func NewProgressService(db *gorm.DB, modules *ModuleProgressService) *ProgressService {
	return &ProgressService{
		DB:               db,
		CourseRepo:       repository.NewCourseRepository(db),
		ItemRepo:         repository.NewModuleItemRepository(db),
		ItemProgressRepo: repository.NewItemProgressRepository(db),
		Modules:          modules,
	}
}

type ItemProgressView struct {
	ItemID         uint           `json:"itemId"`
	Kind           model.ItemKind `json:"kind"`
	ContentID      uint           `json:"contentId"`
	Position       int            `json:"position"`
	Required       bool           `json:"required"`
	Released       bool           `json:"released"`
	Accessed       bool           `json:"accessed"`
	Completed      bool           `json:"completed"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	LastAccessedAt *time.Time     `json:"lastAccessedAt,omitempty"`
}

type ModuleSummary struct {
	ModuleID        uint               `json:"moduleId"`
	Items           []ItemProgressView `json:"items"`
	RequiredTotal   int                `json:"requiredTotal"`
	RequiredDone    int                `json:"requiredDone"`
	AllRequiredDone bool               `json:"allRequiredDone"`
}

// accessibleItem 校验 item 存在、模块可访问且已到发布时间
func (s *ProgressService) accessibleItem(ctx context.Context, userID, itemID uint) (*model.ModuleItem, error) {
	item, err := s.ItemRepo.FindByID(ctx, itemID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrItemNotFound
		}
		return nil, err
	}
	if err := s.Modules.CheckItemAccess(ctx, userID, item); err != nil {
		return nil, err
	}
	return item, nil
}

// RecordAccess 只更新 lastAccessedAt，不会清除 completedAt
func (s *ProgressService) RecordAccess(ctx context.Context, actor Actor, itemID uint) (*model.ItemProgress, error) {
	if _, err := s.accessibleItem(ctx, actor.UserID, itemID); err != nil {
		return nil, err
	}
	if err := s.ItemProgressRepo.TouchAccess(ctx, actor.UserID, itemID, nowFunc()); err != nil {
		return nil, err
	}
	return s.ItemProgressRepo.Find(ctx, actor.UserID, itemID)
}

// RecordCompletion 幂等：只有第一次调用会写入 completedAt 并触发模块重算
func (s *ProgressService) RecordCompletion(ctx context.Context, actor Actor, itemID uint) (*model.ItemProgress, error) {
	item, err := s.accessibleItem(ctx, actor.UserID, itemID)
	if err != nil {
		return nil, err
	}

	changed := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = markItemCompleted(ctx, tx, actor, item.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.Modules.RecomputeQuietly(ctx, actor.UserID, item.ModuleID)
	}
	return s.ItemProgressRepo.Find(ctx, actor.UserID, itemID)
}

// markItemCompleted 在调用方事务内写入完成时间，已完成时不做任何事
func markItemCompleted(ctx context.Context, tx *gorm.DB, actor Actor, itemID uint) (bool, error) {
	repo := repository.NewItemProgressRepository(tx)
	if err := repo.Ensure(ctx, actor.UserID, itemID); err != nil {
		return false, err
	}
	changed, err := repo.MarkCompleted(ctx, actor.UserID, itemID, nowFunc())
	if err != nil || !changed {
		return false, err
	}
	return true, writeAudit(ctx, tx, actor, "item.complete", "module_item", itemID, nil)
}

func (s *ProgressService) ProgressSummary(ctx context.Context, userID, moduleID uint) (*ModuleSummary, error) {
	module, err := s.CourseRepo.FindModule(ctx, moduleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if !module.IsActive() {
		return nil, util.ErrModuleArchived
	}

	items, err := s.ItemRepo.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	rows, err := s.ItemProgressRepo.ListForItems(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	byItem := make(map[uint]model.ItemProgress, len(rows))
	for _, p := range rows {
		byItem[p.ItemID] = p
	}

	now := nowFunc()
	summary := &ModuleSummary{ModuleID: moduleID, Items: make([]ItemProgressView, 0, len(items))}
	for _, item := range items {
		p := byItem[item.ID]
		view := ItemProgressView{
			ItemID:         item.ID,
			Kind:           item.ContentKind,
			ContentID:      item.ContentID,
			Position:       item.Position,
			Required:       item.Required,
			Released:       item.Released(now),
			Accessed:       p.LastAccessedAt != nil,
			Completed:      p.Completed(),
			CompletedAt:    p.CompletedAt,
			LastAccessedAt: p.LastAccessedAt,
		}
		if item.Required {
			summary.RequiredTotal++
			if view.Completed {
				summary.RequiredDone++
			}
		}
		summary.Items = append(summary.Items, view)
	}
	summary.AllRequiredDone = summary.RequiredDone == summary.RequiredTotal
	return summary, nil
}

// ContinueLearning 课程内最近访问且未完成的 item；没有时返回 nil
func (s *ProgressService) ContinueLearning(ctx context.Context, userID, courseID uint) (*model.ModuleItem, error) {
	modules, err := s.CourseRepo.ListActiveModules(ctx, courseID)
	if err != nil {
		return nil, err
	}
	moduleIDs := make([]uint, 0, len(modules))
	for _, m := range modules {
		moduleIDs = append(moduleIDs, m.ID)
	}
	items, err := s.ItemRepo.ListByModules(ctx, moduleIDs)
	if err != nil {
		return nil, err
	}
	itemIDs := make([]uint, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}

	p, err := s.ItemProgressRepo.LatestUnfinished(ctx, userID, itemIDs)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for i := range items {
		if items[i].ID == p.ItemID {
			return &items[i], nil
		}
	}
	return nil, nil
}
