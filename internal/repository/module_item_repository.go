package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
)

type ModuleItemRepository struct {
	DB *gorm.DB
}

func NewModuleItemRepository(db *gorm.DB) *ModuleItemRepository {
	return &ModuleItemRepository{DB: db}
}

func (r *ModuleItemRepository) WithTx(tx *gorm.DB) *ModuleItemRepository {
	return &ModuleItemRepository{DB: tx}
}

func (r *ModuleItemRepository) Create(ctx context.Context, item *model.ModuleItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *ModuleItemRepository) FindByID(ctx context.Context, id uint) (*model.ModuleItem, error) {
	var item model.ModuleItem
	if err := r.DB.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ModuleItemRepository) FindByContent(ctx context.Context, kind model.ItemKind, contentID uint) (*model.ModuleItem, error) {
	var item model.ModuleItem
	err := r.DB.WithContext(ctx).
		Where("content_kind = ? AND content_id = ?", kind, contentID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ModuleItemRepository) ListByModule(ctx context.Context, moduleID uint) ([]model.ModuleItem, error) {
	var items []model.ModuleItem
	err := r.DB.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("position asc, id asc").
		Find(&items).Error
	return items, err
}

// ListPage 按 (position, id) 做 keyset 分页，位置相同的项不会在页边界被跳过
func (r *ModuleItemRepository) ListPage(ctx context.Context, moduleID uint, afterPosition int, afterID uint, limit int) ([]model.ModuleItem, error) {
	var items []model.ModuleItem
	err := r.DB.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Where("position > ? OR (position = ? AND id > ?)", afterPosition, afterPosition, afterID).
		Order("position asc, id asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *ModuleItemRepository) ListByModules(ctx context.Context, moduleIDs []uint) ([]model.ModuleItem, error) {
	var items []model.ModuleItem
	if len(moduleIDs) == 0 {
		return items, nil
	}
	err := r.DB.WithContext(ctx).
		Where("module_id IN ?", moduleIDs).
		Order("module_id asc, position asc").
		Find(&items).Error
	return items, err
}

func (r *ModuleItemRepository) MaxPosition(ctx context.Context, moduleID uint) (int, error) {
	var pos int
	err := r.DB.WithContext(ctx).Model(&model.ModuleItem{}).
		Where("module_id = ?", moduleID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&pos).Error
	return pos, err
}

// ShiftFrom 将 position >= from 的项整体移动 delta
func (r *ModuleItemRepository) ShiftFrom(ctx context.Context, moduleID uint, from, delta int) error {
	return r.DB.WithContext(ctx).Model(&model.ModuleItem{}).
		Where("module_id = ? AND position >= ?", moduleID, from).
		UpdateColumn("position", gorm.Expr("position + ?", delta)).Error
}

func (r *ModuleItemRepository) SetPosition(ctx context.Context, id uint, position int) error {
	return r.DB.WithContext(ctx).Model(&model.ModuleItem{}).
		Where("id = ?", id).
		UpdateColumn("position", position).Error
}

func (r *ModuleItemRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Delete(&model.ModuleItem{}, id).Error
}

func (r *ModuleItemRepository) ListAll(ctx context.Context) ([]model.ModuleItem, error) {
	var items []model.ModuleItem
	err := r.DB.WithContext(ctx).Order("id asc").Find(&items).Error
	return items, err
}
