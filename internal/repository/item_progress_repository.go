package repository

import (
	"context"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemProgressRepository struct {
	DB *gorm.DB
}

func NewItemProgressRepository(db *gorm.DB) *ItemProgressRepository {
	return &ItemProgressRepository{DB: db}
}

func (r *ItemProgressRepository) WithTx(tx *gorm.DB) *ItemProgressRepository {
	return &ItemProgressRepository{DB: tx}
}

func (r *ItemProgressRepository) Find(ctx context.Context, userID, itemID uint) (*model.ItemProgress, error) {
	var p model.ItemProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TouchAccess 首次访问时创建记录，之后只更新 last_accessed_at，不会动 completed_at
func (r *ItemProgressRepository) TouchAccess(ctx context.Context, userID, itemID uint, at time.Time) error {
	p := &model.ItemProgress{UserID: userID, ItemID: itemID, LastAccessedAt: &at}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_accessed_at": at, "updated_at": at}),
	}).Create(p).Error
}

// Ensure 保证 (user, item) 记录存在
func (r *ItemProgressRepository) Ensure(ctx context.Context, userID, itemID uint) error {
	p := &model.ItemProgress{UserID: userID, ItemID: itemID}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
		DoNothing: true,
	}).Create(p).Error
}

// MarkCompleted 仅在 completed_at 为空时写入，返回本次是否真正完成
func (r *ItemProgressRepository) MarkCompleted(ctx context.Context, userID, itemID uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.ItemProgress{}).
		Where("user_id = ? AND item_id = ? AND completed_at IS NULL", userID, itemID).
		Updates(map[string]interface{}{"completed_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ItemProgressRepository) ListForItems(ctx context.Context, userID uint, itemIDs []uint) ([]model.ItemProgress, error) {
	var rows []model.ItemProgress
	if len(itemIDs) == 0 {
		return rows, nil
	}
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND item_id IN ?", userID, itemIDs).
		Find(&rows).Error
	return rows, err
}

// LatestUnfinished 最近访问且未完成的一条，用于“继续学习”
func (r *ItemProgressRepository) LatestUnfinished(ctx context.Context, userID uint, itemIDs []uint) (*model.ItemProgress, error) {
	var p model.ItemProgress
	if len(itemIDs) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND item_id IN ? AND completed_at IS NULL AND last_accessed_at IS NOT NULL", userID, itemIDs).
		Order("last_accessed_at desc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ItemProgressRepository) DeleteForItem(ctx context.Context, itemID uint) error {
	return r.DB.WithContext(ctx).Where("item_id = ?", itemID).Delete(&model.ItemProgress{}).Error
}

// ListOrphaned 返回 item 已不存在的进度记录
func (r *ItemProgressRepository) ListOrphaned(ctx context.Context) ([]model.ItemProgress, error) {
	var rows []model.ItemProgress
	err := r.DB.WithContext(ctx).
		Where("item_id NOT IN (?)", r.DB.Model(&model.ModuleItem{}).Select("id")).
		Find(&rows).Error
	return rows, err
}
