package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ModuleProgressRepository struct {
	DB *gorm.DB
}

func NewModuleProgressRepository(db *gorm.DB) *ModuleProgressRepository {
	return &ModuleProgressRepository{DB: db}
}

func (r *ModuleProgressRepository) WithTx(tx *gorm.DB) *ModuleProgressRepository {
	return &ModuleProgressRepository{DB: tx}
}

func (r *ModuleProgressRepository) Find(ctx context.Context, userID, moduleID uint) (*model.ModuleProgress, error) {
	var p model.ModuleProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert 以 (user_id, module_id) 为冲突键整体覆盖，重算结果最后写入者生效
func (r *ModuleProgressRepository) Upsert(ctx context.Context, p *model.ModuleProgress) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"exam_attempts_used",
			"exam_first_score",
			"exam_best_score",
			"exam_passed_at",
			"primary_exam_failed",
			"retake_exam_failed",
			"retake_unlocked_at",
			"retake_passed_at",
			"completed_at",
			"updated_at",
		}),
	}).Create(p).Error
}

func (r *ModuleProgressRepository) ListByUserModules(ctx context.Context, userID uint, moduleIDs []uint) (map[uint]model.ModuleProgress, error) {
	out := make(map[uint]model.ModuleProgress, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return out, nil
	}
	var rows []model.ModuleProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND module_id IN ?", userID, moduleIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ModuleID] = p
	}
	return out, nil
}
