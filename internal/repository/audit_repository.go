package repository

import (
	"context"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
)

type AuditRepository struct {
	DB *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{DB: db}
}

func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{DB: tx}
}

func (r *AuditRepository) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) ListByEntity(ctx context.Context, entity string, entityID uint) ([]model.AuditLog, error) {
	var rows []model.AuditLog
	err := r.DB.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("id asc").
		Find(&rows).Error
	return rows, err
}
