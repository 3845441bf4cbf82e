package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor 显式传入每个写操作，后台任务和测试不需要模拟请求上下文
type Actor struct {
	UserID   uint
	SourceIP string
}

// SystemActor 用于定时任务等非用户触发的写操作
var SystemActor = Actor{UserID: 0, SourceIP: "system"}

// nowFunc 测试中可替换
var nowFunc = time.Now

func writeAudit(ctx context.Context, tx *gorm.DB, actor Actor, action, entity string, entityID uint, detail interface{}) error {
	entry := &model.AuditLog{
		ActorID:   actor.UserID,
		SourceIP:  actor.SourceIP,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		CreatedAt: nowFunc(),
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		entry.Detail = datatypes.JSON(raw)
	}
	return repository.NewAuditRepository(tx).Create(ctx, entry)
}
