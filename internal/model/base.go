package model

import (
	"time"
)

// BaseModel 不带软删除列：归档通过显式的 LifecycleState 表达
// swagger:model
type BaseModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type LifecycleState string

const (
	StateActive   LifecycleState = "active"
	StateArchived LifecycleState = "archived"
)
