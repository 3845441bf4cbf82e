package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog 记录每一次写操作的操作者与来源 IP
type AuditLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID   uint           `gorm:"index" json:"actorId"`
	SourceIP  string         `gorm:"size:64" json:"sourceIp"`
	Action    string         `gorm:"size:64;not null;index" json:"action"`
	Entity    string         `gorm:"size:64;not null" json:"entity"`
	EntityID  uint           `json:"entityId"`
	Detail    datatypes.JSON `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
