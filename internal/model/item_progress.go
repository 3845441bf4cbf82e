package model

import "time"

// ItemProgress 学习者对单个模块内容项的访问/完成记录
// swagger:model ItemProgress
type ItemProgress struct {
	BaseModel

	UserID         uint       `gorm:"not null;uniqueIndex:idx_user_item,priority:1" json:"userId"`
	ItemID         uint       `gorm:"not null;uniqueIndex:idx_user_item,priority:2;index" json:"itemId"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
}

func (ItemProgress) TableName() string {
	return "item_progress"
}

func (p *ItemProgress) Completed() bool {
	return p.CompletedAt != nil
}
