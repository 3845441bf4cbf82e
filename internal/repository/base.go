package repository

import (
	"errors"
	"strings"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/gorm"
)

// IsDuplicateKey 判断是否为唯一约束冲突；驱动未翻译错误时按报错文本兜底
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

// IsNotFound 判断记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// ActiveOnly 显式过滤归档记录，所有课程/模块查询路径都需要带上
func ActiveOnly(db *gorm.DB) *gorm.DB {
	return db.Where("state = ?", model.StateActive)
}
