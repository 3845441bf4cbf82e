package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"gorm.io/gorm"
)

type HealthController struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Integrity *service.IntegrityService
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, integrity *service.IntegrityService) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Integrity: integrity}
}

// @Summary 健康检查
// @Description 检查数据库与 Redis 状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	redisStatus := "disabled"
	if c.Redis != nil {
		redisStatus = "up"
		if err := c.Redis.Ping(ctx.Request.Context()).Err(); err != nil {
			// 缓存不可用只降级，不影响整体可用性
			redisStatus = "down"
		}
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"redis":    redisStatus,
		},
	})
}

// @Summary 数据完整性巡检
// @Description 报告指向已删除内容的 item 以及孤立的进度记录，不做修复
// @Tags 系统
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.IntegrityReport}
// @Router /teacher/integrity/sweep [post]
func (c *HealthController) RunIntegritySweep(ctx *gin.Context) {
	report, err := c.Integrity.Sweep(ctx.Request.Context())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, report)
}
