package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

type ProgressController struct {
	ProgressService *service.ProgressService
	Modules         *service.ModuleProgressService
}

func NewProgressController(progressService *service.ProgressService, modules *service.ModuleProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService, Modules: modules}
}

// @Summary 记录访问
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "ItemID"
// @Success 200 {object} util.Response{data=model.ItemProgress}
// @Router /learn/items/{id}/access [post]
func (c *ProgressController) RecordAccess(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	itemID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.ProgressService.RecordAccess(ctx.Request.Context(), actor, itemID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 标记完成
// @Description 幂等，重复调用保留首次完成时间
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "ItemID"
// @Success 200 {object} util.Response{data=model.ItemProgress}
// @Router /learn/items/{id}/complete [post]
func (c *ProgressController) RecordCompletion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	itemID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.ProgressService.RecordCompletion(ctx.Request.Context(), actor, itemID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 模块内各 item 进度汇总
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Success 200 {object} util.Response{data=service.ModuleSummary}
// @Router /learn/modules/{id}/summary [get]
func (c *ProgressController) ModuleSummary(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	moduleID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	summary, err := c.ProgressService.ProgressSummary(ctx.Request.Context(), actor.UserID, moduleID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 模块进度状态
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Success 200 {object} util.Response{data=model.ModuleProgress}
// @Router /learn/modules/{id}/progress [get]
func (c *ProgressController) ModuleProgress(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	moduleID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.Modules.GetModuleProgress(ctx.Request.Context(), actor.UserID, moduleID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 课程内所有模块进度
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]service.ModuleProgressView}
// @Router /learn/courses/{id}/progress [get]
func (c *ProgressController) CourseProgress(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	views, err := c.Modules.ListCourseProgress(ctx.Request.Context(), actor.UserID, courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, views)
}

// @Summary 继续学习
// @Description 返回最近访问但未完成的 item，没有时 data 为 null
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.ModuleItem}
// @Router /learn/courses/{id}/continue [get]
func (c *ProgressController) ContinueLearning(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	item, err := c.ProgressService.ContinueLearning(ctx.Request.Context(), actor.UserID, courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, item)
}
