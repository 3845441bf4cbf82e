package controller

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

type CourseController struct {
	CourseService *service.CourseService
	ItemService   *service.ItemRegistryService
}

func NewCourseController(courseService *service.CourseService, itemService *service.ItemRegistryService) *CourseController {
	return &CourseController{CourseService: courseService, ItemService: itemService}
}

type AddItemRequest struct {
	Kind      model.ItemKind `json:"kind" binding:"required"`
	ContentID uint           `json:"contentId" binding:"required"`
	Position  *int           `json:"position"`
	Required  *bool          `json:"required"`
	ReleaseAt *time.Time     `json:"releaseAt"`
}

type ReorderRequest struct {
	ItemIDs []uint `json:"itemIds" binding:"required"`
}

// @Summary 创建课程
// @Tags 课程编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateCourseRequest true "课程"
// @Success 201 {object} util.Response{data=model.Course}
// @Router /teacher/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req service.CreateCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.CreateCourse(ctx.Request.Context(), actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// @Summary 归档课程
// @Tags 课程编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /teacher/courses/{id}/archive [post]
func (c *CourseController) ArchiveCourse(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.ArchiveCourse(ctx.Request.Context(), actor, courseID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 创建模块
// @Tags 课程编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.CreateModuleRequest true "模块"
// @Success 201 {object} util.Response{data=model.Module}
// @Router /teacher/courses/{id}/modules [post]
func (c *CourseController) CreateModule(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req service.CreateModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	module, err := c.CourseService.CreateModule(ctx.Request.Context(), actor, courseID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

// @Summary 课程模块列表
// @Tags 课程编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Module}
// @Router /learn/courses/{id}/modules [get]
func (c *CourseController) ListModules(ctx *gin.Context) {
	courseID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	modules, err := c.CourseService.ListModules(ctx.Request.Context(), courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// @Summary 归档模块
// @Tags 课程编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Success 200 {object} util.Response
// @Router /teacher/modules/{id}/archive [post]
func (c *CourseController) ArchiveModule(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	moduleID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	if err := c.CourseService.ArchiveModule(ctx.Request.Context(), actor, moduleID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 创建课时
// @Tags 课程编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.CreateLessonRequest true "课时"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Router /teacher/courses/{id}/lessons [post]
func (c *CourseController) CreateLesson(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req service.CreateLessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	lesson, err := c.CourseService.CreateLesson(ctx.Request.Context(), actor, courseID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// @Summary 向模块添加内容项
// @Tags 课程编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Param body body AddItemRequest true "内容项"
// @Success 201 {object} util.Response{data=model.ModuleItem}
// @Router /teacher/modules/{id}/items [post]
func (c *CourseController) AddItem(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	moduleID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req AddItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	ref, err := model.NewItemRef(req.Kind, req.ContentID)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	item, err := c.ItemService.AddItem(ctx.Request.Context(), actor, moduleID, ref, service.AddItemOptions{
		Position:  req.Position,
		Required:  req.Required,
		ReleaseAt: req.ReleaseAt,
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, item)
}

// @Summary 调整模块内容顺序
// @Tags 课程编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Param body body ReorderRequest true "完整的 item id 排列"
// @Success 200 {object} util.Response
// @Router /teacher/modules/{id}/items/order [put]
func (c *CourseController) ReorderItems(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	moduleID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ItemService.Reorder(ctx.Request.Context(), actor, moduleID, req.ItemIDs); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 移除内容项
// @Tags 课程编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "内容项ID"
// @Success 200 {object} util.Response
// @Router /teacher/items/{id} [delete]
func (c *CourseController) RemoveItem(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	itemID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	if err := c.ItemService.RemoveItem(ctx.Request.Context(), actor, itemID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 模块内容列表
// @Tags 课程编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "模块ID"
// @Success 200 {object} util.Response{data=[]model.ModuleItem}
// @Router /learn/modules/{id}/items [get]
func (c *CourseController) ListItems(ctx *gin.Context) {
	moduleID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	items, err := c.ItemService.CollectItems(ctx.Request.Context(), moduleID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// @Summary 内容项详情
// @Description 学习者读取内容前会检查模块门控与发布时间
// @Tags 学习
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "内容项ID"
// @Success 200 {object} util.Response{data=service.ResolvedContent}
// @Router /learn/items/{id}/content [get]
func (c *CourseController) GetItemContent(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	itemID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	content, err := c.ItemService.LearnerContent(ctx.Request.Context(), actor.UserID, itemID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, content)
}
