package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

type AssignmentController struct {
	AssignmentService *service.AssignmentService
	StorageService    *service.StorageService
}

func NewAssignmentController(assignmentService *service.AssignmentService, storageService *service.StorageService) *AssignmentController {
	return &AssignmentController{
		AssignmentService: assignmentService,
		StorageService:    storageService,
	}
}

// @Summary 创建作业
// @Tags 作业
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateAssignmentRequest true "作业"
// @Success 201 {object} util.Response{data=model.Assignment}
// @Router /teacher/assignments [post]
func (c *AssignmentController) CreateAssignment(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req service.CreateAssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	assignment, err := c.AssignmentService.CreateAssignment(ctx.Request.Context(), actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, assignment)
}

// @Summary 作业详情
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=model.Assignment}
// @Router /learn/assignments/{id} [get]
func (c *AssignmentController) GetAssignment(ctx *gin.Context) {
	assignmentID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	assignment, err := c.AssignmentService.GetAssignment(ctx.Request.Context(), assignmentID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, assignment)
}

// @Summary 提交（或重新提交）作业
// @Description 重新提交前会把上一版本写入历史
// @Tags 作业
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作业ID"
// @Param body body service.SubmitRequest true "提交内容"
// @Success 200 {object} util.Response{data=model.Submission}
// @Router /learn/assignments/{id}/submission [post]
func (c *AssignmentController) Submit(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	assignmentID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	submission, err := c.AssignmentService.Submit(ctx.Request.Context(), actor, assignmentID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// @Summary 上传作业附件
// @Description 返回文件 URL，由客户端放入提交的 fileUrls
// @Tags 作业
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作业ID"
// @Param file formData file true "附件"
// @Success 200 {object} util.Response
// @Router /learn/assignments/{id}/files [post]
func (c *AssignmentController) UploadFile(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	assignmentID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	if _, err := c.AssignmentService.GetAssignment(ctx.Request.Context(), assignmentID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	url, err := c.StorageService.UploadSubmissionFile(ctx.Request.Context(), assignmentID, actor.UserID, fh)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}

// @Summary 我的当前提交
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Router /learn/assignments/{id}/submission [get]
func (c *AssignmentController) GetMySubmission(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	assignmentID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	submission, err := c.AssignmentService.GetSubmission(ctx.Request.Context(), actor.UserID, assignmentID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// @Summary 我的提交历史
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=[]model.SubmissionHistory}
// @Router /learn/assignments/{id}/history [get]
func (c *AssignmentController) ListHistory(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	assignmentID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	history, err := c.AssignmentService.ListHistory(ctx.Request.Context(), actor.UserID, assignmentID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, history)
}

// @Summary 查看提交
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Router /teacher/submissions/{id} [get]
func (c *AssignmentController) GetSubmission(ctx *gin.Context) {
	submissionID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	submission, err := c.AssignmentService.GetSubmissionByID(ctx.Request.Context(), submissionID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// @Summary 退回修改
// @Tags 作业
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=model.Submission}
// @Router /teacher/submissions/{id}/return [post]
func (c *AssignmentController) ReturnForRevision(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	submissionID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	submission, err := c.AssignmentService.ReturnForRevision(ctx.Request.Context(), actor, submissionID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}
