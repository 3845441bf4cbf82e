package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

type GradeController struct {
	GradeService      *service.GradeService
	AssignmentService *service.AssignmentService
}

func NewGradeController(gradeService *service.GradeService, assignmentService *service.AssignmentService) *GradeController {
	return &GradeController{
		GradeService:      gradeService,
		AssignmentService: assignmentService,
	}
}

// @Summary 评分
// @Description 每次评分产生新版本，发布前学习者不可见
// @Tags 成绩
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提交ID"
// @Param body body service.RecordGradeRequest true "分数"
// @Success 201 {object} util.Response{data=model.Grade}
// @Router /teacher/submissions/{id}/grades [post]
func (c *GradeController) RecordGrade(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	submissionID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req service.RecordGradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	grade, err := c.GradeService.RecordGrade(ctx.Request.Context(), actor, submissionID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, grade)
}

// @Summary 发布成绩
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "成绩ID"
// @Success 200 {object} util.Response{data=model.Grade}
// @Router /teacher/grades/{id}/publish [post]
func (c *GradeController) PublishGrade(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	gradeID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	grade, err := c.GradeService.Publish(ctx.Request.Context(), actor, gradeID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, grade)
}

// @Summary 提交的全部成绩版本（含未发布）
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "提交ID"
// @Success 200 {object} util.Response{data=[]model.Grade}
// @Router /teacher/submissions/{id}/grades [get]
func (c *GradeController) ListGrades(ctx *gin.Context) {
	submissionID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	grades, err := c.GradeService.ListGrades(ctx.Request.Context(), submissionID, true)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, grades)
}

// @Summary 我的作业成绩（仅已发布）
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response{data=[]model.Grade}
// @Router /learn/assignments/{id}/grades [get]
func (c *GradeController) MyGrades(ctx *gin.Context) {
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
	grades, err := c.GradeService.ListGrades(ctx.Request.Context(), submission.ID, false)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, grades)
}

// @Summary 我的课程总成绩
// @Tags 成绩
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.CourseGrade}
// @Router /learn/courses/{id}/grade [get]
func (c *GradeController) CourseGrade(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	grade, err := c.GradeService.GetCourseGrade(ctx.Request.Context(), actor.UserID, courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, grade)
}
