package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// @Summary 开始（或继续）测验尝试
// @Tags 测验作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Failure 409 {object} util.Response "attempt_limit_reached / quiz_not_available / module_exam_locked"
// @Router /learn/quizzes/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.AttemptService.StartAttempt(ctx.Request.Context(), actor, quizID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 我的尝试列表
// @Tags 测验作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /learn/quizzes/{id}/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	attempts, err := c.AttemptService.ListAttempts(ctx.Request.Context(), actor.UserID, quizID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 尝试详情（按持久化顺序）
// @Tags 测验作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Success 200 {object} util.Response{data=service.AttemptView}
// @Router /learn/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	attemptID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	view, err := c.AttemptService.GetAttemptView(ctx.Request.Context(), actor.UserID, attemptID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 提交单题答案
// @Description 选择题传 selected（原始选项下标），判断题传 value
// @Tags 测验作答
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Param questionId path int true "题目ID"
// @Param body body model.SubmittedAnswer true "答案"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Router /learn/attempts/{id}/answers/{questionId} [put]
func (c *AttemptController) SubmitAnswer(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	attemptID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	questionID, ok := util.ParamUint(ctx, "questionId")
	if !ok {
		return
	}
	var answer model.SubmittedAnswer
	if err := ctx.ShouldBindJSON(&answer); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	attempt, err := c.AttemptService.SubmitAnswer(ctx.Request.Context(), actor, attemptID, questionID, answer)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 交卷并评分
// @Tags 测验作答
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Router /learn/attempts/{id}/finalize [post]
func (c *AttemptController) Finalize(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	attemptID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.AttemptService.Finalize(ctx.Request.Context(), actor, attemptID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
