package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// @Summary 创建测验/考试
// @Tags 测验编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CreateQuizRequest true "测验"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Router /teacher/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req service.CreateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.QuizService.CreateQuiz(ctx.Request.Context(), actor, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// @Summary 测验详情（含题目与答案）
// @Tags 测验编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /teacher/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quizID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuiz(ctx.Request.Context(), quizID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 添加题目
// @Tags 测验编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 201 {object} util.Response{data=model.QuizQuestion}
// @Router /teacher/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	question, err := c.QuizService.AddQuestion(ctx.Request.Context(), actor, quizID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// @Summary 修改题目
// @Tags 测验编排
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 200 {object} util.Response{data=model.QuizQuestion}
// @Router /teacher/questions/{id} [put]
func (c *QuizController) UpdateQuestion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	questionID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	question, err := c.QuizService.UpdateQuestion(ctx.Request.Context(), actor, questionID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// @Summary 删除题目
// @Tags 测验编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /teacher/questions/{id} [delete]
func (c *QuizController) RemoveQuestion(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	questionID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	if err := c.QuizService.RemoveQuestion(ctx.Request.Context(), actor, questionID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 重新计算总分
// @Tags 测验编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /teacher/quizzes/{id}/recompute-total [post]
func (c *QuizController) RecomputeTotalPoints(ctx *gin.Context) {
	quizID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	total, err := c.QuizService.RecomputeTotalPoints(ctx.Request.Context(), quizID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"totalPoints": total})
}

// @Summary 发布测验
// @Tags 测验编排
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Router /teacher/quizzes/{id}/publish [post]
func (c *QuizController) PublishQuiz(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamUint(ctx, "id")
	if !ok {
		return
	}
	quiz, err := c.QuizService.PublishQuiz(ctx.Request.Context(), actor, quizID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}
