package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

// RespondError 按错误类别映射 HTTP 状态码；完整性与瞬时错误只返回通用提示
func RespondError(c *gin.Context, err error) {
	var status int
	message := err.Error()
	switch KindOf(err) {
	case KindValidation:
		status = http.StatusBadRequest
	case KindNotFound:
		status = http.StatusNotFound
	case KindState:
		status = http.StatusConflict
	case KindForbidden:
		status = http.StatusForbidden
	case KindTransient:
		status = http.StatusServiceUnavailable
		message = "Temporary conflict, please retry"
		logger.Log.Warn("transient error", zap.String("path", c.FullPath()), zap.Error(err))
	case KindIntegrity:
		status = http.StatusInternalServerError
		message = "Something went wrong, please contact support"
		logger.Log.Error("integrity violation", zap.String("path", c.FullPath()), zap.Error(err))
	default:
		LogInternalError(c, err)
		return
	}

	resp := Response{Code: status, Message: message, ErrorCode: CodeOf(err)}
	var ve *ValidationError
	if errors.As(err, &ve) {
		resp.Data = gin.H{"fields": ve.Fields}
	}
	c.JSON(status, resp)
}
