package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

// actorFrom 从令牌和请求来源构造写操作的 Actor；未登录时写入 401 并返回 false
func actorFrom(ctx *gin.Context) (service.Actor, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{UserID: user.UserID, SourceIP: ctx.ClientIP()}, true
}
