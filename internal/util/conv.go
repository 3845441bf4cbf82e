package util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// ParamUint 读取路径参数中的 ID，非法时写入 400 并返回 false
func ParamUint(c *gin.Context, name string) (uint, bool) {
	id := MustParseUint(c.Param(name))
	if id == 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
