package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/config"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	r := gin.New()
	teacher := r.Group("/teacher", AuthMiddleware(cfg), RoleMiddleware(model.Teacher))
	teacher.GET("/ping", func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	return r
}

func request(t *testing.T, r *gin.Engine, role model.UserRole) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/teacher/ping", nil)
	if role != "" {
		token, err := util.GenerateJWT(7, role, "", testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()
	assert.Equal(t, http.StatusUnauthorized, request(t, r, ""))
	assert.Equal(t, http.StatusForbidden, request(t, r, model.Student))
	assert.Equal(t, http.StatusOK, request(t, r, model.Teacher))
	assert.Equal(t, http.StatusOK, request(t, r, model.Admin))
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	r := newRouter()
	req := httptest.NewRequest(http.MethodGet, "/teacher/ping", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
