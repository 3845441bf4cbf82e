package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/database"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressEnv struct {
	router   *gin.Engine
	itemID   uint
	moduleID uint
}

func newProgressEnv(t *testing.T) *progressEnv {
	t.Helper()
	logger.InitNop()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLiteMemory("controller_" + t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ctx := context.Background()
	teacher := service.Actor{UserID: 1}
	courses := service.NewCourseService(db)
	modules := service.NewModuleProgressService(db, service.NopEventPublisher{})
	items := service.NewItemRegistryService(db, modules, 0)
	progress := service.NewProgressService(db, modules)

	course, err := courses.CreateCourse(ctx, teacher, service.CreateCourseRequest{Title: "课程"})
	require.NoError(t, err)
	module, err := courses.CreateModule(ctx, teacher, course.ID, service.CreateModuleRequest{Title: "模块"})
	require.NoError(t, err)
	lesson, err := courses.CreateLesson(ctx, teacher, course.ID, service.CreateLessonRequest{Title: "课时"})
	require.NoError(t, err)
	item, err := items.AddItem(ctx, teacher, module.ID, model.LessonRef{LessonID: lesson.ID}, service.AddItemOptions{})
	require.NoError(t, err)

	pc := NewProgressController(progress, modules)
	r := gin.New()
	learn := r.Group("/learn")
	learn.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-User") != "" {
			c.Set("user", &util.Claims{UserID: 2, Role: model.Student})
		}
		c.Next()
	})
	learn.POST("/items/:id/complete", pc.RecordCompletion)
	learn.GET("/modules/:id/summary", pc.ModuleSummary)
	return &progressEnv{router: r, itemID: item.ID, moduleID: module.ID}
}

func (e *progressEnv) do(t *testing.T, method, path string, authed bool) (int, util.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.Header.Set("X-Test-User", "1")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var resp util.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestRecordCompletionEndpoint(t *testing.T) {
	env := newProgressEnv(t)
	path := fmt.Sprintf("/learn/items/%d/complete", env.itemID)

	status, _ := env.do(t, http.MethodPost, path, false)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp := env.do(t, http.MethodPost, path, true)
	require.Equal(t, http.StatusOK, status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	first := data["completedAt"]
	assert.NotNil(t, first)

	_, resp = env.do(t, http.MethodPost, path, true)
	assert.Equal(t, first, resp.Data.(map[string]interface{})["completedAt"])

	status, resp = env.do(t, http.MethodGet, fmt.Sprintf("/learn/modules/%d/summary", env.moduleID), true)
	require.Equal(t, http.StatusOK, status)
	summary := resp.Data.(map[string]interface{})
	assert.Equal(t, 1.0, summary["requiredDone"])
	assert.Equal(t, true, summary["allRequiredDone"])
}

func TestRecordCompletionEndpointErrors(t *testing.T) {
	env := newProgressEnv(t)

	status, _ := env.do(t, http.MethodPost, "/learn/items/abc/complete", true)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp := env.do(t, http.MethodPost, "/learn/items/999/complete", true)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "item_not_found", resp.ErrorCode)
}
