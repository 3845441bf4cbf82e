package app

import (
	"github.com/gin-gonic/gin"
	"github.com/mmo7amed2010/swenam-sis-sub001/docs"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/config"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/middleware"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/monitoring"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 学习者接口
	learn := router.Group("/api/learn")
	learn.Use(middleware.AuthMiddleware(cfg))
	a.registerLearnerRoutes(learn, c)

	// 3. 教师/管理员接口
	teacher := router.Group("/api/teacher")
	teacher.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Teacher))
	a.registerTeacherRoutes(teacher, c)
}

func (a *App) registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	// 课程与内容
	rg.GET("/courses/:id/modules", c.course.ListModules)
	rg.GET("/modules/:id/items", c.course.ListItems)
	rg.GET("/items/:id/content", c.course.GetItemContent)

	// 进度
	rg.POST("/items/:id/access", c.progress.RecordAccess)
	rg.POST("/items/:id/complete", c.progress.RecordCompletion)
	rg.GET("/modules/:id/summary", c.progress.ModuleSummary)
	rg.GET("/modules/:id/progress", c.progress.ModuleProgress)
	rg.GET("/courses/:id/progress", c.progress.CourseProgress)
	rg.GET("/courses/:id/continue", c.progress.ContinueLearning)
	rg.GET("/courses/:id/grade", c.grade.CourseGrade)

	// 测验作答
	rg.POST("/quizzes/:id/attempts", c.attempt.StartAttempt)
	rg.GET("/quizzes/:id/attempts", c.attempt.ListAttempts)
	rg.GET("/attempts/:id", c.attempt.GetAttempt)
	rg.PUT("/attempts/:id/answers/:questionId", c.attempt.SubmitAnswer)
	rg.POST("/attempts/:id/finalize", c.attempt.Finalize)

	// 作业
	rg.GET("/assignments/:id", c.assignment.GetAssignment)
	rg.POST("/assignments/:id/files", c.assignment.UploadFile)
	rg.POST("/assignments/:id/submission", c.assignment.Submit)
	rg.GET("/assignments/:id/submission", c.assignment.GetMySubmission)
	rg.GET("/assignments/:id/history", c.assignment.ListHistory)
	rg.GET("/assignments/:id/grades", c.grade.MyGrades)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	// 课程编排
	rg.POST("/courses", c.course.CreateCourse)
	rg.POST("/courses/:id/archive", c.course.ArchiveCourse)
	rg.POST("/courses/:id/modules", c.course.CreateModule)
	rg.POST("/modules/:id/archive", c.course.ArchiveModule)
	rg.POST("/courses/:id/lessons", c.course.CreateLesson)
	rg.POST("/modules/:id/items", c.course.AddItem)
	rg.PUT("/modules/:id/items/order", c.course.ReorderItems)
	rg.DELETE("/items/:id", c.course.RemoveItem)

	// 测验
	rg.POST("/quizzes", c.quiz.CreateQuiz)
	rg.GET("/quizzes/:id", c.quiz.GetQuiz)
	rg.POST("/quizzes/:id/questions", c.quiz.AddQuestion)
	rg.PUT("/questions/:id", c.quiz.UpdateQuestion)
	rg.DELETE("/questions/:id", c.quiz.RemoveQuestion)
	rg.POST("/quizzes/:id/recompute-total", c.quiz.RecomputeTotalPoints)
	rg.POST("/quizzes/:id/publish", c.quiz.PublishQuiz)

	// 作业与评分
	rg.POST("/assignments", c.assignment.CreateAssignment)
	rg.GET("/submissions/:id", c.assignment.GetSubmission)
	rg.POST("/submissions/:id/return", c.assignment.ReturnForRevision)
	rg.POST("/submissions/:id/grades", c.grade.RecordGrade)
	rg.GET("/submissions/:id/grades", c.grade.ListGrades)
	rg.POST("/grades/:id/publish", c.grade.PublishGrade)

	// 运维
	rg.POST("/integrity/sweep", c.health.RunIntegritySweep)
}
