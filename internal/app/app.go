package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/config"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/controller"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/service"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/configwatcher"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/database"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/logger"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/monitoring"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/security"
	"github.com/mmo7amed2010/swenam-sis-sub001/pkg/tracing"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	limiter         *security.RateLimiter
	cron            *cron.Cron
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type services struct {
	events     service.EventPublisher
	storage    *service.StorageService
	course     *service.CourseService
	items      *service.ItemRegistryService
	modules    *service.ModuleProgressService
	progress   *service.ProgressService
	quiz       *service.QuizService
	attempt    *service.AttemptService
	grade      *service.GradeService
	assignment *service.AssignmentService
	integrity  *service.IntegrityService
}

type controllers struct {
	course     *controller.CourseController
	quiz       *controller.QuizController
	attempt    *controller.AttemptController
	progress   *controller.ProgressController
	assignment *controller.AssignmentController
	grade      *controller.GradeController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.events = service.NewEventPublisher(rdb, cfg.Engine.EventChannel)
	s.storage = service.NewStorageService(cfg)
	s.course = service.NewCourseService(db)
	s.modules = service.NewModuleProgressService(db, s.events)
	s.items = service.NewItemRegistryService(db, s.modules, cfg.Engine.ListPageSize)
	s.progress = service.NewProgressService(db, s.modules)
	s.quiz = service.NewQuizService(db)
	s.grade = service.NewGradeService(db, rdb, cfg.Engine.CacheTTL, s.modules, s.events)
	s.attempt = service.NewAttemptService(db, s.modules, s.grade, s.events)
	s.assignment = service.NewAssignmentService(db, s.modules, s.events)
	s.integrity = service.NewIntegrityService(db)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		course:     controller.NewCourseController(s.course, s.items),
		quiz:       controller.NewQuizController(s.quiz),
		attempt:    controller.NewAttemptController(s.attempt),
		progress:   controller.NewProgressController(s.progress, s.modules),
		assignment: controller.NewAssignmentController(s.assignment, s.storage),
		grade:      controller.NewGradeController(s.grade, s.assignment),
		health:     controller.NewHealthController(db, rdb, s.integrity),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.ApplyMode(newCfg.Server.Mode)
		a.limiter.Update(newCfg.RateLimit.MaxRequests, time.Duration(newCfg.RateLimit.WindowMinutes)*time.Minute)
	})
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.limiter.Cleanup()
			}
		}
	}()

	a.cron = cron.New()
	if a.Config.Engine.IntegritySchedule != "" {
		if _, err := s.integrity.Schedule(a.cron, a.Config.Engine.IntegritySchedule); err != nil {
			logger.Log.Error("Failed to schedule integrity sweep", zap.Error(err))
		}
	}
	a.cron.Start()

	go func() {
		err := configwatcher.WatchConfig(ctx, configFile, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.ForceMigrate || cfg.Server.Mode != "release")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存与事件推送都可降级，Redis 不可用时继续启动
		logger.Log.Error("Failed to initialize redis, continuing without cache", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	services := app.initServices(cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
		router.Static("/api/uploads", cfg.Storage.LocalPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx, services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.cancel != nil {
		a.cancel()
	}
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
