package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Generates and edits conflict-free weekly school timetables.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(rootCtx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(rootCtx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	app := buildApp(cfg, db, redisClient, logr)
	app.queue.Start(rootCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Scheduler.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	app.queue.Stop()
	if err := app.cacheRepo.Close(); err != nil {
		logr.Warn("redis close failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type application struct {
	router    *gin.Engine
	queue     *jobs.Queue
	cacheRepo *repository.CacheRepository
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()

	classRepo := repository.NewClassGroupRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	timingRepo := repository.NewTimingRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
	}

	generator := service.NewTimetableGeneratorService(
		service.GenerationSources{
			Classes:    classRepo,
			Subjects:   subjectRepo,
			Teachers:   teacherRepo,
			Classrooms: classroomRepo,
			Batches:    batchRepo,
			Timings:    timingRepo,
		},
		timetableRepo, cacheSvc, metrics, validate, logr,
		service.TimetableGeneratorConfig{
			RequireRoomStrict: cfg.Scheduler.RequireRoomStrict,
			Timeout:           cfg.Scheduler.Timeout,
			Seed:              cfg.Scheduler.Seed,
			JobTTL:            cfg.Scheduler.JobTTL,
		},
	)
	queue := jobs.NewQueue("timetable-generation", generator.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Scheduler.JobWorkers,
		MaxRetries: cfg.Scheduler.JobRetries,
		JobTimeout: cfg.Scheduler.Timeout,
		Logger:     logr,
	})
	generator.AttachQueue(queue)

	timetables := service.NewTimetableService(
		timetableRepo,
		lessonRepo,
		service.LessonReferences{
			Classes:    classRepo,
			Subjects:   subjectRepo,
			Teachers:   teacherRepo,
			Classrooms: classroomRepo,
			Batches:    batchRepo,
			Timings:    timingRepo,
		},
		db, cacheSvc, metrics, validate, logr,
	)
	tokens := service.NewTokenService(cfg.JWT.Secret)

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	opsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	r.GET("/metrics", opsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerTimetableRoutes(r.Group(cfg.APIPrefix), handler.NewTimetableHandler(generator, timetables), tokens)

	return &application{router: r, queue: queue, cacheRepo: cacheRepo}
}

func registerTimetableRoutes(api *gin.RouterGroup, h *handler.TimetableHandler, tokens internalmiddleware.TokenValidator) {
	timetables := api.Group("/timetables", internalmiddleware.JWT(tokens))
	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	timetables.GET("", h.List)
	timetables.GET("/active", h.Active)
	timetables.GET("/jobs/:jobId", h.Job)
	timetables.GET("/:id", h.Get)

	timetables.POST("/generate", admin, h.Generate)
	timetables.POST("/generate/async", admin, h.GenerateAsync)
	timetables.DELETE("/:id", admin, h.Delete)
	timetables.POST("/:id/activate", admin, h.Activate)
	timetables.POST("/:id/lock", admin, h.Lock)
	timetables.POST("/:id/unlock", admin, h.Unlock)
	timetables.POST("/:id/lessons", admin, h.AddLesson)
	timetables.PUT("/:id/lessons/:lessonId", admin, h.UpdateLesson)
	timetables.DELETE("/:id/lessons/:lessonId", admin, h.RemoveLesson)
}
