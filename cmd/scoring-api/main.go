package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tutorhub/scoring-api/api/swagger"
	"github.com/tutorhub/scoring-api/internal/handler"
	"github.com/tutorhub/scoring-api/internal/middleware"
	"github.com/tutorhub/scoring-api/internal/repository"
	"github.com/tutorhub/scoring-api/internal/service"
	"github.com/tutorhub/scoring-api/pkg/cache"
	"github.com/tutorhub/scoring-api/pkg/config"
	"github.com/tutorhub/scoring-api/pkg/database"
	"github.com/tutorhub/scoring-api/pkg/logger"
	corsmiddleware "github.com/tutorhub/scoring-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tutorhub/scoring-api/pkg/middleware/requestid"
)

// @title TutorHub Scoring API
// @version 1.0.0
// @description Rule-driven point scoring engine for tutoring programs
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The cache is an optimization; run degraded rather than refuse to start.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	studentRepo := repository.NewStudentRepository(db)
	conditionRepo := repository.NewConditionRepository(db, cacheRepo, cfg.Scoring.ConditionCacheTTL)
	curriculumRepo := repository.NewCurriculumRepository(db, cacheRepo, cfg.Scoring.CurriculumCacheTTL)
	historyRepo := repository.NewHistoryRepository(db)
	scoreRepo := repository.NewScoreRepository(db)

	scoringSvc := service.NewScoringService(studentRepo, conditionRepo, curriculumRepo, historyRepo, scoreRepo,
		cfg.Scoring, validate, logr, metricsSvc)
	historySvc := service.NewHistoryService(historyRepo, studentRepo, cfg.Export, logr)

	scoringHandler := handler.NewScoringHandler(scoringSvc, historySvc)
	historyHandler := handler.NewHistoryHandler(historySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	cacheHandler := handler.NewCacheHandler(conditionRepo, curriculumRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.ServiceToken(cfg.Auth))
	{
		api.POST("/scoring/events", scoringHandler.ApplyEvent)
		api.POST("/scoring/cache/refresh", cacheHandler.Refresh)
		api.GET("/scoring/history/last", scoringHandler.LastEntry)
		api.GET("/scoring/students/:id/history", historyHandler.List)
		api.GET("/scoring/students/:id/statement", historyHandler.Statement)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "scoring_enabled", cfg.Scoring.Enabled)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
