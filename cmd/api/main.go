package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/opensalaries/teacherpay-api/api/swagger"
	"github.com/opensalaries/teacherpay-api/internal/handler"
	"github.com/opensalaries/teacherpay-api/internal/middleware"
	"github.com/opensalaries/teacherpay-api/internal/repository"
	"github.com/opensalaries/teacherpay-api/internal/service"
	"github.com/opensalaries/teacherpay-api/pkg/cache"
	"github.com/opensalaries/teacherpay-api/pkg/config"
	"github.com/opensalaries/teacherpay-api/pkg/database"
	"github.com/opensalaries/teacherpay-api/pkg/logger"
	corsmiddleware "github.com/opensalaries/teacherpay-api/pkg/middleware/cors"
	reqidmiddleware "github.com/opensalaries/teacherpay-api/pkg/middleware/requestid"
)

// @title TeacherPay API
// @version 1.0.0
// @description Anonymous international teacher salary submissions and moderation
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Read caching is an optimization; the API serves from Postgres
		// without it.
		logr.Sugar().Warnw("redis unavailable, read caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	submissionRepo := repository.NewSubmissionRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	countryRepo := repository.NewCountryRepository(db)
	rateRepo := repository.NewRateRepository(db)
	visitorRepo := repository.NewVisitorRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metrics := service.NewMetricsService()
	currency := service.NewCurrencyService(rateRepo, service.NewHTTPRateProvider(cfg.Rates), cfg.Rates.BaseCurrency, logr)
	conversion := service.NewConversionService(currency)
	fraud := service.NewFraudService(cfg.Fraud, logr)
	submissions := service.NewSubmissionService(submissionRepo, schoolRepo, countryRepo, conversion, fraud, cacheRepo, logr)
	schools := service.NewSchoolService(schoolRepo, submissionRepo, cacheRepo, logr, service.SchoolServiceConfig{
		SearchLimit: cfg.Search.Limit,
		CacheTTL:    cfg.Search.CacheTTL,
	})
	stats := service.NewStatsService(countryRepo, schoolRepo, submissionRepo, cacheRepo, logr, cfg.Search.CacheTTL)
	auth := service.NewAuthService(service.AuthConfig{
		PasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:    cfg.Admin.JWTSecret,
		TokenExpiry:  cfg.Admin.TokenExpiry,
	}, logr)
	exports := service.NewExportService(submissionRepo, nil, nil, logr)
	visitors := service.NewVisitorService(visitorRepo, service.VisitorServiceConfig{
		Workers:    cfg.Visitors.Workers,
		BufferSize: cfg.Visitors.BufferSize,
	}, logr)
	if cfg.Visitors.Enabled {
		visitors.Start(ctx)
		defer visitors.Stop()
	}

	// Handlers.
	submissionHandler := handler.NewSubmissionHandler(submissions, metrics)
	schoolHandler := handler.NewSchoolHandler(schools)
	countryHandler := handler.NewCountryHandler(stats)
	currencyHandler := handler.NewCurrencyHandler(currency, metrics)
	authHandler := handler.NewAuthHandler(auth)
	adminHandler := handler.NewAdminHandler(submissions, fraud, visitors, exports, metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":       "ok",
			"rateProvider": cfg.Rates.APIKey != "",
			"fraudSignals": cfg.Fraud.ReputationAPIKey != "" || cfg.Fraud.BlocklistAPIKey != "",
		}
		code := http.StatusOK
		if err := db.PingContext(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.Visitors.Enabled {
		api.Use(middleware.VisitorTracking(visitors))
	}

	api.POST("/submissions", submissionHandler.Create)
	api.GET("/schools/search", schoolHandler.Search)
	api.GET("/schools/:id", schoolHandler.Get)
	api.GET("/schools/:id/submissions", schoolHandler.Submissions)
	api.GET("/countries", countryHandler.List)
	api.GET("/countries/with-data", countryHandler.ListWithData)
	api.GET("/countries/:id/schools", countryHandler.Schools)
	api.GET("/currency/rates", currencyHandler.Rates)

	admin := api.Group("/admin")
	admin.POST("/login", authHandler.Login)

	secured := admin.Group("")
	secured.Use(middleware.AdminAuth(auth))
	secured.GET("/submissions", adminHandler.ListSubmissions)
	secured.GET("/submissions/:id", adminHandler.GetSubmission)
	secured.POST("/submissions/:id/approve", adminHandler.Approve)
	secured.POST("/submissions/:id/deny", adminHandler.Deny)
	secured.POST("/submissions/:id/restore", adminHandler.Restore)
	secured.POST("/submissions/refile", adminHandler.BulkRefile)
	secured.POST("/submissions/:id/match", adminHandler.MatchSchool)
	secured.PATCH("/submissions/:id/school-name", adminHandler.EditSchoolName)
	secured.GET("/ip/:ip", adminHandler.LookupIP)
	secured.GET("/visitors", adminHandler.ListVisitors)
	secured.GET("/export", adminHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
