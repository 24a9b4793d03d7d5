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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/studygroup-api/api/swagger"
	"github.com/noah-isme/studygroup-api/internal/handler"
	internalmiddleware "github.com/noah-isme/studygroup-api/internal/middleware"
	"github.com/noah-isme/studygroup-api/internal/repository"
	"github.com/noah-isme/studygroup-api/internal/service"
	"github.com/noah-isme/studygroup-api/pkg/cache"
	"github.com/noah-isme/studygroup-api/pkg/config"
	"github.com/noah-isme/studygroup-api/pkg/database"
	"github.com/noah-isme/studygroup-api/pkg/export"
	"github.com/noah-isme/studygroup-api/pkg/invite"
	"github.com/noah-isme/studygroup-api/pkg/jobs"
	"github.com/noah-isme/studygroup-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studygroup-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studygroup-api/pkg/middleware/requestid"
	"github.com/noah-isme/studygroup-api/pkg/otp"
	"github.com/noah-isme/studygroup-api/pkg/ratelimit"
	"github.com/noah-isme/studygroup-api/pkg/sms"
	"github.com/noah-isme/studygroup-api/pkg/storage"
)

// @title Study Group API
// @version 1.0.0
// @description Phone login, student groups, two-week class schedules and lecture notes
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logger.Named(logr, "migrate")); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	scheduler := jobs.NewScheduler(logger.Named(logr, "scheduler"))

	// Verification codes live in Redis when available so that every replica sees them.
	codeOptions := otp.Options{
		TTL:         cfg.Verification.CodeTTL,
		CodeLength:  cfg.Verification.CodeLength,
		MaxAttempts: cfg.Verification.MaxAttempts,
	}
	var codes otp.Store
	if redisClient != nil {
		codes, err = otp.NewRedisStore(redisClient, "studygroup:otp", codeOptions)
		if err != nil {
			logr.Fatal("failed to init code store", zap.Error(err))
		}
	} else {
		memoryCodes := otp.NewMemoryStore(codeOptions)
		codes = memoryCodes
		if cfg.Verification.SweepSchedule != "" {
			if err := scheduler.Every(cfg.Verification.SweepSchedule, "otp-sweep", func(context.Context) error {
				if removed := memoryCodes.Sweep(); removed > 0 {
					logr.Debug("expired verification codes removed", zap.Int("count", removed))
				}
				return nil
			}); err != nil {
				logr.Fatal("invalid verification sweep schedule", zap.Error(err))
			}
		}
	}

	smsQueue := jobs.NewQueue("sms", jobs.QueueConfig{Workers: 2, Logger: logger.Named(logr, "jobs")})
	sender := sms.NewQueuedSender(smsQueue, sms.NewLogSender(logger.Named(logr, "sms")), logger.Named(logr, "sms"))
	smsQueue.Start(ctx)
	defer smsQueue.Stop()

	media, mediaDir, err := buildMediaStore(cfg.Media)
	if err != nil {
		logr.Fatal("failed to init media storage", zap.Error(err))
	}

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Schedule.CacheTTL, logger.Named(logr, "cache"), redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	noteRepo := repository.NewLectureNoteRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	authSvc := service.NewAuthService(userRepo, codes, sender, validate, logger.Named(logr, "auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	groupSvc := service.NewGroupService(groupRepo, invite.NewSigner(cfg.Groups.InviteSecret, cfg.Groups.InviteBaseURL), cacheSvc, metrics, validate, logger.Named(logr, "groups"), service.GroupConfig{
		MaxMembers: cfg.Groups.MaxMembers,
	})
	scheduleSvc := service.NewScheduleService(scheduleRepo, cacheSvc, []service.TabularExporter{export.NewCSVExporter(), export.NewXLSXExporter()}, metrics, validate, logger.Named(logr, "schedule"), service.ScheduleConfig{
		MaxPerDay:  cfg.Schedule.MaxPerDay,
		MaxPerWeek: cfg.Schedule.MaxPerWeek,
		CacheTTL:   cfg.Schedule.CacheTTL,
	})
	noteSvc := service.NewLectureNoteService(noteRepo, scheduleRepo, media, export.NewPDFExporter(cfg.Export.PDFFontPath), metrics, validate, logger.Named(logr, "notes"), service.LectureNoteConfig{
		MaxPerEvent:  cfg.Notes.MaxPerEvent,
		MaxMediaSize: cfg.Media.MaxFileSize,
	})
	adminSvc := service.NewAdminService(adminRepo, redisClient, metrics, logger.Named(logr, "admin"))

	routes := handler.Routes{
		Auth:         handler.NewAuthHandler(authSvc),
		Groups:       handler.NewGroupHandler(groupSvc),
		Schedule:     handler.NewScheduleHandler(scheduleSvc),
		Notes:        handler.NewNoteHandler(noteSvc),
		Admin:        handler.NewAdminHandler(adminSvc),
		Authenticate: internalmiddleware.JWT(authSvc),
		LoadSession:  internalmiddleware.Session(authSvc),
		SystemAdmin:  internalmiddleware.RequireSystemAdmin(cfg.Admin.Phones),
	}
	if redisClient != nil && cfg.RateLimit.Limit > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiter(redisClient, "studygroup:ratelimit", cfg.RateLimit.Limit, cfg.RateLimit.Window)
		if err != nil {
			logr.Fatal("failed to init rate limiter", zap.Error(err))
		}
		routes.CodeLimiter = internalmiddleware.RateLimit(limiter, "auth-code")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, adminSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if mediaDir != "" {
		r.Static("/media", mediaDir)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.Register(r.Group(cfg.APIPrefix))

	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildMediaStore returns the configured object store and, for local storage,
// the directory to serve under /media.
func buildMediaStore(cfg config.MediaConfig) (storage.ObjectStore, string, error) {
	switch cfg.Backend {
	case config.MediaBackendMinio:
		store, err := storage.NewMinioStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL, cfg.URLExpiry)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case "", config.MediaBackendLocal:
		store, err := storage.NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}
