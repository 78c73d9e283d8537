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
	"go.uber.org/zap"

	_ "github.com/noah-isme/enrollment-finance-api/api/swagger"
	"github.com/noah-isme/enrollment-finance-api/internal/handler"
	"github.com/noah-isme/enrollment-finance-api/internal/repository"
	"github.com/noah-isme/enrollment-finance-api/internal/service"
	"github.com/noah-isme/enrollment-finance-api/pkg/cache"
	"github.com/noah-isme/enrollment-finance-api/pkg/config"
	"github.com/noah-isme/enrollment-finance-api/pkg/database"
	"github.com/noah-isme/enrollment-finance-api/pkg/logger"
	"github.com/noah-isme/enrollment-finance-api/pkg/migration"
	"github.com/noah-isme/enrollment-finance-api/pkg/storage"
)

// @title Enrollment Finance API
// @version 1.0.0
// @description Course enrollments, frozen pricing, payment vouchers and admission requisitos.
// @BasePath /api/v1
// @schemes http https
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrator, err := migration.New(db.DB, cfg.Database.MigrationsPath, logr)
		if err != nil {
			logr.Fatal("failed to prepare migrations", zap.Error(err))
		}
		if err := migrator.Up(); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	objects, err := newObjectStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to init document storage", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	discounts := repository.NewDiscountRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	payments := repository.NewPaymentRepository(db)
	settings := repository.NewSettingsRepository(db)
	store := repository.NewEnrollmentStore(db)

	var (
		cacheRepo  service.CacheRepository
		redisCache *repository.CacheRepository
	)
	if redisClient != nil {
		redisCache = repository.NewCacheRepository(redisClient, logr)
		cacheRepo = redisCache
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.RosterTTL, logr, redisClient != nil)

	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), cfg.Audit, metrics, logr)
	auditSvc.Start(ctx)

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	documents := service.NewDocumentService(
		storage.NewDocuments(objects, signer, cfg.Storage.PublicBaseURL),
		service.DocumentServiceConfig{MaxFileSize: cfg.Uploads.MaxFileSizeBytes, AllowedMIMEs: cfg.Uploads.AllowedMIMEs},
		logr,
	)

	resolver := service.NewDiscountResolver(discounts, cfg.Finance.StrictDiscounts, logr)
	authSvc := service.NewAuthService(users, students, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	enrollmentSvc := service.NewEnrollmentService(enrollments, store, payments, students, courses, resolver, validate, logr,
		service.WithEnrollmentMetrics(metrics),
		service.WithEnrollmentCache(cacheSvc),
		service.WithEnrollmentAudit(auditSvc),
	)
	paymentSvc := service.NewPaymentService(payments, enrollments, store, validate, logr,
		service.WithPaymentDocuments(documents),
		service.WithPaymentMetrics(metrics),
		service.WithPaymentCache(cacheSvc),
		service.WithPaymentAudit(auditSvc),
	)

	handlers := routeHandlers{
		auth:        handler.NewAuthHandler(authSvc),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		payments:    handler.NewPaymentHandler(paymentSvc),
		requisitos:  handler.NewRequisitoHandler(service.NewRequisitoService(enrollments, store, documents, logr)),
		courses:     handler.NewCourseHandler(service.NewCourseService(courses, discounts, cacheSvc, cfg.Cache.RosterTTL, validate, logr)),
		discounts:   handler.NewDiscountHandler(service.NewDiscountService(discounts, courses, students, validate, logr)),
		students:    handler.NewStudentHandler(service.NewStudentService(students, validate, logr)),
		settings:    handler.NewSettingsHandler(service.NewSettingsService(settings, auditSvc, validate, logr)),
		documents:   handler.NewDocumentHandler(documents),
		exports:     handler.NewExportHandler(service.NewExportService(enrollmentSvc, nil, nil, logr)),
		metrics:     handler.NewMetricsHandler(metrics, readinessProbes(db, redisCache)...),
	}

	router := newRouter(cfg, logr, authSvc, metrics, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if err := auditSvc.Stop(shutdownCtx); err != nil {
		logr.Warn("audit queue did not drain", zap.Error(err))
	}
}

func readinessProbes(db *sqlx.DB, redisCache *repository.CacheRepository) []handler.ReadinessProbe {
	probes := []handler.ReadinessProbe{{Name: "postgres", Check: db.PingContext}}
	if redisCache != nil {
		probes = append(probes, handler.ReadinessProbe{Name: "redis", Check: redisCache.Ping})
	}
	return probes
}

func newObjectStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (storage.ObjectStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		s3Store, err := storage.NewS3Storage(ctx, cfg.Storage.S3, logr)
		if err != nil {
			return nil, err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3Store, nil
	case config.StorageDriverLocal, "":
		return storage.NewLocalStorage(cfg.Storage.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
