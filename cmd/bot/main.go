package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lecturegate/internal/access"
	"lecturegate/internal/approval"
	"lecturegate/internal/catalog"
	"lecturegate/internal/handler"
	"lecturegate/internal/middleware"
	"lecturegate/internal/notification"
	"lecturegate/internal/registry"
	"lecturegate/internal/repository"
	"lecturegate/internal/repository/postgres"
	"lecturegate/pkg/cache"
	"lecturegate/pkg/config"
	"lecturegate/pkg/logger"
	"lecturegate/pkg/validator"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("lecturegate-bot")

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required", nil)
	}
	if len(cfg.Admin.AllowedIDs) == 0 {
		log.Warn("No admin ids configured, approvals are impossible", nil)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisCache.Close()

	studentRepo := postgres.NewStudentRepository(db)
	contentRepo := postgres.NewContentRepository(db)
	auditRepo := postgres.NewAuditRepository(db, log)
	cachedStudents := repository.NewCachedStudentStore(studentRepo, redisCache, cfg.Admin.CacheTTL, log)

	notifier := notification.NewService(cfg.Telegram, log)

	// The registry resolves slot races against the store directly; every
	// other reader goes through the cache.
	registrySvc := registry.NewService(studentRepo, auditRepo, log)
	approvalSvc := approval.NewService(cachedStudents, notifier, auditRepo, cfg.Admin.AllowedIDs, log)
	catalogSvc := catalog.NewService(contentRepo, redisCache, log)
	gateSvc := access.NewService(cachedStudents, registrySvc, catalogSvc, auditRepo, log)

	val := validator.New()
	webhookHandler := handler.NewWebhookHandler(cachedStudents, registrySvc, approvalSvc, gateSvc, notifier, log)
	adminHandler := handler.NewAdminHandler(approvalSvc, cachedStudents, cfg.Admin, cfg.JWT, val, log)
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	router := handler.NewRouter(webhookHandler, adminHandler, authMiddleware, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Bot server started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Stopped gracefully", nil)
}
