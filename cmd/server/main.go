// Command server runs the chat admin HTTP API.
//
// @title                      Chat Admin Backend API
// @version                    1.0
// @description                Authentication, user administration, conversation logs, announcements and feedback.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chat-admin-backend/internal/config"
	httpapi "github.com/tbourn/chat-admin-backend/internal/http"
	"github.com/tbourn/chat-admin-backend/internal/notify"
	"github.com/tbourn/chat-admin-backend/internal/observability"
	"github.com/tbourn/chat-admin-backend/internal/repo"
	"github.com/tbourn/chat-admin-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.MustLoad()

	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	deps := httpapi.Deps{DB: db, Mailer: notify.NewMailer(cfg.SMTP)}
	rdb, err := sysutil.OpenRedis(ctx, cfg.Redis)
	switch {
	case err != nil:
		log.Fatal().Err(err).Msg("redis")
	case rdb != nil:
		deps.Redis = rdb
		defer rdb.Close()
	default:
		log.Warn().Msg("REDIS_ADDR not set; password reset by email is disabled")
	}
	if cfg.SMTP.Host == "" {
		log.Warn().Msg("SMTP_HOST not set; verification emails cannot be delivered")
	}
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn().Msg("JWT_SECRET not set; using the built-in development secret")
	}

	r := gin.New()
	users := httpapi.RegisterRoutes(r, deps, cfg)
	created, err := users.InitAdminUser(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap admin account")
	}
	if created {
		log.Warn().Msg("created the default admin account; change its password")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
