// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic router setup; all dependencies injected through Deps
//   - Role checks read the current role from the store, not the token
package httpapi

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/docs"
	"github.com/tbourn/chat-admin-backend/internal/config"
	"github.com/tbourn/chat-admin-backend/internal/http/handlers"
	"github.com/tbourn/chat-admin-backend/internal/http/middleware"
	"github.com/tbourn/chat-admin-backend/internal/notify"
	"github.com/tbourn/chat-admin-backend/internal/repo"
	"github.com/tbourn/chat-admin-backend/internal/services"
)

// Deps are the external resources the API is built on. Redis may be nil,
// which disables the forgot-password flow (503); Mailer may be nil, which
// selects the disabled mailer.
type Deps struct {
	DB     *gorm.DB
	Redis  redis.Cmdable
	Mailer notify.Mailer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the user service so the caller can bootstrap the admin
// account.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//  8. Authenticate: resolve the bearer token (never aborts)
//  9. Idempotency validator (before rate limiter to allow bypass on replay
//     of POST /conversation/log only)
//  10. Rate limiter (per user/IP, bypass on replay)
//  11. gzip
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) *services.UserService {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// Services ← repo/db/redis/mailer
	users := services.NewUserService(db, repo.UserRepo{}, cfg.Auth.AdminDefaultPassword)
	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, cfg.Auth.JWTIssuer)
	mailer := deps.Mailer
	if mailer == nil {
		mailer = notify.NewMailer(config.SMTPConfig{})
	}
	verify := services.NewVerificationService(deps.Redis, users, mailer,
		cfg.Verify.CodeTTL, cfg.Verify.ResendAfter, cfg.Verify.MaxAttempts)
	h := handlers.New(handlers.Services{
		Users:         users,
		Tokens:        tokens,
		Verification:  verify,
		Conversations: services.NewConversationService(db, repo.ConversationRepo{}, cfg.IdempotencyTTL),
		Announcements: services.NewAnnouncementService(db, repo.AnnouncementRepo{}),
		Feedback:      services.NewFeedbackService(db, repo.FeedbackRepo{}),
		Stats:         services.NewStatsService(db),
	})

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// 8) Caller identity
	r.Use(middleware.Authenticate(tokens))

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			Scope:  services.IdempotencyScopeConversationLog,
			MaxLen: 200,
			Routes: []string{http.MethodPost + " " + path.Join("/", cfg.APIBasePath, "conversation/log")},
		},
		func(ctx context.Context, userID uint, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 11) Compression; Prometheus negotiates its own encoding
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireAuth := middleware.RequireAuth()
	requireAdmin := middleware.RequireAdmin(users.RoleOf)

	api := groupWithPrefix(r, cfg.APIBasePath)

	auth := api.Group("/auth", middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))
	{
		auth.POST("/login", h.Login)
		auth.POST("/register", h.Register)
		auth.GET("/verify-token", h.VerifyToken)
		auth.POST("/verify-token", h.VerifyToken)
		auth.POST("/send-verification-code", h.SendVerificationCode)
		auth.POST("/reset-password", h.ResetPassword)
	}

	userGroup := api.Group("/users", requireAuth)
	{
		userGroup.PUT("/:id/change-password", h.ChangePassword)

		admin := userGroup.Group("", requireAdmin)
		admin.GET("", h.ListUsers)
		admin.GET("/:id", h.GetUser)
		admin.DELETE("/:id", h.DeleteUser)
		admin.PUT("/:id/promote", h.PromoteUser)
		admin.PUT("/:id/demote", h.DemoteUser)
		admin.PUT("/:id/reset-password", h.ResetUserPassword)
		admin.POST("/create-admin", h.CreateAdmin)
	}

	conv := api.Group("/conversation", requireAuth)
	{
		conv.POST("/log", h.LogConversation)
		conv.GET("/user/:userId", h.UserConversations)
		conv.GET("/logs", requireAdmin, h.ListConversations)
		conv.DELETE("/:id", requireAdmin, h.DeleteConversation)
		conv.GET("/stats", requireAdmin, h.ConversationStatsHandler)
	}
	convs := api.Group("/conversations", requireAuth)
	{
		convs.GET("/user/:userId", h.UserConversations)
		convs.GET("", requireAdmin, h.ListConversations)
		convs.DELETE("/:id", requireAdmin, h.DeleteConversation)
		convs.GET("/count", requireAdmin, h.CountConversations)
	}

	ann := api.Group("/announcements", requireAuth)
	{
		ann.GET("/active", h.ActiveAnnouncements)
		ann.GET("/unread/:userId", h.UnreadAnnouncements)
		ann.POST("/:id/read", h.MarkAnnouncementRead)
		ann.POST("/read-batch", h.MarkAnnouncementsRead)
		ann.POST("/create", requireAdmin, h.CreateAnnouncement)
		ann.PUT("/:id", requireAdmin, h.UpdateAnnouncement)
		ann.DELETE("/:id", requireAdmin, h.DeleteAnnouncement)
	}

	fb := api.Group("/feedbacks", requireAuth)
	{
		fb.GET("/user/:userId", h.UserFeedback)
		fb.POST("/create", h.CreateFeedback)
		fb.GET("/all", requireAdmin, h.ListFeedback)
		fb.DELETE("/delete/:id", requireAdmin, h.DeleteFeedback)
	}

	adm := api.Group("/admin")
	{
		adm.GET("/status", h.AdminStatus)
		adm.GET("/test", h.AdminTest)

		view := adm.Group("/view", requireAuth, requireAdmin)
		view.GET("/users", h.ViewUsers)
		view.GET("/conversations", h.ViewConversations)
		view.GET("/stats", h.ViewStats)
	}

	return users
}

// corsMiddleware returns the CORS chain. With no allowlist every origin is
// accepted without credentials; otherwise only listed origins are echoed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "ETag", "Content-Length", "Retry-After"}
	methods := []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    exposeHeaders,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body size for all endpoints to maxBytes using
// http.MaxBytesReader. Requests exceeding the cap fail when the body is read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
