package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sonicattend/internal/auth"
	"sonicattend/internal/config"
	"sonicattend/internal/httpmiddleware"
	"sonicattend/internal/queue"
	"sonicattend/internal/session"
	"sonicattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	if env == "production" || env == "prod" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	var (
		sessions   session.SessionStore
		attendance session.AttendanceStore
		db         *store.DB
	)
	ctx := context.Background()

	if cfg.StoreBackend == "postgres" {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(ctx, db.Client); err != nil {
			return err
		}
		pg := session.NewPGStore(db.Client)
		sessions, attendance = pg, pg
		logger.Info("using postgres store")
	} else {
		mem := session.NewMemStore()
		sessions, attendance = mem, mem
		logger.Warn("using in-memory store; sessions will not survive a restart")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var events queue.Queue
	if cfg.QueueBackend == "redis" {
		events = queue.NewRedisQueue(redisClient.Client, "sonic:events")
	} else {
		events = queue.NewInMemory(256)
	}

	svc := session.NewService(sessions, attendance, cfg.HeartbeatFreshness, logger)

	var verifier auth.Verifier
	switch {
	case cfg.IdentitySkip:
		verifier = auth.NewRemoteVerifier(cfg.IdentityServiceURL, true)
		logger.Warn("identity verification in mock mode")
	case cfg.IdentityServiceURL != "":
		remote := auth.NewRemoteVerifier(cfg.IdentityServiceURL, false)
		if err := remote.Health(ctx); err != nil {
			logger.Warn("identity service not reachable", zap.Error(err))
		}
		verifier = remote
	default:
		verifier = auth.LocalVerifier{SigningKey: cfg.JWTSigningKey, Issuer: cfg.JWTIssuer}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger, "/healthz", "/metrics"))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := true
		if db != nil {
			dbHealthy = db.Client.PingContext(c.Request.Context()) == nil
		}
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	// Dev token issue endpoint; with an external identity service
	// configured, callers get their bearer tokens there instead.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			SubjectID string `json:"subject_id" binding:"required"`
			Role      string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role == "" {
			req.Role = "student"
		}
		token, exp, err := auth.Issue(req.SubjectID, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
	})

	handler := session.NewHandler(svc, events, logger)
	handler.Register(r.Group("/v1/attendance", auth.Bearer(verifier)))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
