package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/clock"
	"classattend/internal/config"
	"classattend/internal/httpapi"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logging"
	"classattend/internal/store"
)

func main() {
	logger, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()
	checks := map[string]httpapi.HealthCheck{}

	var (
		st      attendance.Store
		refresh auth.RefreshStore
		rdb     *store.Redis
	)

	switch cfg.StoreBackend {
	case "memory":
		mem := attendance.NewMemory()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			err = mem.LoadSeed(f, cfg.Location)
			_ = f.Close()
			if err != nil {
				return fmt.Errorf("load seed file %s: %w", cfg.SeedFile, err)
			}
			logger.Info("seed data loaded", zap.String("file", cfg.SeedFile))
		}
		st = mem
		refresh = auth.NewMemoryRefreshStore()
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer func() { _ = db.Close() }()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		st = attendance.NewRepository(db.Client, cfg.Location)

		rdb = store.NewRedis(cfg.RedisAddr)
		refresh = auth.NewRedisRefreshStore(rdb.Client, "attendance:refresh:")
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	checks["db"] = st.Ping

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		if rdb == nil {
			rdb = store.NewRedis(cfg.RedisAddr)
		}
		limiter = httpmiddleware.NewRedisWindow(rdb.Client, cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks["redis"] = func(ctx context.Context) error {
			if !rdb.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}
	}

	if cfg.AuthDisabled {
		logger.Warn("authentication disabled, student routes are open")
	}

	svc := attendance.NewService(st, clock.NewReference(cfg.Location))
	api := httpapi.New(httpapi.Options{
		Service:      svc,
		Issuer:       auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Refresh:      refresh,
		Checks:       checks,
		Logger:       logger,
		AuthDisabled: cfg.AuthDisabled,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(logger, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RateLimit(limiter, logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("store", cfg.StoreBackend),
			zap.String("reference_tz", cfg.ReferenceTZ),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Cache-Control", "no-store")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
