package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ciata/ciata-cms/handlers"
	"github.com/ciata/ciata-cms/internal/config"
	"github.com/ciata/ciata-cms/internal/sessions"
	"github.com/ciata/ciata-cms/internal/store/bootstrap"
	"github.com/ciata/ciata-cms/internal/uploads"
	"github.com/ciata/ciata-cms/internal/users"
	"github.com/ciata/ciata-cms/pkg/logger"
	"github.com/ciata/ciata-cms/pkg/metrics"
	"github.com/ciata/ciata-cms/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first (LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple; production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early so logout revocation and the rate limiter can
	// use it when configured. Redis is optional; failures only disable
	// those features.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password})
		if err := redisClient.Ping(context.Background()).Err(); err == nil {
			sessions.SetBlacklistClient(redisClient)
			logger.Infof("connected to Redis at %s:%s (logout revocation enabled)", cfg.Redis.Host, cfg.Redis.Port)
		} else {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		}
	}

	// Storage backend: chosen once here, fatal if unready.
	ctx := context.Background()
	st, backend, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("storage bootstrap failed: %v", err)
	}
	defer st.Close()
	if err := bootstrap.Seed(ctx, st, cfg.Admin); err != nil {
		logger.Fatalf("seed admin failed: %v", err)
	}
	logger.Infof("using %s storage backend", backend)

	// Image storage: MinIO when configured, local disk otherwise.
	var imageStorage uploads.Storage
	if cfg.Uploads.MinIOEndpoint != "" {
		ms, err := uploads.NewMinIOStorage(cfg.Uploads)
		if err != nil {
			logger.Fatalf("minio storage init failed: %v", err)
		}
		imageStorage = ms
		logger.Infof("uploads stored in MinIO bucket %q", cfg.Uploads.MinIOBucket)
	} else {
		ls, err := uploads.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
		if err != nil {
			logger.Fatalf("upload dir init failed: %v", err)
		}
		imageStorage = ls
		// serve the public upload dir so returned URLs resolve
		r.Static(cfg.Uploads.BaseURL, cfg.Uploads.Dir)
	}

	userSvc := users.NewService(st)
	authn := middleware.AuthMiddleware([]byte(cfg.JWT.Secret))
	admin := middleware.RequireAdmin(userSvc)

	// login rate limiter: Redis-backed when configured, else in-memory
	var loginLimiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			loginLimiter = middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			loginLimiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	// Basic health endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": backend, "uptime": time.Since(startTime).String()})
	})

	handlers.NewAuthHandler(cfg, userSvc).Register(r.Group("/"), authn, loginLimiter)

	api := r.Group("/api", authn)
	handlers.NewStoreHandler(st).Register(api, admin)
	handlers.NewUsersHandler(userSvc).Register(api, admin)
	handlers.NewUploadHandler(st, imageStorage).Register(api)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting ciata-cms on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
