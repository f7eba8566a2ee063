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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authHandler "talkbridge-backend/internal/handler/http/auth"
	userHandler "talkbridge-backend/internal/handler/http/user"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/internal/repository/cockroach"
	"talkbridge-backend/internal/repository/redis"
	authService "talkbridge-backend/internal/service/auth"
	"talkbridge-backend/internal/service/storage"
	userService "talkbridge-backend/internal/service/user"
	"talkbridge-backend/pkg/audit"
	"talkbridge-backend/pkg/config"
	"talkbridge-backend/pkg/constants"
	"talkbridge-backend/pkg/database"
	"talkbridge-backend/pkg/jwt"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
)

const serviceName = "auth-service"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.InitDefault(serviceName)
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		ServiceName: cfg.Server.ServiceName,
	}); err != nil {
		logger.InitDefault(serviceName)
		logger.Warn("Falling back to default logger", zap.Error(err))
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Setup JWT Manager
	jwtManager := jwt.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// 2. Connect to CockroachDB
	cockroachDB, err := database.ConnectWithRetry(ctx, &database.CockroachConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}, 5)
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}
	defer cockroachDB.Close()

	if err := cockroach.EnsureSchema(ctx, cockroachDB.Pool); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Connected to CockroachDB")

	// 3. Connect to Redis
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	logger.Info("Connected to Redis")

	// 4. Connect to MinIO
	minioClient, err := storage.NewMinioClient(cfg.MinIO)
	if err != nil {
		logger.Fatal("Failed to create MinIO client", zap.Error(err))
	}
	if err := minioClient.EnsureBucket(ctx, cfg.MinIO.Bucket); err != nil {
		logger.Fatal("Failed to ensure profile bucket", zap.Error(err), zap.String("bucket", cfg.MinIO.Bucket))
	}

	// 5. Google ID token verifier
	verifier, err := authService.NewGoogleVerifier(ctx, cfg.Google.ClientID)
	if err != nil {
		logger.Fatal("Failed to create Google verifier", zap.Error(err))
	}

	// 6. Initialize Repositories
	userRepo := cockroach.NewUserRepository(cockroachDB.Pool)
	refreshRepo := cockroach.NewRefreshTokenRepository(cockroachDB.Pool)
	blacklistRepo := redis.NewTokenBlacklistRepository(redisDB.Client)
	presenceRepo := redis.NewPresenceRepository(redisDB.Client, constants.PresenceTTL)

	// 7. Initialize Services
	storageSvc := storage.NewService(minioClient, cfg.MinIO.Bucket, cfg.MinIO.PublicURL)
	authSvc := authService.NewService(verifier, userRepo, refreshRepo, blacklistRepo, jwtManager)
	userSvc := userService.NewService(userRepo, presenceRepo, storageSvc)

	// 8. Initialize Handlers
	authHdlr := authHandler.NewHandler(authSvc, audit.NewLogger(redisDB.Client), cfg.IsProduction())
	userHdlr := userHandler.NewHandler(userSvc)

	// 9. Setup Gin Router
	m := metrics.NewMetrics(cfg.Server.ServiceName)
	router := gin.New()
	router.Use(middleware.HealthCheck(cfg.Server.ServiceName))
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORSMiddleware(middleware.NewOriginAllowList(cfg.CORS.AllowedOrigins)))
	router.Use(middleware.NewPrometheusMiddleware(m).Handler())

	router.GET(middleware.MetricsPath, middleware.MetricsHandler(m))

	requireAuth := middleware.AuthMiddleware(jwtManager, blacklistRepo)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/google", authHdlr.GoogleLogin)
			auth.POST("/refresh", authHdlr.Refresh)
			auth.POST("/logout", requireAuth, authHdlr.Logout)
		}

		users := v1.Group("/users")
		users.Use(requireAuth)
		{
			users.GET("/me", userHdlr.GetMe)
			users.POST("/me/complete", userHdlr.CompleteAccount)
			users.GET("/search", userHdlr.Search)
			users.GET("/suggested", userHdlr.Suggested)
			users.GET("/random", userHdlr.Random)
			users.GET("/by-email", userHdlr.GetByEmail)
			users.GET("/:id", userHdlr.GetByID)
		}
	}

	// 10. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Auth service starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down auth service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Auth service stopped")
}
