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

	"talkbridge-backend/internal/broadcast"
	callHandler "talkbridge-backend/internal/handler/http/call"
	meetingHandler "talkbridge-backend/internal/handler/http/meeting"
	messageHandler "talkbridge-backend/internal/handler/http/message"
	signalHandler "talkbridge-backend/internal/handler/http/signal"
	"talkbridge-backend/internal/handler/ws"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/internal/repository/cockroach"
	"talkbridge-backend/internal/repository/redis"
	callService "talkbridge-backend/internal/service/call"
	meetingService "talkbridge-backend/internal/service/meeting"
	messageService "talkbridge-backend/internal/service/message"
	signalService "talkbridge-backend/internal/service/signal"
	"talkbridge-backend/pkg/config"
	"talkbridge-backend/pkg/constants"
	"talkbridge-backend/pkg/database"
	"talkbridge-backend/pkg/jwt"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
)

const serviceName = "signaling-service"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// 3. Connect to Redis (bus, presence, blacklist)
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

	// 4. Initialize Repositories
	userRepo := cockroach.NewUserRepository(cockroachDB.Pool)
	callRepo := cockroach.NewCallRepository(cockroachDB.Pool)
	meetingRepo := cockroach.NewMeetingRepository(cockroachDB.Pool)
	messageRepo := cockroach.NewMessageRepository(cockroachDB.Pool)
	blacklistRepo := redis.NewTokenBlacklistRepository(redisDB.Client)
	presenceRepo := redis.NewPresenceRepository(redisDB.Client, constants.PresenceTTL)

	// 5. Initialize Services
	publisher := broadcast.NewRedisPublisher(redisDB.Client)
	callSvc := callService.NewService(callRepo, userRepo, publisher)
	meetingSvc := meetingService.NewService(meetingRepo, userRepo, publisher)
	messageSvc := messageService.NewService(messageRepo, callRepo, publisher)
	signalSvc := signalService.NewService(publisher)

	// 6. Initialize Handlers
	callHdlr := callHandler.NewHandler(callSvc)
	meetingHdlr := meetingHandler.NewHandler(meetingSvc)
	messageHdlr := messageHandler.NewHandler(messageSvc)
	signalHdlr := signalHandler.NewHandler(signalSvc)

	origins := middleware.NewOriginAllowList(cfg.CORS.AllowedOrigins)
	hub := ws.NewHub(signalSvc, presenceRepo, origins, ws.HubConfig{
		MaxConnections:  cfg.RateLimit.MaxWebSocketConn,
		FramesPerSecond: cfg.RateLimit.SignalPerSecond,
		FrameBurst:      cfg.RateLimit.SignalBurst,
	})

	// 7. Subscribe the gateway to the broadcast bus
	go func() {
		if err := broadcast.NewSubscriber(redisDB.Client).Run(ctx, hub.Dispatch); err != nil {
			logger.Fatal("Broadcast subscription failed", zap.Error(err))
		}
	}()

	// 8. Setup Gin Router
	m := metrics.NewMetrics(cfg.Server.ServiceName)
	router := gin.New()
	router.Use(middleware.HealthCheck(cfg.Server.ServiceName))
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORSMiddleware(origins))
	router.Use(middleware.NewPrometheusMiddleware(m).Handler())

	router.GET(middleware.MetricsPath, middleware.MetricsHandler(m))

	requireAuth := middleware.AuthMiddleware(jwtManager, blacklistRepo)

	v1 := router.Group("/v1")
	{
		// Browsers cannot set headers on upgrade requests, so the token may ride in the query
		v1.GET("/ws", middleware.WebSocketAuthMiddleware(jwtManager, blacklistRepo), hub.ServeWS)

		calls := v1.Group("/calls")
		calls.Use(requireAuth)
		{
			calls.POST("", callHdlr.InitiateCall)
			calls.GET("/history", callHdlr.History)
			calls.GET("/:id", callHdlr.GetCall)
			calls.POST("/:id/ringing", callHdlr.Ringing)
			calls.POST("/:id/accept", callHdlr.Accept)
			calls.POST("/:id/reject", callHdlr.Reject)
			calls.POST("/:id/end", callHdlr.End)
			calls.POST("/:id/finish", callHdlr.Finish)
			calls.POST("/:id/ready", callHdlr.Ready)
			calls.POST("/:id/media", callHdlr.ToggleMedia)
			calls.POST("/:id/reactions", callHdlr.SendReaction)
			calls.POST("/:id/hand", callHdlr.HandAction)
			calls.POST("/:id/messages", messageHdlr.SendMessage)
			calls.GET("/:id/messages", messageHdlr.GetMessages)
		}

		meetings := v1.Group("/meetings")
		{
			meetings.GET("/:code/exists", meetingHdlr.Exists)

			admitted := meetings.Group("")
			admitted.Use(requireAuth)
			{
				admitted.POST("", meetingHdlr.CreateMeeting)
				admitted.GET("/:code/admin", meetingHdlr.IsAdmin)
				admitted.GET("/:code/permission", meetingHdlr.HasPermission)
				admitted.POST("/:code/permissions", meetingHdlr.GrantPermission)
				admitted.POST("/:code/waiting", meetingHdlr.RequestAdmission)
				admitted.GET("/:code/waiting", meetingHdlr.GetWaitingUsers)
				admitted.POST("/:code/participants", meetingHdlr.Join)
				admitted.DELETE("/:code/participants/me", meetingHdlr.Leave)
				admitted.GET("/:code/participants", meetingHdlr.GetParticipants)
				admitted.GET("/:code/participants/all", meetingHdlr.GetAllParticipants)
			}
		}

		v1.POST("/signals", requireAuth, signalHdlr.Relay)
	}

	// 9. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Signaling service starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 10. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down signaling service")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Signaling service stopped")
}
