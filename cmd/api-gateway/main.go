package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/pkg/config"
	"talkbridge-backend/pkg/constants"
	"talkbridge-backend/pkg/database"
	"talkbridge-backend/pkg/jwt"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
	"talkbridge-backend/pkg/response"
)

const serviceName = "api-gateway"

func main() {
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

	// 1. Connect to Redis (for rate limiting)
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
	logger.Info("API Gateway connected to Redis")

	// 2. Setup JWT Manager (identifies callers for rate limiting only; services authenticate)
	jwtManager := jwt.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// 3. Upstream proxies
	authProxy, err := newServiceProxy("auth-service", cfg.Gateway.AuthServiceURL)
	if err != nil {
		logger.Fatal("Invalid auth service URL", zap.Error(err))
	}
	signalingProxy, err := newServiceProxy("signaling-service", cfg.Gateway.SignalingServiceURL)
	if err != nil {
		logger.Fatal("Invalid signaling service URL", zap.Error(err))
	}

	// 4. Setup Gin router
	m := metrics.NewMetrics(cfg.Server.ServiceName)
	rateLimiter := middleware.NewRateLimiter(redisDB.Client, cfg.RateLimit.Requests, cfg.RateLimit.Window, m)

	router := gin.New()
	router.Use(middleware.HealthCheck(cfg.Server.ServiceName))
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware(middleware.NewOriginAllowList(cfg.CORS.AllowedOrigins)))
	router.Use(middleware.NewPrometheusMiddleware(m).Handler())

	router.GET(middleware.MetricsPath, middleware.MetricsHandler(m))

	// 5. API version 1 routes
	v1 := router.Group("/v1")
	v1.Use(rateLimiter.Middleware(middleware.TokenSubject(jwtManager)))
	{
		v1.Any("/auth/*path", authProxy)
		v1.Any("/users/*path", authProxy)

		v1.Any("/calls", signalingProxy)
		v1.Any("/calls/*path", signalingProxy)
		v1.Any("/meetings", signalingProxy)
		v1.Any("/meetings/*path", signalingProxy)
		v1.Any("/signals", signalingProxy)
		v1.GET("/ws", signalingProxy)
	}

	// 6. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API Gateway starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("auth_service", cfg.Gateway.AuthServiceURL),
			zap.String("signaling_service", cfg.Gateway.SignalingServiceURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start API Gateway", zap.Error(err))
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API Gateway")
	ctx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("API Gateway stopped")
}

// newServiceProxy builds one reverse proxy per upstream. Upgrade requests
// (the WebSocket gateway) are tunnelled by httputil as-is.
func newServiceProxy(name, rawURL string) (gin.HandlerFunc, error) {
	remote, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s url: %w", name, err)
	}
	if remote.Scheme == "" || remote.Host == "" {
		return nil, fmt.Errorf("%s url must be absolute: %q", name, rawURL)
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = remote.Host
	}
	// The gateway owns these headers; upstream copies would be duplicated
	proxy.ModifyResponse = func(resp *http.Response) error {
		for _, h := range gatewayHeaders {
			resp.Header.Del(h)
		}
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.FromContext(r.Context()).Error("Proxy error",
			zap.String("service", name),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if c, ok := r.Context().Value(ginContextKey{}).(*gin.Context); ok {
			response.Error(c, http.StatusBadGateway, "BAD_GATEWAY", "Service unavailable")
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}

	return func(c *gin.Context) {
		req := c.Request.WithContext(context.WithValue(c.Request.Context(), ginContextKey{}, c))
		proxy.ServeHTTP(c.Writer, req)
	}, nil
}

type ginContextKey struct{}

var gatewayHeaders = []string{
	middleware.RequestIDHeader,
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Credentials",
	"Access-Control-Allow-Headers",
	"Access-Control-Allow-Methods",
	"Access-Control-Expose-Headers",
	"Access-Control-Max-Age",
}
