package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"meal_planner/internal/config"
	"meal_planner/internal/handler"
	"meal_planner/internal/hub"
	"meal_planner/internal/middleware"
	"meal_planner/internal/notifier"
	"meal_planner/internal/repository"
	"meal_planner/internal/service"
	"meal_planner/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	if cfg.Database.StoreDriver == "memory" {
		// Dev mode: messages live in process memory and vanish on restart.
		repos.Message = repository.NewMemoryMessageRepository()
		appLogger.Warn("Using in-memory message store; messages are not durable")
	}

	chatHub := hub.New(appLogger)

	var changeNotifier *notifier.RedisNotifier
	var pub notifier.Publisher
	if cfg.Notifier.Enabled {
		changeNotifier = notifier.NewRedisNotifier(rdb, cfg.Notifier.Channel, appLogger)
		pub = changeNotifier
		appLogger.Info("Change notifier enabled", "channel", cfg.Notifier.Channel)
	}

	services := service.NewServices(repos, chatHub, pub, cfg, appLogger)

	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	if changeNotifier != nil {
		go changeNotifier.Run(notifierCtx, services.Chat.HandleNotification)
	}

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, chatHub, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stopNotifier()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", rateLimitMiddleware.Limit(), handlers.Auth.Register)
			auth.POST("/login", rateLimitMiddleware.Limit(), handlers.Auth.Login)
			auth.POST("/refresh", handlers.Auth.RefreshToken)
			auth.POST("/logout", handlers.Auth.Logout)
		}

		// Token rides the query string here: browsers cannot set headers
		// on websocket handshakes.
		v1.GET("/chat/:id/ws", handlers.WebSocket.HandleChat)

		chat := v1.Group("/chat", authMiddleware.RequireAuth())
		{
			chat.POST("/new", handlers.Room.CreateChat)
			chat.GET("/chats", handlers.Room.ListChats)
			chat.PUT("/:id/metadata", handlers.Room.UpdateMetadata)
			chat.DELETE("/:id", handlers.Room.DeleteChat)

			chat.GET("/:id/messages", handlers.Chat.GetMessages)
			chat.GET("/:id/sync-messages", handlers.Chat.SyncMessages)
			chat.GET("/:id/messages/search", handlers.Chat.SearchMessages)
			chat.GET("/:id/messages/page", handlers.Chat.GetMessagePage)
		}
	}

	return router
}
