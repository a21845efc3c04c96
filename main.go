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
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"club-chat-service/internal/auth"
	"club-chat-service/internal/chat"
	"club-chat-service/internal/config"
	"club-chat-service/internal/db"
	"club-chat-service/internal/handlers"
	"club-chat-service/internal/logging"
	"club-chat-service/internal/middleware"
	"club-chat-service/internal/observability"
	"club-chat-service/internal/rabbitmq"
	"club-chat-service/internal/repositories"
	"club-chat-service/internal/storage"
	"club-chat-service/internal/telemetry"
	"club-chat-service/internal/ws"
)

const serviceName = "club-chat-service"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logging.L().Fatal().Err(err).Msg("failed to load config")
	}

	logging.Init(logging.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: serviceName,
	})
	log := logging.L()

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(ctx, serviceName, cfg.Tracing.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("tracer shutdown failed")
			}
		}()
	}

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Server.Environment)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub(log.With().Str("component", "hub").Logger())
	defer hub.Shutdown()

	service := chat.NewService(roomRepo, messageRepo, userRepo, hub,
		log.With().Str("component", "chat").Logger())

	verifier := auth.NewManager(cfg.Auth.JWTSecret, 24*time.Hour, serviceName)
	imageStore := storage.NewDiskImageStore(cfg.Uploads.Dir, cfg.Uploads.MaxSizeBytes)

	chatHandler := handlers.NewChatHandler(service, audit, cfg.Chat.DefaultPageSize, cfg.Chat.MaxPageSize)
	uploadHandler := handlers.NewUploadHandler(imageStore, cfg.Uploads.MaxSizeBytes)
	wsHandler := ws.NewHandler(hub, verifier, cfg.WS, audit,
		log.With().Str("component", "ws").Logger())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(serviceName))

	authMiddleware := middleware.AuthMiddleware(verifier)

	api := router.Group("/api/chats", authMiddleware)
	{
		api.POST("/rooms", chatHandler.CreateRoom)
		api.GET("/rooms", chatHandler.ListRooms)
		api.GET("/rooms/:room_id", chatHandler.GetRoom)
		api.GET("/rooms/:room_id/messages", chatHandler.GetMessages)
		api.POST("/messages", chatHandler.PostMessage)
		api.POST("/rooms/:room_id/read", chatHandler.MarkRead)
		api.DELETE("/messages/:message_id", chatHandler.DeleteMessage)
		api.POST("/rooms/:room_id/leave", chatHandler.LeaveRoom)
		api.POST("/upload/image", uploadHandler.UploadImage)
		api.POST("/upload/image-base64", uploadHandler.UploadImageBase64)
	}

	router.GET("/ws/chat", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/uploads", cfg.Uploads.Dir)
	handlers.RegisterDebugRoutes(router, audit, cfg.Server.Debug)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
