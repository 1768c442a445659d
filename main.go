package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-service/internal/attachments"
	"dm-service/internal/clients"
	"dm-service/internal/config"
	"dm-service/internal/db"
	"dm-service/internal/handlers"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "dm-service", cfg.OTLPAddr)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	var lastSeen presence.LastSeenStore
	if cfg.RedisURL != "" {
		redisLastSeen, err := presence.NewRedisLastSeen(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisLastSeen.Close()
		lastSeen = redisLastSeen
	} else {
		log.Printf("redis disabled, keeping last-seen in memory")
		lastSeen = presence.NewMemoryLastSeen()
	}

	eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExch)
	if err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExch)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.dm", "dm-service", cfg.Env)

	authClient := clients.NewAuthClient(cfg.AuthBaseURL)
	userClient := clients.NewUserClient(cfg.UserBaseURL)

	messageRepo := repositories.NewMessageRepo(database)
	blobStore := attachments.NewPostgresStore(database, cfg.MaxAttachmentBytes)

	tracker := presence.NewTracker(lastSeen)
	hub := ws.NewHub(tracker, messageRepo, cfg.WSSendBuffer)

	messageHandler := handlers.NewMessageHandler(messageRepo, blobStore, userClient, hub, audit)
	attachmentHandler := handlers.NewAttachmentHandler(blobStore)
	presenceHandler := handlers.NewPresenceHandler(tracker, userClient)
	wsHandler := ws.NewWebSocketHandler(hub, authClient)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(otelgin.Middleware("dm-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(authClient)

	router.GET("/conversations/:peer_id/messages", authMiddleware, messageHandler.ListConversation)
	router.POST("/conversations/:peer_id/messages", authMiddleware, messageHandler.SendMessage)
	router.POST("/attachments", authMiddleware, attachmentHandler.Upload)
	router.GET("/attachments/:attachment_id", authMiddleware, attachmentHandler.Download)
	router.GET("/presence/:user_id", authMiddleware, presenceHandler.Get)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", handlers.Health)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
