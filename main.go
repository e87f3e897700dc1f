package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-core/internal/auth"
	"chat-core/internal/config"
	"chat-core/internal/db"
	"chat-core/internal/handlers"
	"chat-core/internal/middleware"
	"chat-core/internal/observability"
	"chat-core/internal/rabbitmq"
	"chat-core/internal/repositories"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

const serviceName = "chat-core"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.chat", serviceName, cfg.Environment)

	if sessionPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("session event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(sessionPublisher)
		defer sessionPublisher.Close()
	}

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	registry := ws.NewRegistry()
	presence := ws.NewPresenceTracker()
	typing := ws.NewTypingCoordinator(cfg.TypingTTL)
	fanout := ws.NewFanoutEngine(roomRepo, messageRepo, registry)
	gateway := ws.NewGateway(registry, presence, typing, fanout, roomRepo, userRepo)

	go typing.Run(ctx, 500*time.Millisecond, gateway.TypingExpired)

	validator := auth.NewValidator(cfg.JWTSecret)
	wsHandler := ws.NewHandler(gateway, validator, cfg.AllowedOrigin)

	roomHandler := handlers.NewRoomHandler(roomRepo, gateway, audit)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, gateway)
	presenceHandler := handlers.NewPresenceHandler(gateway)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(validator, userRepo)

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.GET("/rooms/:room_id", authMiddleware, roomHandler.GetRoom)
	router.POST("/rooms/:room_id/join", authMiddleware, roomHandler.JoinRoom)
	router.POST("/rooms/:room_id/leave", authMiddleware, roomHandler.LeaveRoom)
	router.GET("/messages/:room_id", authMiddleware, messageHandler.GetRoomMessages)
	router.DELETE("/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.GET("/channels/:room_id/users", authMiddleware, presenceHandler.RoomOnlineUsers)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
