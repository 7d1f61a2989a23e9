package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"conversation-service/internal/config"
	"conversation-service/internal/db"
	"conversation-service/internal/engine"
	"conversation-service/internal/handlers"
	"conversation-service/internal/logging"
	"conversation-service/internal/middleware"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
	"conversation-service/internal/repositories"
	"conversation-service/internal/stream"
	"conversation-service/internal/telemetry"
	"conversation-service/internal/ws"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, "conversation-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer func() { _ = shutdownTracing(ctx) }()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	var notifier stream.Notifier
	if cfg.RedisAddr != "" {
		redisNotifier, err := stream.NewRedisNotifier(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
	} else {
		notifier = stream.NewLocalNotifier()
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	if channel, ok := rabbitmq.Channel(publisher); ok {
		observability.SetPublisher(observability.NewAMQPEventPublisher(channel, cfg.AMQPExchange))
	}
	audit := telemetry.NewAuditEmitter(publisher, "audit.conversations", "conversation-service", cfg.Environment)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub()
	outbox := engine.NewOutbox()
	sender := engine.NewSender(chatRepo, groupRepo, userRepo, notifier, outbox)
	actions := engine.NewActions(chatRepo, groupRepo, userRepo, notifier)

	conversationHandler := handlers.NewConversationHandler(chatRepo, groupRepo, messageRepo, groupMessageRepo, userRepo, sender, actions, hub, audit)
	groupHandler := handlers.NewGroupHandler(actions, groupRepo, userRepo, audit)

	validator := middleware.HMACValidator{Secret: []byte(cfg.AuthSecret)}
	conversationWS := ws.NewConversationFeedHandler(hub, groupRepo, validator)
	listWS := ws.NewListFeedHandler(chatRepo, groupRepo, userRepo, notifier, validator)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("conversation-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(validator)

	router.GET("/conversations", authMiddleware, conversationHandler.List)
	router.POST("/conversations/:id/open", authMiddleware, conversationHandler.Open)
	router.POST("/conversations/:id/messages", authMiddleware, conversationHandler.SendMessage)
	router.POST("/conversations/:id/pin", authMiddleware, conversationHandler.TogglePin)
	router.DELETE("/conversations/:id", authMiddleware, conversationHandler.Remove)

	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.GET("/groups/:group_id/mentions", authMiddleware, groupHandler.MentionSuggestions)

	router.GET("/ws/conversations", listWS.Handle)
	router.GET("/ws/conversations/:id", conversationWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, chatRepo, groupRepo, audit, cfg.DebugRoutes)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("conversation service listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
