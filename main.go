package main

import (
	"context"
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/ai"
	"messenger-service/internal/cache"
	"messenger-service/internal/chat"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	cfg := config.Load()
	ctx := context.Background()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			log.Printf("tracing disabled: %v", err)
		} else {
			defer shutdown(ctx)
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))

	if cfg.AMQPURL != "" {
		connPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(connPublisher)
			defer connPublisher.Close()
		}
	}

	var history *cache.History
	if cfg.RedisAddr != "" {
		history = cache.NewHistory(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), 0)
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	// The assistant sends as a real user row so hydration works for
	// AI messages the same as for human ones.
	if _, err := userRepo.UpsertUser(ctx, models.User{
		ID:        cfg.BotUserID,
		FirstName: "AI",
		LastName:  "Assistant",
	}); err != nil {
		log.Fatalf("failed to seed assistant user: %v", err)
	}

	registry := ws.NewRegistry()
	broadcaster := ws.NewBroadcaster(registry)

	generator := ai.NewReplyGenerator(cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.AISystemPrompt)
	pipeline := chat.NewPipeline(chatRepo, messageRepo, history, generator, broadcaster, cfg.BotUserID)
	defer pipeline.Wait()

	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, userRepo, pipeline, audit, cfg.BotUserID)
	wsHandler := ws.NewHandler(registry, broadcaster)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokenValidator(userRepo))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/me", authMiddleware, chatHandler.GetMe)
	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats", authMiddleware, chatHandler.CreateChat)
	router.GET("/chats/:chat_id", authMiddleware, chatHandler.GetChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/participants", authMiddleware, chatHandler.AddParticipant)
	router.PATCH("/chats/:chat_id/messages/:message_id/status", authMiddleware, chatHandler.UpdateMessageStatus)
	router.POST("/chats/:chat_id/ai-stream", authMiddleware, chatHandler.StreamAIReply)

	router.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// tokenValidator resolves bearer tokens to user ids. Identity is owned
// by an upstream gateway which terminates authentication and forwards
// the opaque subject as the bearer token; the row is upserted so later
// hydration always finds a sender.
func tokenValidator(userRepo repositories.UserRepository) middleware.TokenValidator {
	return middleware.TokenValidatorFunc(func(ctx context.Context, token string) (string, error) {
		if token == "" {
			return "", errors.New("empty token")
		}
		user, err := userRepo.UpsertUser(ctx, models.User{ID: token})
		if err != nil {
			return "", err
		}
		return user.ID, nil
	})
}
