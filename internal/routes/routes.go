package routes

import (
	"context"
	"fmt"
	"log"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/kun8685/gaurykart-chat/internal/config"
	"github.com/kun8685/gaurykart-chat/internal/handlers"
	"github.com/kun8685/gaurykart-chat/internal/middleware"
	"github.com/kun8685/gaurykart-chat/internal/services"
	chatws "github.com/kun8685/gaurykart-chat/internal/websocket"
)

type Dependencies struct {
	Conversations services.ConversationStore
	Users         services.UserStore
	// Fanout is optional; without it broadcasts stay on this instance.
	Fanout chatws.Fanout
}

// RegisterRoutes wires services, the chat hub and the HTTP routes. The hub
// and pending bot replies stop when ctx is cancelled.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, deps Dependencies) error {
	if deps.Conversations == nil || deps.Users == nil {
		return fmt.Errorf("conversation and user stores are required")
	}

	authService := services.NewAuthService(deps.Users, cfg.JWTSecret)
	if err := authService.EnsureAdmin(ctx, cfg.DefaultAdminName, cfg.DefaultAdminEmail, cfg.DefaultAdminPassword); err != nil {
		return fmt.Errorf("ensure default admin: %w", err)
	}
	chatService := services.NewChatService(deps.Conversations, deps.Users)

	var responder services.Responder = services.NewKeywordResponder()
	if cfg.OpenAIAPIKey != "" {
		responder = services.NewOpenAIResponder(cfg.OpenAIAPIKey, cfg.OpenAIModel, responder)
		log.Println("Chat replies use the OpenAI responder")
	}

	chatHub := chatws.NewHub(deps.Fanout)
	go chatHub.Run(ctx)
	relay := chatws.NewRelay(chatHub, chatService, responder, cfg.BotReplyDelay)
	go func() {
		<-ctx.Done()
		relay.Close()
	}()

	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(ctx, chatService, chatHub, relay, cfg.JWTSecret, handlers.RateLimit{
		PerSecond: cfg.ChatRateLimit,
		Burst:     cfg.ChatRateBurst,
	})

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	chat := api.Group("/chat", middleware.AuthRequired(cfg.JWTSecret))
	chat.Get("", middleware.AdminRequired(), chatHandler.ListConversations)
	chat.Get("/:userId", chatHandler.GetHistory)

	api.Use("/ws", chatHandler.WebSocketAuth)
	api.Get("/ws", websocket.New(chatHandler.HandleWebSocket))

	return nil
}
