package handlers

import (
	"context"
	"errors"
	"log"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/kun8685/gaurykart-chat/internal/models"
	"github.com/kun8685/gaurykart-chat/internal/repository"
	"github.com/kun8685/gaurykart-chat/internal/services"
	chatws "github.com/kun8685/gaurykart-chat/internal/websocket"
	"github.com/kun8685/gaurykart-chat/pkg/utils"
)

type chatApplicationService interface {
	HistoryFor(ctx context.Context, actorID string, role string, userID string) ([]models.Message, error)
	ListConversations(ctx context.Context, role string) ([]models.ConversationSummary, error)
}

// RateLimit bounds inbound websocket frames per connection. A zero
// PerSecond disables limiting.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	relay     *chatws.Relay
	jwtSecret string
	limit     RateLimit
	ctx       context.Context
}

func NewChatHandler(
	ctx context.Context,
	service chatApplicationService,
	hub *chatws.Hub,
	relay *chatws.Relay,
	jwtSecret string,
	limit RateLimit,
) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		relay:     relay,
		jwtSecret: jwtSecret,
		limit:     limit,
		ctx:       ctx,
	}
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	actorID, role, ok := identity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	messages, err := h.service.HistoryFor(c.Context(), actorID, role, c.Params("userId"))
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	_, role, ok := identity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), role)
	if err != nil {
		return mapChatError(c, err)
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	start, end := pageBounds(page, limit, len(conversations))

	return c.JSON(fiber.Map{
		"conversations": conversations[start:end],
		"pagination":    buildPaginationMeta(page, limit, len(conversations)),
	})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)

	var limiter *rate.Limiter
	if h.limit.PerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.limit.PerSecond), h.limit.Burst)
	}
	client := chatws.NewClient(h.hub, conn, userID, role, limiter)
	log.Printf("chat client %s connected as %s (%s)", client.ID(), client.UserID(), client.Role())

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.ctx, h.relay)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func identity(c *fiber.Ctx) (string, string, bool) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return "", "", false
	}
	role, ok := c.Locals("role").(string)
	if !ok {
		return "", "", false
	}
	return userID, role, true
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, repository.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
