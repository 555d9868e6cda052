package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kun8685/gaurykart-chat/internal/models"
	"github.com/kun8685/gaurykart-chat/internal/services"
	"github.com/kun8685/gaurykart-chat/pkg/utils"
)

type stubChatService struct {
	historyResult       []models.Message
	historyErr          error
	conversationsResult []models.ConversationSummary
	conversationsErr    error
	lastActorID         string
	lastRole            string
	lastUserID          string
}

func (s *stubChatService) HistoryFor(_ context.Context, actorID string, role string, userID string) ([]models.Message, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastUserID = userID
	return s.historyResult, s.historyErr
}

func (s *stubChatService) ListConversations(_ context.Context, role string) ([]models.ConversationSummary, error) {
	s.lastRole = role
	return s.conversationsResult, s.conversationsErr
}

func newChatTestApp(handler *ChatHandler, userID, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
			c.Locals("role", role)
		}
		return c.Next()
	})
	app.Get("/api/chat", handler.ListConversations)
	app.Get("/api/chat/:userId", handler.GetHistory)
	return app
}

func TestGetHistoryReturnsMessages(t *testing.T) {
	service := &stubChatService{
		historyResult: []models.Message{
			{Sender: models.SenderUser, Message: "hello", Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
			{Sender: models.SenderBot, Message: "Hello! How can I help you today?", Timestamp: time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC)},
		},
	}
	handler := NewChatHandler(context.Background(), service, nil, nil, "secret", RateLimit{})
	app := newChatTestApp(handler, "u1", models.RoleUser)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/u1", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != "u1" || service.lastRole != models.RoleUser || service.lastUserID != "u1" {
		t.Fatalf("unexpected forwarded identity: %q %q %q", service.lastActorID, service.lastRole, service.lastUserID)
	}

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Messages) != 2 || body.Messages[1].Sender != models.SenderBot {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
}

func TestGetHistoryReturnsEmptyArray(t *testing.T) {
	service := &stubChatService{historyResult: []models.Message{}}
	handler := NewChatHandler(context.Background(), service, nil, nil, "secret", RateLimit{})
	app := newChatTestApp(handler, "u9", models.RoleUser)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/u9", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(body["messages"]) != "[]" {
		t.Fatalf("expected empty messages array, got %s", body["messages"])
	}
}

func TestGetHistoryMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		userID string
		status int
	}{
		{name: "forbidden", err: services.ErrForbidden, userID: "u1", status: http.StatusForbidden},
		{name: "invalid", err: services.ErrInvalidInput, userID: "u1", status: http.StatusBadRequest},
		{name: "store failure", err: errors.New("boom"), userID: "u1", status: http.StatusInternalServerError},
		{name: "no identity", userID: "", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubChatService{historyErr: tc.err}
			handler := NewChatHandler(context.Background(), service, nil, nil, "secret", RateLimit{})
			app := newChatTestApp(handler, tc.userID, models.RoleUser)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/u2", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestListConversationsPaginates(t *testing.T) {
	summaries := make([]models.ConversationSummary, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		summaries = append(summaries, models.ConversationSummary{
			Conversation: models.Conversation{ID: id, UserID: id, IsActive: true},
			User:         &models.ConversationUser{ID: id, Name: "User " + id},
		})
	}

	cases := []struct {
		name      string
		query     string
		wantLen   int
		wantFirst string
	}{
		{name: "middle page", query: "page=2&limit=2", wantLen: 2, wantFirst: "c"},
		{name: "partial last page", query: "page=3&limit=2", wantLen: 1, wantFirst: "e"},
		{name: "past the end", query: "page=4&limit=2", wantLen: 0},
		{name: "huge page", query: "page=922337203685477580&limit=100", wantLen: 0},
		{name: "huge page small limit", query: "page=9223372036854775807&limit=2", wantLen: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubChatService{conversationsResult: summaries}
			handler := NewChatHandler(context.Background(), service, nil, nil, "secret", RateLimit{})
			app := newChatTestApp(handler, "admin-1", models.RoleAdmin)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat?"+tc.query, nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if service.lastRole != models.RoleAdmin {
				t.Fatalf("expected admin role forwarded, got %q", service.lastRole)
			}

			var body struct {
				Conversations []models.ConversationSummary `json:"conversations"`
				Pagination    models.PaginationMeta        `json:"pagination"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(body.Conversations) != tc.wantLen {
				t.Fatalf("expected %d conversations, got %+v", tc.wantLen, body.Conversations)
			}
			if tc.wantLen > 0 && body.Conversations[0].UserID != tc.wantFirst {
				t.Fatalf("expected page to start at %q, got %q", tc.wantFirst, body.Conversations[0].UserID)
			}
			if body.Pagination.Total != 5 {
				t.Fatalf("unexpected pagination: %+v", body.Pagination)
			}
		})
	}
}

func TestListConversationsForbiddenForUsers(t *testing.T) {
	service := &stubChatService{conversationsErr: services.ErrForbidden}
	handler := NewChatHandler(context.Background(), service, nil, nil, "secret", RateLimit{})
	app := newChatTestApp(handler, "u1", models.RoleUser)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthRejectsPlainRequests(t *testing.T) {
	handler := NewChatHandler(context.Background(), &stubChatService{}, nil, nil, "secret", RateLimit{})
	app := fiber.New()
	app.Use("/api/ws", handler.WebSocketAuth)
	app.Get("/api/ws", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthValidatesToken(t *testing.T) {
	token, err := utils.GenerateToken("u1", models.RoleUser, "secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	cases := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "query token", target: "/api/ws?token=" + token, status: http.StatusOK},
		{name: "bearer header", target: "/api/ws", header: "Bearer " + token, status: http.StatusOK},
		{name: "missing token", target: "/api/ws", status: http.StatusUnauthorized},
		{name: "bad token", target: "/api/ws?token=garbage", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewChatHandler(context.Background(), &stubChatService{}, nil, nil, "secret", RateLimit{})
			app := fiber.New()
			app.Use("/api/ws", handler.WebSocketAuth)
			app.Get("/api/ws", func(c *fiber.Ctx) error {
				if c.Locals("user_id") != "u1" {
					return c.SendStatus(fiber.StatusTeapot)
				}
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			req.Header.Set("Connection", "Upgrade")
			req.Header.Set("Upgrade", "websocket")
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}
