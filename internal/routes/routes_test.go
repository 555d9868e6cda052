package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kun8685/gaurykart-chat/internal/config"
	"github.com/kun8685/gaurykart-chat/internal/models"
	"github.com/kun8685/gaurykart-chat/internal/repository"
)

func newTestApp(t *testing.T) (*fiber.App, *repository.MemoryConversationRepository) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	conversations := repository.NewMemoryConversationRepository()
	cfg := &config.Config{
		JWTSecret:            "secret",
		BotReplyDelay:        time.Millisecond,
		DefaultAdminEmail:    "admin@gaurykart.com",
		DefaultAdminPassword: "adminpass1",
	}

	app := fiber.New()
	if err := RegisterRoutes(ctx, app, cfg, Dependencies{
		Conversations: conversations,
		Users:         repository.NewMemoryUserRepository(),
	}); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	return app, conversations
}

func doJSON(t *testing.T, app *fiber.App, method, target, token, body string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	decoded := map[string]json.RawMessage{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func tokenFrom(t *testing.T, body map[string]json.RawMessage) string {
	t.Helper()
	var token string
	if err := json.Unmarshal(body["token"], &token); err != nil || token == "" {
		t.Fatalf("missing token in %v", body)
	}
	return token
}

func TestChatRoutesEndToEnd(t *testing.T) {
	app, conversations := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/auth/register", "", `{"name":"Asha","email":"asha@example.com","password":"password123"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: expected 200, got %d", resp.StatusCode)
	}
	shopperToken := tokenFrom(t, body)
	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body["user"], &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}

	resp, body = doJSON(t, app, http.MethodGet, "/api/chat/"+user.ID, shopperToken, "")
	if resp.StatusCode != http.StatusOK || string(body["messages"]) != "[]" {
		t.Fatalf("expected empty history, got %d %s", resp.StatusCode, body["messages"])
	}

	msg, err := models.NewMessage(models.SenderUser, "hello", time.Time{})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := conversations.Append(context.Background(), user.ID, msg); err != nil {
		t.Fatalf("Append: %v", err)
	}

	resp, _ = doJSON(t, app, http.MethodGet, "/api/chat", shopperToken, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("shopper listing conversations: expected 403, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, http.MethodGet, "/api/chat/someone-else", shopperToken, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("shopper reading other history: expected 403, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, http.MethodGet, "/api/chat/"+user.ID, "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous history: expected 401, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, app, http.MethodPost, "/api/auth/login", "", `{"email":"admin@gaurykart.com","password":"adminpass1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d", resp.StatusCode)
	}
	adminToken := tokenFrom(t, body)

	resp, body = doJSON(t, app, http.MethodGet, "/api/chat", adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: expected 200, got %d", resp.StatusCode)
	}
	var summaries []models.ConversationSummary
	if err := json.Unmarshal(body["conversations"], &summaries); err != nil {
		t.Fatalf("decode conversations: %v", err)
	}
	if len(summaries) != 1 || summaries[0].User == nil || summaries[0].User.Email != "asha@example.com" {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	resp, body = doJSON(t, app, http.MethodGet, "/api/chat/"+user.ID, adminToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin history: expected 200, got %d", resp.StatusCode)
	}
	var messages []models.Message
	if err := json.Unmarshal(body["messages"], &messages); err != nil || len(messages) != 1 {
		t.Fatalf("expected one message, got %s (%v)", body["messages"], err)
	}
}

func TestRegisterRoutesDuplicateEmail(t *testing.T) {
	app, _ := newTestApp(t)

	payload := `{"name":"Asha","email":"asha@example.com","password":"password123"}`
	if resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", payload); resp.StatusCode != http.StatusOK {
		t.Fatalf("first register: expected 200, got %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", payload); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second register: expected 409, got %d", resp.StatusCode)
	}
}
