package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/kun8685/gaurykart-chat/internal/config"
)

func TestNewAppServesHealth(t *testing.T) {
	t.Setenv("REQUEST_LOGGING", "off")
	app := newApp(&config.Config{AppEnv: "test", CORSAllowOrigins: "*"})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRunReturnsConfigErrors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if err := run(); err == nil {
		t.Fatal("expected run to fail without JWT_SECRET")
	}
}
