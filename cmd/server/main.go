package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/kun8685/gaurykart-chat/internal/config"
	"github.com/kun8685/gaurykart-chat/internal/database"
	"github.com/kun8685/gaurykart-chat/internal/pubsub"
	"github.com/kun8685/gaurykart-chat/internal/routes"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource so deferred closes happen before main exits.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Open stores
	stores, err := database.OpenStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer stores.Close()

	deps := routes.Dependencies{
		Conversations: stores.Conversations,
		Users:         stores.Users,
	}
	if cfg.RedisURL != "" {
		fanout, err := pubsub.NewRedisFanout(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer fanout.Close()
		deps.Fanout = fanout
		log.Println("Chat broadcasts fan out through redis")
	}

	// 3. Setup Fiber
	app := newApp(cfg)
	if err := routes.RegisterRoutes(ctx, app, cfg, deps); err != nil {
		return fmt.Errorf("failed to register routes: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	// 4. Start Server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// newApp builds the fiber app with middleware and the health check mounted.
func newApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{EnablePrintRoutes: cfg.IsDevelopment()})

	// Middleware
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSAllowOrigins}))
	if cfg.RequestLogging() {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	return app
}
