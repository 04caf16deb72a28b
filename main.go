// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deckhub/config"
	"deckhub/database"
	"deckhub/handlers"
	"deckhub/middleware"
	"deckhub/services/achievements"
	"deckhub/services/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("FATAL: ", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	backend, err := database.OpenBackend(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer backend.Close()

	engine := achievements.NewEngine(backend)
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := engine.EnsureCatalog(ctx); err != nil {
		log.Fatal("Failed to seed achievement catalog: ", err)
	}
	cancel()
	log.Printf("✅ Achievement catalog ready (%d definitions)", engine.Catalog().Len())

	hub := notify.NewHub()
	limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow())
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(10*time.Minute, stopCleanup)
	defer close(stopCleanup)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"version":   "1.0.0",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	api := app.Group("/api")
	handlers.New(backend, engine, hub).Register(api, auth, limiter.Handler())
	handlers.RegisterWebSocket(app, auth, hub)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 HTTP server starting on port %s", cfg.Port)
	log.Printf("📊 Environment: %s", cfg.AppEnv)
	log.Printf("🗄️ Storage driver: %s", cfg.Database.Driver)
	log.Printf("🌐 WebSocket available at ws://localhost:%s/ws", cfg.Port)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("HTTP server stopped: %v", err)
	}
}
