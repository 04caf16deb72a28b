// handlers/handler.go
package handlers

import (
	"context"
	"log"
	"os"

	"deckhub/models"
	"deckhub/services/achievements"

	"github.com/gofiber/fiber/v2"
)

// Records is the write side of the deck and game-log API.
type Records interface {
	CreateGameLog(ctx context.Context, log *models.GameLog) error
	CreateDeck(ctx context.Context, deck *models.Deck) error
	ToggleLike(ctx context.Context, deckID, userID string) (liked bool, ownerID string, err error)
}

// Evaluator runs the achievement engine.
type Evaluator interface {
	Award(ctx context.Context, userID string) (*achievements.AwardResult, error)
	Snapshot(ctx context.Context, userID string) (*achievements.SnapshotResult, error)
	Catalog() *achievements.Catalog
}

// Notifier delivers unlock toasts.
type Notifier interface {
	NotifyAward(res *achievements.AwardResult)
}

type Handler struct {
	records  Records
	engine   Evaluator
	notifier Notifier
}

func New(records Records, engine Evaluator, notifier Notifier) *Handler {
	return &Handler{records: records, engine: engine, notifier: notifier}
}

// Register mounts the API routes on api. auth guards every per-user route.
// Register mounts the API. limit runs after auth on authenticated routes so
// it can key on the caller.
func (h *Handler) Register(api fiber.Router, auth, limit fiber.Handler) {
	api.Get("/achievements/catalog", limit, h.GetCatalog)
	api.Get("/achievements/me", auth, limit, h.GetMyAchievements)
	api.Post("/achievements/me/evaluate", auth, limit, h.EvaluateMyAchievements)

	api.Post("/logs", auth, limit, h.CreateLog)

	api.Post("/decks", auth, limit, h.CreateDeck)
	api.Post("/decks/:id/like", auth, limit, h.ToggleLike)
}

func (h *Handler) notify(res *achievements.AwardResult) {
	if h.notifier != nil {
		h.notifier.NotifyAward(res)
	}
}

// refreshAchievements awards userID and pushes any unlocks. Failures are
// logged and reported as nil so the write that triggered it still succeeds.
func (h *Handler) refreshAchievements(ctx context.Context, userID string) *achievements.AwardResult {
	res, err := h.engine.Award(ctx, userID)
	if err != nil {
		log.Printf("⚠️ achievement evaluation failed for user %s: %v", userID, err)
		return nil
	}
	h.notify(res)
	return res
}

// ErrorHandler renders errors as {"success": false, "error": ...}. Internal
// details are hidden in production.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if os.Getenv("APP_ENV") == "production" && code == 500 {
		message = "An error occurred. Please try again later."
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
