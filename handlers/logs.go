// handlers/logs.go
package handlers

import (
	"strings"
	"time"

	"deckhub/middleware"
	"deckhub/models"
	"deckhub/utils"

	"github.com/gofiber/fiber/v2"
)

type CreateLogRequest struct {
	Format    string     `json:"format"`
	Outcome   string     `json:"outcome"`
	IsPublic  bool       `json:"is_public"`
	MVPCardID string     `json:"mvp_card_id"`
	DeckID    string     `json:"deck_id"`
	DeckURL   string     `json:"deck_url"`
	Elements  []string   `json:"elements"`
	Opponent  string     `json:"opponent"`
	Notes     string     `json:"notes"`
	PlayedAt  *time.Time `json:"played_at"`
}

// CreateLog records a game and then evaluates achievements. Evaluation is
// best effort: the log is created even if it fails.
func (h *Handler) CreateLog(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return utils.JSONError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req CreateLogRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Format = strings.TrimSpace(req.Format)
	req.Outcome = strings.ToLower(strings.TrimSpace(req.Outcome))
	if !models.ValidFormat(req.Format) {
		return utils.JSONError(c, fiber.StatusBadRequest, "format must be constructed or live_draft")
	}
	if !models.ValidOutcome(req.Outcome) {
		return utils.JSONError(c, fiber.StatusBadRequest, "outcome must be win, loss or draw")
	}

	gameLog := &models.GameLog{
		UserID:    userID,
		Format:    req.Format,
		Outcome:   req.Outcome,
		IsPublic:  req.IsPublic,
		MVPCardID: strings.TrimSpace(req.MVPCardID),
		DeckURL:   strings.TrimSpace(req.DeckURL),
		Opponent:  req.Opponent,
		Notes:     req.Notes,
	}
	if id := strings.TrimSpace(req.DeckID); id != "" {
		gameLog.DeckID = &id
	}
	if req.Format == models.FormatLiveDraft {
		gameLog.Elements = req.Elements
	}
	if req.PlayedAt != nil {
		gameLog.PlayedAt = req.PlayedAt.UTC()
	}

	if err := h.records.CreateGameLog(c.UserContext(), gameLog); err != nil {
		return err
	}

	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{
		"log":          gameLog,
		"achievements": h.refreshAchievements(c.UserContext(), userID),
	})
}
