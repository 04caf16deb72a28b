// handlers/decks.go
package handlers

import (
	"errors"
	"strings"

	"deckhub/middleware"
	"deckhub/models"
	"deckhub/services/achievements"
	"deckhub/utils"

	"github.com/gofiber/fiber/v2"
)

type CreateDeckRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Format      string   `json:"format"`
	Elements    []string `json:"elements"`
	IsPublic    *bool    `json:"is_public"`
}

// canonicalElements keeps known elements in canonical spelling, once each.
func canonicalElements(names []string) []string {
	seen := make(map[achievements.Element]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		el, ok := achievements.ParseElement(name)
		if !ok || seen[el] {
			continue
		}
		seen[el] = true
		out = append(out, string(el))
	}
	return out
}

// CreateDeck saves a deck. Deck creation earns bonus XP, so the creator's
// achievements are refreshed afterwards.
func (h *Handler) CreateDeck(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return utils.JSONError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req CreateDeckRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return utils.JSONError(c, fiber.StatusBadRequest, "name is required")
	}
	if req.Format == "" {
		req.Format = models.FormatConstructed
	}
	if !models.ValidFormat(req.Format) {
		return utils.JSONError(c, fiber.StatusBadRequest, "format must be constructed or live_draft")
	}

	deck := &models.Deck{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Format:      req.Format,
		Elements:    canonicalElements(req.Elements),
		IsPublic:    true,
	}
	if req.IsPublic != nil {
		deck.IsPublic = *req.IsPublic
	}

	if err := h.records.CreateDeck(c.UserContext(), deck); err != nil {
		return err
	}

	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{
		"deck":         deck,
		"achievements": h.refreshAchievements(c.UserContext(), userID),
	})
}

// ToggleLike likes or unlikes a deck. Likes are the owner's bonus XP, so the
// owner is re-evaluated, not the caller.
func (h *Handler) ToggleLike(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return utils.JSONError(c, fiber.StatusUnauthorized, err.Error())
	}

	liked, ownerID, err := h.records.ToggleLike(c.UserContext(), c.Params("id"), userID)
	if errors.Is(err, models.ErrDeckNotFound) {
		return utils.JSONError(c, fiber.StatusNotFound, "Deck not found")
	}
	if err != nil {
		return err
	}

	h.refreshAchievements(c.UserContext(), ownerID)

	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"liked": liked})
}
