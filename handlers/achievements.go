// handlers/achievements.go
package handlers

import (
	"errors"

	"deckhub/middleware"
	"deckhub/services/achievements"
	"deckhub/utils"

	"github.com/gofiber/fiber/v2"
)

type catalogEntry struct {
	achievements.Definition
	XP int `json:"xp"`
}

// GetCatalog lists every achievement with its XP value.
func (h *Handler) GetCatalog(c *fiber.Ctx) error {
	defs := h.engine.Catalog().Definitions()
	entries := make([]catalogEntry, 0, len(defs))
	for _, d := range defs {
		entries = append(entries, catalogEntry{Definition: d, XP: d.XP()})
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"definitions": entries,
		"total":       len(entries),
	})
}

// GetMyAchievements returns the caller's snapshot. Nothing new is awarded.
func (h *Handler) GetMyAchievements(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return utils.JSONError(c, fiber.StatusUnauthorized, err.Error())
	}

	snap, err := h.engine.Snapshot(c.UserContext(), userID)
	if errors.Is(err, achievements.ErrUserNotFound) {
		return utils.JSONError(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"snapshot": snap})
}

// EvaluateMyAchievements awards whatever the caller has earned.
func (h *Handler) EvaluateMyAchievements(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return utils.JSONError(c, fiber.StatusUnauthorized, err.Error())
	}

	res, err := h.engine.Award(c.UserContext(), userID)
	if errors.Is(err, achievements.ErrUserNotFound) {
		return utils.JSONError(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	h.notify(res)
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"achievements": res})
}
