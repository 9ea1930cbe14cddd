package handler

import (
	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ActivityHandler struct {
	service service.ActivityService
}

func NewActivityHandler(s service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: s}
}

// GetLogs returns activity entries, newest first.
// Query params: user_id, action, start_date, end_date (YYYY-MM-DD, end inclusive)
func (h *ActivityHandler) GetLogs(c *fiber.Ctx) error {
	logs, err := h.service.GetLogs(service.ActivityQuery{
		UserID:    c.Query("user_id"),
		Action:    c.Query("action"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	})
	if err != nil {
		return writeError(c, err, "Failed to fetch logs")
	}
	return c.JSON(logs)
}

func (h *ActivityHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.service.GetUsers()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch users"})
	}
	return c.JSON(users)
}

func (h *ActivityHandler) GetActions(c *fiber.Ctx) error {
	actions, err := h.service.GetActions()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch actions"})
	}
	return c.JSON(actions)
}
