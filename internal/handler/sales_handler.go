package handler

import (
	"go-retail-pos/internal/middleware"
	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SalesHandler struct {
	service service.SalesService
}

func NewSalesHandler(s service.SalesService) *SalesHandler {
	return &SalesHandler{service: s}
}

// GetMySales returns the caller's own sales.
// GET /api/v1/sales/me?filter=daily|weekly|monthly|yearly|range&start=&end=
func (h *SalesHandler) GetMySales(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return h.respond(c, userID)
}

// GET /api/v1/users/:id/sales
func (h *SalesHandler) GetStaffSales(c *fiber.Ctx) error {
	staffID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	return h.respond(c, staffID)
}

func (h *SalesHandler) respond(c *fiber.Ctx, staffID uuid.UUID) error {
	history, err := h.service.GetStaffSales(staffID, service.SalesQuery{
		Filter: c.Query("filter"),
		Start:  c.Query("start"),
		End:    c.Query("end"),
	})
	if err != nil {
		return writeError(c, err, "Failed to fetch sales")
	}
	return c.JSON(history)
}
