package handler

import (
	"strconv"

	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(s service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// GetDashboardStats returns overview statistics
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.service.GetDashboardStats()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch dashboard stats"})
	}
	return c.JSON(stats)
}

// GetMonthlySales returns one bucket per month.
// Query params: year (default current year)
func (h *DashboardHandler) GetMonthlySales(c *fiber.Ctx) error {
	year := 0
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid year"})
		}
		year = parsed
	}

	data, err := h.service.GetMonthlySales(year)
	if err != nil {
		return writeError(c, err, "Failed to fetch monthly sales")
	}
	return c.JSON(data)
}

// GetTopProducts ranks products by units sold.
// Query params: limit (default 10)
func (h *DashboardHandler) GetTopProducts(c *fiber.Ctx) error {
	data, err := h.service.GetTopProducts(c.QueryInt("limit", 0))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch top products"})
	}
	return c.JSON(data)
}

// GetSalesOverTime returns daily totals.
// Query params: range (7, 30 or 90; default 7)
func (h *DashboardHandler) GetSalesOverTime(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("range", "7"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid range"})
	}

	data, err := h.service.GetSalesOverTime(days)
	if err != nil {
		return writeError(c, err, "Failed to fetch sales over time")
	}
	return c.JSON(fiber.Map{"range": days, "data": data})
}

func (h *DashboardHandler) GetStockLevels(c *fiber.Ctx) error {
	levels, err := h.service.GetStockLevels()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch stock levels"})
	}
	return c.JSON(levels)
}
