package handler

import (
	"strings"

	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	service service.CheckoutService
}

func NewCheckoutHandler(s service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{service: s}
}

// Checkout sells a batch of line items atomically.
// POST /api/v1/products/checkout
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req service.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON", "code": "INVALID_REQUEST"})
	}
	return h.run(c, &req)
}

// Sell is a single-line checkout.
// POST /api/v1/products/sell
func (h *CheckoutHandler) Sell(c *fiber.Ctx) error {
	var req service.SellRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON", "code": "INVALID_REQUEST"})
	}
	return h.run(c, req.ToCheckout())
}

func (h *CheckoutHandler) run(c *fiber.Ctx, req *service.CheckoutRequest) error {
	req.IdempotencyKey = strings.TrimSpace(c.Get(idempotencyHeader))

	receipt, err := h.service.Checkout(c.UserContext(), currentActor(c), req)
	if err != nil {
		return writeCheckoutError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{
		"message": "Checkout completed",
		"data":    receipt,
	})
}
