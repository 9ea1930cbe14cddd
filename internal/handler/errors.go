package handler

import (
	"errors"

	"go-retail-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

// writeCheckoutError answers a failed checkout with the status and the product
// details a terminal needs to tell the cashier what went wrong.
func writeCheckoutError(c *fiber.Ctx, err error) error {
	var stockErr *service.InsufficientStockError
	var notFound *service.ProductNotFoundError

	switch {
	case errors.As(err, &stockErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      err.Error(),
			"code":       "INSUFFICIENT_STOCK",
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":      err.Error(),
			"code":       "PRODUCT_NOT_FOUND",
			"product_id": notFound.ProductID,
		})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "code": "INVALID_REQUEST"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error(), "code": "UNAUTHORIZED"})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error(), "code": "FORBIDDEN"})
	case errors.Is(err, service.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     service.ErrConflict.Error(),
			"code":      "CONFLICT",
			"retryable": true,
		})
	case errors.Is(err, service.ErrIdempotencyInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     err.Error(),
			"code":      "DUPLICATE_REQUEST",
			"retryable": true,
		})
	case errors.Is(err, service.ErrIdempotencyKeyReused):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "IDEMPOTENCY_KEY_REUSED",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Checkout failed, nothing was sold",
			"code":  "STORAGE_FAILURE",
		})
	}
}

// writeError maps the common service errors; anything else is a 500 with fallback.
func writeError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, service.ErrCannotDeleteSelf),
		errors.Is(err, service.ErrWeakPassword):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRoleNotFound),
		errors.Is(err, service.ErrPrivilegeNotFound),
		errors.Is(err, service.ErrPrivilegeNotAssigned):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrBarcodeExists),
		errors.Is(err, service.ErrEmailExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
	}
}
