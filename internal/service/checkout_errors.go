package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Checkout failures. Handlers map these to HTTP statuses; match with errors.Is.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnauthorized      = errors.New("staff id does not match the authenticated user")
	ErrForbidden         = errors.New("permission denied")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("products are locked by another checkout, retry")
	ErrStorage           = errors.New("storage failure")
)

type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
