package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go-retail-pos/internal/events"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/pkg/logger"
	"go-retail-pos/pkg/metrics"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LineItem struct {
	ProductID uuid.UUID `json:"productId" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

type CheckoutRequest struct {
	StaffID uuid.UUID  `json:"staffId"`
	Items   []LineItem `json:"items" validate:"required,min=1,dive"`

	// IdempotencyKey comes from the Idempotency-Key header, never the body.
	IdempotencyKey string `json:"-"`
}

// SellRequest is the single-line form of a checkout.
type SellRequest struct {
	StaffID   uuid.UUID `json:"staffId"`
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func (r *SellRequest) ToCheckout() *CheckoutRequest {
	return &CheckoutRequest{
		StaffID: r.StaffID,
		Items:   []LineItem{{ProductID: r.ProductID, Quantity: r.Quantity}},
	}
}

// Actor is the authenticated caller.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// ReceiptLine is one sold line. RemainingStock is the product's stock right after
// this line, so repeated lines for one product count down in request order.
type ReceiptLine struct {
	TransactionID  uuid.UUID       `json:"transaction_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	RemainingStock int             `json:"remaining_stock"`
}

type Receipt struct {
	CheckoutID uuid.UUID       `json:"checkout_id"`
	StaffID    uuid.UUID       `json:"staff_id"`
	Lines      []ReceiptLine   `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	Units      int             `json:"units"`
	SoldAt     time.Time       `json:"sold_at"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, actor Actor, req *CheckoutRequest) (*Receipt, error)
}

type checkoutService struct {
	store    repository.CheckoutStore
	activity ActivityRecorder
	events   events.Publisher
	metrics  *metrics.ServerMetrics
	log      logger.ZapLogger
	now      func() time.Time
}

func NewCheckoutService(
	store repository.CheckoutStore,
	activity ActivityRecorder,
	publisher events.Publisher,
	m *metrics.ServerMetrics,
	log logger.ZapLogger,
) CheckoutService {
	return &checkoutService{
		store:    store,
		activity: activity,
		events:   publisher,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Checkout sells every line of req as one unit: either all stock is decremented
// and every ledger row written, or nothing changes.
func (s *checkoutService) Checkout(ctx context.Context, actor Actor, req *CheckoutRequest) (*Receipt, error) {
	receipt, err := s.checkout(ctx, actor, req)
	if err != nil {
		s.metrics.ObserveCheckout(checkoutOutcome(err), 0)
		return nil, err
	}
	s.metrics.ObserveCheckout("success", receipt.Units)
	s.afterCommit(ctx, actor, receipt)
	return receipt, nil
}

func (s *checkoutService) checkout(ctx context.Context, actor Actor, req *CheckoutRequest) (*Receipt, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if actor.ID == uuid.Nil || req.StaffID != actor.ID {
		return nil, ErrUnauthorized
	}
	if err := validator.FirstError(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ids := lockOrder(req.Items)
	receipt := &Receipt{
		CheckoutID: uuid.New(),
		StaffID:    actor.ID,
		SoldAt:     s.now().UTC(),
		Total:      decimal.Zero,
	}
	updatedBy := actor.ID.String()

	err := s.store.Atomic(ctx, func(tx repository.CheckoutTx) error {
		rows, err := tx.ReadForUpdate(ids)
		if err != nil {
			return err
		}

		// Lines are checked in request order against what the earlier lines left.
		remaining := make(map[uuid.UUID]int, len(rows))
		for id, row := range rows {
			remaining[id] = row.Stock
		}
		for _, item := range req.Items {
			if _, ok := rows[item.ProductID]; !ok {
				return &ProductNotFoundError{ProductID: item.ProductID}
			}
			if available := remaining[item.ProductID]; available < item.Quantity {
				return &InsufficientStockError{ProductID: item.ProductID, Available: available, Requested: item.Quantity}
			}
			remaining[item.ProductID] -= item.Quantity
		}

		for _, id := range ids {
			if err := tx.WriteStock(id, remaining[id], updatedBy); err != nil {
				return err
			}
		}

		lines := make([]ReceiptLine, 0, len(req.Items))
		total := decimal.Zero
		units := 0
		running := make(map[uuid.UUID]int, len(rows))
		for id, row := range rows {
			running[id] = row.Stock
		}
		for _, item := range req.Items {
			row := rows[item.ProductID]
			running[item.ProductID] -= item.Quantity
			lineTotal := row.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			sale := &model.Transaction{
				ID:         uuid.New(),
				CheckoutID: receipt.CheckoutID,
				ProductID:  item.ProductID,
				StaffID:    actor.ID,
				Quantity:   item.Quantity,
				UnitPrice:  row.Price,
				TotalPrice: lineTotal,
				SoldAt:     receipt.SoldAt,
			}
			if err := tx.AppendSale(sale); err != nil {
				return err
			}
			lines = append(lines, ReceiptLine{
				TransactionID:  sale.ID,
				ProductID:      item.ProductID,
				ProductName:    row.Name,
				Quantity:       item.Quantity,
				UnitPrice:      row.Price,
				LineTotal:      lineTotal,
				RemainingStock: running[item.ProductID],
			})
			total = total.Add(lineTotal)
			units += item.Quantity
		}

		receipt.Lines = lines
		receipt.Total = total
		receipt.Units = units
		return nil
	})
	if err != nil {
		return nil, classifyCheckoutError(err)
	}
	return receipt, nil
}

func (s *checkoutService) afterCommit(ctx context.Context, actor Actor, receipt *Receipt) {
	if s.activity != nil {
		if err := s.activity.Record(actor.ID, model.ActionCheckoutCompleted); err != nil {
			s.log.Warn("failed to record checkout activity",
				zap.String("checkout_id", receipt.CheckoutID.String()),
				zap.Error(err),
			)
		}
	}

	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"checkout_id": receipt.CheckoutID,
		"total":       receipt.Total,
		"units":       receipt.Units,
		"lines":       receipt.Lines,
		"user": map[string]interface{}{
			"id":    actor.ID,
			"name":  actor.Name,
			"email": actor.Email,
		},
		"message": fmt.Sprintf("%s sold %d units", actor.Name, receipt.Units),
	}
	// Delivery failures are logged by the publisher; the sale is already committed.
	_ = s.events.Publish(ctx, events.New(events.TypeCheckoutCompleted, receipt.CheckoutID.String(), payload))
}

// lockOrder returns the distinct product ids of items in ascending byte order,
// which matches Postgres' ordering of uuid values.
func lockOrder(items []LineItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

func classifyCheckoutError(err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrInsufficientStock):
		return err
	case errors.Is(err, repository.ErrLockConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}

func checkoutOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "storage_failure"
	}
}
