package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLockConflict means the rows a checkout needs could not be locked in time,
// or the database aborted the transaction to break a deadlock. Safe to retry.
var ErrLockConflict = errors.New("could not lock product rows")

// StockSnapshot is a product row as seen under its row lock.
type StockSnapshot struct {
	ID    uuid.UUID
	Name  string
	Stock int
	Price decimal.Decimal
}

// CheckoutTx is the view of the store inside one atomic checkout.
type CheckoutTx interface {
	// ReadForUpdate locks the given product rows in ascending id order and returns
	// the ones that exist. Missing ids are simply absent from the result.
	ReadForUpdate(ids []uuid.UUID) (map[uuid.UUID]StockSnapshot, error)
	WriteStock(id uuid.UUID, newStock int, updatedBy string) error
	AppendSale(sale *model.Transaction) error
}

type CheckoutStore interface {
	// Atomic runs fn in a single database transaction. Returning an error from fn
	// rolls back every write made through the CheckoutTx.
	Atomic(ctx context.Context, fn func(tx CheckoutTx) error) error
}

type checkoutStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewCheckoutStore(db *gorm.DB, lockTimeout time.Duration) CheckoutStore {
	return &checkoutStore{db: db, lockTimeout: lockTimeout}
}

func (s *checkoutStore) Atomic(ctx context.Context, fn func(tx CheckoutTx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setLockTimeout(tx, s.lockTimeout); err != nil {
			return err
		}
		return fn(&checkoutTx{tx: tx})
	})
	return classifyLockError(err)
}

// setLockTimeout bounds row lock waits for the rest of the transaction.
func setLockTimeout(tx *gorm.DB, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	// SET does not take bind parameters; the value is an integer we format ourselves.
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())).Error
}

type checkoutTx struct {
	tx *gorm.DB
}

func (t *checkoutTx) ReadForUpdate(ids []uuid.UUID) (map[uuid.UUID]StockSnapshot, error) {
	var products []model.Product
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "name", "stock", "price").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	rows := make(map[uuid.UUID]StockSnapshot, len(products))
	for _, p := range products {
		rows[p.ID] = StockSnapshot{ID: p.ID, Name: p.Name, Stock: p.Stock, Price: p.Price}
	}
	return rows, nil
}

func (t *checkoutTx) WriteStock(id uuid.UUID, newStock int, updatedBy string) error {
	return t.tx.Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":              newStock,
			"updated_by":         updatedBy,
			"updated_by_user_id": updatedBy,
		}).Error
}

func (t *checkoutTx) AppendSale(sale *model.Transaction) error {
	return t.tx.Create(sale).Error
}

// Postgres SQLSTATEs that mean "someone else holds the rows, try again".
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
)

func classifyLockError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return fmt.Errorf("%w: %s", ErrLockConflict, pgErr.Message)
		}
	}
	// A caller that gave up while waiting for a row lock changed nothing.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrLockConflict, err)
	}
	return err
}
