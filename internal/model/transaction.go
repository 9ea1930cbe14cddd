package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is one ledger row: a single line item of a committed checkout.
// Rows are append-only; nothing in the application updates or deletes them.
type Transaction struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CheckoutID uuid.UUID       `gorm:"type:uuid;not null;index" json:"checkout_id"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Product    *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	StaffID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"staff_id"`
	Staff      *User           `gorm:"foreignKey:StaffID" json:"staff,omitempty"`
	Quantity   int             `gorm:"not null;check:chk_transactions_quantity_positive,quantity > 0" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_price"`
	SoldAt     time.Time       `gorm:"not null;index" json:"sold_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TransactionView is the flattened ledger row served by list endpoints.
type TransactionView struct {
	ID          uuid.UUID       `json:"id"`
	CheckoutID  uuid.UUID       `json:"checkout_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	StaffID     uuid.UUID       `json:"staff_id"`
	StaffName   string          `json:"staff_name"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	SoldAt      time.Time       `json:"sold_at"`
}

func (t *Transaction) ToView() TransactionView {
	view := TransactionView{
		ID:         t.ID,
		CheckoutID: t.CheckoutID,
		ProductID:  t.ProductID,
		StaffID:    t.StaffID,
		Quantity:   t.Quantity,
		TotalPrice: t.TotalPrice,
		SoldAt:     t.SoldAt,
	}
	if t.Product != nil {
		view.ProductName = t.Product.Name
	}
	if t.Staff != nil {
		view.StaffName = t.Staff.FullName
	}
	return view
}
