package model

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	Barcode     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"barcode" validate:"required,max=64"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price" validate:"money"`
	Stock       int             `gorm:"not null;default:0;check:chk_products_stock_non_negative,stock >= 0" json:"stock" validate:"gte=0"`
	ImageURL    *string         `gorm:"type:varchar(512)" json:"image_url,omitempty"`

	// User tracking
	CreatedByUserID *string `gorm:"type:varchar(255)" json:"created_by_user_id,omitempty"`
	UpdatedByUserID *string `gorm:"type:varchar(255)" json:"updated_by_user_id,omitempty"`
}
