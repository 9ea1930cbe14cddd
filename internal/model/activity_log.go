package model

import (
	"time"

	"github.com/google/uuid"
)

type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	Action    string    `gorm:"type:varchar(100);not null;index" json:"action"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// ActivityLogView joins the acting user for display.
type ActivityLogView struct {
	ID        uint      `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// Actions recorded by the application.
const (
	ActionCheckoutCompleted   = "Checkout completed"
	ActionCreatedProduct      = "Created product"
	ActionUpdatedProduct      = "Updated product"
	ActionDeletedProduct      = "Deleted product"
	ActionCreatedStaff        = "Created staff"
	ActionUpdatedStaff        = "Updated staff"
	ActionDeletedStaff        = "Deleted staff"
	ActionAssignedPermission  = "Assigned permission"
	ActionRevokedPermission   = "Revoked permission"
	ActionReplacedPermissions = "Replaced permissions"
)
