package db_models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Payment is an append-only record of a settled charge or confirmed checkout.
type Payment struct {
	BaseModel
	UserID     *uuid.UUID `gorm:"type:uuid;index"`
	PaymentKey string     `gorm:"uniqueIndex;not null"`
	OrderID    string     `gorm:"uniqueIndex;not null"`
	Amount     int64      `gorm:"not null"`
	Status     string     `gorm:"not null"`
	Method     string
	ApprovedAt *time.Time

	// Raw processor payload.
	Receipt datatypes.JSON
}
