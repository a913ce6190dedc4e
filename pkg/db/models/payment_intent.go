package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// PaymentIntent records one checkout attempt and is the reconciliation
// source of truth. Status is monotonic: once paid, no further transition.
type PaymentIntent struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Plan              enums.Plan          `gorm:"column:plan;type:text;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Provider          enums.Provider      `gorm:"column:provider;type:text;not null"`
	ProviderPaymentID *string             `gorm:"column:provider_payment_id;index"`
	ProviderRef       *string             `gorm:"column:provider_ref"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
