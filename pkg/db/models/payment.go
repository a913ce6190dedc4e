package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// Payment is the append-mostly ledger record of a successful charge,
// decoupled from the PaymentIntent lifecycle so report queries never touch
// transactional state. Deduplicated by (provider, provider_payment_id).
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Plan              enums.Plan          `gorm:"column:plan;type:text;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Provider          enums.Provider      `gorm:"column:provider;type:text;not null;uniqueIndex:ux_payments_provider_payment_id"`
	ProviderPaymentID *string             `gorm:"column:provider_payment_id;uniqueIndex:ux_payments_provider_payment_id"`
	PayerEmail        *string             `gorm:"column:payer_email"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'paid'"`
	PaidAt            time.Time           `gorm:"column:paid_at;not null"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
}
