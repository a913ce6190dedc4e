package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// User represents the canonical identity entity. The premium entitlement
// fields are mutated exclusively by the entitlement activator.
type User struct {
	ID            uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string               `gorm:"type:text;not null;uniqueIndex"`
	Name          string               `gorm:"column:name;not null"`
	Premium       bool                 `gorm:"column:premium;not null;default:false"`
	ExpireDate    *time.Time           `gorm:"column:expire_date"`
	PaymentStatus *enums.PaymentStatus `gorm:"column:payment_status;type:text"`
	PaymentDate   *time.Time           `gorm:"column:payment_date"`
	IsActive      bool                 `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
