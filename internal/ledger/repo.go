package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// Repository manages the append-mostly ledger of completed charges.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	ExistsByProviderPaymentID(ctx context.Context, provider enums.Provider, providerPaymentID string) (bool, error)
	ExistsInWindow(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, plan enums.Plan, around time.Time, window time.Duration) (bool, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ExistsByProviderPaymentID(ctx context.Context, provider enums.Provider, providerPaymentID string) (bool, error) {
	if providerPaymentID == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsInWindow reports whether a paid ledger row without a recorded
// provider id exists for the same user, amount and plan inside the dedup
// window. It absorbs providers that omit a stable id on retry.
func (r *repository) ExistsInWindow(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, plan enums.Plan, around time.Time, window time.Duration) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("user_id = ? AND plan = ? AND status = ?", userID, plan, enums.PaymentStatusPaid).
		Where("amount = ?", amount).
		Where("provider_payment_id IS NULL").
		Where("paid_at BETWEEN ? AND ?", around.Add(-window), around.Add(window)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("paid_at DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
