package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// Repository manages persistence for payment intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByProviderPaymentID(ctx context.Context, provider enums.Provider, providerPaymentID string) (*models.PaymentIntent, error)
	FindLatestPendingByUser(ctx context.Context, userID uuid.UUID, provider enums.Provider) (*models.PaymentIntent, error)
	AttachProviderPaymentID(ctx context.Context, id uuid.UUID, providerPaymentID string) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, providerPaymentID *string) (bool, error)
	MarkTerminal(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// FindByProviderPaymentID returns the intent already linked to the provider
// transaction id. When several match, the most recently updated one is
// authoritative.
func (r *repository) FindByProviderPaymentID(ctx context.Context, provider enums.Provider, providerPaymentID string) (*models.PaymentIntent, error) {
	if providerPaymentID == "" {
		return nil, nil
	}
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_payment_id = ?", provider, providerPaymentID).
		Order("updated_at DESC").
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// FindLatestPendingByUser returns the user's most recently updated pending
// intent for the provider, or nil when none is open.
func (r *repository) FindLatestPendingByUser(ctx context.Context, userID uuid.UUID, provider enums.Provider) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND status = ?", userID, provider, enums.PaymentStatusPending).
		Order("updated_at DESC").
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// AttachProviderPaymentID links the provider-assigned transaction id to a
// pending intent right after session creation, so the webhook that follows
// can match on it. Returns false when the intent is missing or already
// left the pending state.
func (r *repository) AttachProviderPaymentID(ctx context.Context, id uuid.UUID, providerPaymentID string) (bool, error) {
	if providerPaymentID == "" {
		return false, gorm.ErrInvalidData
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Update("provider_payment_id", providerPaymentID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPaid transitions the intent to paid with a single conditional update
// so concurrent duplicates lose the race cleanly. Returns false when another
// delivery already won.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, providerPaymentID *string) (bool, error) {
	updates := map[string]any{"status": enums.PaymentStatusPaid}
	if providerPaymentID != nil && *providerPaymentID != "" {
		updates["provider_payment_id"] = *providerPaymentID
	}

	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status <> ?", id, enums.PaymentStatusPaid).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkTerminal moves a pending intent to failed or cancelled. Paid and
// already-terminal intents are left untouched.
func (r *repository) MarkTerminal(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) (bool, error) {
	if status != enums.PaymentStatusFailed && status != enums.PaymentStatusCancelled {
		return false, gorm.ErrInvalidData
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
