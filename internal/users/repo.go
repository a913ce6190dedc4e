package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

// Repository exposes the user directory surface the payment pipeline needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateEntitlement(ctx context.Context, userID uuid.UUID, update EntitlementUpdate) error
}

// EntitlementUpdate carries the premium fields only the entitlement
// activator is allowed to mutate.
type EntitlementUpdate struct {
	Premium       bool
	PaymentStatus enums.PaymentStatus
	PaymentDate   time.Time
	ExpireDate    time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a user repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", email).
		First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdateEntitlement(ctx context.Context, userID uuid.UUID, update EntitlementUpdate) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"premium":        update.Premium,
			"payment_status": update.PaymentStatus,
			"payment_date":   update.PaymentDate,
			"expire_date":    update.ExpireDate,
		}).Error
}
