package entitlement

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gabrielmoura/cineprime-backend/internal/ledger"
	"github.com/gabrielmoura/cineprime-backend/internal/payments"
	"github.com/gabrielmoura/cineprime-backend/internal/providers"
	"github.com/gabrielmoura/cineprime-backend/internal/users"
	"github.com/gabrielmoura/cineprime-backend/pkg/db/models"
	"github.com/gabrielmoura/cineprime-backend/pkg/enums"
)

func setupActivationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	// A single pooled connection serializes the two transactions the way
	// row locks would on postgres.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := `
CREATE TABLE IF NOT EXISTS payment_intents (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  provider TEXT NOT NULL,
  provider_payment_id TEXT,
  provider_ref TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  provider TEXT NOT NULL,
  provider_payment_id TEXT,
  payer_email TEXT,
  status TEXT NOT NULL DEFAULT 'paid',
  paid_at DATETIME NOT NULL,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_provider_payment_id
  ON payments (provider, provider_payment_id)
  WHERE provider_payment_id IS NOT NULL;
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  premium INTEGER NOT NULL DEFAULT 0,
  expire_date DATETIME,
  payment_status TEXT,
  payment_date DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, gdb.Exec(schema).Error)
	return gdb
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestActivateConcurrentDeliveriesSingleLedgerRow(t *testing.T) {
	gdb := setupActivationTestDB(t)
	ctx := context.Background()

	intentRepo := payments.NewRepository(gdb)
	ledgerRepo := ledger.NewRepository(gdb)
	userRepo := users.NewRepository(gdb)

	user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Name: "Maria"}
	require.NoError(t, gdb.Create(user).Error)

	intent := &models.PaymentIntent{
		ID:       uuid.New(),
		UserID:   user.ID,
		Plan:     enums.PlanMonthly,
		Amount:   decimal.RequireFromString("19.90"),
		Status:   enums.PaymentStatusPending,
		Provider: enums.ProviderPushinPay,
	}
	require.NoError(t, intentRepo.Create(ctx, intent))

	activator, err := NewActivator(ActivatorParams{
		TxRunner:   gormTxRunner{db: gdb},
		IntentRepo: intentRepo,
		LedgerRepo: ledgerRepo,
		UserRepo:   userRepo,
	})
	require.NoError(t, err)

	event := &providers.PaymentEvent{
		Provider:   enums.ProviderPushinPay,
		ExternalID: uuid.NewString(),
		Status:     enums.EventStatusApproved,
		Amount:     decimal.RequireFromString("19.90"),
	}

	// Both deliveries observe the same pending intent, as two concurrent
	// webhook callers would.
	results := make([]*Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			copied := *intent
			results[i], errs[i] = activator.Activate(ctx, &copied, event)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	activations := 0
	for _, res := range results {
		require.NotNil(t, res)
		if res.Activated {
			activations++
		}
	}
	assert.Equal(t, 1, activations, "exactly one delivery applies the payment")

	var ledgerRows int64
	require.NoError(t, gdb.Model(&models.Payment{}).Where("user_id = ?", user.ID).Count(&ledgerRows).Error)
	assert.EqualValues(t, 1, ledgerRows)

	found, err := intentRepo.FindByID(ctx, intent.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.PaymentStatusPaid, found.Status)
}
