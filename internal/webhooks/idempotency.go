package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabrielmoura/cineprime-backend/pkg/redis"
)

// FastGuard is the redis SetNX dedup fast path in front of the durable
// ledger checks. It is best-effort: a miss here only costs a little extra
// work in the pipeline, the database remains the authority.
type FastGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewFastGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*FastGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &FastGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark claims the event id. It returns true when another delivery
// already holds the claim.
func (g *FastGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release drops the claim so the provider's redelivery can retry after a
// processing failure.
func (g *FastGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	return g.store.Del(ctx, key)
}
