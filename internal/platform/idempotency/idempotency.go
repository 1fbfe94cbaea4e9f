// Package idempotency reserves client-supplied request keys so a retried
// deposit or withdrawal is applied at most once while its key is held.
package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bank_ledger/internal/common"
)

// HeaderName carries the client's key on mutating requests.
const HeaderName = "Idempotency-Key"

const maxKeyLength = 255

// Store claims keys for a limited time. Claim reports false when the key is
// already held.
type Store interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Guard scopes keys per operation and account and turns store answers into
// domain errors.
type Guard struct {
	store Store
	ttl   time.Duration
}

func NewGuard(store Store, ttl time.Duration) *Guard {
	return &Guard{store: store, ttl: ttl}
}

// Claim reserves key for op on userID. An empty key claims nothing and returns
// a no-op release. A key that is already held yields common.ErrDuplicateRequest.
func (g *Guard) Claim(ctx context.Context, op string, userID int64, key string) (func(), error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return func() {}, nil
	}
	if len(key) > maxKeyLength {
		return nil, fmt.Errorf("%s must be at most %d characters: %w", HeaderName, maxKeyLength, common.ErrBadRequest)
	}

	scoped := fmt.Sprintf("idempotency:%s:%d:%s", op, userID, key)
	ok, err := g.store.Claim(ctx, scoped, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("idempotency store: %v: %w", err, common.ErrServiceUnavailable)
	}
	if !ok {
		return nil, fmt.Errorf("%s %q was already used: %w", HeaderName, key, common.ErrDuplicateRequest)
	}

	release := func() {
		// The request context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = g.store.Release(ctx, scoped)
	}
	return release, nil
}
