package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bank_ledger/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) Release(context.Context, string) error { return nil }

func TestMemoryStore_ClaimOnce(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "k"))
	ok, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_ClaimExpires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	ok, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_Claim(t *testing.T) {
	guard := NewGuard(NewMemoryStore(time.Minute), time.Minute)
	ctx := context.Background()

	release, err := guard.Claim(ctx, "deposit", 1, "abc")
	require.NoError(t, err)
	require.NotNil(t, release)

	_, err = guard.Claim(ctx, "deposit", 1, "abc")
	assert.ErrorIs(t, err, common.ErrDuplicateRequest)

	// Keys are scoped by operation and account.
	_, err = guard.Claim(ctx, "withdraw", 1, "abc")
	assert.NoError(t, err)
	_, err = guard.Claim(ctx, "deposit", 2, "abc")
	assert.NoError(t, err)

	release()
	_, err = guard.Claim(ctx, "deposit", 1, "abc")
	assert.NoError(t, err, "a released key can be claimed again")
}

func TestGuard_EmptyAndInvalidKeys(t *testing.T) {
	guard := NewGuard(NewMemoryStore(time.Minute), time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		release, err := guard.Claim(ctx, "deposit", 1, "  ")
		require.NoError(t, err)
		release()
	}

	_, err := guard.Claim(ctx, "deposit", 1, strings.Repeat("x", 256))
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestGuard_StoreFailure(t *testing.T) {
	guard := NewGuard(failingStore{}, time.Minute)

	_, err := guard.Claim(context.Background(), "deposit", 1, "abc")
	assert.ErrorIs(t, err, common.ErrServiceUnavailable)
}

func TestGuard_ConcurrentClaimsSingleWinner(t *testing.T) {
	guard := NewGuard(NewMemoryStore(time.Minute), time.Minute)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := guard.Claim(context.Background(), "withdraw", 7, "same"); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
