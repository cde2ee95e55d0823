package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicekwell/easyweb3-sentiment/internal/apperr"
)

// flakyStore fails the first failures calls of every operation.
type flakyStore struct {
	*MemoryStore
	failures int32
	calls    atomic.Int32
}

var errFlaky = errors.New("connection reset")

func (f *flakyStore) fail() error {
	if f.calls.Add(1) <= f.failures {
		return errFlaky
	}
	return nil
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.fail(); err != nil {
		return nil, false, err
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.MemoryStore.Set(ctx, key, v, ttl)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.MemoryStore.Delete(ctx, key)
}

func fastRetry() RetryOptions {
	return RetryOptions{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetryStoreRecoversWithinBudget(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	s := NewRetryStore(inner, fastRetry(), nil)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, int32(3), inner.calls.Load())

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(v))
}

func TestRetryStoreExhaustionIsStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100}
	s := NewRetryStore(inner, fastRetry(), nil)

	_, _, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStorageUnavailable))
	assert.True(t, errors.Is(err, errFlaky))
	assert.Equal(t, int32(3), inner.calls.Load())

	err = s.Delete(ctx, "k")
	assert.True(t, errors.Is(err, apperr.ErrStorageUnavailable))
}

func TestRetryStoreDoesNotRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inner := &flakyStore{MemoryStore: NewMemoryStore()}
	s := NewRetryStore(inner, fastRetry(), nil)

	err := s.Set(ctx, "k", []byte("v"), 0)
	require.Error(t, err)
	assert.LessOrEqual(t, inner.calls.Load(), int32(1))
}

func TestLinearBackOffIsCapped(t *testing.T) {
	b := &linearBackOff{base: 50 * time.Millisecond, max: time.Second}
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	for i := 0; i < 30; i++ {
		b.NextBackOff()
	}
	assert.Equal(t, time.Second, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 50*time.Millisecond, b.NextBackOff())
}

func TestHealthCheck(t *testing.T) {
	s := NewRetryStore(NewMemoryStore(), fastRetry(), nil)
	require.NoError(t, s.HealthCheck(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.HealthCheck(ctx)
	assert.True(t, errors.Is(err, apperr.ErrStorageUnavailable))
}
