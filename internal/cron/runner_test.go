package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEmptySpecIsNoop(t *testing.T) {
	r := New(nil, context.Background())
	ok, err := r.Add("warmup", "  ", func(context.Context) {})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestAddRejectsBadSpec(t *testing.T) {
	r := New(nil, context.Background())
	_, err := r.Add("warmup", "every ten minutes", func(context.Context) {})
	assert.Error(t, err)
}

func TestRunsJobWithBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	r := New(nil, base)

	var runs atomic.Int32
	var sawBase atomic.Bool
	ok, err := r.Add("warmup", "@every 1s", func(ctx context.Context) {
		sawBase.Store(ctx.Value(key{}) == "base")
		runs.Add(1)
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, r.Len())

	r.Start()
	defer r.Stop()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.True(t, sawBase.Load())
}

func TestSecondsFieldIsOptional(t *testing.T) {
	r := New(nil, context.Background())
	_, err := r.Add("five-field", "*/5 * * * *", func(context.Context) {})
	require.NoError(t, err)
	_, err = r.Add("six-field", "0 */5 * * * *", func(context.Context) {})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}
