package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/interlock/internal/errkind"
)

func TestDoPassesThroughSuccess(t *testing.T) {
	b := New(DefaultConfig("store"))
	result, err := b.Do(context.Background(), func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestDoClassifiesFailureAsInfrastructure(t *testing.T) {
	b := New(DefaultConfig("store"))
	base := errors.New("connection refused")
	_, err := b.Do(context.Background(), func(context.Context) (any, error) {
		return nil, base
	})
	require.Error(t, err)
	assert.Equal(t, errkind.Infrastructure, errkind.ClassOf(err))
	assert.ErrorIs(t, err, base)
}

func TestBreakerTripsOpenAfterRepeatedFailures(t *testing.T) {
	cfg := DefaultConfig("store")
	cfg.MaxRequests = 1
	cfg.Timeout = time.Minute
	cfg.FailureThreshold = 0.5
	b := New(cfg)

	failing := func(context.Context) (any, error) {
		return nil, errors.New("boom")
	}
	for i := 0; i < 3; i++ {
		_, _ = b.Do(context.Background(), failing)
	}

	// The breaker should now be open: it fails fast without calling fn.
	called := false
	_, err := b.Do(context.Background(), func(context.Context) (any, error) {
		called = true
		return "unreached", nil
	})
	require.Error(t, err)
	assert.False(t, called, "open breaker must short-circuit without invoking fn")
	assert.Equal(t, errkind.Infrastructure, errkind.ClassOf(err))
}
