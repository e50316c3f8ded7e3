package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute, time.Minute, nil, zap.NewNop())

	cb.RecordFailure(0)
	assert.True(t, cb.CanExecute())

	cb.RecordFailure(0)
	assert.False(t, cb.CanExecute())

	status := cb.Status()
	assert.Equal(t, CircuitStateOpen, status.State)
	require.NotNil(t, status.NextRetryTime)
}

func TestCircuitBreakerHalfOpensAfterTimeout(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", 1, 30*time.Second, time.Minute, nil, zap.NewNop())
	cb.now = func() time.Time { return now }

	cb.RecordFailure(0)
	assert.Equal(t, CircuitStateOpen, cb.State())

	now = now.Add(31 * time.Second)
	assert.Equal(t, CircuitStateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, CircuitStateClosed, cb.State())
	assert.Equal(t, 0, cb.Status().FailureCount)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", 1, time.Second, time.Minute, nil, zap.NewNop())
	cb.now = func() time.Time { return now }

	cb.RecordFailure(0)
	now = now.Add(2 * time.Second)
	require.Equal(t, CircuitStateHalfOpen, cb.State())

	cb.RecordFailure(0)
	assert.Equal(t, CircuitStateOpen, cb.Status().State)
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute, time.Minute, nil, zap.NewNop())
	cb.RecordFailure(0)
	cb.RecordFailure(0)
	cb.RecordSuccess()
	cb.RecordFailure(0)

	assert.True(t, cb.CanExecute())
	assert.Equal(t, 1, cb.Status().FailureCount)
}
