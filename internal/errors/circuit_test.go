package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("reranker", WithMaxFailures(3))

	for i := 0; i < 3; i++ {
		assert.True(t, cb.Allow())
		cb.RecordFailure()
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker("embedder", WithMaxFailures(2))
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("reranker",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond))

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ExecuteOpenReturnsError(t *testing.T) {
	cb := NewCircuitBreaker("test", WithMaxFailures(1))
	cb.RecordFailure()

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitExecute_FallbackWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", WithMaxFailures(1))
	cb.RecordFailure()

	got, err := CircuitExecute(cb,
		func() ([]int, error) { return []int{1}, nil },
		func() ([]int, error) { return []int{9}, nil })
	require.NoError(t, err)
	assert.Equal(t, []int{9}, got)
}

func TestCircuitExecute_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("test")

	got, err := CircuitExecute(cb,
		func() (string, error) { return "primary", nil },
		func() (string, error) { return "fallback", nil })
	require.NoError(t, err)
	assert.Equal(t, "primary", got)

	_, err = CircuitExecute(cb,
		func() (string, error) { return "", fmt.Errorf("boom") },
		func() (string, error) { return "fallback", nil })
	assert.Error(t, err)
	assert.Equal(t, 1, cb.Failures())
}
