package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError_ClassifiesFromKind(t *testing.T) {
	t.Parallel()

	err := NewError(KindProviderUnavailable, "anthropic unreachable")
	assert.True(t, err.Retryable)
	assert.True(t, err.Escalatable)
	assert.Equal(t, ErrCatProvider, err.Category)

	err = NewError(KindCyclicDependency, "cycle detected")
	assert.False(t, err.Retryable)
	assert.False(t, err.Escalatable)
}

func TestDomainError_WithCauseAndDetail(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewError(KindTimeout, "provider call timed out").
		WithCause(cause).
		WithDetail("task_id", "abc")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "abc", err.Details["task_id"])
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDomainError_Is_MatchesByKind(t *testing.T) {
	t.Parallel()

	a := NewError(KindConflictDetected, "first attempt")
	b := NewError(KindConflictDetected, "second attempt, different message")
	c := NewError(KindTimeout, "unrelated")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsRetryable_And_IsEscalatable(t *testing.T) {
	t.Parallel()

	retryable := NewError(KindRateLimitExceeded, "quota exceeded")
	assert.True(t, IsRetryable(retryable))
	assert.True(t, IsEscalatable(retryable))

	terminal := NewError(KindNoHigherTierAvailable, "already at premium")
	assert.False(t, IsRetryable(terminal))
	assert.False(t, IsEscalatable(terminal))

	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, KindMaxConflictRetries, KindOf(NewError(KindMaxConflictRetries, "x")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
