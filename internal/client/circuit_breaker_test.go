package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, 1, time.Minute, nil)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, cb.Execute(ctx, fail), boom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(ctx, fail), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(1, 2, time.Minute, nil)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(ctx, func(context.Context) error { return errors.New("x") })
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.GetState(), "needs two successes to close")

	_ = cb.Execute(ctx, func(context.Context) error { return errors.New("x") })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	ctx := context.Background()
	clientErr := errors.New("bad request")
	cb := NewCircuitBreaker(1, 1, time.Minute, func(err error) bool { return !errors.Is(err, clientErr) })

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func(context.Context) error { return clientErr }), clientErr)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}
