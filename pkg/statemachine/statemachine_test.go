package statemachine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/statemachine"
)

type name string

func (n name) Name() string { return string(n) }

const (
	pending    = name("pending")
	processing = name("processing")
	sent       = name("sent")
	failed     = name("failed")

	claim   = name("claim")
	deliver = name("deliver")
	fail    = name("fail")
)

func TestTableNext(t *testing.T) {
	t.Parallel()

	table := statemachine.MustNew(
		statemachine.WithTransition(pending, processing, claim),
		statemachine.WithTransition(processing, sent, deliver),
		statemachine.WithTransition(processing, failed, fail),
	)
	ctx := context.Background()

	t.Run("defined transition", func(t *testing.T) {
		t.Parallel()
		next, err := table.Next(ctx, pending, claim, nil)
		require.NoError(t, err)
		assert.Equal(t, statemachine.State(processing), next)
	})

	t.Run("undefined event", func(t *testing.T) {
		t.Parallel()
		_, err := table.Next(ctx, pending, deliver, nil)
		var noTransition *statemachine.NoTransitionError
		require.ErrorAs(t, err, &noTransition)
		assert.Equal(t, "pending", noTransition.From)
		assert.Equal(t, "deliver", noTransition.Event)
		assert.False(t, statemachine.IsTransitionRejectedError(err))
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()
		_, err := table.Next(ctx, sent, claim, nil)
		var noTransition *statemachine.NoTransitionError
		assert.ErrorAs(t, err, &noTransition)
	})

	t.Run("nil arguments", func(t *testing.T) {
		t.Parallel()
		_, err := table.Next(ctx, nil, claim, nil)
		assert.ErrorIs(t, err, statemachine.ErrInvalidEvent)
		_, err = table.Next(ctx, pending, nil, nil)
		assert.ErrorIs(t, err, statemachine.ErrInvalidEvent)
	})

	t.Run("table does not hold state", func(t *testing.T) {
		t.Parallel()
		_, err := table.Next(ctx, pending, claim, nil)
		require.NoError(t, err)
		next, err := table.Next(ctx, pending, claim, nil)
		require.NoError(t, err)
		assert.Equal(t, statemachine.State(processing), next)
	})
}

func TestTableGuards(t *testing.T) {
	t.Parallel()

	stale := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		v, ok := data.(bool)
		return ok && v
	}
	table := statemachine.MustNew(
		statemachine.WithTransition(processing, processing, claim, stale),
		statemachine.WithTransition(pending, processing, claim),
	)
	ctx := context.Background()

	next, err := table.Next(ctx, processing, claim, true)
	require.NoError(t, err)
	assert.Equal(t, statemachine.State(processing), next)

	_, err = table.Next(ctx, processing, claim, false)
	require.Error(t, err)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
	assert.Contains(t, err.Error(), "processing")

	assert.True(t, table.CanFire(ctx, processing, claim, true))
	assert.False(t, table.CanFire(ctx, processing, claim, nil))
}

func TestTableGuardOrder(t *testing.T) {
	t.Parallel()

	high := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		n, _ := data.(int)
		return n > 10
	}
	table := statemachine.MustNew(
		statemachine.WithTransition(processing, failed, fail, high),
		statemachine.WithTransition(processing, pending, fail),
	)
	ctx := context.Background()

	next, err := table.Next(ctx, processing, fail, 11)
	require.NoError(t, err)
	assert.Equal(t, statemachine.State(failed), next)

	next, err = table.Next(ctx, processing, fail, 1)
	require.NoError(t, err)
	assert.Equal(t, statemachine.State(pending), next)
}

func TestTableConstruction(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(statemachine.WithTransition(nil, sent, deliver))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(
		statemachine.WithTransition(pending, processing, claim),
		statemachine.WithTransition(pending, nil, claim),
	)
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(statemachine.WithTransition(pending, sent, nil))
	})
}
