package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fails(msg string) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return 0, errors.New(msg) }
}

func returns(v int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return v, nil }
}

func TestFirstSuccess(t *testing.T) {
	t.Run("first success wins and later strategies never run", func(t *testing.T) {
		ran := false
		v, name, err := FirstSuccess(context.Background(),
			New("a", fails("no match")),
			New("b", returns(2)),
			New("c", func(context.Context) (int, error) {
				ran = true
				return 3, nil
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
		assert.Equal(t, "b", name)
		assert.False(t, ran)
	})

	t.Run("exhaustion reports every attempt", func(t *testing.T) {
		v, name, err := FirstSuccess(context.Background(),
			New("a", fails("no match")),
			New("b", fails("hidden")),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Zero(t, v)
		assert.Empty(t, name)
		assert.Contains(t, err.Error(), "a: no match")
		assert.Contains(t, err.Error(), "b: hidden")
	})

	t.Run("no strategies is exhaustion", func(t *testing.T) {
		_, _, err := FirstSuccess[int](context.Background())
		assert.ErrorIs(t, err, ErrExhausted)
	})

	t.Run("done context stops the cascade", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		_, _, err := FirstSuccess(ctx,
			New("a", func(context.Context) (int, error) {
				cancel()
				return 0, errors.New("boom")
			}),
			New("b", returns(2)),
		)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrExhausted)
	})
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, Names([]Strategy[int]{New("x", returns(1)), New("y", returns(2))}))
}
