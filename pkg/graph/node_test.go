package graph

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/avi3tal/flowgraph/pkg/state"
)

func TestWithNodeRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		attempts := 0
		fn := WithNodeRetry(func(_ context.Context, _ state.State) (*NodeResult, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}
			return &NodeResult{Update: state.State{"ok": true}}, nil
		}, 3, time.Millisecond)

		res, err := fn(context.Background(), state.State{})
		require.NoError(t, err)
		require.Equal(t, true, res.Update["ok"])
		require.Equal(t, 3, attempts)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("persistent")
		attempts := 0
		fn := WithNodeRetry(func(_ context.Context, _ state.State) (*NodeResult, error) {
			attempts++
			return nil, boom
		}, 2, time.Millisecond)

		_, err := fn(context.Background(), state.State{})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 2, attempts)
	})

	t.Run("stops on cancellation between attempts", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		fn := WithNodeRetry(func(_ context.Context, _ state.State) (*NodeResult, error) {
			cancel()
			return nil, errors.New("transient")
		}, 5, time.Minute)

		_, err := fn(ctx, state.State{})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("each attempt gets its own state clone", func(t *testing.T) {
		t.Parallel()

		fn := WithNodeRetry(func(_ context.Context, s state.State) (*NodeResult, error) {
			if _, dirty := s["dirty"]; dirty {
				return nil, errors.New("observed earlier attempt's write")
			}
			s["dirty"] = true
			return nil, errors.New("transient")
		}, 3, time.Millisecond)

		_, err := fn(context.Background(), state.State{})
		require.EqualError(t, err, "transient")
	})
}
