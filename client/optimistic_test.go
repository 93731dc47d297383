package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/actionkit/action"
	akerrors "github.com/c360/actionkit/errors"
)

func appendTransform(input, current any) any {
	items, _ := current.([]any)
	out := make([]any, len(items), len(items)+1)
	copy(out, items)
	return append(out, input)
}

func TestOptimisticViewPublishedBeforeTransport(t *testing.T) {
	release := make(chan struct{})
	transport := &fakeTransport{
		doFn: func(_ context.Context, _, _ string, _ any) (*action.Result, error) {
			<-release
			return action.Ok([]any{"server-truth"}), nil
		},
	}
	opt, err := NewOptimistic(OptimisticOptions{
		Options: Options{Path: "/todos", Transport: transport},
		Current: func() any { return []any{"existing"} },
		Apply:   appendTransform,
	})
	require.NoError(t, err)

	call := opt.Execute(context.Background(), "new-item")

	// The transformed view is visible before the transport settles.
	assert.Equal(t, []any{"existing", "new-item"}, opt.Value().Get())

	close(release)
	res := call.Result()
	require.True(t, res.OK)
	waitFor(t, func() bool {
		value, _ := opt.Value().Get().([]any)
		return len(value) == 1 && value[0] == "server-truth"
	})
}

func TestRollbackOnFailure(t *testing.T) {
	transport := &fakeTransport{
		doFn: func(context.Context, string, string, any) (*action.Result, error) {
			return action.Fail(akerrors.Validation(nil)), nil
		},
	}
	opt, err := NewOptimistic(OptimisticOptions{
		Options: Options{Path: "/todos", Transport: transport},
		Current: func() any { return []any{"existing"} },
		Apply:   appendTransform,
	})
	require.NoError(t, err)

	res := opt.Execute(context.Background(), "doomed").Result()
	require.False(t, res.OK)

	waitFor(t, func() bool {
		value, _ := opt.Value().Get().([]any)
		return len(value) == 1 && value[0] == "existing"
	})
}

func TestNoRollbackWhenSuperseded(t *testing.T) {
	gates := map[any]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	transport := &fakeTransport{
		doFn: func(_ context.Context, _, _ string, input any) (*action.Result, error) {
			<-gates[input]
			if input == "first" {
				return action.Fail(akerrors.Validation(nil)), nil
			}
			return action.Ok([]any{"second-truth"}), nil
		},
	}
	opt, err := NewOptimistic(OptimisticOptions{
		Options: Options{Path: "/todos", Transport: transport},
		Apply:   appendTransform,
	})
	require.NoError(t, err)

	first := opt.Execute(context.Background(), "first")
	second := opt.Execute(context.Background(), "second")

	// First fails after the second call began; its rollback must not
	// clobber the newer call's view.
	close(gates["first"])
	firstRes := first.Result()
	require.False(t, firstRes.OK)

	close(gates["second"])
	secondRes := second.Result()
	require.True(t, secondRes.OK)

	waitFor(t, func() bool {
		value, _ := opt.Value().Get().([]any)
		return len(value) == 1 && value[0] == "second-truth"
	})
}

func TestAbortLeavesOptimisticViewAlone(t *testing.T) {
	transport := &fakeTransport{
		doFn: func(ctx context.Context, _, _ string, _ any) (*action.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	opt, err := NewOptimistic(OptimisticOptions{
		Options: Options{Path: "/todos", Transport: transport},
		Apply:   appendTransform,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	call := opt.Execute(ctx, "kept")
	cancel()

	res := call.Result()
	assert.Equal(t, akerrors.CodeAbort, res.Error.Code)
	assert.Equal(t, []any{"kept"}, opt.Value().Get(), "abort neither commits nor rolls back")
}

func TestSnapshotIsDeepClone(t *testing.T) {
	baseline := []any{map[string]any{"id": float64(1)}}
	transport := &fakeTransport{
		doFn: func(context.Context, string, string, any) (*action.Result, error) {
			return action.Fail(akerrors.Validation(nil)), nil
		},
	}
	opt, err := NewOptimistic(OptimisticOptions{
		Options: Options{Path: "/todos", Transport: transport},
		Current: func() any { return baseline },
		Apply: func(_, current any) any {
			// Mutates the shared nested map; the snapshot must not see it.
			items := current.([]any)
			items[0].(map[string]any)["id"] = float64(99)
			return items
		},
	})
	require.NoError(t, err)

	opt.Execute(context.Background(), nil).Result()

	waitFor(t, func() bool {
		value, ok := opt.Value().Get().([]any)
		if !ok || len(value) != 1 {
			return false
		}
		fields, ok := value[0].(map[string]any)
		return ok && fields["id"] == float64(1)
	})
}

func TestOptimisticRequiresApply(t *testing.T) {
	_, err := NewOptimistic(OptimisticOptions{
		Options: Options{Path: "/x", Transport: echoTransport()},
	})
	assert.Error(t, err)
}
