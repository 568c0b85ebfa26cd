package lazy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JianLoong/spannerflux/internal/exec"
)

func TestDoneResolvesImmediately(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	v := Done(42)
	got, err := Run(context.Background(), pool, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestFailedResolvesWithError(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	want := errors.New("boom")
	_, err := Run(context.Background(), pool, Failed[int](want))
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestValueIsColdUntilSubscribed(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	var invoked atomic.Bool
	v := NewValue(func(ctx context.Context) (int, error) {
		invoked.Store(true)
		return 1, nil
	})

	time.Sleep(10 * time.Millisecond)
	if invoked.Load() {
		t.Fatal("supplier ran before Subscribe was called")
	}
	if _, err := Run(context.Background(), pool, v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !invoked.Load() {
		t.Error("supplier never ran after Subscribe")
	}
}

func TestCacheRunsSupplierOnce(t *testing.T) {
	pool := exec.New(2)
	defer pool.Shutdown()

	var calls atomic.Int32
	v := NewValue(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	}).Cache()

	for i := 0; i < 3; i++ {
		got, err := Run(context.Background(), pool, v)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 7 {
			t.Errorf("expected 7, got %d", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected supplier invoked once, got %d", calls.Load())
	}
}

func TestSubscribeCancelStopsAwait(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	started := make(chan struct{})
	v := NewValue(func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	sub := v.Subscribe(context.Background(), pool)
	<-started
	sub.Cancel()

	_, err := sub.Await(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestForceRunsOnCallingGoroutineWithoutPool(t *testing.T) {
	v := NewValue(func(ctx context.Context) (int, error) { return 9, nil })
	got, err := Force(context.Background(), v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 9 {
		t.Errorf("expected 9, got %d", got)
	}
}

func TestSubscribeAfterShutdownResolvesWithErrPoolClosed(t *testing.T) {
	pool := exec.New(1)
	pool.Shutdown()

	v := NewValue(func(ctx context.Context) (int, error) {
		t.Error("supplier ran on a shut-down pool")
		return 0, nil
	})
	_, err := Run(context.Background(), pool, v)
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}

	// A resolved value carries no work, so it still completes after
	// shutdown.
	got, err := Run(context.Background(), pool, Done(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}
