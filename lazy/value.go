// Package lazy implements the two bridges at the bottom of the
// adapter: a cold, cancellable single-value producer (Value[T]) and a
// cold, cancellable row producer (Sequence[T]).
//
// Both are cold: the wrapped work does not start until Subscribe is
// called, and both propagate consumer cancellation back to the
// context passed to the wrapped work, the same way cancelling a
// Reactor Mono/Flux calls cancel(mayInterruptIfRunning=true) on the
// underlying ApiFuture.
package lazy

import (
	"context"
	"errors"
	"sync"

	"github.com/JianLoong/spannerflux/internal/exec"
)

// ErrPoolClosed terminates a subscription made after the worker pool
// was shut down. Without it the subscription would never resolve,
// since nothing is left to run the supplier.
var ErrPoolClosed = errors.New("lazy: worker pool is shut down")

// Supplier produces a single T (or an error) given a context that is
// cancelled if the subscriber cancels.
type Supplier[T any] func(ctx context.Context) (T, error)

// Value is a cold producer of zero-or-one T. Subscribing re-invokes
// the supplier; use Cache to share one execution across subscribers.
type Value[T any] struct {
	supply    Supplier[T]
	immediate bool
}

// NewValue wraps supply as a cold Value. supply is not invoked until
// Subscribe is called.
func NewValue[T any](supply Supplier[T]) *Value[T] {
	return &Value[T]{supply: supply}
}

// Done returns a Value that resolves to v immediately, without
// touching the executor. Used for operations that are synchronous
// no-ops (e.g. commit/rollback on an idle connection).
//
// immediate is set so Subscribe runs supply on the calling goroutine
// instead of dispatching through the pool: a Done value carries no
// real work, and a Done value returned after Close has shut the pool
// down (e.g. a second, idempotent Close) must still resolve with its
// value rather than ErrPoolClosed.
func Done[T any](v T) *Value[T] {
	return &Value[T]{supply: func(context.Context) (T, error) { return v, nil }, immediate: true}
}

// Failed returns a Value that resolves to err immediately. Used to
// surface a state violation that was detected eagerly but still needs
// to flow through a Value-shaped call site.
func Failed[T any](err error) *Value[T] {
	return &Value[T]{supply: func(context.Context) (T, error) {
		var zero T
		return zero, err
	}, immediate: true}
}

// Cache wraps v so that the supplier runs at most once: the first
// subscriber's execution result (value or error) is memoized and
// handed to every later subscriber without re-invoking supply.
func (v *Value[T]) Cache() *Value[T] {
	var (
		once   sync.Once
		result T
		err    error
	)
	return NewValue(func(ctx context.Context) (T, error) {
		once.Do(func() {
			result, err = v.supply(ctx)
		})
		return result, err
	})
}

// Subscription is a cancellable handle to one in-flight execution of a
// Value's supplier.
type Subscription[T any] struct {
	done   chan struct{}
	result T
	err    error
	cancel context.CancelFunc
}

// Subscribe invokes supply, dispatched on the adapter's worker pool.
// The returned Subscription's Cancel cancels the context handed to
// supply, so a Supplier that threads ctx through to a Spanner RPC is
// aborted the way cancelling a future with interruption enabled would
// abort it.
func (v *Value[T]) Subscribe(ctx context.Context, pool *exec.Pool) *Subscription[T] {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{done: make(chan struct{}), cancel: cancel}
	if v.immediate {
		sub.result, sub.err = v.supply(subCtx)
		close(sub.done)
		return sub
	}
	if !pool.Go(func() {
		defer close(sub.done)
		sub.result, sub.err = v.supply(subCtx)
	}) {
		sub.err = ErrPoolClosed
		close(sub.done)
	}
	return sub
}

// Await blocks until the subscription resolves or ctx is done,
// whichever happens first.
func (s *Subscription[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel requests cancellation of the in-flight execution. Best
// effort: the caller may not assume the underlying work actually
// stopped, only that Await will not block forever.
func (s *Subscription[T]) Cancel() { s.cancel() }

// Run is a convenience that subscribes and awaits in one call, the
// common case for operations that have no reason to let the caller
// hold a cancellable handle open (close, commit, ddl).
func Run[T any](ctx context.Context, pool *exec.Pool, v *Value[T]) (T, error) {
	return v.Subscribe(ctx, pool).Await(ctx)
}

// Force runs v's supplier in the calling goroutine, without going
// through a worker pool. Composite operations (SetAutoCommit
// committing the in-progress transaction before flipping the flag)
// use this to invoke another component's Value from inside a supplier
// that is already running on the pool. Dispatching through pool.Go a
// second time would consume a second worker-pool slot for work that
// is logically part of the same unit, which can deadlock a small
// pool.
func Force[T any](ctx context.Context, v *Value[T]) (T, error) {
	return v.supply(ctx)
}
