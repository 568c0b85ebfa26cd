// Package result implements the Result handle: a rows-updated count
// paired with an optional row sequence. The count is cached and
// replayable; the rows may be consumed at most once.
package result

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/JianLoong/spannerflux/internal/exec"
	"github.com/JianLoong/spannerflux/lazy"
	"github.com/JianLoong/spannerflux/row"
)

// ErrAlreadyConsumed is returned by Rows when the row sequence has
// already been subscribed to once. Rejecting the second subscription
// keeps a Result from silently re-running its query against a
// different snapshot.
var ErrAlreadyConsumed = errors.New("result: row sequence already consumed")

// Result pairs a cached rows-updated value with an at-most-once row
// sequence. rowsUpdated is 0 for SELECT; absent rows means pure DML.
type Result struct {
	rowsUpdated *lazy.Value[int64]
	rows        *lazy.Sequence[*row.Row]
	meta        row.Metadata
	consumed    atomic.Bool
}

// New builds a Result. rowsUpdated is cached internally (New.Cache),
// so every caller of RowsUpdated observes the same value regardless of
// how many times they call it.
func New(rowsUpdated *lazy.Value[int64], rows *lazy.Sequence[*row.Row], meta row.Metadata) *Result {
	return &Result{rowsUpdated: rowsUpdated.Cache(), rows: rows, meta: meta}
}

// DML builds a Result for a statement that produced no rows.
func DML(rowsUpdated *lazy.Value[int64]) *Result {
	return New(rowsUpdated, nil, row.Metadata{})
}

// RowsUpdated resolves the cached rows-updated count.
func (r *Result) RowsUpdated(ctx context.Context, pool *exec.Pool) (int64, error) {
	return lazy.Run(ctx, pool, r.rowsUpdated)
}

// HasRows reports whether this Result carries a row sequence at all
// (false for pure DML).
func (r *Result) HasRows() bool { return r.rows != nil }

// RowsUpdatedValue returns the cached rows-updated Value this Result
// was built with. Intended for a caller (the connection adapter) that
// builds one Result per statement execution purely to get the
// pairing's caching guarantee, then immediately forwards the cached
// Value through its own narrower public API instead of resolving it
// here via RowsUpdated.
func (r *Result) RowsUpdatedValue() *lazy.Value[int64] { return r.rowsUpdated }

// RowSequence returns the row sequence this Result pairs rowsUpdated
// with, bypassing the at-most-once guard Rows and Map enforce. Only
// safe for a caller that owns this Result exclusively and re-exposes
// the sequence through its own cold, independently re-subscribable
// API. RunSelectStatement is the only caller, and it discards the
// Result immediately after extracting the sequence.
func (r *Result) RowSequence() *lazy.Sequence[*row.Row] { return r.rows }

// Rows subscribes to the row sequence. It may be called at most once;
// a second call returns ErrAlreadyConsumed. Calling it on a DML-only
// Result yields an empty sequence, mirroring Map.
func (r *Result) Rows(ctx context.Context, pool *exec.Pool) (*lazy.Cursor[*row.Row], error) {
	if r.rows == nil {
		return lazy.Empty[*row.Row]().Subscribe(ctx, pool), nil
	}
	if !r.consumed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConsumed
	}
	return r.rows.Subscribe(ctx, pool), nil
}

// Map transforms each row through f, which receives the row and the
// result's column metadata. It shares Rows' one-shot consumption
// rule.
func Map[U any](ctx context.Context, pool *exec.Pool, r *Result, f func(*row.Row, row.Metadata) (U, error)) (*lazy.Sequence[U], error) {
	if r.rows == nil {
		return lazy.Empty[U](), nil
	}
	if !r.consumed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyConsumed
	}
	meta := r.meta
	src := r.rows
	return lazy.NewSequence(func(ctx context.Context, out chan<- lazy.Item[U]) {
		cur := src.Subscribe(ctx, pool)
		defer cur.Cancel()
		for {
			rw, ok, err := cur.Next(ctx)
			if err != nil {
				lazy.PushErr(ctx, out, err)
				return
			}
			if !ok {
				return
			}
			mapped, err := f(rw, meta)
			if err != nil {
				lazy.PushErr(ctx, out, err)
				return
			}
			if !lazy.PushRow(ctx, out, mapped) {
				return
			}
		}
	}), nil
}
