package result

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/JianLoong/spannerflux/internal/exec"
	"github.com/JianLoong/spannerflux/lazy"
	"github.com/JianLoong/spannerflux/row"
)

func TestDMLResultHasNoRows(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	r := DML(lazy.Done(int64(5)))
	if r.HasRows() {
		t.Fatal("DML result should not carry rows")
	}
	n, err := r.RowsUpdated(context.Background(), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5, got %d", n)
	}

	cur, err := r.Rows(context.Background(), pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := cur.Next(context.Background()); ok {
		t.Error("expected DML result's Rows to yield nothing")
	}
}

func TestRowsUpdatedIsCachedAcrossCalls(t *testing.T) {
	pool := exec.New(2)
	defer pool.Shutdown()

	var calls atomic.Int32
	r := DML(lazy.NewValue(func(ctx context.Context) (int64, error) {
		calls.Add(1)
		return 3, nil
	}))

	for i := 0; i < 3; i++ {
		if _, err := r.RowsUpdated(context.Background(), pool); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected rowsUpdated supplier invoked once, got %d", calls.Load())
	}
}

func TestRowsIsOneShot(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	rows := lazy.NewSequence(func(ctx context.Context, out chan<- lazy.Item[*row.Row]) {})
	r := New(lazy.Done(int64(0)), rows, row.Metadata{})

	if _, err := r.Rows(context.Background(), pool); err != nil {
		t.Fatalf("unexpected error on first Rows call: %v", err)
	}
	if _, err := r.Rows(context.Background(), pool); err != ErrAlreadyConsumed {
		t.Errorf("expected ErrAlreadyConsumed on second call, got %v", err)
	}
}

func TestMapTransformsRowsOnce(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	rows := lazy.NewSequence(func(ctx context.Context, out chan<- lazy.Item[*row.Row]) {
		lazy.PushRow(ctx, out, (*row.Row)(nil))
	})
	meta := row.MetadataFromFields([]string{"id"})
	r := New(lazy.Done(int64(0)), rows, meta)

	seq, err := Map(context.Background(), pool, r, func(rw *row.Row, m row.Metadata) (string, error) {
		return m.ColumnNames[0], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := lazy.Collect(context.Background(), pool, seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "id" {
		t.Errorf("unexpected mapped rows: %v", got)
	}

	if _, err := Map(context.Background(), pool, r, func(*row.Row, row.Metadata) (string, error) { return "", nil }); err != ErrAlreadyConsumed {
		t.Errorf("expected ErrAlreadyConsumed on second Map, got %v", err)
	}
}

func TestMapOnDMLResultYieldsEmptySequence(t *testing.T) {
	pool := exec.New(1)
	defer pool.Shutdown()

	r := DML(lazy.Done(int64(1)))
	seq, err := Map(context.Background(), pool, r, func(*row.Row, row.Metadata) (int, error) { return 0, nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := lazy.Collect(context.Background(), pool, seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no mapped rows, got %v", got)
	}
}
