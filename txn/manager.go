// Package txn implements the per-connection transaction state
// machine: exactly one of Idle, ReadWrite, or ReadOnly, guarded so
// that violations are rejected before any I/O happens.
package txn

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/spanner"

	"github.com/JianLoong/spannerflux/lazy"
	"github.com/JianLoong/spannerflux/spannererr"
)

// State is the transaction manager's current mode.
type State int

const (
	Idle State = iota
	ReadWrite
	ReadOnly
)

func (s State) String() string {
	switch s {
	case ReadWrite:
		return "read-write"
	case ReadOnly:
		return "read-only"
	default:
		return "idle"
	}
}

// ReadContext is the read-capable surface every one of the three
// states can offer: a single-use snapshot (Idle), the active
// read-write transaction (ReadWrite), or the active read-only
// transaction (ReadOnly). All three satisfy it via the real Spanner
// client types without any adapting.
type ReadContext interface {
	Query(ctx context.Context, stmt spanner.Statement) *spanner.RowIterator
	QueryWithOptions(ctx context.Context, stmt spanner.Statement, opts spanner.QueryOptions) *spanner.RowIterator
}

// RWTransaction is the subset of *spanner.ReadWriteStmtBasedTransaction
// the adapter and this package call. Naming it lets RunInTransaction
// and the manager's rw field be driven by a hand-rolled fake in tests
// that stubs only the surface a call path actually uses instead of the
// whole client.
type RWTransaction interface {
	ReadContext
	Update(ctx context.Context, stmt spanner.Statement) (int64, error)
	UpdateWithOptions(ctx context.Context, stmt spanner.Statement, opts spanner.QueryOptions) (int64, error)
	BatchUpdate(ctx context.Context, stmts []spanner.Statement) ([]int64, error)
	BatchUpdateWithOptions(ctx context.Context, stmts []spanner.Statement, opts spanner.QueryOptions) ([]int64, error)
	Commit(ctx context.Context) (time.Time, error)
	Rollback(ctx context.Context)
}

// ROTransaction is the subset of *spanner.ReadOnlyTransaction this
// package calls.
type ROTransaction interface {
	ReadContext
	Close()
}

// CommitResult is returned by a successful commit; Timestamp is the
// zero value for a commit that closed a read-only transaction (no
// commit timestamp exists for reads).
type CommitResult struct {
	Timestamp time.Time
}

// Manager tracks the connection's transaction state. It is not safe
// for concurrent mutation; the connection serializes its callers, so
// the mutex here only guards the handle fields against the worker
// goroutine that resolves a pending begin.
type Manager struct {
	client *spanner.Client

	mu      sync.Mutex
	state   State
	rw      RWTransaction
	rwReady *lazy.Value[struct{}]
	ro      ROTransaction
}

// New creates an idle Manager bound to client.
func New(client *spanner.Client) *Manager {
	return &Manager{client: client}
}

// NewForTest returns a Manager already seeded into state with the
// given handles, bypassing BeginTransaction/BeginReadonlyTransaction's
// native-client calls. It exists so tests outside this package (the
// connection adapter's) can drive ReadWrite/ReadOnly routing with a
// fake RWTransaction/ROTransaction instead of a live Spanner client;
// rw and ro may be nil when the target state doesn't need one.
func NewForTest(state State, rw RWTransaction, ro ROTransaction) *Manager {
	return &Manager{state: state, rw: rw, ro: ro}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsInTransaction reports whether a transaction of either kind is
// active.
func (m *Manager) IsInTransaction() bool {
	s := m.State()
	return s == ReadWrite || s == ReadOnly
}

// IsInReadWriteTransaction reports whether a read-write transaction is
// active.
func (m *Manager) IsInReadWriteTransaction() bool { return m.State() == ReadWrite }

// IsInReadonlyTransaction reports whether a read-only transaction is
// active.
func (m *Manager) IsInReadonlyTransaction() bool { return m.State() == ReadOnly }

// BeginTransaction fails synchronously if a transaction of either
// kind is already active. Otherwise it transitions to ReadWrite
// immediately, so a second call from the same serialized caller sees
// the new state even before the native transaction handle resolves,
// and returns a cold Value whose subscription acquires the handle.
// The Value is cached: RunInTransaction resolves the same pending
// acquisition instead of racing a second one.
func (m *Manager) BeginTransaction() (*lazy.Value[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case ReadWrite:
		return nil, spannererr.TransactionInProgress("read-write")
	case ReadOnly:
		return nil, spannererr.TransactionInProgress("read-only")
	}
	m.state = ReadWrite
	ready := lazy.NewValue(func(ctx context.Context) (struct{}, error) {
		txn, err := spanner.NewReadWriteStmtBasedTransaction(ctx, m.client)
		if err != nil {
			m.clear()
			return struct{}{}, spannererr.WrapOperation("beginTransaction", err)
		}
		m.mu.Lock()
		m.rw = txn
		m.mu.Unlock()
		return struct{}{}, nil
	}).Cache()
	m.rwReady = ready
	return ready, nil
}

// BeginReadonlyTransaction is the read-only half of the same
// exclusion rule. bound selects the read-only transaction's
// staleness. No session-readiness signal is exposed; the returned
// Value resolves as soon as the local handle is constructed, which is
// all the underlying client offers today.
func (m *Manager) BeginReadonlyTransaction(bound spanner.TimestampBound) (*lazy.Value[struct{}], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case ReadWrite:
		return nil, spannererr.TransactionInProgress("read-write")
	case ReadOnly:
		return nil, spannererr.TransactionInProgress("read-only")
	}
	m.state = ReadOnly
	m.ro = m.client.ReadOnlyTransaction().WithTimestampBound(bound)
	return lazy.Done(struct{}{}), nil
}

// resolveRW waits for a pending BeginTransaction acquisition, if one
// is still in flight, and returns the active read-write handle.
func (m *Manager) resolveRW(ctx context.Context) (RWTransaction, error) {
	m.mu.Lock()
	ready := m.rwReady
	m.mu.Unlock()
	if ready != nil {
		if _, err := lazy.Force(ctx, ready); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	rw := m.rw
	m.mu.Unlock()
	if rw == nil {
		return nil, spannererr.NotInReadWriteTransaction()
	}
	return rw, nil
}

// CommitTransaction commits the active read-write transaction, closes
// the active read-only transaction, or completes immediately when
// idle. Every branch clears back to Idle exactly once, on any
// terminal outcome.
func (m *Manager) CommitTransaction() *lazy.Value[CommitResult] {
	m.mu.Lock()
	switch m.state {
	case ReadWrite:
		m.mu.Unlock()
		return lazy.NewValue(func(ctx context.Context) (CommitResult, error) {
			rw, err := m.resolveRW(ctx)
			if err != nil {
				m.clear()
				return CommitResult{}, err
			}
			ts, err := rw.Commit(ctx)
			m.clear()
			return CommitResult{Timestamp: ts}, spannererr.WrapOperation("commit", err)
		})
	case ReadOnly:
		ro := m.ro
		m.mu.Unlock()
		ro.Close()
		m.clear()
		return lazy.Done(CommitResult{})
	default:
		m.mu.Unlock()
		return lazy.Done(CommitResult{})
	}
}

// RollbackTransaction is symmetric to CommitTransaction. The native
// read-write rollback reports nothing, so the only errors this can
// surface are from resolving a pending begin.
func (m *Manager) RollbackTransaction() *lazy.Value[struct{}] {
	m.mu.Lock()
	switch m.state {
	case ReadWrite:
		m.mu.Unlock()
		return lazy.NewValue(func(ctx context.Context) (struct{}, error) {
			rw, err := m.resolveRW(ctx)
			if err != nil {
				m.clear()
				return struct{}{}, err
			}
			rw.Rollback(ctx)
			m.clear()
			return struct{}{}, nil
		})
	case ReadOnly:
		ro := m.ro
		m.mu.Unlock()
		ro.Close()
		m.clear()
		return lazy.Done(struct{}{})
	default:
		m.mu.Unlock()
		return lazy.Done(struct{}{})
	}
}

// clear resets to Idle and drops any held handles. Safe to call from
// both the success and failure paths of commit/rollback, and from
// ClearTransactionManager.
func (m *Manager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Idle
	m.rw = nil
	m.rwReady = nil
	m.ro = nil
}

// ClearTransactionManager releases any held native handles and resets
// to Idle. Called at adapter Close. Idempotent.
func (m *Manager) ClearTransactionManager() {
	m.mu.Lock()
	rw := m.rw
	ro := m.ro
	m.mu.Unlock()
	if rw != nil {
		rw.Rollback(context.Background())
	}
	if ro != nil {
		ro.Close()
	}
	m.clear()
}

// RunInTransaction resolves the active read-write transaction,
// waiting for a still-pending BeginTransaction acquisition if
// necessary, and invokes fn with it. Callers that reach here without
// an active read-write transaction get a typed error back instead of
// a panic.
//
// Go does not allow a generic method with its own type parameter, so
// this is a package-level function taking *Manager rather than a
// method.
func RunInTransaction[T any](ctx context.Context, m *Manager, fn func(RWTransaction) (T, error)) (T, error) {
	if m.State() != ReadWrite {
		var zero T
		return zero, spannererr.NotInReadWriteTransaction()
	}
	rw, err := m.resolveRW(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return fn(rw)
}

// GetReadContext returns the active read context: the read-write
// transaction if ReadWrite, the read-only transaction if ReadOnly, or
// a fresh single-use read context if Idle. Idle calls always return a
// distinct single-use context.
func (m *Manager) GetReadContext() ReadContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case ReadWrite:
		return m.rw
	case ReadOnly:
		return m.ro
	default:
		return m.client.Single()
	}
}
