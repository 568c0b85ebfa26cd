// Package spannerflux is a reactive database driver adapter for
// Google Cloud Spanner: a streaming, backpressure-aware connection API
// (create/close connections, execute statements, manage transactions,
// consume rows as lazy sequences) over the synchronous Spanner client
// library. This file is the connection adapter itself, which owns the
// Spanner handle, the executor, and the transaction manager, and
// routes every operation to one of the lazy bridges in package lazy.
package spannerflux

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/spanner"
	adminapi "cloud.google.com/go/spanner/admin/database/apiv1"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/JianLoong/spannerflux/config"
	"github.com/JianLoong/spannerflux/internal/exec"
	"github.com/JianLoong/spannerflux/internal/telemetry"
	"github.com/JianLoong/spannerflux/lazy"
	"github.com/JianLoong/spannerflux/spannererr"
	"github.com/JianLoong/spannerflux/txn"
)

// Conn is one logical connection to a Spanner database. One Conn =
// one logical caller; connection pooling belongs to a layer above.
type Conn struct {
	cfg         config.ConnectionConfig
	client      *spanner.Client
	adminClient *adminapi.DatabaseAdminClient
	pool        *exec.Pool
	txns        *txn.Manager
	logger      *telemetry.Logger

	autoCommit   atomic.Bool
	queryOptions QueryOptions

	closed    atomic.Bool
	closeOnce sync.Once

	commitTsMu   sync.Mutex
	lastCommitTs time.Time
	hasCommitTs  bool
}

// Open constructs a Conn: a database client, a database-admin client,
// a fixed-size executor, and an idle transaction manager. opts are
// forwarded to both Spanner clients.
func Open(ctx context.Context, cfg config.ConnectionConfig, opts ...option.ClientOption) (*Conn, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := spanner.NewClient(ctx, cfg.DatabaseName(), opts...)
	if err != nil {
		return nil, fmt.Errorf("spannerflux: failed to create database client: %w", err)
	}
	adminClient, err := adminapi.NewDatabaseAdminClient(ctx, opts...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("spannerflux: failed to create database admin client: %w", err)
	}

	qo := QueryOptions{OptimizerVersion: cfg.OptimizerVersion}

	c := &Conn{
		cfg:          cfg,
		client:       client,
		adminClient:  adminClient,
		pool:         exec.New(cfg.ThreadPoolSize),
		txns:         txn.New(client),
		logger:       telemetry.New(),
		queryOptions: qo,
	}
	c.autoCommit.Store(true)
	return c, nil
}

// Pool exposes the adapter's worker pool so callers can Subscribe to
// the Value/Sequence values the rest of this API returns, the same
// executor every lazy bridge in this adapter dispatches onto.
func (c *Conn) Pool() *exec.Pool { return c.pool }

// QueryOptions is the immutable set of per-connection query tuning
// knobs. It is intentionally a thin local type rather than the
// Spanner client's own query-options struct, so this package's public
// surface does not leak the client library's proto plumbing; the
// query path translates it at the point of use.
type QueryOptions struct {
	OptimizerVersion string
}

// GetQueryOptions returns the immutable query options this connection
// was configured with.
func (c *Conn) GetQueryOptions() QueryOptions { return c.queryOptions }

// IsAutoCommit reports the current autocommit flag.
func (c *Conn) IsAutoCommit() bool { return c.autoCommit.Load() }

// LastCommitTimestamp returns the commit timestamp of the most recent
// successful read-write transaction on this connection, and false if
// nothing has committed yet.
func (c *Conn) LastCommitTimestamp() (time.Time, bool) {
	c.commitTsMu.Lock()
	defer c.commitTsMu.Unlock()
	return c.lastCommitTs, c.hasCommitTs
}

func (c *Conn) recordCommitTimestamp(ts time.Time) {
	c.commitTsMu.Lock()
	c.lastCommitTs = ts
	c.hasCommitTs = true
	c.commitTsMu.Unlock()
}

func (c *Conn) checkOpen() error {
	if c.closed.Load() {
		return spannererr.ConnectionClosed()
	}
	return nil
}

// BeginTransaction starts a read-write transaction. See txn.Manager.BeginTransaction.
func (c *Conn) BeginTransaction(ctx context.Context) (*lazy.Value[struct{}], error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.txns.BeginTransaction()
}

// BeginReadonlyTransaction starts a read-only transaction with the
// given staleness bound. See txn.Manager.BeginReadonlyTransaction.
func (c *Conn) BeginReadonlyTransaction(ctx context.Context, bound spanner.TimestampBound) (*lazy.Value[struct{}], error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.txns.BeginReadonlyTransaction(bound)
}

// CommitTransaction commits the active transaction, or is a no-op if
// none is active. Records the commit timestamp on success.
func (c *Conn) CommitTransaction(ctx context.Context) *lazy.Value[struct{}] {
	inner := c.txns.CommitTransaction()
	return lazy.NewValue(func(ctx context.Context) (struct{}, error) {
		res, err := lazy.Force(ctx, inner)
		if err != nil {
			return struct{}{}, err
		}
		if !res.Timestamp.IsZero() {
			c.recordCommitTimestamp(res.Timestamp)
		}
		return struct{}{}, nil
	})
}

// Rollback rolls back the active transaction, or is a no-op if none is
// active.
func (c *Conn) Rollback(ctx context.Context) *lazy.Value[struct{}] {
	return c.txns.RollbackTransaction()
}

// SetAutoCommit updates the autocommit flag. If value differs and a
// transaction is in progress, the current transaction is committed
// first; the flag only changes once that commit succeeds.
func (c *Conn) SetAutoCommit(ctx context.Context, value bool) *lazy.Value[struct{}] {
	if c.autoCommit.Load() == value {
		return lazy.Done(struct{}{})
	}
	if !c.txns.IsInTransaction() {
		c.autoCommit.Store(value)
		return lazy.Done(struct{}{})
	}
	commit := c.CommitTransaction(ctx)
	return lazy.NewValue(func(ctx context.Context) (struct{}, error) {
		if _, err := lazy.Force(ctx, commit); err != nil {
			return struct{}{}, err
		}
		c.autoCommit.Store(value)
		return struct{}{}, nil
	})
}

// HealthCheck runs SELECT 1 through a single-use read context and
// reports whether it succeeded. A closed connection or shut-down
// executor reports false without issuing an RPC.
func (c *Conn) HealthCheck(ctx context.Context) *lazy.Value[bool] {
	if !c.pool.Alive() || c.closed.Load() {
		return lazy.Done(false)
	}
	return lazy.NewValue(func(ctx context.Context) (bool, error) {
		if !c.pool.Alive() || c.closed.Load() {
			return false, nil
		}
		iter := c.client.Single().Query(ctx, spanner.Statement{SQL: "SELECT 1"})
		defer iter.Stop()
		_, err := iter.Next()
		if err != nil && err != iterator.Done {
			return false, nil
		}
		return true, nil
	})
}

// LocalHealthcheck is a cheap, local-only liveness check: true iff the
// executor has not been shut down.
func (c *Conn) LocalHealthcheck() *lazy.Value[bool] {
	return lazy.Done(c.pool.Alive() && !c.closed.Load())
}

// Close releases the transaction manager and shuts down the executor.
// Idempotent: a second Close is a no-op.
//
// The teardown runs eagerly, on the calling goroutine, rather than
// being wrapped in a supplier and dispatched through the pool the way
// every other operation here is: pool.Shutdown blocks until every
// pool goroutine has returned, so running it from inside a goroutine
// the pool itself is tracking would make it wait on its own
// outstanding count forever. Close has nothing left to hand back
// except a trivial lazy.Done once teardown is done.
func (c *Conn) Close(ctx context.Context) *lazy.Value[struct{}] {
	c.closeOnce.Do(func() {
		c.txns.ClearTransactionManager()
		c.pool.Shutdown()
		c.closed.Store(true)
		if c.client != nil {
			c.client.Close()
		}
		if c.adminClient != nil {
			if err := c.adminClient.Close(); err != nil {
				c.logger.Errorf("closing database admin client: %v", err)
			}
		}
	})
	return lazy.Done(struct{}{})
}
