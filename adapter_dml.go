package spannerflux

import (
	"context"

	"cloud.google.com/go/spanner"

	"github.com/JianLoong/spannerflux/lazy"
	"github.com/JianLoong/spannerflux/result"
	"github.com/JianLoong/spannerflux/spannererr"
	"github.com/JianLoong/spannerflux/txn"
)

// RunDmlStatement runs a single DML statement and produces the number
// of rows it affected. Routing follows the connection's current
// state:
//
//   - ReadOnly transaction active: rejected, DML has nothing to write to.
//   - ReadWrite transaction active: runs inside it via txn.RunInTransaction.
//   - Idle and autocommit is false: rejected, DML requires an explicit
//     transaction when autocommit is off.
//   - Idle and autocommit is true: runs in its own single-statement
//     read-write transaction via client.ReadWriteTransaction, committing
//     and recording a commit timestamp on success.
//
// The returned Value is the rowsUpdated half of a result.DML Result:
// wrapping it here, rather than handing back the raw cold Value, is
// what gives a caller that subscribes twice the same affected-row
// count instead of silently re-running the statement a second time.
func (c *Conn) RunDmlStatement(ctx context.Context, stmt spanner.Statement) (*lazy.Value[int64], error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if c.txns.IsInReadonlyTransaction() {
		return nil, spannererr.DMLInReadOnlyTransaction()
	}
	if c.txns.IsInReadWriteTransaction() {
		value := lazy.NewValue(func(ctx context.Context) (int64, error) {
			n, err := txn.RunInTransaction(ctx, c.txns, func(rw txn.RWTransaction) (int64, error) {
				if opts, ok := c.spannerQueryOptions(); ok {
					return rw.UpdateWithOptions(ctx, stmt, opts)
				}
				return rw.Update(ctx, stmt)
			})
			return n, spannererr.WrapOperation("runDmlStatement", err)
		})
		return result.DML(value).RowsUpdatedValue(), nil
	}
	if !c.autoCommit.Load() {
		return nil, spannererr.DMLOutsideTransaction()
	}
	value := lazy.NewValue(func(ctx context.Context) (int64, error) {
		var affected int64
		ts, err := c.client.ReadWriteTransaction(ctx, func(ctx context.Context, rwtx *spanner.ReadWriteTransaction) error {
			n, err := c.updateInTxn(ctx, rwtx, stmt)
			affected = n
			return err
		})
		if err != nil {
			return 0, spannererr.WrapOperation("runDmlStatement", err)
		}
		c.recordCommitTimestamp(ts)
		return affected, nil
	})
	return result.DML(value).RowsUpdatedValue(), nil
}

// RunBatchDml runs a batch of DML statements as one unit and produces
// the per-statement affected-row counts. Routing mirrors
// RunDmlStatement.
//
// This does not go through result.Result: Result's rowsUpdated is
// fixed at int64, and a batch's natural result is []int64, one count
// per statement, not a single aggregate row count. Cache is applied
// directly instead, for the same replay-safety RunDmlStatement gets
// from Result's internal caching.
func (c *Conn) RunBatchDml(ctx context.Context, stmts []spanner.Statement) (*lazy.Value[[]int64], error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if c.txns.IsInReadonlyTransaction() {
		return nil, spannererr.DMLInReadOnlyTransaction()
	}
	if c.txns.IsInReadWriteTransaction() {
		return lazy.NewValue(func(ctx context.Context) ([]int64, error) {
			counts, err := txn.RunInTransaction(ctx, c.txns, func(rw txn.RWTransaction) ([]int64, error) {
				if opts, ok := c.spannerQueryOptions(); ok {
					return rw.BatchUpdateWithOptions(ctx, stmts, opts)
				}
				return rw.BatchUpdate(ctx, stmts)
			})
			return counts, spannererr.WrapOperation("runBatchDml", err)
		}).Cache(), nil
	}
	if !c.autoCommit.Load() {
		return nil, spannererr.DMLOutsideTransaction()
	}
	return lazy.NewValue(func(ctx context.Context) ([]int64, error) {
		var counts []int64
		ts, err := c.client.ReadWriteTransaction(ctx, func(ctx context.Context, rwtx *spanner.ReadWriteTransaction) error {
			cs, err := c.batchUpdateInTxn(ctx, rwtx, stmts)
			counts = cs
			return err
		})
		if err != nil {
			return nil, spannererr.WrapOperation("runBatchDml", err)
		}
		c.recordCommitTimestamp(ts)
		return counts, nil
	}).Cache(), nil
}

// updateInTxn runs one DML statement inside an autocommit
// transaction, threading the connection's query options the same way
// query does for SELECT.
func (c *Conn) updateInTxn(ctx context.Context, rwtx *spanner.ReadWriteTransaction, stmt spanner.Statement) (int64, error) {
	if opts, ok := c.spannerQueryOptions(); ok {
		return rwtx.UpdateWithOptions(ctx, stmt, opts)
	}
	return rwtx.Update(ctx, stmt)
}

// batchUpdateInTxn is updateInTxn's batch counterpart.
func (c *Conn) batchUpdateInTxn(ctx context.Context, rwtx *spanner.ReadWriteTransaction, stmts []spanner.Statement) ([]int64, error) {
	if opts, ok := c.spannerQueryOptions(); ok {
		return rwtx.BatchUpdateWithOptions(ctx, stmts, opts)
	}
	return rwtx.BatchUpdate(ctx, stmts)
}
