package spannerflux

import (
	"context"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	sppb "google.golang.org/genproto/googleapis/spanner/v1"

	"github.com/JianLoong/spannerflux/lazy"
	"github.com/JianLoong/spannerflux/result"
	"github.com/JianLoong/spannerflux/row"
	"github.com/JianLoong/spannerflux/spannererr"
	"github.com/JianLoong/spannerflux/txn"
)

// spannerQueryOptions translates the connection's query options into
// the client library's shape. ok is false when nothing is configured
// and the plain call should be used instead.
func (c *Conn) spannerQueryOptions() (opts spanner.QueryOptions, ok bool) {
	if c.queryOptions.OptimizerVersion == "" {
		return spanner.QueryOptions{}, false
	}
	return spanner.QueryOptions{
		Options: &sppb.ExecuteSqlRequest_QueryOptions{OptimizerVersion: c.queryOptions.OptimizerVersion},
	}, true
}

// query issues stmt against rc, threading this connection's optimizer
// version through QueryWithOptions when one is configured. Every
// txn.ReadContext (single-use, read-write, read-only) supports both
// call shapes, so no type assertion is needed here.
func (c *Conn) query(rc txn.ReadContext, ctx context.Context, stmt spanner.Statement) *spanner.RowIterator {
	if opts, ok := c.spannerQueryOptions(); ok {
		return rc.QueryWithOptions(ctx, stmt, opts)
	}
	return rc.Query(ctx, stmt)
}

// RunSelectStatement produces a cold, cancellable row sequence for a
// SELECT statement. If a read-write transaction is active, the query
// runs inside it via txn.RunInTransaction; otherwise it runs against
// whatever read context the transaction manager currently offers
// (single-use or read-only).
//
// No RPC is issued until the returned Sequence is subscribed to, and
// cancelling the subscription stops the underlying row iterator.
//
// The row sequence is paired with a rowsUpdated of 0 through
// result.New before being handed back; RunSelectStatement unwraps the
// pairing immediately via RowSequence since its own external contract
// is a bare Sequence, but every SELECT still flows through the same
// Result handle DML does.
func (c *Conn) RunSelectStatement(ctx context.Context, stmt spanner.Statement) (*lazy.Sequence[*row.Row], error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	rows := lazy.NewSequence(func(pctx context.Context, out chan<- lazy.Item[*row.Row]) {
		iter, err := c.resolveSelectIterator(pctx, stmt)
		if err != nil {
			lazy.PushErr(pctx, out, err)
			return
		}
		defer iter.Stop()
		for {
			r, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				lazy.PushErr(pctx, out, spannererr.WrapStreaming(err))
				return
			}
			if !lazy.PushRow(pctx, out, row.New(r)) {
				return
			}
		}
	})
	return result.New(lazy.Done(int64(0)), rows, row.Metadata{}).RowSequence(), nil
}

func (c *Conn) resolveSelectIterator(ctx context.Context, stmt spanner.Statement) (*spanner.RowIterator, error) {
	if c.txns.IsInReadWriteTransaction() {
		return txn.RunInTransaction(ctx, c.txns, func(rw txn.RWTransaction) (*spanner.RowIterator, error) {
			return c.query(rw, ctx, stmt), nil
		})
	}
	rc := c.txns.GetReadContext()
	return c.query(rc, ctx, stmt), nil
}
