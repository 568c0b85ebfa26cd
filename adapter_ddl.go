package spannerflux

import (
	"context"

	adminpb "google.golang.org/genproto/googleapis/spanner/admin/database/v1"

	"github.com/JianLoong/spannerflux/lazy"
	"github.com/JianLoong/spannerflux/spannererr"
)

// RunDdlStatement applies a single DDL statement through the
// database-admin client and waits for the long-running operation to
// finish. DDL is not subject to the transaction state machine: it
// runs regardless of whether a transaction is active, and neither
// opens nor closes one.
func (c *Conn) RunDdlStatement(ctx context.Context, ddl string) *lazy.Value[struct{}] {
	if err := c.checkOpen(); err != nil {
		return lazy.Failed[struct{}](err)
	}
	return lazy.NewValue(func(ctx context.Context) (struct{}, error) {
		if err := c.checkOpen(); err != nil {
			return struct{}{}, err
		}
		op, err := c.adminClient.UpdateDatabaseDdl(ctx, &adminpb.UpdateDatabaseDdlRequest{
			Database:   c.cfg.DatabaseName(),
			Statements: []string{ddl},
		})
		if err != nil {
			return struct{}{}, spannererr.WrapOperation("runDdlStatement", err)
		}
		if err := op.Wait(ctx); err != nil {
			return struct{}{}, spannererr.WrapOperation("runDdlStatement", err)
		}
		return struct{}{}, nil
	})
}
