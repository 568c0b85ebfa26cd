// Package spannererr defines the typed errors the adapter surfaces.
//
// State-violation errors carry a stable Code so callers can test for
// them without string-matching; everything else wraps whatever the
// Spanner client returned, cause chain intact.
package spannererr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind categorizes the three failure modes described by the adapter's
// error-handling design: a synchronous state-machine violation, an
// asynchronous operation failure from the Spanner client, or an
// asynchronous failure while streaming rows.
type Kind int

const (
	KindStateViolation Kind = iota
	KindOperationFailure
	KindStreamingFailure
)

func (k Kind) String() string {
	switch k {
	case KindStateViolation:
		return "state-violation"
	case KindOperationFailure:
		return "operation-failure"
	case KindStreamingFailure:
		return "streaming-failure"
	default:
		return "unknown"
	}
}

// StateError is a synchronous, typed error raised by the transaction
// manager or the connection adapter when an operation is attempted in
// a state that forbids it. Code is stable across releases so callers
// can assert on it directly.
type StateError struct {
	Code    string
	Message string
}

func (e *StateError) Error() string { return e.Message }

func newState(code, message string) *StateError {
	return &StateError{Code: code, Message: message}
}

// TransactionInProgress is returned by BeginTransaction /
// BeginReadonlyTransaction when a transaction of the given kind
// ("read-write" or "read-only") is already active on the connection.
func TransactionInProgress(kind string) *StateError {
	return newState(kind, kind)
}

// DMLInReadOnlyTransaction is returned by RunDmlStatement when the
// connection currently holds a read-only transaction.
func DMLInReadOnlyTransaction() *StateError {
	return newState("dml-in-readonly", "Cannot run DML in a readonly transaction")
}

// DMLOutsideTransaction is returned by RunDmlStatement when
// autocommit is disabled and no read-write transaction is active.
func DMLOutsideTransaction() *StateError {
	return newState("dml-outside-transaction", "Cannot run DML outside a transaction when autocommit is false")
}

// ConnectionClosed is returned by any operation invoked after Close.
func ConnectionClosed() *StateError {
	return newState("connection-closed", "connection is closed")
}

// NotInReadWriteTransaction is returned by RunInTransaction when the
// transaction manager is not currently holding a read-write
// transaction; this should not be reachable from the public adapter
// surface (the adapter only calls it from the ReadWrite branch) but is
// kept as a defensive, typed error rather than a panic.
func NotInReadWriteTransaction() *StateError {
	return newState("not-in-read-write-transaction", "no read-write transaction is active")
}

// OperationFailure wraps an asynchronous failure returned by the
// underlying Spanner client (commit conflict, not-found, auth
// failure, ...). The native error is preserved verbatim via Unwrap.
type OperationFailure struct {
	Op    string
	cause error
}

func (e *OperationFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.cause)
}

func (e *OperationFailure) Unwrap() error { return e.cause }

// GRPCStatus lets errors.As(err, new(*OperationFailure)) callers
// reach the gRPC status of the wrapped cause.
func (e *OperationFailure) GRPCStatus() *status.Status {
	if s, ok := status.FromError(e.cause); ok {
		return s
	}
	return status.New(codes.Unknown, e.cause.Error())
}

// WrapOperation wraps a Spanner client failure for the given
// operation name ("commit", "executeUpdateAsync", ...). Returns nil if
// cause is nil, so call sites can do `return spannererr.WrapOperation("commit", err)`
// unconditionally.
func WrapOperation(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &OperationFailure{Op: op, cause: cause}
}

// StreamingFailure wraps an error raised while advancing or
// materializing a row from the native cursor.
type StreamingFailure struct {
	cause error
}

func (e *StreamingFailure) Error() string { return fmt.Sprintf("row streaming failed: %v", e.cause) }
func (e *StreamingFailure) Unwrap() error { return e.cause }

// WrapStreaming wraps a row-materialization failure. Returns nil if
// cause is nil.
func WrapStreaming(cause error) error {
	if cause == nil {
		return nil
	}
	return &StreamingFailure{cause: cause}
}

// IsAborted reports whether err (or any error in its chain) is a
// Spanner Aborted error, the one failure mode a layer above this
// adapter may want to retry. Nothing in this module retries it.
func IsAborted(err error) bool {
	var op *OperationFailure
	if errors.As(err, &op) {
		return status.Code(op.cause) == codes.Aborted
	}
	return status.Code(err) == codes.Aborted
}
