package spannererr

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestTransactionInProgressCarriesKind(t *testing.T) {
	err := TransactionInProgress("read-write")
	if err.Code != "read-write" {
		t.Errorf("expected code read-write, got %s", err.Code)
	}
	if err.Error() != "read-write" {
		t.Errorf("expected message read-write, got %s", err.Error())
	}
}

func TestStateErrorMessagesAreStable(t *testing.T) {
	cases := []struct {
		err  *StateError
		want string
	}{
		{DMLInReadOnlyTransaction(), "Cannot run DML in a readonly transaction"},
		{DMLOutsideTransaction(), "Cannot run DML outside a transaction when autocommit is false"},
		{ConnectionClosed(), "connection is closed"},
		{NotInReadWriteTransaction(), "no read-write transaction is active"},
	}
	for _, c := range cases {
		if c.err.Error() != c.want {
			t.Errorf("expected %q, got %q", c.want, c.err.Error())
		}
	}
}

func TestWrapOperationNilPassthrough(t *testing.T) {
	if err := WrapOperation("commit", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrapOperationUnwrapsToCause(t *testing.T) {
	cause := errors.New("aborted")
	err := WrapOperation("commit", cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped error to unwrap to cause")
	}
	var op *OperationFailure
	if !errors.As(err, &op) {
		t.Fatal("expected errors.As to find *OperationFailure")
	}
	if op.Op != "commit" {
		t.Errorf("expected op commit, got %s", op.Op)
	}
}

func TestWrapStreamingNilPassthrough(t *testing.T) {
	if err := WrapStreaming(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestIsAbortedDetectsAbortedStatus(t *testing.T) {
	cause := status.Error(codes.Aborted, "transaction aborted")
	err := WrapOperation("commit", cause)
	if !IsAborted(err) {
		t.Error("expected IsAborted to be true for an Aborted status")
	}
}

func TestIsAbortedFalseForOtherCodes(t *testing.T) {
	cause := status.Error(codes.NotFound, "missing")
	err := WrapOperation("commit", cause)
	if IsAborted(err) {
		t.Error("expected IsAborted to be false for a NotFound status")
	}
}

func TestOperationFailureGRPCStatus(t *testing.T) {
	cause := status.Error(codes.Unavailable, "retry later")
	err := WrapOperation("query", cause)
	var op *OperationFailure
	if !errors.As(err, &op) {
		t.Fatal("expected errors.As to find *OperationFailure")
	}
	if op.GRPCStatus().Code() != codes.Unavailable {
		t.Errorf("expected Unavailable, got %v", op.GRPCStatus().Code())
	}
}
