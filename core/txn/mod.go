// Package txn executes the write operations of the client.
//
// An operation is submitted to the ledger, then the executor waits for its
// confirmation within a bounded time and classifies the outcome. Nothing is
// retried: the caller decides. When a transaction is confirmed, the executor
// refreshes exactly the parts of the view the operation could have changed;
// the view is never updated before the confirmation.
package txn

import (
	"context"

	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/view"
	"golang.org/x/xerrors"
)

// Status is the outcome of the execution of an operation.
type Status int

const (
	// StatusSuccess means the transaction is confirmed.
	StatusSuccess Status = iota

	// StatusRejected means the user declined to sign before submission.
	StatusRejected

	// StatusReverted means the ledger refused the transaction.
	StatusReverted

	// StatusNetworkError means the communication with the ledger failed. The
	// caller can retry.
	StatusNetworkError

	// StatusTimedOut means the confirmation did not arrive within the bounded
	// wait. The transaction might still be confirmed later.
	StatusTimedOut

	// StatusInvalid means the operation has invalid arguments.
	StatusInvalid

	// StatusUnavailable means no identity is connected.
	StatusUnavailable
)

var statusNames = map[Status]string{
	StatusSuccess:      "success",
	StatusRejected:     "rejected",
	StatusReverted:     "reverted",
	StatusNetworkError: "network_error",
	StatusTimedOut:     "timed_out",
	StatusInvalid:      "invalid",
	StatusUnavailable:  "unavailable",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	name, found := statusNames[s]
	if !found {
		return "unknown"
	}

	return name
}

// StatusOf returns the status matching the error.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case xerrors.Is(err, core.ErrUserRejected):
		return StatusRejected
	case xerrors.Is(err, core.ErrReverted):
		return StatusReverted
	case xerrors.Is(err, core.ErrTimedOut):
		return StatusTimedOut
	case xerrors.Is(err, core.ErrInvalidInput), xerrors.Is(err, core.ErrInvalidTonnage):
		return StatusInvalid
	case xerrors.Is(err, core.ErrProviderUnavailable):
		return StatusUnavailable
	default:
		return StatusNetworkError
	}
}

// Op is a write operation of the ledger.
type Op interface {
	// Name returns a short name of the operation.
	Name() string

	// Submit submits the transaction and returns without waiting for the
	// confirmation.
	Submit(ctx context.Context) (ledger.Pending, error)

	// Affects returns the parts of the view that the operation can change.
	Affects() view.Fields
}

// NewOp returns an operation out of its parts.
func NewOp(name string, affects view.Fields, submit func(context.Context) (ledger.Pending, error)) Op {
	return op{
		name:    name,
		affects: affects,
		submit:  submit,
	}
}

// op is the default implementation of an operation.
//
// - implements txn.Op
type op struct {
	name    string
	affects view.Fields
	submit  func(context.Context) (ledger.Pending, error)
}

// Name implements txn.Op.
func (o op) Name() string {
	return o.name
}

// Submit implements txn.Op.
func (o op) Submit(ctx context.Context) (ledger.Pending, error) {
	return o.submit(ctx)
}

// Affects implements txn.Op.
func (o op) Affects() view.Fields {
	return o.affects
}

// Result is the typed outcome of an execution.
type Result struct {
	Op      string
	Status  Status
	Receipt ledger.Receipt
	Err     error

	// Snapshot is the view refreshed after a successful execution. RefreshErr
	// is set if the refresh failed, in which case the transaction is still
	// confirmed.
	Snapshot   view.Snapshot
	RefreshErr error
}

// OK returns true if the transaction is confirmed.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Refresher refreshes parts of the view.
type Refresher interface {
	Refresh(ctx context.Context, fields view.Fields) (view.Snapshot, error)
}

// Recorder keeps track of the results.
type Recorder interface {
	Record(res Result) error
}
