// Package clearance implements the state machine that grants the clearance of
// a ship once its dues are paid.
//
//	NotRequested --request--> Evaluating --paid--> Granted
//	     ^                         |
//	     +---- insufficient funds -+---- payment failed
//
// The clearance is granted only if, at evaluation time, the balance of the
// caller covers the dues, and only together with the confirmed transfer of
// exactly the dues to the owner of the agency. The state belongs to the
// session and is never read from the ledger.
package clearance

import (
	"context"
	"sync"

	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/dues"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/txn"
	"go.dedis.ch/shipagency/core/view"
	"golang.org/x/xerrors"
)

// State is the state of the clearance.
type State int

const (
	// NotRequested is the initial state.
	NotRequested State = iota

	// Evaluating is the state while the balance is checked and the dues paid.
	Evaluating

	// Granted is the final state of the session.
	Granted
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not_requested"
	case Evaluating:
		return "evaluating"
	case Granted:
		return "granted"
	default:
		return "unknown"
	}
}

// Refresher refreshes parts of the view.
type Refresher interface {
	Refresh(ctx context.Context, fields view.Fields) (view.Snapshot, error)
}

// Executor executes operations.
type Executor interface {
	Execute(ctx context.Context, op txn.Op) txn.Result
}

// Withdrawer submits withdrawals.
type Withdrawer interface {
	Withdraw(ctx context.Context, to ledger.Address, value amount.Amount) (ledger.Pending, error)
}

// Workflow is the clearance state machine of a session.
type Workflow struct {
	sync.Mutex

	state     State
	refresher Refresher
	executor  Executor
	client    Withdrawer
	calc      dues.Calculator
	onChange  func(State)
}

// NewWorkflow creates a new workflow in the NotRequested state.
func NewWorkflow(refresher Refresher, exec Executor, client Withdrawer, calc dues.Calculator) *Workflow {
	return &Workflow{
		state:     NotRequested,
		refresher: refresher,
		executor:  exec,
		client:    client,
		calc:      calc,
	}
}

// OnChange sets the function called after each transition.
func (w *Workflow) OnChange(fn func(State)) {
	w.Lock()
	w.onChange = fn
	w.Unlock()
}

// State returns the current state.
func (w *Workflow) State() State {
	w.Lock()
	defer w.Unlock()

	return w.state
}

// Reset moves the workflow back to NotRequested at the start of a session. It
// has no effect while evaluating.
func (w *Workflow) Reset() {
	w.Lock()
	if w.state == Evaluating {
		w.Unlock()
		return
	}

	changed := w.state != NotRequested
	w.state = NotRequested
	fn := w.onChange
	w.Unlock()

	if changed && fn != nil {
		fn(NotRequested)
	}
}

// Request evaluates the clearance. It refreshes the balance and the ship
// record, computes the dues and, if the balance covers them, pays them to the
// owner. It returns ErrBusy if an evaluation is in flight and
// ErrInsufficientFunds if the balance is lower than the dues. On any failure
// the workflow goes back to NotRequested. A request once granted is a no-op.
func (w *Workflow) Request(ctx context.Context) (txn.Result, error) {
	w.Lock()
	switch w.state {
	case Evaluating:
		w.Unlock()
		return txn.Result{}, xerrors.Errorf("clearance is being evaluated: %w", core.ErrBusy)
	case Granted:
		w.Unlock()
		return txn.Result{Op: "clearance", Status: txn.StatusSuccess}, nil
	}

	w.state = Evaluating
	w.Unlock()

	w.notify(Evaluating)

	res, err := w.evaluate(ctx)
	if err != nil {
		w.transition(NotRequested)

		return res, err
	}

	w.transition(Granted)

	return res, nil
}

func (w *Workflow) evaluate(ctx context.Context) (txn.Result, error) {
	snap, err := w.refresher.Refresh(ctx, view.FieldAgency|view.FieldShip|view.FieldBalance)
	if err != nil {
		return txn.Result{}, xerrors.Errorf("failed to refresh: %w", err)
	}

	if !snap.Identity.Connected() {
		return txn.Result{}, xerrors.Errorf("not connected: %w", core.ErrProviderUnavailable)
	}

	due, err := w.calc.Compute(snap.Ship.NetTonnage)
	if err != nil {
		return txn.Result{}, xerrors.Errorf("failed to compute dues: %w", err)
	}

	logger := shipagency.Logger.With().
		Stringer("address", snap.Identity.Address).
		Stringer("balance", snap.Balance).
		Stringer("dues", due).
		Logger()

	if snap.Balance.Cmp(due) < 0 {
		logger.Info().Msg("clearance refused")

		return txn.Result{}, xerrors.Errorf("balance %s < dues %s: %w",
			snap.Balance, due, core.ErrInsufficientFunds)
	}

	owner := snap.Agency.Owner

	op := txn.NewOp("clearance", view.FieldBalance, func(ctx context.Context) (ledger.Pending, error) {
		return w.client.Withdraw(ctx, owner, due)
	})

	res := w.executor.Execute(ctx, op)
	if !res.OK() {
		return res, xerrors.Errorf("failed to pay dues: %w", res.Err)
	}

	logger.Info().Str("tx", res.Receipt.TxID).Msg("clearance granted")

	return res, nil
}

func (w *Workflow) transition(next State) {
	w.Lock()
	w.state = next
	w.Unlock()

	w.notify(next)
}

func (w *Workflow) notify(state State) {
	w.Lock()
	fn := w.onChange
	w.Unlock()

	if fn != nil {
		fn(state)
	}
}
