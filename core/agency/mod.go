// Package agency implements the session of a user of the ship agency.
//
// The session owns the wallet, the ledger client, the view, the executor and
// the clearance workflow. The presentation layer talks to it through two entry
// points only: Dispatch sends an intent of the user and Subscribe registers an
// observer of the consolidated state.
package agency

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/clearance"
	"go.dedis.ch/shipagency/core/dues"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/txn"
	"go.dedis.ch/shipagency/core/view"
	"go.dedis.ch/shipagency/core/wallet"
	"golang.org/x/xerrors"
)

// MinNetTonnage is the smallest tonnage expected for a ship. Smaller values
// are accepted with a warning.
const MinNetTonnage = 800

var promIntents = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "shipagency_intents_total",
	Help: "total number of dispatched intents per outcome",
}, []string{"intent", "outcome"})

func init() {
	shipagency.PromCollectors = append(shipagency.PromCollectors, promIntents)
}

// State is the consolidated state published to the presentation layer.
type State struct {
	view.Snapshot

	Clearance clearance.State

	// Busy is true while a mutating intent is in flight.
	Busy bool

	// Err is the error of the most recent intent. It is cleared by the next
	// intent that succeeds.
	Err error
}

// Option is the type of option to create a session.
type Option func(*template)

type template struct {
	rates       dues.Rates
	rpcTimeout  time.Duration
	confTimeout time.Duration
	recorder    txn.Recorder
	tracer      opentracing.Tracer
}

// WithRates sets the rates of the dues.
func WithRates(rates dues.Rates) Option {
	return func(tmpl *template) {
		tmpl.rates = rates
	}
}

// WithRPCTimeout sets the bound of the reads of the ledger.
func WithRPCTimeout(d time.Duration) Option {
	return func(tmpl *template) {
		tmpl.rpcTimeout = d
	}
}

// WithConfirmationTimeout sets the bound of the wait for a confirmation.
func WithConfirmationTimeout(d time.Duration) Option {
	return func(tmpl *template) {
		tmpl.confTimeout = d
	}
}

// WithRecorder sets the recorder of the executed operations.
func WithRecorder(r txn.Recorder) Option {
	return func(tmpl *template) {
		tmpl.recorder = r
	}
}

// WithTracer sets the tracer of the executed operations.
func WithTracer(tracer opentracing.Tracer) Option {
	return func(tmpl *template) {
		tmpl.tracer = tracer
	}
}

// Session is the session of a user.
type Session struct {
	logger   zerolog.Logger
	manager  *wallet.Manager
	client   *ledger.Client
	view     *view.Controller
	executor *txn.Executor
	workflow *clearance.Workflow
	guard    *txn.Guard
	watcher  *core.Watcher[State]

	notify sync.Mutex
	mu     sync.Mutex
	state  State
}

// NewSession creates a new session over the ledger backend and the signing
// provider of the user. The provider can be nil when no wallet is available.
func NewSession(backend ledger.Reader, provider wallet.Provider, opts ...Option) (*Session, error) {
	tmpl := template{
		rates:       dues.DefaultRates(),
		rpcTimeout:  ledger.DefaultTimeout,
		confTimeout: txn.DefaultConfirmationTimeout,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	calc, err := dues.NewCalculatorWithRates(tmpl.rates)
	if err != nil {
		return nil, xerrors.Errorf("failed to create calculator: %v", err)
	}

	manager := wallet.NewManager(provider, nil)
	client := ledger.NewClient(backend, manager, ledger.WithTimeout(tmpl.rpcTimeout))
	manager.SetOwnerReader(client)

	ctrl := view.NewController(client, manager, calc)

	execOpts := []txn.ExecutorOption{txn.WithConfirmationTimeout(tmpl.confTimeout)}
	if tmpl.recorder != nil {
		execOpts = append(execOpts, txn.WithRecorder(tmpl.recorder))
	}
	if tmpl.tracer != nil {
		execOpts = append(execOpts, txn.WithTracer(tmpl.tracer))
	}

	exec := txn.NewExecutor(ctrl, execOpts...)

	s := &Session{
		logger:   shipagency.Logger.With().Str("session", xid.New().String()).Logger(),
		manager:  manager,
		client:   client,
		view:     ctrl,
		executor: exec,
		workflow: clearance.NewWorkflow(ctrl, exec, client, calc),
		guard:    txn.NewGuard(),
		watcher:  core.NewWatcher[State](),
	}

	ctrl.Subscribe(core.ObserverFunc[view.Snapshot](s.onSnapshot))
	s.workflow.OnChange(s.onClearance)

	return s, nil
}

// Subscribe registers the observer of the state and returns the function that
// unregisters it. Observers are notified synchronously and must not dispatch
// intents from the callback.
func (s *Session) Subscribe(obs core.Observer[State]) (unsubscribe func()) {
	return s.watcher.Add(obs)
}

// State returns the last published state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Dispatch executes the intent of the user and returns once it is completed.
// Mutating intents are refused with ErrBusy while another one is in flight
// for the same identity.
func (s *Session) Dispatch(ctx context.Context, intent Intent) error {
	if intent == nil {
		return xerrors.Errorf("missing intent: %w", core.ErrInvalidInput)
	}

	logger := s.logger.With().Str("intent", intent.name()).Logger()
	logger.Debug().Msg("dispatching")

	var err error

	switch in := intent.(type) {
	case Connect:
		err = s.connect(ctx)
	case Refresh:
		_, err = s.view.RefreshAll(ctx)
	case SetAgencyName:
		err = s.execute(ctx, txn.NewOp(string(ledger.MethodSetAgencyName), view.FieldAgency,
			func(ctx context.Context) (ledger.Pending, error) {
				return s.client.SetAgencyName(ctx, in.Name)
			}))
	case SetIMO:
		err = s.execute(ctx, txn.NewOp(string(ledger.MethodSetShipIMO), view.FieldShip,
			func(ctx context.Context) (ledger.Pending, error) {
				return s.client.SetShipIMO(ctx, in.IMO)
			}))
	case SetTonnage:
		if in.Tonnage > 0 && in.Tonnage < MinNetTonnage {
			logger.Warn().Uint64("tonnage", in.Tonnage).Msg("tonnage below the usual minimum")
		}

		err = s.execute(ctx, txn.NewOp(string(ledger.MethodSetShipTonnage), view.FieldShip,
			func(ctx context.Context) (ledger.Pending, error) {
				return s.client.SetShipTonnage(ctx, in.Tonnage)
			}))
	case Deposit:
		err = s.execute(ctx, txn.NewOp(string(ledger.MethodDeposit), view.FieldBalance,
			func(ctx context.Context) (ledger.Pending, error) {
				return s.client.Deposit(ctx, in.Amount)
			}))
	case Withdraw:
		err = s.execute(ctx, txn.NewOp(string(ledger.MethodWithdraw), view.FieldBalance,
			func(ctx context.Context) (ledger.Pending, error) {
				return s.client.Withdraw(ctx, s.manager.Identity().Address, in.Amount)
			}))
	case RequestClearance:
		err = s.guarded(func() error {
			_, err := s.workflow.Request(ctx)
			return err
		})
	default:
		err = xerrors.Errorf("unknown intent '%s': %w", intent.name(), core.ErrInvalidInput)
	}

	if err != nil {
		promIntents.WithLabelValues(intent.name(), txn.StatusOf(err).String()).Inc()
		logger.Warn().Err(err).Msg("intent failed")
	} else {
		promIntents.WithLabelValues(intent.name(), txn.StatusSuccess.String()).Inc()
	}

	s.update(func(state *State) {
		state.Err = err
	})

	return err
}

func (s *Session) connect(ctx context.Context) error {
	_, err := s.manager.Connect(ctx)
	if err != nil {
		return xerrors.Errorf("failed to connect: %w", err)
	}

	s.workflow.Reset()
	s.view.Reset()

	_, err = s.view.RefreshAll(ctx)
	if err != nil {
		return xerrors.Errorf("failed to refresh: %w", err)
	}

	return nil
}

func (s *Session) execute(ctx context.Context, op txn.Op) error {
	return s.guarded(func() error {
		res := s.executor.Execute(ctx, op)
		if !res.OK() {
			return res.Err
		}

		if res.RefreshErr != nil {
			return xerrors.Errorf("%s confirmed but failed to refresh: %w", op.Name(), res.RefreshErr)
		}

		return nil
	})
}

// guarded runs the function while holding the slot of the connected identity.
func (s *Session) guarded(fn func() error) error {
	id := s.manager.Identity()
	if !id.Connected() {
		return xerrors.Errorf("not connected: %w", core.ErrProviderUnavailable)
	}

	unlock, err := s.guard.TryLock(id.Address)
	if err != nil {
		return err
	}

	defer unlock()

	s.update(func(state *State) { state.Busy = true })
	defer s.update(func(state *State) { state.Busy = false })

	return fn()
}

func (s *Session) onSnapshot(snap view.Snapshot) {
	s.update(func(state *State) {
		state.Snapshot = snap
	})
}

func (s *Session) onClearance(cs clearance.State) {
	s.update(func(state *State) {
		state.Clearance = cs
	})
}

// update applies the change and publishes the new state. The notify lock is
// held during the publication so that the observers see the states in the
// order of the changes.
func (s *Session) update(fn func(*State)) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	fn(&s.state)
	state := s.state
	s.mu.Unlock()

	s.watcher.Notify(state)
}

// Intent is an action of the user.
type Intent interface {
	name() string
}

// Connect asks the wallet for the account of the user and loads the state.
type Connect struct{}

func (Connect) name() string { return "connect" }

// Refresh reloads the whole state.
type Refresh struct{}

func (Refresh) name() string { return "refresh" }

// SetAgencyName sets the name of the agency. Only the owner can do it.
type SetAgencyName struct {
	Name string
}

func (SetAgencyName) name() string { return "set_agency_name" }

// SetIMO sets the IMO number of the ship.
type SetIMO struct {
	IMO string
}

func (SetIMO) name() string { return "set_imo" }

// SetTonnage sets the net tonnage of the ship.
type SetTonnage struct {
	Tonnage uint64
}

func (SetTonnage) name() string { return "set_tonnage" }

// Deposit moves funds from the wallet of the user to their account.
type Deposit struct {
	Amount amount.Amount
}

func (Deposit) name() string { return "deposit" }

// Withdraw moves funds from the account of the user back to their wallet.
type Withdraw struct {
	Amount amount.Amount
}

func (Withdraw) name() string { return "withdraw" }

// RequestClearance pays the dues of the ship and grants the clearance.
type RequestClearance struct{}

func (RequestClearance) name() string { return "request_clearance" }
