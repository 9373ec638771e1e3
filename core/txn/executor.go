package txn

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/xerrors"
)

// DefaultConfirmationTimeout is the default bound of the wait for a
// confirmation.
const DefaultConfirmationTimeout = 2 * time.Minute

var (
	promResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipagency_txn_results_total",
		Help: "total number of executed operations per status",
	}, []string{"op", "status"})

	promConfirmation = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipagency_txn_confirmation_seconds",
		Help:    "time to confirm a transaction after its submission",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})
)

func init() {
	shipagency.PromCollectors = append(shipagency.PromCollectors, promResults,
		promConfirmation)
}

// ExecutorOption is the type of option to create an executor.
type ExecutorOption func(*Executor)

// WithConfirmationTimeout sets the bound of the wait for a confirmation.
func WithConfirmationTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithRecorder sets the recorder of the results.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) {
		e.recorder = r
	}
}

// WithTracer sets the tracer of the executions.
func WithTracer(tracer opentracing.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// Executor submits operations and waits for their confirmation.
type Executor struct {
	refresher Refresher
	recorder  Recorder
	tracer    opentracing.Tracer
	timeout   time.Duration
}

// NewExecutor creates an executor that refreshes the view with the refresher
// after each confirmed transaction.
func NewExecutor(refresher Refresher, opts ...ExecutorOption) *Executor {
	e := &Executor{
		refresher: refresher,
		tracer:    opentracing.GlobalTracer(),
		timeout:   DefaultConfirmationTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute submits the operation and waits for the confirmation. The returned
// result is never retried.
func (e *Executor) Execute(ctx context.Context, op Op) Result {
	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, e.tracer, "txn."+op.Name())
	defer span.Finish()

	res := e.execute(ctx, op)

	span.SetTag("status", res.Status.String())
	if res.Receipt.TxID != "" {
		span.SetTag("tx", res.Receipt.TxID)
	}

	promResults.WithLabelValues(op.Name(), res.Status.String()).Inc()

	if e.recorder != nil {
		err := e.recorder.Record(res)
		if err != nil {
			shipagency.Logger.Warn().Err(err).Str("op", op.Name()).Msg("failed to record result")
		}
	}

	return res
}

func (e *Executor) execute(ctx context.Context, op Op) Result {
	res := Result{Op: op.Name()}

	pending, err := op.Submit(ctx)
	if err != nil {
		return e.fail(res, xerrors.Errorf("failed to submit: %w", err))
	}

	res.Receipt.TxID = pending.GetID()

	logger := shipagency.Logger.With().Str("op", op.Name()).Str("tx", pending.GetID()).Logger()
	logger.Info().Msg("waiting for confirmation")

	start := time.Now()

	waitCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	receipt, err := pending.Wait(waitCtx)
	if err != nil {
		if xerrors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = xerrors.Errorf("no confirmation after %v: %w", e.timeout, core.ErrTimedOut)
		} else {
			err = ledger.Classify(waitCtx, "failed to confirm", err)
		}

		return e.fail(res, err)
	}

	promConfirmation.Observe(time.Since(start).Seconds())

	res.Status = StatusSuccess
	res.Receipt = receipt

	logger.Info().Uint64("index", receipt.Index).Dur("elapsed", time.Since(start)).
		Msg("transaction confirmed")

	if e.refresher != nil && op.Affects() != 0 {
		snap, err := e.refresher.Refresh(ctx, op.Affects())
		if err != nil {
			logger.Warn().Err(err).Msg("failed to refresh after confirmation")
			res.RefreshErr = err
		} else {
			res.Snapshot = snap
		}
	}

	return res
}

func (e *Executor) fail(res Result, err error) Result {
	res.Status = StatusOf(err)
	res.Err = err

	shipagency.Logger.Warn().
		Str("op", res.Op).
		Stringer("status", res.Status).
		Err(err).
		Msg("operation failed")

	return res
}
