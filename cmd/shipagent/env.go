package main

import (
	"net"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/cli"
	settings "go.dedis.ch/shipagency/core/config"
	"go.dedis.ch/shipagency/internal/tracing"
	"golang.org/x/xerrors"
)

const serviceName = "shipagent"

// env holds the resources shared by the commands.
type env struct {
	cfg     settings.Config
	tracer  opentracing.Tracer
	closers []func() error
}

// openEnv loads the configuration and starts the optional exporters.
func openEnv(flags cli.Flags) (*env, error) {
	setLogLevel(flags)

	cfg, err := settings.Load(flags.Path("config"))
	if err != nil {
		return nil, xerrors.Errorf("failed to load config: %v", err)
	}

	if flags.Float64("poll-rate") > 0 {
		cfg.PollRate = flags.Float64("poll-rate")
	}

	if flags.Duration("confirmation-timeout") > 0 {
		cfg.Timeouts.Confirmation = flags.Duration("confirmation-timeout")
	}

	e := &env{
		cfg:    cfg,
		tracer: opentracing.NoopTracer{},
	}

	if flags.Bool("tracing") {
		tracer, err := tracing.GetTracer(serviceName)
		if err != nil {
			return nil, xerrors.Errorf("failed to create tracer: %v", err)
		}

		e.tracer = tracer
		e.closers = append(e.closers, tracing.CloseAll)
	}

	if cfg.Metrics != "" {
		srv, err := serveMetrics(cfg.Metrics)
		if err != nil {
			e.Close()
			return nil, xerrors.Errorf("failed to serve metrics: %v", err)
		}

		e.closers = append(e.closers, srv.Close)
	}

	return e, nil
}

// Close releases the resources in the reverse order of their creation.
func (e *env) Close() error {
	for i := len(e.closers) - 1; i >= 0; i-- {
		err := e.closers[i]()
		if err != nil {
			return err
		}
	}

	e.closers = nil

	return nil
}

// serveMetrics exposes the collectors of the packages on /metrics.
func serveMetrics(addr string) (*http.Server, error) {
	registry := prometheus.NewRegistry()

	for _, c := range shipagency.PromCollectors {
		err := registry.Register(c)
		if err != nil {
			return nil, xerrors.Errorf("failed to register: %v", err)
		}
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := srv.Serve(lis)
		if err != nil && err != http.ErrServerClosed {
			shipagency.Logger.Err(err).Msg("metrics server failed")
		}
	}()

	shipagency.Logger.Info().Stringer("addr", lis.Addr()).Msg("metrics available")

	return srv, nil
}
