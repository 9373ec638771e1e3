// Package shipagency is the root of the ship agency ledger client. It holds
// the process-wide logger and the list of prometheus collectors that the
// components register.
package shipagency

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance.
var Logger = zerolog.New(logout).
	With().Timestamp().Logger().
	With().Caller().Logger().
	Level(zerolog.InfoLevel)

// PromCollectors exposes the prometheus collectors created by the packages so
// that a single registry can serve them.
var PromCollectors []prometheus.Collector
