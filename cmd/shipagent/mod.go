// Package main implements the command line client of the ship agency ledger.
//
//  shipagent key new --save private.key
//  shipagent node --listen 127.0.0.1:2000 --owner-key owner.key \
//    --fund 0x...=10
//  shipagent --config agent.yml status
//  shipagent --config agent.yml ship set-tonnage --tonnage 1000
//  shipagent --config agent.yml deposit --amount 0.001
//  shipagent --config agent.yml clearance
//
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/cli"
	"go.dedis.ch/shipagency/cli/ucli"
	bls "go.dedis.ch/shipagency/crypto/bls/command"
)

// config is the runtime of the application. The tests replace the signal
// channel and the output.
type config struct {
	Channel chan os.Signal
	Writer  io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{Channel: make(chan os.Signal, 1), Writer: os.Stdout})
}

func runWithCfg(args []string, cfg config) error {
	builder := ucli.NewBuilder("shipagent", nil,
		cli.StringFlag{
			Name:  "config",
			Usage: "path to the YAML configuration file",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "print the debug logs",
		},
		cli.Float64Flag{
			Name:  "poll-rate",
			Usage: "receipt queries per second, overrides the configuration",
		},
		cli.DurationFlag{
			Name:  "confirmation-timeout",
			Usage: "bound of the wait for a confirmation, overrides the configuration",
		},
		cli.BoolFlag{
			Name:  "tracing",
			Usage: "report the traces to the jaeger agent set in the environment",
		},
	)

	builder.SetUsage("ship agency ledger client")

	inits := []cli.Initializer{
		bls.Initializer{},
		nodeInitializer{cfg: cfg},
		clientInitializer{out: cfg.Writer},
	}

	for _, init := range inits {
		init.SetCommands(builder)
	}

	app := builder.Build()

	err := app.Run(args)
	if err != nil {
		return err
	}

	return nil
}

// setLogLevel applies the debug flag to the global logger.
func setLogLevel(flags cli.Flags) {
	if flags.Bool("debug") {
		shipagency.Logger = shipagency.Logger.Level(zerolog.DebugLevel)
	}
}
