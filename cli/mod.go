// Package cli describes the command line of the agent independently of the
// library that parses it. Groups of commands register themselves through an
// Initializer and read their flags through Flags.
//
// 	builder := ucli.NewBuilder("shipagent", nil)
//
// 	dues := builder.SetCommand("dues")
// 	dues.SetDescription("print the dues of a net tonnage")
// 	dues.SetFlags(cli.Uint64Flag{Name: "tonnage", Required: true})
// 	dues.SetAction(func(flags cli.Flags) error {
// 		fmt.Println(flags.Uint64("tonnage"))
// 		return nil
// 	})
//
// 	err := builder.Build().Run(os.Args)
package cli

import (
	"time"
)

// Builder collects the commands, then builds the application.
type Builder interface {
	Provider

	Build() Application
}

// Application runs the command found in the arguments.
type Application interface {
	Run(arguments []string) error
}

// Provider is the part of the builder the initializers use to register their
// commands.
type Provider interface {
	SetCommand(name string) CommandBuilder
}

// Initializer registers a group of commands.
type Initializer interface {
	SetCommands(Provider)
}

// CommandBuilder defines a command: its usage line, its flags, what it runs
// and its subcommands.
type CommandBuilder interface {
	SetDescription(value string)

	SetFlags(...Flag)

	SetAction(Action)

	// SetSubCommand creates a subcommand and returns its builder.
	SetSubCommand(name string) CommandBuilder
}

// Action is the function run by a command.
type Action func(Flags) error

// Flag marks the flag definitions of this package.
type Flag interface {
	Flag()
}

// Flags reads the parsed flags. A flag that is not set reads as its default
// value. Global flags can be read from any command.
type Flags interface {
	String(name string) string

	StringSlice(name string) []string

	Path(name string) string

	Duration(name string) time.Duration

	Int(name string) int

	Uint64(name string) uint64

	Float64(name string) float64

	Bool(name string) bool
}
