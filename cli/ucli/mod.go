// Package ucli builds the command line of the agent with urfave/cli.
package ucli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/shipagency/cli"
)

// Builder is the root of the application.
//
// - implements cli.Builder
type Builder struct {
	name     string
	usage    string
	action   cli.Action
	flags    []cli.Flag
	commands []*cmdBuilder
}

// NewBuilder creates the builder of an application. The action runs when no
// command is given and can be nil. The flags are global: every command can
// read them.
func NewBuilder(name string, action cli.Action, flags ...cli.Flag) *Builder {
	return &Builder{
		name:   name,
		action: action,
		flags:  flags,
	}
}

// SetUsage sets the one-line description of the application.
func (b *Builder) SetUsage(usage string) {
	b.usage = usage
}

// SetCommand implements cli.Provider.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	cmd := &cmdBuilder{name: name}
	b.commands = append(b.commands, cmd)

	return cmd
}

// Build implements cli.Builder. It returns the urfave application.
func (b *Builder) Build() cli.Application {
	app := &urfave.App{
		Name:     b.name,
		Usage:    b.usage,
		Action:   makeAction(b.action),
		Flags:    buildFlags(b.flags),
		Commands: buildCommands(b.commands),
	}

	app.Setup()

	return app
}

// cmdBuilder records the definition of a command until the application is
// built.
//
// - implements cli.CommandBuilder
type cmdBuilder struct {
	name        string
	description string
	action      cli.Action
	flags       []urfave.Flag
	subcommands []*cmdBuilder
}

// SetDescription implements cli.CommandBuilder.
func (b *cmdBuilder) SetDescription(value string) {
	b.description = value
}

// SetFlags implements cli.CommandBuilder.
func (b *cmdBuilder) SetFlags(flags ...cli.Flag) {
	b.flags = buildFlags(flags)
}

// SetAction implements cli.CommandBuilder.
func (b *cmdBuilder) SetAction(action cli.Action) {
	b.action = action
}

// SetSubCommand implements cli.CommandBuilder.
func (b *cmdBuilder) SetSubCommand(name string) cli.CommandBuilder {
	sub := &cmdBuilder{name: name}
	b.subcommands = append(b.subcommands, sub)

	return sub
}

func buildCommands(cmds []*cmdBuilder) []*urfave.Command {
	commands := make([]*urfave.Command, len(cmds))

	for i, cmd := range cmds {
		commands[i] = &urfave.Command{
			Name:        cmd.name,
			Usage:       cmd.description,
			Action:      makeAction(cmd.action),
			Flags:       cmd.flags,
			Subcommands: buildCommands(cmd.subcommands),
		}
	}

	return commands
}

func buildFlags(flags []cli.Flag) []urfave.Flag {
	res := make([]urfave.Flag, len(flags))

	for i, f := range flags {
		res[i] = toUrfave(f)
	}

	return res
}

// toUrfave converts a flag definition. It panics on a type it does not know
// as it is a programming error.
func toUrfave(f cli.Flag) urfave.Flag {
	switch e := f.(type) {
	case cli.StringFlag:
		return &urfave.StringFlag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	case cli.StringSliceFlag:
		return &urfave.StringSliceFlag{Name: e.Name, Usage: e.Usage, Required: e.Required,
			Value: urfave.NewStringSlice(e.Value...)}
	case cli.DurationFlag:
		return &urfave.DurationFlag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	case cli.IntFlag:
		return &urfave.IntFlag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	case cli.Uint64Flag:
		return &urfave.Uint64Flag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	case cli.Float64Flag:
		return &urfave.Float64Flag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	case cli.BoolFlag:
		return &urfave.BoolFlag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	default:
		panic(fmt.Sprintf("flag type '%T' not supported", f))
	}
}

// makeAction adapts the action to urfave. The urfave context implements
// cli.Flags.
func makeAction(action cli.Action) urfave.ActionFunc {
	if action == nil {
		return nil
	}

	return func(ctx *urfave.Context) error {
		return action(ctx)
	}
}
