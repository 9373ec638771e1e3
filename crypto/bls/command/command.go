// Package command defines the cli commands to manage the BLS key of the agent.
package command

import (
	"os"

	"go.dedis.ch/shipagency/cli"
	"go.dedis.ch/shipagency/crypto/bls"
)

// Initializer implements the key commands.
//
// - implements cli.Initializer
type Initializer struct{}

// SetCommands implements cli.Initializer.
func (i Initializer) SetCommands(provider cli.Provider) {
	action := action{
		printer: os.Stdout,

		genSigner: bls.Generator{}.Generate,
		getPubKey: getPubkey,
		readKey:   readKey,
		saveKey:   saveKey,
	}

	cmd := provider.SetCommand("key")
	cmd.SetDescription("manage the BLS key of the agent")

	new := cmd.SetSubCommand("new")
	new.SetDescription("create a new key")
	new.SetFlags(cli.StringFlag{
		Name:     "save",
		Usage:    "if provided, save the key to that file",
		Required: false,
	}, cli.BoolFlag{
		Name:     "force",
		Usage:    "in the case it saves the key, will overwrite if needed",
		Required: false,
	})
	new.SetAction(action.newSignerAction)

	show := cmd.SetSubCommand("show")
	show.SetDescription("print the identity of a key")
	show.SetFlags(cli.StringFlag{
		Name:     "path",
		Usage:    "path to the key file",
		Required: true,
	}, cli.StringFlag{
		Name:     "format",
		Usage:    "output format: [ADDRESS | PUBKEY | BASE64_PUBKEY]",
		Value:    Address,
		Required: false,
	})
	show.SetAction(action.showSignerAction)
}
