package command

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"go.dedis.ch/shipagency/cli"
	"go.dedis.ch/shipagency/core/txn/signed"
	"go.dedis.ch/shipagency/crypto/bls"
	"go.dedis.ch/shipagency/crypto/loader"
	"golang.org/x/xerrors"
)

// Output formats of the show command.
const (
	Address      = "ADDRESS"
	Pubkey       = "PUBKEY"
	Base64Pubkey = "BASE64_PUBKEY"
)

// action defines the different cli actions of the key commands. Defining
// functions and printer helps in testing the commands.
type action struct {
	printer io.Writer

	genSigner func() ([]byte, error)
	getPubKey func([]byte) ([]byte, error)

	readKey func(path string) ([]byte, error)
	saveKey func(path string, force bool, data []byte) error
}

func (a action) newSignerAction(flags cli.Flags) error {
	data, err := a.genSigner()
	if err != nil {
		return xerrors.Errorf("failed to marshal signer: %v", err)
	}

	switch flags.String("save") {
	case "":
		fmt.Fprintln(a.printer, hex.EncodeToString(data))
	default:
		err := a.saveKey(flags.String("save"), flags.Bool("force"), data)
		if err != nil {
			return xerrors.Errorf("failed to save key: %v", err)
		}
	}

	return nil
}

func (a action) showSignerAction(flags cli.Flags) error {
	data, err := a.readKey(flags.Path("path"))
	if err != nil {
		return xerrors.Errorf("failed to read key: %v", err)
	}

	pubkey, err := a.getPubKey(data)
	if err != nil {
		return xerrors.Errorf("failed to get public key: %v", err)
	}

	var out string

	switch flags.String("format") {
	case Address:
		out = signed.AddressOf(pubkey).String()
	case Pubkey:
		out = hex.EncodeToString(pubkey)
	case Base64Pubkey:
		out = base64.StdEncoding.EncodeToString(pubkey)
	default:
		return xerrors.Errorf("unknown format '%s'", flags.String("format"))
	}

	fmt.Fprintln(a.printer, out)

	return nil
}

func readKey(path string) ([]byte, error) {
	return loader.NewFileLoader(path).Load()
}

func saveKey(path string, force bool, data []byte) error {
	err := loader.NewFileLoader(path).Save(data, force)
	if err != nil {
		return xerrors.Errorf("%v, use --force if you want to overwrite", err)
	}

	return nil
}

func getPubkey(data []byte) ([]byte, error) {
	signer, err := bls.NewSignerFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal signer: %v", err)
	}

	return signer.PublicKey(), nil
}
