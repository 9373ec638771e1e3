package main

import (
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"

	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/cli"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/ledger/mem"
	"go.dedis.ch/shipagency/core/ledger/rpc"
	"go.dedis.ch/shipagency/core/txn/signed"
	"go.dedis.ch/shipagency/crypto/bls"
	"go.dedis.ch/shipagency/crypto/loader"
	"golang.org/x/xerrors"
)

// nodeInitializer registers the command that runs a development ledger.
//
// - implements cli.Initializer
type nodeInitializer struct {
	cfg config
}

// SetCommands implements cli.Initializer.
func (i nodeInitializer) SetCommands(provider cli.Provider) {
	cmd := provider.SetCommand("node")
	cmd.SetDescription("run an in-memory ledger behind a gateway")
	cmd.SetFlags(
		cli.StringFlag{
			Name:  "listen",
			Usage: "listening address, the ledger address of the config by default",
		},
		cli.StringFlag{
			Name:  "owner",
			Usage: "address of the owner of the agency",
		},
		cli.StringFlag{
			Name:  "owner-key",
			Usage: "path to the key of the owner of the agency",
		},
		cli.StringSliceFlag{
			Name:  "fund",
			Usage: "credit the wallet of an address, as <address>=<amount>",
		},
	)
	cmd.SetAction(nodeAction{cfg: i.cfg}.execute)
}

type nodeAction struct {
	cfg config
}

func (a nodeAction) execute(flags cli.Flags) error {
	e, err := openEnv(flags)
	if err != nil {
		return err
	}

	defer e.Close()

	owner, err := resolveOwner(flags)
	if err != nil {
		return xerrors.Errorf("failed to resolve owner: %v", err)
	}

	backend := mem.NewLedger(owner, mem.WithVerifier(bls.Verifier{}))

	for _, fund := range flags.StringSlice("fund") {
		addr, value, err := parseFund(fund)
		if err != nil {
			return xerrors.Errorf("invalid fund '%s': %v", fund, err)
		}

		backend.Fund(addr, value)
	}

	addr := flags.String("listen")
	if addr == "" {
		addr = e.cfg.Ledger
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return xerrors.Errorf("failed to listen: %v", err)
	}

	srv := rpc.NewServer(backend, rpc.WithServerTracer(e.tracer))

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(lis)
	}()

	fmt.Fprintf(a.cfg.Writer, "ledger of agency %s listening on %s\n", owner, lis.Addr())

	signal.Notify(a.cfg.Channel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.cfg.Channel)

	select {
	case <-a.cfg.Channel:
	case err := <-done:
		return err
	}

	srv.Stop()

	err = <-done
	if err != nil {
		return err
	}

	shipagency.Logger.Info().Msg("node has been stopped")

	return nil
}

// resolveOwner returns the address given by the flags, or the address of the
// key file.
func resolveOwner(flags cli.Flags) (ledger.Address, error) {
	text := flags.String("owner")
	if text != "" {
		return ledger.ParseAddress(text)
	}

	path := flags.Path("owner-key")
	if path == "" {
		return "", xerrors.New("use --owner or --owner-key")
	}

	data, err := loader.NewFileLoader(path).Load()
	if err != nil {
		return "", xerrors.Errorf("failed to load key: %v", err)
	}

	signer, err := bls.NewSignerFromBytes(data)
	if err != nil {
		return "", xerrors.Errorf("invalid key: %v", err)
	}

	return signed.AddressOf(signer.PublicKey()), nil
}

func parseFund(text string) (ledger.Address, amount.Amount, error) {
	left, right, found := strings.Cut(text, "=")
	if !found {
		return "", amount.Amount{}, xerrors.New("missing '='")
	}

	addr, err := ledger.ParseAddress(left)
	if err != nil {
		return "", amount.Amount{}, err
	}

	value, err := amount.Parse(right)
	if err != nil {
		return "", amount.Amount{}, err
	}

	return addr, value, nil
}
