package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.dedis.ch/shipagency/cli"
	"go.dedis.ch/shipagency/core/agency"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/dues"
	"go.dedis.ch/shipagency/core/journal"
	"go.dedis.ch/shipagency/core/ledger/rpc"
	"go.dedis.ch/shipagency/core/wallet/keystore"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

// clientInitializer registers the commands of the users of the agency.
//
// - implements cli.Initializer
type clientInitializer struct {
	out io.Writer
}

// SetCommands implements cli.Initializer.
func (i clientInitializer) SetCommands(provider cli.Provider) {
	a := clientAction{out: i.out}

	status := provider.SetCommand("status")
	status.SetDescription("connect and print the state of the agency")
	status.SetAction(a.dispatch(nil))

	agencyCmd := provider.SetCommand("agency")
	agencyCmd.SetDescription("manage the agency")

	setName := agencyCmd.SetSubCommand("set-name")
	setName.SetDescription("set the name of the agency, only the owner can")
	setName.SetFlags(cli.StringFlag{Name: "name", Usage: "name of the agency", Required: true})
	setName.SetAction(a.dispatch(func(flags cli.Flags) (agency.Intent, error) {
		return agency.SetAgencyName{Name: flags.String("name")}, nil
	}))

	ship := provider.SetCommand("ship")
	ship.SetDescription("manage the ship record")

	setIMO := ship.SetSubCommand("set-imo")
	setIMO.SetDescription("set the IMO number of the ship")
	setIMO.SetFlags(cli.StringFlag{Name: "imo", Usage: "IMO number", Required: true})
	setIMO.SetAction(a.dispatch(func(flags cli.Flags) (agency.Intent, error) {
		return agency.SetIMO{IMO: flags.String("imo")}, nil
	}))

	setTonnage := ship.SetSubCommand("set-tonnage")
	setTonnage.SetDescription("set the net tonnage of the ship")
	setTonnage.SetFlags(cli.Uint64Flag{Name: "tonnage", Usage: "net tonnage", Required: true})
	setTonnage.SetAction(a.dispatch(func(flags cli.Flags) (agency.Intent, error) {
		return agency.SetTonnage{Tonnage: flags.Uint64("tonnage")}, nil
	}))

	deposit := provider.SetCommand("deposit")
	deposit.SetDescription("move funds from the wallet to the account")
	deposit.SetFlags(amountFlag)
	deposit.SetAction(a.dispatch(func(flags cli.Flags) (agency.Intent, error) {
		value, err := parseAmount(flags)
		return agency.Deposit{Amount: value}, err
	}))

	withdraw := provider.SetCommand("withdraw")
	withdraw.SetDescription("move funds from the account back to the wallet")
	withdraw.SetFlags(amountFlag)
	withdraw.SetAction(a.dispatch(func(flags cli.Flags) (agency.Intent, error) {
		value, err := parseAmount(flags)
		return agency.Withdraw{Amount: value}, err
	}))

	clearance := provider.SetCommand("clearance")
	clearance.SetDescription("pay the dues of the ship and request the clearance")
	clearance.SetAction(a.dispatch(func(cli.Flags) (agency.Intent, error) {
		return agency.RequestClearance{}, nil
	}))

	duesCmd := provider.SetCommand("dues")
	duesCmd.SetDescription("print the dues of a net tonnage")
	duesCmd.SetFlags(cli.Uint64Flag{Name: "tonnage", Usage: "net tonnage", Required: true})
	duesCmd.SetAction(a.dues)

	journalCmd := provider.SetCommand("journal")
	journalCmd.SetDescription("print the last operations")
	journalCmd.SetFlags(cli.IntFlag{Name: "last", Usage: "number of operations", Value: 10})
	journalCmd.SetAction(a.journal)
}

var amountFlag = cli.StringFlag{
	Name:     "amount",
	Usage:    "amount in ledger units, e.g. 0.001",
	Required: true,
}

func parseAmount(flags cli.Flags) (amount.Amount, error) {
	value, err := amount.Parse(flags.String("amount"))
	if err != nil {
		return amount.Amount{}, xerrors.Errorf("invalid amount: %v", err)
	}

	return value, nil
}

type clientAction struct {
	out io.Writer
}

// dispatch returns an action that connects a session, sends the intent if any
// and prints the resulting state.
func (a clientAction) dispatch(makeIntent func(cli.Flags) (agency.Intent, error)) cli.Action {
	return func(flags cli.Flags) error {
		var intent agency.Intent

		if makeIntent != nil {
			var err error

			intent, err = makeIntent(flags)
			if err != nil {
				return err
			}
		}

		return a.withSession(flags, func(ctx context.Context, session *agency.Session) error {
			var err error
			if intent != nil {
				err = session.Dispatch(ctx, intent)
			}

			printState(a.out, session.State())

			return err
		})
	}
}

func (a clientAction) withSession(flags cli.Flags,
	fn func(context.Context, *agency.Session) error) error {

	e, err := openEnv(flags)
	if err != nil {
		return err
	}

	defer e.Close()

	client, err := rpc.Dial(e.cfg.Ledger, e.tracer, rpc.WithPollRate(rate.Limit(e.cfg.PollRate)))
	if err != nil {
		return xerrors.Errorf("failed to dial ledger: %v", err)
	}

	defer client.Close()

	provider, err := keystore.Load(e.cfg.Key, client, true)
	if err != nil {
		return xerrors.Errorf("failed to load wallet: %v", err)
	}

	opts := []agency.Option{
		agency.WithRates(e.cfg.Rates()),
		agency.WithRPCTimeout(e.cfg.Timeouts.RPC),
		agency.WithConfirmationTimeout(e.cfg.Timeouts.Confirmation),
		agency.WithTracer(e.tracer),
	}

	if e.cfg.Journal != "" {
		j, err := journal.Open(e.cfg.Journal)
		if err != nil {
			return err
		}

		defer j.Close()

		opts = append(opts, agency.WithRecorder(j))
	}

	session, err := agency.NewSession(client, provider, opts...)
	if err != nil {
		return xerrors.Errorf("failed to create session: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err = session.Dispatch(ctx, agency.Connect{})
	if err != nil {
		return xerrors.Errorf("failed to connect: %v", err)
	}

	return fn(ctx, session)
}

func (a clientAction) dues(flags cli.Flags) error {
	e, err := openEnv(flags)
	if err != nil {
		return err
	}

	defer e.Close()

	calc, err := dues.NewCalculatorWithRates(e.cfg.Rates())
	if err != nil {
		return xerrors.Errorf("failed to create calculator: %v", err)
	}

	value, err := calc.Compute(flags.Uint64("tonnage"))
	if err != nil {
		return xerrors.Errorf("failed to compute: %v", err)
	}

	fmt.Fprintln(a.out, value)

	return nil
}

func (a clientAction) journal(flags cli.Flags) error {
	e, err := openEnv(flags)
	if err != nil {
		return err
	}

	defer e.Close()

	if e.cfg.Journal == "" {
		return xerrors.New("journal is disabled in the configuration")
	}

	j, err := journal.Open(e.cfg.Journal)
	if err != nil {
		return err
	}

	defer j.Close()

	entries, err := j.Last(flags.Int("last"))
	if err != nil {
		return xerrors.Errorf("failed to read journal: %v", err)
	}

	for _, entry := range entries {
		fmt.Fprintf(a.out, "%s %-18s %-13s %s", entry.Time.Format(time.RFC3339),
			entry.Op, entry.Status, entry.TxID)

		if entry.Error != "" {
			fmt.Fprintf(a.out, " %s", entry.Error)
		}

		fmt.Fprintln(a.out)
	}

	return nil
}

func printState(w io.Writer, state agency.State) {
	fmt.Fprintf(w, "account:   %s (%s)\n", state.Identity.Address, state.Identity.Role)
	fmt.Fprintf(w, "agency:    %s\n", orUnset(state.Agency.Name))

	if state.NeedsAgencyName {
		fmt.Fprintln(w, "           the agency has no name, set it with 'agency set-name'")
	}

	fmt.Fprintf(w, "ship:      IMO %s, net tonnage %d\n", orUnset(state.Ship.IMO), state.Ship.NetTonnage)
	fmt.Fprintf(w, "balance:   %s\n", state.Balance)

	if state.HasDues {
		fmt.Fprintf(w, "dues:      %s\n", state.Dues)
	}

	fmt.Fprintf(w, "clearance: %s\n", state.Clearance)

	if state.Err != nil {
		fmt.Fprintf(w, "error:     %v\n", state.Err)
	}
}

func orUnset(text string) string {
	if text == "" {
		return "-"
	}

	return text
}
