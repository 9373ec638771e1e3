package ledger

import (
	"context"
	"time"

	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/codec"
	"golang.org/x/xerrors"
)

// DefaultTimeout is the default bound of a single call to the backend.
const DefaultTimeout = 10 * time.Second

// ClientOption is the type of option to create a client.
type ClientOption func(*Client)

// WithTimeout sets the bound of every call to the backend.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client is the typed adapter over the contract. It does not wait for the
// confirmation of the writes.
type Client struct {
	backend Reader
	signers SignerSource
	timeout time.Duration
}

// NewClient creates a new client that reads from the backend and signs the
// writes with the signer of the source.
func NewClient(backend Reader, signers SignerSource, opts ...ClientOption) *Client {
	c := &Client{
		backend: backend,
		signers: signers,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetAgencyOwner returns the address of the owner of the agency.
func (c *Client) GetAgencyOwner(ctx context.Context) (Address, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	owner, err := c.backend.AgencyOwner(ctx)
	if err != nil {
		return "", Classify(ctx, "failed to read agency owner", err)
	}

	return owner, nil
}

// GetAgencyName returns the name of the agency, or codec.Unset.
func (c *Client) GetAgencyName(ctx context.Context) (string, error) {
	return c.readText(ctx, "agency name", c.backend.AgencyName)
}

// GetShipIMO returns the IMO number of the ship, or codec.Unset.
func (c *Client) GetShipIMO(ctx context.Context) (string, error) {
	return c.readText(ctx, "ship IMO", c.backend.ShipIMO)
}

// GetShipTonnage returns the net tonnage of the ship, or zero if unset.
func (c *Client) GetShipTonnage(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	field, err := c.backend.ShipTonnage(ctx)
	if err != nil {
		return 0, Classify(ctx, "failed to read ship tonnage", err)
	}

	tonnage, err := codec.DecodeNumber(field)
	if err != nil {
		return 0, xerrors.Errorf("failed to decode ship tonnage: %w", err)
	}

	return tonnage, nil
}

// GetBalance returns the balance of the account of the address.
func (c *Client) GetBalance(ctx context.Context, addr Address) (amount.Amount, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	balance, err := c.backend.Balance(ctx, addr)
	if err != nil {
		return amount.Amount{}, Classify(ctx, "failed to read balance", err)
	}

	return balance, nil
}

// SetAgencyName submits the new name of the agency. The ledger reverts it if
// the caller is not the owner.
func (c *Client) SetAgencyName(ctx context.Context, name string) (Pending, error) {
	field, err := codec.EncodeText(name)
	if err != nil {
		return nil, xerrors.Errorf("agency name: %w", err)
	}

	return c.send(ctx, Call{Method: MethodSetAgencyName, Field: field})
}

// SetShipIMO submits the IMO number of the ship.
func (c *Client) SetShipIMO(ctx context.Context, imo string) (Pending, error) {
	field, err := codec.EncodeText(imo)
	if err != nil {
		return nil, xerrors.Errorf("IMO number: %w", err)
	}

	return c.send(ctx, Call{Method: MethodSetShipIMO, Field: field})
}

// SetShipTonnage submits the net tonnage of the ship.
func (c *Client) SetShipTonnage(ctx context.Context, tonnage uint64) (Pending, error) {
	if tonnage == 0 {
		return nil, xerrors.Errorf("tonnage must be positive: %w", core.ErrInvalidInput)
	}

	field, err := codec.EncodeNumber(tonnage)
	if err != nil {
		return nil, xerrors.Errorf("net tonnage: %w", err)
	}

	return c.send(ctx, Call{Method: MethodSetShipTonnage, Field: field})
}

// Deposit submits a deposit of the amount to the account of the caller.
func (c *Client) Deposit(ctx context.Context, value amount.Amount) (Pending, error) {
	if value.IsZero() {
		return nil, xerrors.Errorf("deposit must be positive: %w", core.ErrInvalidInput)
	}

	return c.send(ctx, Call{Method: MethodDeposit, Amount: value})
}

// Withdraw submits a withdrawal of the amount from the account of the caller
// to the recipient.
func (c *Client) Withdraw(ctx context.Context, to Address, value amount.Amount) (Pending, error) {
	if to.IsZero() {
		return nil, xerrors.Errorf("missing recipient: %w", core.ErrInvalidInput)
	}

	if value.IsZero() {
		return nil, xerrors.Errorf("withdrawal must be positive: %w", core.ErrInvalidInput)
	}

	return c.send(ctx, Call{Method: MethodWithdraw, To: to, Amount: value})
}

func (c *Client) send(ctx context.Context, call Call) (Pending, error) {
	signer, err := c.signers.Signer()
	if err != nil {
		return nil, xerrors.Errorf("no signer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pending, err := signer.Send(ctx, call)
	if err != nil {
		return nil, Classify(ctx, "failed to submit "+string(call.Method), err)
	}

	shipagency.Logger.Debug().
		Str("method", string(call.Method)).
		Stringer("from", signer.GetAddress()).
		Str("tx", pending.GetID()).
		Msg("transaction submitted")

	return pending, nil
}

func (c *Client) readText(ctx context.Context, name string,
	fn func(context.Context) (codec.Field, error)) (string, error) {

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	field, err := fn(ctx)
	if err != nil {
		return "", Classify(ctx, "failed to read "+name, err)
	}

	text, err := codec.DecodeText(field)
	if err != nil {
		return "", xerrors.Errorf("failed to decode %s: %w", name, err)
	}

	return text, nil
}

// Classify wraps the error of a call to the ledger into the error taxonomy. An
// error already in the taxonomy is kept, an expired context becomes
// ErrTimedOut and anything else is considered as ErrNetwork.
func Classify(ctx context.Context, msg string, err error) error {
	switch {
	case known(err):
		return xerrors.Errorf("%s: %w", msg, err)
	case xerrors.Is(err, context.DeadlineExceeded) || xerrors.Is(ctx.Err(), context.DeadlineExceeded):
		return xerrors.Errorf("%s: %v: %w", msg, err, core.ErrTimedOut)
	default:
		return xerrors.Errorf("%s: %v: %w", msg, err, core.ErrNetwork)
	}
}

func known(err error) bool {
	taxonomy := []error{
		core.ErrProviderUnavailable,
		core.ErrUserRejected,
		core.ErrReverted,
		core.ErrNetwork,
		core.ErrTimedOut,
		core.ErrInvalidInput,
		core.ErrBusy,
	}

	for _, e := range taxonomy {
		if xerrors.Is(err, e) {
			return true
		}
	}

	return false
}
