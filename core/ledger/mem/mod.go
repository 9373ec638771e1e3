// Package mem implements an in-memory simulation of the ship agency contract
// and of the wallets of its users.
//
// It is used as a development ledger and as the double of the external
// collaborators in the tests. The contract rules it applies are the ones the
// client relies on: only the owner sets the agency name, deposits move funds
// from the wallet of the caller to its account, and withdrawals move funds
// from the account of the caller to the account of the recipient. A caller
// withdrawing to itself takes the funds back to its wallet.
package mem

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/rs/xid"
	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/codec"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/xerrors"
)

// Verifier verifies the signature of a message for a public key.
type Verifier interface {
	Verify(pubkey, msg, sig []byte) error
}

// Option is the type of option to create a ledger.
type Option func(*Ledger)

// WithVerifier makes the ledger require valid signatures on the transactions.
func WithVerifier(v Verifier) Option {
	return func(l *Ledger) {
		l.verifier = v
	}
}

// Ledger is the in-memory contract.
//
// - implements ledger.Backend
type Ledger struct {
	sync.Mutex

	owner    ledger.Address
	name     codec.Field
	imo      codec.Field
	tonnage  codec.Field
	accounts map[ledger.Address]amount.Amount
	funds    map[ledger.Address]amount.Amount
	nonces   map[ledger.Address]uint64
	index    uint64
	verifier Verifier

	// held transactions are confirmed only when released.
	hold    bool
	held    []*pending
	readErr error
	subErr  error
}

// NewLedger creates a new contract owned by the address.
func NewLedger(owner ledger.Address, opts ...Option) *Ledger {
	l := &Ledger{
		owner:    owner,
		accounts: make(map[ledger.Address]amount.Amount),
		funds:    make(map[ledger.Address]amount.Amount),
		nonces:   make(map[ledger.Address]uint64),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Fund credits the wallet of the address. It simulates the native currency
// owned by the users outside of the contract.
func (l *Ledger) Fund(addr ledger.Address, value amount.Amount) {
	l.Lock()
	l.funds[addr] = l.funds[addr].Add(value)
	l.Unlock()
}

// Funds returns the amount in the wallet of the address.
func (l *Ledger) Funds(addr ledger.Address) amount.Amount {
	l.Lock()
	defer l.Unlock()

	return l.funds[addr]
}

// Hold makes the ledger keep the next transactions pending until Release is
// called.
func (l *Ledger) Hold() {
	l.Lock()
	l.hold = true
	l.Unlock()
}

// Release confirms the held transactions in order and stops holding.
func (l *Ledger) Release() {
	l.Lock()
	defer l.Unlock()

	l.hold = false

	for _, p := range l.held {
		l.confirm(p)
	}

	l.held = nil
}

// FailReads makes every read return the error until it is called with nil.
func (l *Ledger) FailReads(err error) {
	l.Lock()
	l.readErr = err
	l.Unlock()
}

// FailSubmissions makes every submission return the error until it is called
// with nil.
func (l *Ledger) FailSubmissions(err error) {
	l.Lock()
	l.subErr = err
	l.Unlock()
}

// AgencyOwner implements ledger.Reader.
func (l *Ledger) AgencyOwner(ctx context.Context) (ledger.Address, error) {
	l.Lock()
	defer l.Unlock()

	return l.owner, l.readErr
}

// AgencyName implements ledger.Reader.
func (l *Ledger) AgencyName(ctx context.Context) (codec.Field, error) {
	return l.readField(func() codec.Field { return l.name })
}

// ShipIMO implements ledger.Reader.
func (l *Ledger) ShipIMO(ctx context.Context) (codec.Field, error) {
	return l.readField(func() codec.Field { return l.imo })
}

// ShipTonnage implements ledger.Reader.
func (l *Ledger) ShipTonnage(ctx context.Context) (codec.Field, error) {
	return l.readField(func() codec.Field { return l.tonnage })
}

// Balance implements ledger.Reader.
func (l *Ledger) Balance(ctx context.Context, addr ledger.Address) (amount.Amount, error) {
	l.Lock()
	defer l.Unlock()

	if l.readErr != nil {
		return amount.Amount{}, l.readErr
	}

	return l.accounts[addr], nil
}

// GetNonce implements ledger.Backend.
func (l *Ledger) GetNonce(ctx context.Context, addr ledger.Address) (uint64, error) {
	l.Lock()
	defer l.Unlock()

	if l.readErr != nil {
		return 0, l.readErr
	}

	return l.nonces[addr], nil
}

// Submit implements ledger.Backend. It checks the nonce and the signature, then
// either confirms the transaction or keeps it pending if the ledger is held.
func (l *Ledger) Submit(ctx context.Context, tx ledger.Tx) (ledger.Pending, error) {
	l.Lock()
	defer l.Unlock()

	if l.subErr != nil {
		return nil, l.subErr
	}

	err := l.verify(tx)
	if err != nil {
		return nil, xerrors.Errorf("invalid transaction: %v: %w", err, core.ErrReverted)
	}

	expected := l.nonces[tx.From]
	if tx.Nonce != expected {
		return nil, xerrors.Errorf("nonce %d != %d: %w", tx.Nonce, expected, core.ErrReverted)
	}

	l.nonces[tx.From] = expected + 1

	p := &pending{
		id:   xid.New().String(),
		tx:   tx,
		done: make(chan struct{}),
	}

	if l.hold {
		l.held = append(l.held, p)
	} else {
		l.confirm(p)
	}

	return p, nil
}

func (l *Ledger) verify(tx ledger.Tx) error {
	if tx.From.IsZero() {
		return xerrors.New("missing sender")
	}

	if l.verifier == nil {
		return nil
	}

	digest := sha256.Sum256(tx.PublicKey)
	if !ledger.AddressOf(digest[:]).Equal(tx.From) {
		return xerrors.New("public key does not match sender")
	}

	h := sha256.New()

	unsigned := tx
	unsigned.Signature = nil

	err := unsigned.Fingerprint(h)
	if err != nil {
		return xerrors.Errorf("failed to fingerprint: %v", err)
	}

	err = l.verifier.Verify(tx.PublicKey, h.Sum(nil), tx.Signature)
	if err != nil {
		return xerrors.Errorf("bad signature: %v", err)
	}

	return nil
}

// confirm applies the transaction and closes its pending handle. The lock must
// be held.
func (l *Ledger) confirm(p *pending) {
	err := l.apply(p.tx)
	if err != nil {
		p.err = xerrors.Errorf("%s: %v: %w", p.tx.Call.Method, err, core.ErrReverted)
	} else {
		l.index++
		p.receipt = ledger.Receipt{TxID: p.id, Index: l.index}
	}

	shipagency.Logger.Debug().
		Str("tx", p.id).
		Str("method", string(p.tx.Call.Method)).
		Err(err).
		Msg("transaction processed")

	close(p.done)
}

func (l *Ledger) apply(tx ledger.Tx) error {
	call := tx.Call

	switch call.Method {
	case ledger.MethodSetAgencyName:
		if !l.owner.Equal(tx.From) {
			return xerrors.New("caller is not the agency owner")
		}

		l.name = call.Field
	case ledger.MethodSetShipIMO:
		l.imo = call.Field
	case ledger.MethodSetShipTonnage:
		l.tonnage = call.Field
	case ledger.MethodDeposit:
		funds, err := l.funds[tx.From].Sub(call.Amount)
		if err != nil {
			return xerrors.Errorf("wallet funds: %v", err)
		}

		l.funds[tx.From] = funds
		l.accounts[tx.From] = l.accounts[tx.From].Add(call.Amount)
	case ledger.MethodWithdraw:
		balance, err := l.accounts[tx.From].Sub(call.Amount)
		if err != nil {
			return xerrors.Errorf("account balance: %v", err)
		}

		l.accounts[tx.From] = balance

		if call.To.Equal(tx.From) {
			l.funds[call.To] = l.funds[call.To].Add(call.Amount)
		} else {
			l.accounts[call.To] = l.accounts[call.To].Add(call.Amount)
		}
	default:
		return xerrors.Errorf("unknown method '%s'", call.Method)
	}

	return nil
}

func (l *Ledger) readField(get func() codec.Field) (codec.Field, error) {
	l.Lock()
	defer l.Unlock()

	if l.readErr != nil {
		return codec.Field{}, l.readErr
	}

	return get(), nil
}

// pending is the handle of a submitted transaction.
//
// - implements ledger.Pending
type pending struct {
	id      string
	tx      ledger.Tx
	done    chan struct{}
	receipt ledger.Receipt
	err     error
}

// GetID implements ledger.Pending.
func (p *pending) GetID() string {
	return p.id
}

// Wait implements ledger.Pending. It returns when the transaction is processed
// or when the context is done.
func (p *pending) Wait(ctx context.Context) (ledger.Receipt, error) {
	select {
	case <-p.done:
		return p.receipt, p.err
	case <-ctx.Done():
		return ledger.Receipt{}, ctx.Err()
	}
}
