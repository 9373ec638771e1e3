package mem

import (
	"context"
	"sync"

	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/xerrors"
)

// Wallet simulates the signing provider of a user. It holds a list of accounts
// where the first one is the active one, and can be told to decline the
// requests of the user.
//
// - implements wallet.Provider
type Wallet struct {
	sync.Mutex

	ledger   *Ledger
	accounts []ledger.Address
	reject   bool
	decline  bool
	requests int
}

// NewWallet creates a wallet for the accounts on the ledger.
func (l *Ledger) NewWallet(accounts ...ledger.Address) *Wallet {
	return &Wallet{
		ledger:   l,
		accounts: accounts,
	}
}

// SwitchAccount makes the address the active account.
func (w *Wallet) SwitchAccount(addr ledger.Address) {
	w.Lock()
	defer w.Unlock()

	accounts := []ledger.Address{addr}
	for _, other := range w.accounts {
		if !other.Equal(addr) {
			accounts = append(accounts, other)
		}
	}

	w.accounts = accounts
}

// RejectConnections makes the user decline the account requests.
func (w *Wallet) RejectConnections(reject bool) {
	w.Lock()
	w.reject = reject
	w.Unlock()
}

// DeclineSignatures makes the user decline the signature of the transactions.
func (w *Wallet) DeclineSignatures(decline bool) {
	w.Lock()
	w.decline = decline
	w.Unlock()
}

// Requests returns the number of account requests received.
func (w *Wallet) Requests() int {
	w.Lock()
	defer w.Unlock()

	return w.requests
}

// RequestAccounts implements wallet.Provider.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]ledger.Address, error) {
	w.Lock()
	defer w.Unlock()

	w.requests++

	if w.reject {
		return nil, xerrors.Errorf("account request declined: %w", core.ErrUserRejected)
	}

	return append([]ledger.Address{}, w.accounts...), nil
}

// Signer implements wallet.Provider.
func (w *Wallet) Signer(addr ledger.Address) (ledger.Signer, error) {
	w.Lock()
	defer w.Unlock()

	for _, account := range w.accounts {
		if account.Equal(addr) {
			return signer{wallet: w, addr: account}, nil
		}
	}

	return nil, xerrors.Errorf("unknown account %s: %w", addr, core.ErrProviderUnavailable)
}

// signer submits the calls of an account of the wallet to the ledger.
//
// - implements ledger.Signer
type signer struct {
	wallet *Wallet
	addr   ledger.Address
}

// GetAddress implements ledger.Signer.
func (s signer) GetAddress() ledger.Address {
	return s.addr
}

// Send implements ledger.Signer.
func (s signer) Send(ctx context.Context, call ledger.Call) (ledger.Pending, error) {
	s.wallet.Lock()
	decline := s.wallet.decline
	s.wallet.Unlock()

	if decline {
		return nil, xerrors.Errorf("signature declined: %w", core.ErrUserRejected)
	}

	nonce, err := s.wallet.ledger.GetNonce(ctx, s.addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to get nonce: %v", err)
	}

	tx := ledger.Tx{
		From:  s.addr,
		Nonce: nonce,
		Call:  call,
	}

	return s.wallet.ledger.Submit(ctx, tx)
}
