// Package keystore implements a signing provider backed by a BLS key stored
// on the disk. It has a single account and never asks the user anything.
package keystore

import (
	"context"
	"sync"

	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/txn/signed"
	"go.dedis.ch/shipagency/crypto/bls"
	"go.dedis.ch/shipagency/crypto/loader"
	"golang.org/x/xerrors"
)

// Provider is a signing provider with a local key.
//
// - implements wallet.Provider
type Provider struct {
	// submission keeps the nonces in the order of the submissions.
	submission sync.Mutex

	mgr     *signed.TransactionManager
	backend ledger.Backend
}

// NewProvider creates a provider for the signer.
func NewProvider(signer signed.Signer, backend ledger.Backend) *Provider {
	return &Provider{
		mgr:     signed.NewManager(signer, backend),
		backend: backend,
	}
}

// Load creates a provider with the key stored at the path. The key is
// generated when create is true and the file does not exist.
func Load(path string, backend ledger.Backend, create bool) (*Provider, error) {
	l := loader.NewFileLoader(path)

	var data []byte
	var err error

	if create {
		data, err = l.LoadOrCreate(bls.Generator{})
	} else {
		data, err = l.Load()
	}

	if err != nil {
		return nil, xerrors.Errorf("failed to load key: %v: %w", err, core.ErrProviderUnavailable)
	}

	signer, err := bls.NewSignerFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("invalid key: %v: %w", err, core.ErrProviderUnavailable)
	}

	return NewProvider(signer, backend), nil
}

// GetAddress returns the address of the key.
func (p *Provider) GetAddress() ledger.Address {
	return p.mgr.GetAddress()
}

// RequestAccounts implements wallet.Provider. It returns the address of the
// key. The nonce is synchronized again before the next transaction.
func (p *Provider) RequestAccounts(ctx context.Context) ([]ledger.Address, error) {
	p.mgr.Invalidate()

	return []ledger.Address{p.mgr.GetAddress()}, nil
}

// Signer implements wallet.Provider.
func (p *Provider) Signer(addr ledger.Address) (ledger.Signer, error) {
	if !p.mgr.GetAddress().Equal(addr) {
		return nil, xerrors.Errorf("unknown account %s: %w", addr, core.ErrProviderUnavailable)
	}

	return signer{provider: p}, nil
}

// signer signs the calls with the key and submits them to the backend.
//
// - implements ledger.Signer
type signer struct {
	provider *Provider
}

// GetAddress implements ledger.Signer.
func (s signer) GetAddress() ledger.Address {
	return s.provider.mgr.GetAddress()
}

// Send implements ledger.Signer. A refused submission invalidates the nonce.
func (s signer) Send(ctx context.Context, call ledger.Call) (ledger.Pending, error) {
	p := s.provider

	p.submission.Lock()
	defer p.submission.Unlock()

	tx, err := p.mgr.Make(ctx, call)
	if err != nil {
		return nil, xerrors.Errorf("failed to make transaction: %w", err)
	}

	pending, err := p.backend.Submit(ctx, tx)
	if err != nil {
		p.mgr.Invalidate()

		return nil, xerrors.Errorf("failed to submit: %w", err)
	}

	shipagency.Logger.Debug().
		Stringer("from", tx.From).
		Uint64("nonce", tx.Nonce).
		Str("key", bls.String(tx.PublicKey)).
		Msg("transaction signed")

	return pending, nil
}
