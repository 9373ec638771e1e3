// Package signed creates the signed transactions of an identity.
//
// It uses a signature to make sure the identity owns the transaction. The nonce
// is a monotonically increasing number that is used to prevent a replay attack
// of an existing transaction.
package signed

import (
	"context"
	"crypto/sha256"
	"sync"

	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/xerrors"
)

// Signer is the key of an identity.
type Signer interface {
	// PublicKey returns the binary representation of the public key.
	PublicKey() []byte

	// Sign returns the signature of the message.
	Sign(msg []byte) ([]byte, error)
}

// Client is the interface the manager is using to get the nonce of an identity.
// It allows a local implementation, or through a network client.
type Client interface {
	GetNonce(ctx context.Context, addr ledger.Address) (uint64, error)
}

// AddressOf returns the address of the public key.
func AddressOf(pubkey []byte) ledger.Address {
	digest := sha256.Sum256(pubkey)

	return ledger.AddressOf(digest[:])
}

// Sign fills the public key of the transaction and signs it.
func Sign(tx *ledger.Tx, signer Signer) error {
	tx.PublicKey = signer.PublicKey()
	tx.Signature = nil

	if !AddressOf(tx.PublicKey).Equal(tx.From) {
		return xerrors.New("mismatch signer and identity")
	}

	h := sha256.New()

	err := tx.Fingerprint(h)
	if err != nil {
		return xerrors.Errorf("couldn't fingerprint tx: %v", err)
	}

	sig, err := signer.Sign(h.Sum(nil))
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	tx.Signature = sig

	return nil
}

// TransactionManager is a manager to create signed transactions. It manages the
// nonce by itself, except if the transaction is refused by the ledger. In that
// case the manager should be synchronized before creating a new one.
type TransactionManager struct {
	sync.Mutex

	client Client
	signer Signer
	addr   ledger.Address
	nonce  uint64
	synced bool
}

// NewManager creates a new transaction manager.
func NewManager(signer Signer, client Client) *TransactionManager {
	return &TransactionManager{
		client: client,
		signer: signer,
		addr:   AddressOf(signer.PublicKey()),
	}
}

// GetAddress returns the address of the identity.
func (mgr *TransactionManager) GetAddress() ledger.Address {
	return mgr.addr
}

// Make creates a transaction for the call signed with the next nonce. The
// manager is synchronized first if needed.
func (mgr *TransactionManager) Make(ctx context.Context, call ledger.Call) (ledger.Tx, error) {
	mgr.Lock()
	defer mgr.Unlock()

	if !mgr.synced {
		err := mgr.sync(ctx)
		if err != nil {
			return ledger.Tx{}, xerrors.Errorf("failed to sync: %w", err)
		}
	}

	tx := ledger.Tx{
		From:  mgr.addr,
		Nonce: mgr.nonce,
		Call:  call,
	}

	err := Sign(&tx, mgr.signer)
	if err != nil {
		return ledger.Tx{}, xerrors.Errorf("failed to sign: %v", err)
	}

	mgr.nonce++

	return tx, nil
}

// Sync fetches the latest nonce of the signer to create valid transactions.
func (mgr *TransactionManager) Sync(ctx context.Context) error {
	mgr.Lock()
	defer mgr.Unlock()

	return mgr.sync(ctx)
}

// Invalidate forces a synchronization before the next transaction.
func (mgr *TransactionManager) Invalidate() {
	mgr.Lock()
	mgr.synced = false
	mgr.Unlock()
}

func (mgr *TransactionManager) sync(ctx context.Context) error {
	nonce, err := mgr.client.GetNonce(ctx, mgr.addr)
	if err != nil {
		return xerrors.Errorf("client: %w", err)
	}

	mgr.nonce = nonce
	mgr.synced = true

	shipagency.Logger.Debug().Uint64("nonce", nonce).Msg("manager synchronized")

	return nil
}
