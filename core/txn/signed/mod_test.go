package signed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/codec"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/ledger/mem"
	"go.dedis.ch/shipagency/crypto/bls"
	"go.dedis.ch/shipagency/internal/testing/fake"
	"golang.org/x/xerrors"
)

const owner = ledger.Address("0x00000000000000000000000000000000000000aa")

func TestSign(t *testing.T) {
	signer := bls.NewSigner()

	tx := ledger.Tx{From: AddressOf(signer.PublicKey()), Nonce: 2}

	err := Sign(&tx, signer)
	require.NoError(t, err)
	require.Equal(t, signer.PublicKey(), tx.PublicKey)
	require.NotEmpty(t, tx.Signature)

	tx.From = owner
	err = Sign(&tx, signer)
	require.EqualError(t, err, "mismatch signer and identity")

	tx.From = AddressOf(signer.PublicKey())
	err = Sign(&tx, fakeSigner{pubkey: signer.PublicKey(), err: fake.GetError()})
	require.EqualError(t, err, fake.Err("signer"))
}

func TestTransactionManager_Make(t *testing.T) {
	l := mem.NewLedger(owner, mem.WithVerifier(bls.Verifier{}))
	signer := bls.NewSigner()

	mgr := NewManager(signer, l)
	require.Equal(t, AddressOf(signer.PublicKey()), mgr.GetAddress())

	for i := 0; i < 3; i++ {
		tx, err := mgr.Make(context.Background(), ledger.Call{
			Method: ledger.MethodSetShipIMO,
			Field:  mustEncode(t, "IMO 1"),
		})
		require.NoError(t, err)
		require.Equal(t, uint64(i), tx.Nonce)

		pending, err := l.Submit(context.Background(), tx)
		require.NoError(t, err)

		_, err = pending.Wait(context.Background())
		require.NoError(t, err)
	}

	// A forged signature is refused by the ledger.
	tx, err := mgr.Make(context.Background(), ledger.Call{Method: ledger.MethodSetShipIMO})
	require.NoError(t, err)

	tx.Call.Field = mustEncode(t, "IMO 2")

	_, err = l.Submit(context.Background(), tx)
	require.True(t, xerrors.Is(err, core.ErrReverted))

	// The nonce has been consumed locally, so it must be synchronized again.
	tx, err = mgr.Make(context.Background(), ledger.Call{Method: ledger.MethodSetShipIMO})
	require.NoError(t, err)
	require.Equal(t, uint64(4), tx.Nonce)

	mgr.Invalidate()

	tx, err = mgr.Make(context.Background(), ledger.Call{Method: ledger.MethodSetShipIMO})
	require.NoError(t, err)
	require.Equal(t, uint64(3), tx.Nonce)
}

func TestTransactionManager_Sync(t *testing.T) {
	mgr := NewManager(bls.NewSigner(), fakeClient{nonce: 5})

	require.NoError(t, mgr.Sync(context.Background()))

	tx, err := mgr.Make(context.Background(), ledger.Call{})
	require.NoError(t, err)
	require.Equal(t, uint64(5), tx.Nonce)

	mgr = NewManager(bls.NewSigner(), fakeClient{err: fake.GetError()})

	err = mgr.Sync(context.Background())
	require.EqualError(t, err, fake.Err("client"))

	_, err = mgr.Make(context.Background(), ledger.Call{})
	require.EqualError(t, err, fake.Err("failed to sync: client"))
}

// -----------------------------------------------------------------------------
// Utility functions

func mustEncode(t *testing.T, text string) codec.Field {
	field, err := codec.EncodeText(text)
	require.NoError(t, err)

	return field
}

type fakeSigner struct {
	pubkey []byte
	err    error
}

func (s fakeSigner) PublicKey() []byte {
	return s.pubkey
}

func (s fakeSigner) Sign([]byte) ([]byte, error) {
	return nil, s.err
}

type fakeClient struct {
	nonce uint64
	err   error
}

func (c fakeClient) GetNonce(context.Context, ledger.Address) (uint64, error) {
	return c.nonce, c.err
}
