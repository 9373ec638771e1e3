package keystore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/ledger/mem"
	"go.dedis.ch/shipagency/core/txn/signed"
	"go.dedis.ch/shipagency/core/wallet"
	"go.dedis.ch/shipagency/crypto/bls"
	"go.dedis.ch/shipagency/internal/testing/fake"
	"golang.org/x/xerrors"
)

func TestProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.key")
	l := mem.NewLedger("")

	_, err := Load(path, l, false)
	require.True(t, xerrors.Is(err, core.ErrProviderUnavailable))

	p, err := Load(path, l, true)
	require.NoError(t, err)

	again, err := Load(path, l, false)
	require.NoError(t, err)
	require.Equal(t, p.GetAddress(), again.GetAddress())
}

func TestProvider_WithManager(t *testing.T) {
	signer := bls.NewSigner()

	l := mem.NewLedger(signed.AddressOf(signer.PublicKey()), mem.WithVerifier(bls.Verifier{}))
	p := NewProvider(signer, l)

	mgr := wallet.NewManager(p, nil)
	client := ledger.NewClient(l, mgr)
	mgr.SetOwnerReader(client)

	id, err := mgr.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, wallet.RoleOwner, id.Role)

	for _, name := range []string{"PortAgency", "Harbour"} {
		pending, err := client.SetAgencyName(context.Background(), name)
		require.NoError(t, err)

		_, err = pending.Wait(context.Background())
		require.NoError(t, err)
	}

	name, err := client.GetAgencyName(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Harbour", name)

	l.Fund(p.GetAddress(), amount.FromUnits(1))

	pending, err := client.Deposit(context.Background(), amount.MustParse("0.1"))
	require.NoError(t, err)

	_, err = pending.Wait(context.Background())
	require.NoError(t, err)

	balance, err := client.GetBalance(context.Background(), p.GetAddress())
	require.NoError(t, err)
	require.Equal(t, "0.1", balance.String())
}

func TestProvider_Signer(t *testing.T) {
	p := NewProvider(bls.NewSigner(), mem.NewLedger(""))

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ledger.Address{p.GetAddress()}, accounts)

	_, err = p.Signer("0x00000000000000000000000000000000000000bb")
	require.True(t, xerrors.Is(err, core.ErrProviderUnavailable))

	s, err := p.Signer(p.GetAddress())
	require.NoError(t, err)
	require.Equal(t, p.GetAddress(), s.GetAddress())
}

func TestSigner_Send(t *testing.T) {
	l := mem.NewLedger("")
	p := NewProvider(bls.NewSigner(), l)

	s, err := p.Signer(p.GetAddress())
	require.NoError(t, err)

	l.FailSubmissions(xerrors.Errorf("gone: %w", core.ErrNetwork))

	_, err = s.Send(context.Background(), ledger.Call{Method: ledger.MethodSetShipIMO})
	require.True(t, xerrors.Is(err, core.ErrNetwork))
	require.EqualError(t, err, "failed to submit: gone: network error")

	l.FailSubmissions(nil)

	// The nonce consumed by the failed submission is synchronized again.
	pending, err := s.Send(context.Background(), ledger.Call{Method: ledger.MethodSetShipIMO})
	require.NoError(t, err)

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Index)

	p = NewProvider(bls.NewSigner(), fakeBackend{err: fake.GetError()})

	s, err = p.Signer(p.GetAddress())
	require.NoError(t, err)

	_, err = s.Send(context.Background(), ledger.Call{})
	require.EqualError(t, err, fake.Err("failed to make transaction: failed to sync: client"))
}

// -----------------------------------------------------------------------------
// Utility functions

type fakeBackend struct {
	ledger.Backend

	err error
}

func (b fakeBackend) GetNonce(context.Context, ledger.Address) (uint64, error) {
	return 0, b.err
}
