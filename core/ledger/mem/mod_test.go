package mem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/codec"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/xerrors"
)

const (
	owner    = ledger.Address("0x00000000000000000000000000000000000000aa")
	customer = ledger.Address("0x00000000000000000000000000000000000000bb")
)

func TestLedger_SetAgencyName(t *testing.T) {
	l := NewLedger(owner)
	ctx := context.Background()

	field, err := codec.EncodeText("PortAgency")
	require.NoError(t, err)

	call := ledger.Call{Method: ledger.MethodSetAgencyName, Field: field}

	p, err := l.Submit(ctx, ledger.Tx{From: customer, Call: call})
	require.NoError(t, err)

	_, err = p.Wait(ctx)
	require.True(t, xerrors.Is(err, core.ErrReverted))
	require.Contains(t, err.Error(), "caller is not the agency owner")

	p, err = l.Submit(ctx, ledger.Tx{From: owner, Call: call})
	require.NoError(t, err)

	receipt, err := p.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, p.GetID(), receipt.TxID)
	require.Equal(t, uint64(1), receipt.Index)

	name, err := l.AgencyName(ctx)
	require.NoError(t, err)
	require.Equal(t, field, name)
}

func TestLedger_DepositWithdraw(t *testing.T) {
	l := NewLedger(owner)
	ctx := context.Background()

	l.Fund(customer, amount.MustParse("1"))

	deposit := ledger.Call{Method: ledger.MethodDeposit, Amount: amount.MustParse("0.4")}
	submitAndWait(t, l, ledger.Tx{From: customer, Nonce: 0, Call: deposit})

	balance, err := l.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, "0.4", balance.String())
	require.Equal(t, "0.6", l.Funds(customer).String())

	withdraw := ledger.Call{Method: ledger.MethodWithdraw, To: owner, Amount: amount.MustParse("0.1")}
	submitAndWait(t, l, ledger.Tx{From: customer, Nonce: 1, Call: withdraw})

	balance, err = l.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, "0.3", balance.String())

	// A transfer to another identity lands in its account.
	balance, err = l.Balance(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, "0.1", balance.String())
	require.True(t, l.Funds(owner).IsZero())

	// Withdrawing to itself gives the funds back to the wallet.
	withdraw.To = customer
	submitAndWait(t, l, ledger.Tx{From: customer, Nonce: 2, Call: withdraw})

	balance, err = l.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, "0.2", balance.String())
	require.Equal(t, "0.7", l.Funds(customer).String())

	withdraw.To = owner

	withdraw.Amount = amount.MustParse("5")
	p, err := l.Submit(ctx, ledger.Tx{From: customer, Nonce: 3, Call: withdraw})
	require.NoError(t, err)

	_, err = p.Wait(ctx)
	require.True(t, xerrors.Is(err, core.ErrReverted))

	deposit.Amount = amount.MustParse("5")
	p, err = l.Submit(ctx, ledger.Tx{From: customer, Nonce: 4, Call: deposit})
	require.NoError(t, err)

	_, err = p.Wait(ctx)
	require.True(t, xerrors.Is(err, core.ErrReverted))
}

func TestLedger_Nonce(t *testing.T) {
	l := NewLedger(owner)
	ctx := context.Background()

	call := ledger.Call{Method: ledger.MethodSetShipIMO}

	_, err := l.Submit(ctx, ledger.Tx{From: customer, Nonce: 1, Call: call})
	require.EqualError(t, err, "nonce 1 != 0: reverted")

	_, err = l.Submit(ctx, ledger.Tx{Call: call})
	require.EqualError(t, err, "invalid transaction: missing sender: reverted")

	submitAndWait(t, l, ledger.Tx{From: customer, Nonce: 0, Call: call})

	nonce, err := l.GetNonce(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestLedger_Hold(t *testing.T) {
	l := NewLedger(owner)
	l.Hold()

	field, err := codec.EncodeNumber(1000)
	require.NoError(t, err)

	call := ledger.Call{Method: ledger.MethodSetShipTonnage, Field: field}

	p, err := l.Submit(context.Background(), ledger.Tx{From: customer, Call: call})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = p.Wait(ctx)
	require.Equal(t, context.DeadlineExceeded, err)

	tonnage, err := l.ShipTonnage(context.Background())
	require.NoError(t, err)
	require.True(t, tonnage.IsUnset())

	l.Release()

	_, err = p.Wait(context.Background())
	require.NoError(t, err)

	tonnage, err = l.ShipTonnage(context.Background())
	require.NoError(t, err)
	require.Equal(t, field, tonnage)
}

func TestLedger_Failures(t *testing.T) {
	l := NewLedger(owner)
	ctx := context.Background()

	l.FailReads(xerrors.New("oops"))

	_, err := l.AgencyOwner(ctx)
	require.EqualError(t, err, "oops")

	_, err = l.Balance(ctx, customer)
	require.EqualError(t, err, "oops")

	_, err = l.ShipIMO(ctx)
	require.EqualError(t, err, "oops")

	l.FailReads(nil)
	l.FailSubmissions(xerrors.New("down"))

	_, err = l.Submit(ctx, ledger.Tx{From: customer})
	require.EqualError(t, err, "down")
}

func TestLedger_Verifier(t *testing.T) {
	l := NewLedger(owner, WithVerifier(fakeVerifier{}))

	_, err := l.Submit(context.Background(), ledger.Tx{From: customer})
	require.EqualError(t, err,
		"invalid transaction: public key does not match sender: reverted")
}

func TestWallet_RequestAccounts(t *testing.T) {
	l := NewLedger(owner)
	w := l.NewWallet(customer, owner)

	accounts, err := w.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ledger.Address{customer, owner}, accounts)

	w.SwitchAccount(owner)

	accounts, err = w.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ledger.Address{owner, customer}, accounts)

	w.RejectConnections(true)

	_, err = w.RequestAccounts(context.Background())
	require.True(t, xerrors.Is(err, core.ErrUserRejected))
	require.Equal(t, 3, w.Requests())
}

func TestWallet_Signer(t *testing.T) {
	l := NewLedger(owner)
	w := l.NewWallet(customer)

	_, err := w.Signer(owner)
	require.True(t, xerrors.Is(err, core.ErrProviderUnavailable))

	signer, err := w.Signer(customer)
	require.NoError(t, err)
	require.Equal(t, customer, signer.GetAddress())

	call := ledger.Call{Method: ledger.MethodSetShipIMO}

	for i := 0; i < 3; i++ {
		p, err := signer.Send(context.Background(), call)
		require.NoError(t, err)

		_, err = p.Wait(context.Background())
		require.NoError(t, err)
	}

	w.DeclineSignatures(true)

	_, err = signer.Send(context.Background(), call)
	require.True(t, xerrors.Is(err, core.ErrUserRejected))
}

// -----------------------------------------------------------------------------
// Utility functions

func submitAndWait(t *testing.T, l *Ledger, tx ledger.Tx) {
	p, err := l.Submit(context.Background(), tx)
	require.NoError(t, err)

	_, err = p.Wait(context.Background())
	require.NoError(t, err)
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(pubkey, msg, sig []byte) error {
	return nil
}
