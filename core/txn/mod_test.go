package txn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/view"
	"golang.org/x/xerrors"
)

func TestStatus_String(t *testing.T) {
	require.Equal(t, "success", StatusSuccess.String())
	require.Equal(t, "timed_out", StatusTimedOut.String())
	require.Equal(t, "network_error", StatusNetworkError.String())
	require.Equal(t, "unknown", Status(99).String())
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, StatusSuccess, StatusOf(nil))
	require.Equal(t, StatusRejected, StatusOf(xerrors.Errorf("x: %w", core.ErrUserRejected)))
	require.Equal(t, StatusReverted, StatusOf(core.ErrReverted))
	require.Equal(t, StatusTimedOut, StatusOf(core.ErrTimedOut))
	require.Equal(t, StatusNetworkError, StatusOf(core.ErrNetwork))
	require.Equal(t, StatusNetworkError, StatusOf(xerrors.New("oops")))
	require.Equal(t, StatusInvalid, StatusOf(core.ErrInvalidInput))
	require.Equal(t, StatusInvalid, StatusOf(core.ErrInvalidTonnage))
	require.Equal(t, StatusUnavailable, StatusOf(core.ErrProviderUnavailable))
}

func TestNewOp(t *testing.T) {
	called := false

	o := NewOp("deposit", view.FieldBalance, func(context.Context) (ledger.Pending, error) {
		called = true
		return nil, nil
	})

	require.Equal(t, "deposit", o.Name())
	require.Equal(t, view.FieldBalance, o.Affects())

	_, err := o.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, called)
}
