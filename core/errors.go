package core

import "golang.org/x/xerrors"

// Errors returned by the components. They are wrapped with more context along
// the way and must be matched with xerrors.Is.
var (
	// ErrProviderUnavailable is returned when no signing provider is present,
	// or when a signer is required but no identity is connected.
	ErrProviderUnavailable = xerrors.New("provider unavailable")

	// ErrUserRejected is returned when the user declines a request of the
	// signing provider.
	ErrUserRejected = xerrors.New("user rejected")

	// ErrReverted is returned when the ledger refuses a transaction.
	ErrReverted = xerrors.New("reverted")

	// ErrNetwork is returned when the communication with the ledger failed.
	ErrNetwork = xerrors.New("network error")

	// ErrTimedOut is returned when a call or a confirmation exceeded its
	// bounded wait.
	ErrTimedOut = xerrors.New("timed out")

	// ErrInvalidInput is returned when an argument cannot be encoded.
	ErrInvalidInput = xerrors.New("invalid input")

	// ErrInvalidTonnage is returned when the net tonnage is not positive.
	ErrInvalidTonnage = xerrors.New("invalid tonnage")

	// ErrInsufficientFunds is returned when the balance does not cover the
	// dues.
	ErrInsufficientFunds = xerrors.New("insufficient funds")

	// ErrBusy is returned when an operation is already in flight.
	ErrBusy = xerrors.New("busy")
)

// Retryable returns true if the caller can retry the operation that produced
// the error.
func Retryable(err error) bool {
	return xerrors.Is(err, ErrReverted) ||
		xerrors.Is(err, ErrNetwork) ||
		xerrors.Is(err, ErrTimedOut)
}
