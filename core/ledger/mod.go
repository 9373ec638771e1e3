// Package ledger defines the client protocol of the ship agency contract.
//
// The contract itself is an external collaborator reached through a Backend.
// Reads are side-effect free queries. Writes are calls signed by the connected
// identity and submitted to the backend; the submission returns a pending
// handle that can be waited on for the confirmation.
//
// The Client is a typed adapter over the backend. It encodes and decodes the
// fixed-width fields and leaves the confirmation to the caller.
package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"
	"regexp"
	"strings"

	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/codec"
	"golang.org/x/xerrors"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// Address is the canonical, lower-case, hexadecimal address of an identity.
type Address string

// ParseAddress returns the canonical address of the text. The comparison of
// addresses is case-insensitive so any case is accepted.
func ParseAddress(text string) (Address, error) {
	canonical := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(canonical, "0x") {
		canonical = "0x" + canonical
	}

	if !addressPattern.MatchString(canonical) {
		return "", xerrors.Errorf("malformed address '%s'", text)
	}

	return Address(canonical), nil
}

// AddressOf derives the address of a public key. It is the first 20 bytes of
// the digest of the key.
func AddressOf(digest []byte) Address {
	if len(digest) > 20 {
		digest = digest[:20]
	}

	return Address("0x" + hex.EncodeToString(digest))
}

// Equal returns true if both addresses are the same, ignoring the case.
func (a Address) Equal(o Address) bool {
	return a != "" && strings.EqualFold(string(a), string(o))
}

// IsZero returns true if the address is not set.
func (a Address) IsZero() bool {
	return a == ""
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// Method is the name of a write operation of the contract.
type Method string

const (
	// MethodSetAgencyName sets the name of the agency. Only the owner can call
	// it.
	MethodSetAgencyName Method = "setAgencyName"

	// MethodSetShipIMO sets the IMO number of the ship.
	MethodSetShipIMO Method = "setShipIMONumber"

	// MethodSetShipTonnage sets the net tonnage of the ship.
	MethodSetShipTonnage Method = "setShipNetTonnage"

	// MethodDeposit credits the account of the caller with the value of the
	// call.
	MethodDeposit Method = "depositMoney"

	// MethodWithdraw debits the account of the caller and pays the recipient.
	MethodWithdraw Method = "withdrawMoney"
)

// Call is a write operation of the contract.
type Call struct {
	Method Method

	// Field is the argument of the setters.
	Field codec.Field

	// To is the recipient of a withdrawal.
	To Address

	// Amount is the value of a deposit, or the amount of a withdrawal.
	Amount amount.Amount
}

// Tx is a call signed by an identity. The nonce is a sequence number per
// identity that prevents a replay of the transaction.
type Tx struct {
	From      Address
	Nonce     uint64
	Call      Call
	PublicKey []byte
	Signature []byte
}

// Fingerprint writes a deterministic binary representation of the transaction
// without the signature, which is the message to sign.
func (tx Tx) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, tx.Nonce)

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write nonce: %v", err)
	}

	parts := [][]byte{
		[]byte(tx.From),
		[]byte(tx.Call.Method),
		tx.Call.Field[:],
		[]byte(tx.Call.To),
		tx.Call.Amount.Base().Bytes(),
		tx.PublicKey,
	}

	for _, part := range parts {
		binary.LittleEndian.PutUint64(buffer, uint64(len(part)))

		_, err = w.Write(append(buffer, part...))
		if err != nil {
			return xerrors.Errorf("couldn't write tx: %v", err)
		}
	}

	return nil
}

// Receipt is the proof that a transaction has been confirmed.
type Receipt struct {
	TxID  string
	Index uint64
}

// Pending is a transaction submitted to the ledger but not yet confirmed.
type Pending interface {
	// GetID returns the identifier of the transaction.
	GetID() string

	// Wait blocks until the transaction is confirmed or the context is done.
	// It returns the receipt, or an error if the transaction is reverted.
	Wait(ctx context.Context) (Receipt, error)
}

// Reader is the read surface of the contract.
type Reader interface {
	AgencyOwner(ctx context.Context) (Address, error)

	AgencyName(ctx context.Context) (codec.Field, error)

	ShipIMO(ctx context.Context) (codec.Field, error)

	ShipTonnage(ctx context.Context) (codec.Field, error)

	Balance(ctx context.Context, addr Address) (amount.Amount, error)
}

// Backend is the contract as seen by the client.
type Backend interface {
	Reader

	// GetNonce returns the next nonce expected for the identity.
	GetNonce(ctx context.Context, addr Address) (uint64, error)

	// Submit sends a signed transaction. It returns as soon as the ledger
	// accepted it for processing.
	Submit(ctx context.Context, tx Tx) (Pending, error)
}

// Signer is an identity able to sign and submit calls. It is provided by the
// wallet of the user.
type Signer interface {
	GetAddress() Address

	Send(ctx context.Context, call Call) (Pending, error)
}

// SignerSource returns the signer of the connected identity, if any.
type SignerSource interface {
	Signer() (Signer, error)
}
