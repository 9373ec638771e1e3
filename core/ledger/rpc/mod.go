// Package rpc implements a gRPC transport for the ledger backend.
//
// The server exposes any ledger.Backend and the client implements
// ledger.Backend on top of a connection, so that the agent can reach a remote
// ledger gateway. Messages are encoded in JSON with a codec forced on both
// sides, which avoids generated code. A submission returns the identifier of
// the transaction and the client polls the server for its receipt at a
// limited rate.
package rpc

import (
	"encoding/json"

	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/codec"
	"go.dedis.ch/shipagency/core/ledger"
)

const (
	serviceName = "shipagency.Ledger"

	methodRead    = "/" + serviceName + "/Read"
	methodSubmit  = "/" + serviceName + "/Submit"
	methodReceipt = "/" + serviceName + "/Receipt"
)

// Key is the name of a value read from the ledger.
type Key string

const (
	// KeyOwner is the address of the owner of the agency.
	KeyOwner Key = "owner"
	// KeyName is the name of the agency.
	KeyName Key = "name"
	// KeyIMO is the IMO number of the ship.
	KeyIMO Key = "imo"
	// KeyTonnage is the net tonnage of the ship.
	KeyTonnage Key = "tonnage"
	// KeyBalance is the balance of an address.
	KeyBalance Key = "balance"
	// KeyNonce is the next nonce of an address.
	KeyNonce Key = "nonce"
)

// ReadRequest is the message to read a value.
type ReadRequest struct {
	Key     Key            `json:"key"`
	Address ledger.Address `json:"address,omitempty"`
}

// ReadResponse is the value read. Only the field matching the key is set.
type ReadResponse struct {
	Address ledger.Address `json:"address,omitempty"`
	Field   codec.Field    `json:"field"`
	Amount  amount.Amount  `json:"amount"`
	Nonce   uint64         `json:"nonce,omitempty"`
}

// SubmitResponse is the answer to a submission.
type SubmitResponse struct {
	TxID string `json:"txid"`
}

// ReceiptRequest is the message to get the receipt of a transaction.
type ReceiptRequest struct {
	TxID string `json:"txid"`
}

// ReceiptResponse is the state of a submitted transaction. Error is set when
// the transaction has been reverted.
type ReceiptResponse struct {
	Done    bool           `json:"done"`
	Receipt ledger.Receipt `json:"receipt"`
	Error   string         `json:"error,omitempty"`
}

// jsonCodec is the gRPC codec of the messages.
//
// - implements encoding.Codec
type jsonCodec struct{}

// Marshal implements encoding.Codec.
func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.
func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.
func (jsonCodec) Name() string {
	return "json"
}
