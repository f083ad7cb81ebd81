package relay

import (
	"context"
	"math/big"
	"time"
)

// RequestState is the lifecycle state of a relay request.
type RequestState string

const (
	Pending RequestState = "Pending"
	Success RequestState = "Success"
	Failed  RequestState = "Failed"
	Timeout RequestState = "Timeout"
)

// IsTerminal returns true for the states a request can end up in after Pending.
func (s RequestState) IsTerminal() bool {
	return s == Success || s == Failed || s == Timeout
}

func (s RequestState) IsValid() bool {
	return s == Pending || s.IsTerminal()
}

// ForwardRequest is a request signed by the user that the trusted forwarder executes on the user's behalf.
// Field names on the wire follow the relayer SDK.
type ForwardRequest struct {
	ChainID   uint64   `json:"chain_id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Value     *big.Int `json:"value"`
	Gas       uint64   `json:"gas"`
	Deadline  uint64   `json:"deadline"`
	Data      string   `json:"data"`
	Nonce     uint64   `json:"nonce"`
	Signature string   `json:"signature"`
	AccessKey string   `json:"access_key"`
}

// BatchRequest is a set of forward requests executed in one forwarder call. Refunds of requests
// that fail inside the batch are sent to RefundReceiver.
type BatchRequest struct {
	ChainID        uint64           `json:"chain_id"`
	AccessKey      string           `json:"access_key"`
	RefundReceiver string           `json:"refund_receiver"`
	Requests       []ForwardRequest `json:"requests"`
}

// Receipt is the part of a chain receipt the relayer persists.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// PendingTx is a submitted transaction whose outcome is not known yet.
type PendingTx interface {
	// Hash returns the hex encoded transaction hash.
	Hash() string
	// Await blocks until the transaction is mined or fails. A mined but reverted transaction
	// is reported as an error wrapping ErrTxReverted.
	Await(ctx context.Context) (*Receipt, error)
}

// PendingConfirmation travels from the relayer to the monitor through the confirmation queue.
// It is handed over, never shared: after it's sent to the queue the sender must not use it.
type PendingConfirmation struct {
	RequestID   string
	ChainID     uint64
	Tx          PendingTx
	SubmittedAt time.Time
}

// RequestRecord is the persisted state of a relay request.
type RequestRecord struct {
	ChainID         uint64       `json:"chain_id"`
	RequestID       string       `json:"request_id"`
	State           RequestState `json:"request_state"`
	CreatedAt       time.Time    `json:"created_at"`
	TransactionHash string       `json:"transaction_hash"`
	BlockNumber     uint64       `json:"block_number"`
	MinedAt         *time.Time   `json:"mined_at,omitempty"`
	GasUsed         uint64       `json:"gas_used"`
	IsBatch         bool         `json:"is_batch"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}

// FinalizeParams describes the terminal transition of a request.
type FinalizeParams struct {
	State           RequestState
	BlockNumber     uint64
	MinedAt         time.Time
	GasUsed         uint64
	TransactionHash string
	ErrorMessage    string
}
