package relay

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	signatureLength = 65
	maxDeadline     = 1<<48 - 1
)

// Validate checks that the request can be turned into a forwarder call. It has no side effects.
func (r ForwardRequest) Validate() error {
	if r.ChainID == 0 {
		return NewValidationError("chain_id", errors.New("must be set"))
	}
	if !common.IsHexAddress(r.From) {
		return NewValidationError("from", fmt.Errorf("%w: %q", ErrInvalidAddress, r.From))
	}
	if !common.IsHexAddress(r.To) {
		return NewValidationError("to", fmt.Errorf("%w: %q", ErrInvalidAddress, r.To))
	}
	if r.Value != nil && r.Value.Sign() < 0 {
		return NewValidationError("value", errors.New("must not be negative"))
	}
	if r.Gas == 0 {
		return NewValidationError("gas", errors.New("must be greater than zero"))
	}
	if r.Deadline > maxDeadline {
		return NewValidationError("deadline", errors.New("does not fit into uint48"))
	}
	if _, err := r.CallData(); err != nil {
		return NewValidationError("data", err)
	}
	sig, err := hexutil.Decode(r.Signature)
	if err != nil {
		return NewValidationError("signature", err)
	}
	if len(sig) != signatureLength {
		return NewValidationError("signature", fmt.Errorf("expected %d bytes, got %d", signatureLength, len(sig)))
	}

	return nil
}

// CallData returns the decoded call data. An empty string is a call without data.
func (r ForwardRequest) CallData() ([]byte, error) {
	if r.Data == "" {
		return []byte{}, nil
	}
	return hexutil.Decode(r.Data)
}

// SignatureBytes returns the decoded signature.
func (r ForwardRequest) SignatureBytes() ([]byte, error) {
	return hexutil.Decode(r.Signature)
}

// ValueOrZero returns the value to send, treating a missing value as zero.
func (r ForwardRequest) ValueOrZero() *big.Int {
	if r.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.Value)
}

// Validate checks the batch and every request in it. Requests without a chain id inherit the
// chain id of the batch.
func (b *BatchRequest) Validate() error {
	if b.ChainID == 0 {
		return NewValidationError("chain_id", errors.New("must be set"))
	}
	if len(b.Requests) == 0 {
		return NewValidationError("requests", ErrEmptyBatch)
	}
	if _, err := ParseRefundReceiver(b.RefundReceiver); err != nil {
		return NewValidationError("refund_receiver", err)
	}
	for i := range b.Requests {
		if b.Requests[i].ChainID == 0 {
			b.Requests[i].ChainID = b.ChainID
		}
		if b.Requests[i].ChainID != b.ChainID {
			return NewValidationError(fmt.Sprintf("requests[%d].chain_id", i),
				fmt.Errorf("expected %d, got %d", b.ChainID, b.Requests[i].ChainID))
		}
		if err := b.Requests[i].Validate(); err != nil {
			return fmt.Errorf("requests[%d]: %w", i, err)
		}
	}

	return nil
}

// ParseRefundReceiver parses the refund receiver of a batch. An empty receiver is the zero
// address, which makes the forwarder revert the whole batch if one of the requests fails.
func ParseRefundReceiver(addr string) (common.Address, error) {
	if addr == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr), nil
}
