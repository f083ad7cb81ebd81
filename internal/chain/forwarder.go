package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const (
	executeMethod      = "execute"
	executeBatchMethod = "executeBatch"
)

// ForwarderABI is the part of the ERC2771Forwarder (OpenZeppelin v5) interface the relayer calls.
const ForwarderABI = `[
  {
    "type": "function",
    "name": "execute",
    "stateMutability": "payable",
    "inputs": [
      {
        "name": "request",
        "type": "tuple",
        "internalType": "struct ERC2771Forwarder.ForwardRequestData",
        "components": [
          {"name": "from", "type": "address", "internalType": "address"},
          {"name": "to", "type": "address", "internalType": "address"},
          {"name": "value", "type": "uint256", "internalType": "uint256"},
          {"name": "gas", "type": "uint256", "internalType": "uint256"},
          {"name": "deadline", "type": "uint48", "internalType": "uint48"},
          {"name": "data", "type": "bytes", "internalType": "bytes"},
          {"name": "signature", "type": "bytes", "internalType": "bytes"}
        ]
      }
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "executeBatch",
    "stateMutability": "payable",
    "inputs": [
      {
        "name": "requests",
        "type": "tuple[]",
        "internalType": "struct ERC2771Forwarder.ForwardRequestData[]",
        "components": [
          {"name": "from", "type": "address", "internalType": "address"},
          {"name": "to", "type": "address", "internalType": "address"},
          {"name": "value", "type": "uint256", "internalType": "uint256"},
          {"name": "gas", "type": "uint256", "internalType": "uint256"},
          {"name": "deadline", "type": "uint48", "internalType": "uint48"},
          {"name": "data", "type": "bytes", "internalType": "bytes"},
          {"name": "signature", "type": "bytes", "internalType": "bytes"}
        ]
      },
      {"name": "refundReceiver", "type": "address", "internalType": "address payable"}
    ],
    "outputs": []
  }
]`

// forwardRequestData mirrors ERC2771Forwarder.ForwardRequestData. The nonce is not part of the
// struct: the forwarder reads it from its own storage when it verifies the signature.
type forwardRequestData struct {
	From      common.Address
	To        common.Address
	Value     *big.Int
	Gas       *big.Int
	Deadline  *big.Int
	Data      []byte
	Signature []byte
}

func parseForwarderABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(ForwarderABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse forwarder abi: %w", err)
	}
	return parsed, nil
}

func toForwardRequestData(req relay.ForwardRequest) (forwardRequestData, error) {
	if !common.IsHexAddress(req.From) {
		return forwardRequestData{}, fmt.Errorf("%w: from %q", relay.ErrInvalidAddress, req.From)
	}
	if !common.IsHexAddress(req.To) {
		return forwardRequestData{}, fmt.Errorf("%w: to %q", relay.ErrInvalidAddress, req.To)
	}
	data, err := req.CallData()
	if err != nil {
		return forwardRequestData{}, fmt.Errorf("failed to decode data: %w", err)
	}
	sig, err := req.SignatureBytes()
	if err != nil {
		return forwardRequestData{}, fmt.Errorf("failed to decode signature: %w", err)
	}

	return forwardRequestData{
		From:      common.HexToAddress(req.From),
		To:        common.HexToAddress(req.To),
		Value:     req.ValueOrZero(),
		Gas:       new(big.Int).SetUint64(req.Gas),
		Deadline:  new(big.Int).SetUint64(req.Deadline),
		Data:      data,
		Signature: sig,
	}, nil
}
