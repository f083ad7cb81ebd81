package relay

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gasless-relayer/gasless-relayer/internal/accounts"
)

// Processor knows how to submit forward requests to the trusted forwarder of a chain
type Processor interface {
	SubmitSingle(ctx context.Context, requestID string, req ForwardRequest) (PendingConfirmation, error)
	SubmitBatch(ctx context.Context, requestID string, batch BatchRequest) (PendingConfirmation, error)
	SupportsChain(chainID uint64) bool
}

// ChainClient sends forwarder calls to a single chain and looks up submitted transactions.
type ChainClient interface {
	ChainID() uint64
	Execute(ctx context.Context, signer *accounts.Credential, req ForwardRequest) (PendingTx, error)
	ExecuteBatch(ctx context.Context, signer *accounts.Credential, reqs []ForwardRequest, refundReceiver common.Address) (PendingTx, error)
	// PendingByHash re-attaches to a transaction submitted earlier, e.g. before a restart.
	PendingByHash(txHash string) (PendingTx, error)
	Close()
}
