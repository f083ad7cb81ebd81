package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

// ReceiptFetcher is the part of the node api a pending transaction needs.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PendingTx polls the node until the receipt of a transaction shows up.
type PendingTx struct {
	hash               common.Hash
	receipts           ReceiptFetcher
	pollInterval       time.Duration
	maxTransportErrors uint
}

func NewPendingTx(hash common.Hash, receipts ReceiptFetcher, pollInterval time.Duration, maxTransportErrors uint) *PendingTx {
	return &PendingTx{
		hash:               hash,
		receipts:           receipts,
		pollInterval:       pollInterval,
		maxTransportErrors: maxTransportErrors,
	}
}

func (p *PendingTx) Hash() string {
	return p.hash.Hex()
}

// Await returns once the transaction is mined, ctx is done or the node failed to answer
// maxTransportErrors times in a row. A transaction that is not known to the node yet is polled
// for again until ctx is done.
func (p *PendingTx) Await(ctx context.Context) (*relay.Receipt, error) {
	var (
		receipt         *types.Receipt
		transportErrors uint
	)

	err := retry.Do(func() error {
		if err := ctx.Err(); err != nil {
			return retry.Unrecoverable(err)
		}

		var err error
		receipt, err = p.receipts.TransactionReceipt(ctx, p.hash)
		if err == nil {
			return nil
		}
		if errors.Is(err, ethereum.NotFound) {
			transportErrors = 0
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return retry.Unrecoverable(ctxErr)
		}

		transportErrors++
		if transportErrors >= p.maxTransportErrors {
			return retry.Unrecoverable(fmt.Errorf("failed to get receipt after %d attempts: %w", transportErrors, err))
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(p.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s in block %s", relay.ErrTxReverted, p.hash.Hex(), receipt.BlockNumber)
	}

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	return &relay.Receipt{
		TxHash:      p.hash.Hex(),
		BlockNumber: blockNumber,
		GasUsed:     receipt.GasUsed,
	}, nil
}
