package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gasless-relayer/gasless-relayer/internal/accounts"
	"github.com/gasless-relayer/gasless-relayer/internal/metrics"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const (
	singleKind = "single"
	batchKind  = "batch"
)

// Chain is everything the processor needs to submit to one chain.
type Chain struct {
	Client relay.ChainClient
	Pool   *accounts.Pool
}

// Processor submits forward requests through the trusted forwarder of the request's chain.
// Every submission is attempted exactly once.
type Processor struct {
	chains map[uint64]Chain
	logger *zap.Logger
	now    func() time.Time
}

func NewProcessor(chains map[uint64]Chain, logger *zap.Logger) *Processor {
	return &Processor{
		chains: chains,
		logger: logger,
		now:    time.Now,
	}
}

func (p *Processor) SupportsChain(chainID uint64) bool {
	_, ok := p.chains[chainID]
	return ok
}

func (p *Processor) SubmitSingle(ctx context.Context, requestID string, req relay.ForwardRequest) (relay.PendingConfirmation, error) {
	chain, ok := p.chains[req.ChainID]
	if !ok {
		return relay.PendingConfirmation{}, fmt.Errorf("%w: %d", relay.ErrUnknownChain, req.ChainID)
	}

	return p.submit(ctx, requestID, req.ChainID, singleKind, chain, func(signer *accounts.Credential) (relay.PendingTx, error) {
		return chain.Client.Execute(ctx, signer, req)
	})
}

func (p *Processor) SubmitBatch(ctx context.Context, requestID string, batch relay.BatchRequest) (relay.PendingConfirmation, error) {
	chain, ok := p.chains[batch.ChainID]
	if !ok {
		return relay.PendingConfirmation{}, fmt.Errorf("%w: %d", relay.ErrUnknownChain, batch.ChainID)
	}
	if len(batch.Requests) == 0 {
		return relay.PendingConfirmation{}, relay.ErrEmptyBatch
	}
	refundReceiver, err := relay.ParseRefundReceiver(batch.RefundReceiver)
	if err != nil {
		return relay.PendingConfirmation{}, err
	}

	return p.submit(ctx, requestID, batch.ChainID, batchKind, chain, func(signer *accounts.Credential) (relay.PendingTx, error) {
		return chain.Client.ExecuteBatch(ctx, signer, batch.Requests, refundReceiver)
	})
}

func (p *Processor) submit(
	ctx context.Context,
	requestID string,
	chainID uint64,
	kind string,
	chain Chain,
	send func(signer *accounts.Credential) (relay.PendingTx, error),
) (relay.PendingConfirmation, error) {
	start := p.now()
	signer := chain.Pool.Checkout()

	signer.Lock()
	tx, err := send(signer)
	signer.Unlock()

	logger := p.logger.With(
		zap.String("request_id", requestID),
		zap.Uint64("chain_id", chainID),
		zap.String("kind", kind),
		zap.String("signer", signer.Address().Hex()),
	)

	if err != nil {
		var subErr *relay.SubmissionError
		if !errors.As(err, &subErr) {
			subErr = relay.NewSubmissionError(relay.SubmissionTransport, chainID, err)
		}
		metrics.AddFailedSubmission(kind, subErr.Kind.String(), time.Since(start).Seconds())
		logger.Error("failed to submit forward request", zap.Stringer("reason", subErr.Kind), zap.Error(subErr.Err))
		return relay.PendingConfirmation{}, subErr
	}

	metrics.AddSuccessSubmission(kind, time.Since(start).Seconds())
	logger.Info("forward request submitted", zap.String("tx_hash", tx.Hash()))

	return relay.PendingConfirmation{
		RequestID:   requestID,
		ChainID:     chainID,
		Tx:          tx,
		SubmittedAt: p.now(),
	}, nil
}
