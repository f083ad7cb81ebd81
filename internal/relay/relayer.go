package relay

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gasless-relayer/gasless-relayer/internal/metrics"
	"github.com/gasless-relayer/gasless-relayer/internal/registry"
)

const (
	maxPageSize = 100

	notTracked = "confirmation not tracked"
)

// Relayer is the intake of the relayer:
// 1. checks the access key and validates a request
// 2. stores it as Pending and submits it through the processor
// 3. hands the submitted transaction over to the monitor through the confirmation queue
type Relayer struct {
	accessKey string
	processor Processor
	storage   Storage
	queue     chan<- PendingConfirmation
	targets   *registry.Registry
	logger    *zap.Logger
	newID     func() string
}

func NewRelayer(
	accessKey string,
	processor Processor,
	storage Storage,
	queue chan<- PendingConfirmation,
	targets *registry.Registry,
	logger *zap.Logger,
) *Relayer {
	if targets == nil {
		targets = registry.New(&registry.RegistryConfig{})
	}

	return &Relayer{
		accessKey: accessKey,
		processor: processor,
		storage:   storage,
		queue:     queue,
		targets:   targets,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// SubmitSingle relays one forward request and returns its Pending record. Nothing is stored
// when the request is rejected by validation.
func (r *Relayer) SubmitSingle(ctx context.Context, req ForwardRequest) (*RequestRecord, error) {
	if err := r.authorize(req.AccessKey); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkChain(req.ChainID); err != nil {
		return nil, err
	}
	if err := r.checkTarget("to", req.To); err != nil {
		return nil, err
	}

	return r.relay(ctx, req.ChainID, false, func(requestID string) (PendingConfirmation, error) {
		return r.processor.SubmitSingle(ctx, requestID, req)
	})
}

// SubmitBatch relays a batch of forward requests in one forwarder call.
func (r *Relayer) SubmitBatch(ctx context.Context, batch BatchRequest) (*RequestRecord, error) {
	if err := r.authorize(batch.AccessKey); err != nil {
		return nil, err
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkChain(batch.ChainID); err != nil {
		return nil, err
	}
	for i, req := range batch.Requests {
		if err := r.checkTarget(fmt.Sprintf("requests[%d].to", i), req.To); err != nil {
			return nil, err
		}
	}

	return r.relay(ctx, batch.ChainID, true, func(requestID string) (PendingConfirmation, error) {
		return r.processor.SubmitBatch(ctx, requestID, batch)
	})
}

// GetRequest returns ErrRequestNotFound for an unknown request id.
func (r *Relayer) GetRequest(ctx context.Context, requestID string) (*RequestRecord, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, NewValidationError("request_id", err)
	}

	record, err := r.storage.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", requestID, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}

	return record, nil
}

// ListRequests returns a page of requests, newest first. Pages start at 1.
func (r *Relayer) ListRequests(ctx context.Context, page, pageSize int) ([]*RequestRecord, error) {
	if page < 1 {
		return nil, NewValidationError("page", fmt.Errorf("%w: page must be at least 1", ErrInvalidPage))
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return nil, NewValidationError("page_size",
			fmt.Errorf("%w: page_size must be between 1 and %d", ErrInvalidPage, maxPageSize))
	}

	records, err := r.storage.ListRequests(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	return records, nil
}

func (r *Relayer) relay(
	ctx context.Context,
	chainID uint64,
	isBatch bool,
	submit func(requestID string) (PendingConfirmation, error),
) (*RequestRecord, error) {
	requestID := r.newID()
	logger := r.logger.With(
		zap.String("request_id", requestID),
		zap.Uint64("chain_id", chainID),
		zap.Bool("is_batch", isBatch),
	)

	record, err := r.storage.InsertPending(ctx, chainID, requestID, isBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to insert pending request: %w", err)
	}

	confirmation, err := submit(requestID)
	if err != nil {
		r.fail(ctx, logger, requestID, "", err.Error())
		return nil, err
	}

	txHash := confirmation.Tx.Hash()
	if err := r.storage.MarkSubmitted(ctx, requestID, txHash); err != nil {
		// the transaction is already sent, the monitor still has to track it
		logger.Error("failed to store transaction hash", zap.String("tx_hash", txHash), zap.Error(err))
	}

	select {
	case r.queue <- confirmation:
		metrics.SetConfirmationQueueSize(len(r.queue))
	case <-ctx.Done():
		r.fail(ctx, logger, requestID, txHash, fmt.Sprintf("%s: %s", notTracked, ctx.Err()))
		return nil, fmt.Errorf("failed to enqueue confirmation: %w", ctx.Err())
	}

	logger.Debug("request enqueued for confirmation", zap.String("tx_hash", txHash))

	record.TransactionHash = txHash
	return record, nil
}

func (r *Relayer) fail(ctx context.Context, logger *zap.Logger, requestID, txHash, reason string) {
	err := r.storage.Finalize(context.WithoutCancel(ctx), requestID, FinalizeParams{
		State:           Failed,
		TransactionHash: txHash,
		ErrorMessage:    reason,
	})
	if err != nil && !errors.Is(err, ErrAlreadyFinalized) {
		logger.Error("failed to finalize failed request", zap.String("reason", reason), zap.Error(err))
	}
}

func (r *Relayer) authorize(accessKey string) error {
	if subtle.ConstantTimeCompare([]byte(accessKey), []byte(r.accessKey)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (r *Relayer) checkChain(chainID uint64) error {
	if !r.processor.SupportsChain(chainID) {
		return fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return nil
}

func (r *Relayer) checkTarget(field, addr string) error {
	if !r.targets.Allows(addr) {
		return NewValidationError(field, fmt.Errorf("%w: %s", ErrTargetNotAllowed, addr))
	}
	return nil
}
