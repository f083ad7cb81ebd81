package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gasless-relayer/gasless-relayer/internal/metrics"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const restartedBeforeSubmission = "relayer restarted before submission completed"

type Config struct {
	// ConfirmationTimeout bounds the await of a single transaction.
	ConfirmationTimeout time.Duration
	// Workers is the maximum number of transactions awaited at the same time.
	Workers int
}

// Monitor awaits submitted transactions and writes their outcome to the storage.
type Monitor struct {
	cfg     Config
	storage relay.Storage
	clients map[uint64]relay.ChainClient
	logger  *zap.Logger
	now     func() time.Time

	recovered []relay.PendingConfirmation
}

func NewMonitor(cfg Config, storage relay.Storage, clients map[uint64]relay.ChainClient, logger *zap.Logger) *Monitor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &Monitor{
		cfg:     cfg,
		storage: storage,
		clients: clients,
		logger:  logger,
		now:     time.Now,
	}
}

// Recover loads the requests left Pending by a previous run. It must return before the relayer
// accepts new requests: a Pending request without a hash is failed here. The transactions it
// re-attached to are awaited once Run starts.
func (m *Monitor) Recover(ctx context.Context) error {
	recovered, err := m.recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover pending requests: %w", err)
	}

	m.logger.Info("pending requests recovered", zap.Int("reattached", len(recovered)))
	m.recovered = recovered
	return nil
}

// Run awaits the recovered transactions and consumes the queue until ctx is done or the queue
// is closed. It returns after every in-flight await returned.
func (m *Monitor) Run(ctx context.Context, queue <-chan relay.PendingConfirmation) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.cfg.Workers)

	recovered := m.recovered
	m.recovered = nil

	// recovered confirmations must not hold the queue back while all workers are busy
	var recovering sync.WaitGroup
	recovering.Add(1)
	go func() {
		defer recovering.Done()
		for _, confirmation := range recovered {
			m.spawn(groupCtx, group, confirmation)
		}
	}()

	wait := func() error {
		recovering.Wait()
		return group.Wait()
	}

	for {
		select {
		case confirmation, ok := <-queue:
			if !ok {
				m.logger.Info("confirmation queue closed, waiting for in-flight confirmations...")
				return wait()
			}
			metrics.SetConfirmationQueueSize(len(queue))
			m.spawn(groupCtx, group, confirmation)
		case <-ctx.Done():
			m.logger.Info("context cancelled, waiting for in-flight confirmations...")
			return wait()
		}
	}
}

// spawn blocks while all workers are busy. Workers never return an error, so groupCtx is only
// done when ctx is.
func (m *Monitor) spawn(ctx context.Context, group *errgroup.Group, confirmation relay.PendingConfirmation) {
	metrics.IncInFlightConfirmations()
	group.Go(func() error {
		defer metrics.DecInFlightConfirmations()
		m.process(ctx, confirmation)
		return nil
	})
}

// recover loads every Pending request. Requests with a known hash are awaited again, the
// others never reached the chain and are failed.
func (m *Monitor) recover(ctx context.Context) ([]relay.PendingConfirmation, error) {
	pending, err := m.storage.GetPendingRequests(ctx)
	if err != nil {
		return nil, err
	}

	var out []relay.PendingConfirmation
	for _, record := range pending {
		logger := m.logger.With(zap.String("request_id", record.RequestID), zap.Uint64("chain_id", record.ChainID))

		if record.TransactionHash == "" {
			m.finalize(ctx, logger, record.RequestID, record.CreatedAt, relay.FinalizeParams{
				State:        relay.Failed,
				ErrorMessage: restartedBeforeSubmission,
			})
			continue
		}

		client, ok := m.clients[record.ChainID]
		if !ok {
			m.finalize(ctx, logger, record.RequestID, record.CreatedAt, relay.FinalizeParams{
				State:           relay.Failed,
				TransactionHash: record.TransactionHash,
				ErrorMessage:    fmt.Sprintf("chain %d is not configured anymore", record.ChainID),
			})
			continue
		}

		tx, err := client.PendingByHash(record.TransactionHash)
		if err != nil {
			m.finalize(ctx, logger, record.RequestID, record.CreatedAt, relay.FinalizeParams{
				State:           relay.Failed,
				TransactionHash: record.TransactionHash,
				ErrorMessage:    err.Error(),
			})
			continue
		}

		logger.Info("re-attached to pending transaction", zap.String("tx_hash", record.TransactionHash))
		out = append(out, relay.PendingConfirmation{
			RequestID:   record.RequestID,
			ChainID:     record.ChainID,
			Tx:          tx,
			SubmittedAt: record.CreatedAt,
		})
	}

	return out, nil
}

func (m *Monitor) process(ctx context.Context, confirmation relay.PendingConfirmation) {
	logger := m.logger.With(
		zap.String("request_id", confirmation.RequestID),
		zap.Uint64("chain_id", confirmation.ChainID),
		zap.String("tx_hash", confirmation.Tx.Hash()),
	)

	awaitCtx, cancel := context.WithTimeout(ctx, m.cfg.ConfirmationTimeout)
	defer cancel()

	receipt, err := await(awaitCtx, confirmation.Tx)
	switch {
	case err == nil:
		m.finalize(ctx, logger, confirmation.RequestID, confirmation.SubmittedAt, relay.FinalizeParams{
			State:           relay.Success,
			BlockNumber:     receipt.BlockNumber,
			MinedAt:         m.now(),
			GasUsed:         receipt.GasUsed,
			TransactionHash: receipt.TxHash,
		})
	case ctx.Err() != nil:
		// shutdown: the request stays Pending and is picked up on the next start
		logger.Info("stopped awaiting transaction, request left pending")
	case errors.Is(awaitCtx.Err(), context.DeadlineExceeded):
		m.finalize(ctx, logger, confirmation.RequestID, confirmation.SubmittedAt, relay.FinalizeParams{
			State:           relay.Timeout,
			TransactionHash: confirmation.Tx.Hash(),
			ErrorMessage:    fmt.Sprintf("not confirmed within %s", m.cfg.ConfirmationTimeout),
		})
	default:
		m.finalize(ctx, logger, confirmation.RequestID, confirmation.SubmittedAt, relay.FinalizeParams{
			State:           relay.Failed,
			TransactionHash: confirmation.Tx.Hash(),
			ErrorMessage:    err.Error(),
		})
	}
}

// await returns when the tx is done or ctx is, even if the tx ignores ctx.
func await(ctx context.Context, tx relay.PendingTx) (*relay.Receipt, error) {
	type result struct {
		receipt *relay.Receipt
		err     error
	}

	done := make(chan result, 1)
	go func() {
		receipt, err := tx.Await(ctx)
		done <- result{receipt: receipt, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.receipt == nil {
			return nil, errors.New("transaction finished without a receipt")
		}
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Monitor) finalize(ctx context.Context, logger *zap.Logger, requestID string, submittedAt time.Time, params relay.FinalizeParams) {
	// the outcome is known, it must be written even when shutting down
	err := m.storage.Finalize(context.WithoutCancel(ctx), requestID, params)
	switch {
	case err == nil:
		metrics.AddFinalizedRequest(string(params.State), m.now().Sub(submittedAt).Seconds())
		logger.Info("request finalized",
			zap.String("state", string(params.State)),
			zap.Uint64("block_number", params.BlockNumber),
			zap.Uint64("gas_used", params.GasUsed),
			zap.String("error_message", params.ErrorMessage))
	case errors.Is(err, relay.ErrAlreadyFinalized):
		logger.Warn("request already finalized", zap.String("state", string(params.State)), zap.Error(err))
	default:
		logger.Error("failed to finalize request", zap.String("state", string(params.State)), zap.Error(err))
	}
}
