package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/gasless-relayer/gasless-relayer/internal/accounts"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

// Backend is the node api the client needs. *ethclient.Client implements it.
type Backend interface {
	bind.ContractBackend
	ReceiptFetcher
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

type Config struct {
	Name               string
	ChainID            uint64
	RPCURL             string
	TrustedForwarder   common.Address
	PollInterval       time.Duration
	MaxTransportErrors uint
}

// Client submits forwarder calls to a single EVM chain.
type Client struct {
	cfg       Config
	chainID   *big.Int
	backend   Backend
	forwarder *bind.BoundContract
	logger    *zap.Logger
}

// Dial connects to the rpc endpoint of the chain and checks that the node serves the
// configured chain id.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s rpc: %w", cfg.Name, err)
	}

	remoteID, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("failed to get chain id of %s: %w", cfg.Name, err)
	}
	if !remoteID.IsUint64() || remoteID.Uint64() != cfg.ChainID {
		ec.Close()
		return nil, fmt.Errorf("chain %s: node serves chain id %s, expected %d", cfg.Name, remoteID, cfg.ChainID)
	}

	return NewClient(cfg, ec, logger)
}

func NewClient(cfg Config, backend Backend, logger *zap.Logger) (*Client, error) {
	parsed, err := parseForwarderABI()
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:       cfg,
		chainID:   new(big.Int).SetUint64(cfg.ChainID),
		backend:   backend,
		forwarder: bind.NewBoundContract(cfg.TrustedForwarder, parsed, backend, backend, backend),
		logger:    logger.With(zap.String("chain", cfg.Name), zap.Uint64("chain_id", cfg.ChainID)),
	}, nil
}

func (c *Client) ChainID() uint64 {
	return c.cfg.ChainID
}

// Execute calls ERC2771Forwarder.execute signed by signer. The caller must hold the signer lock.
func (c *Client) Execute(ctx context.Context, signer *accounts.Credential, req relay.ForwardRequest) (relay.PendingTx, error) {
	data, err := toForwardRequestData(req)
	if err != nil {
		return nil, relay.NewSubmissionError(relay.SubmissionInvalidInput, c.cfg.ChainID, err)
	}

	return c.transact(ctx, signer, data.Value, executeMethod, data)
}

// ExecuteBatch calls ERC2771Forwarder.executeBatch signed by signer. The caller must hold the signer lock.
func (c *Client) ExecuteBatch(
	ctx context.Context,
	signer *accounts.Credential,
	reqs []relay.ForwardRequest,
	refundReceiver common.Address,
) (relay.PendingTx, error) {
	if len(reqs) == 0 {
		return nil, relay.NewSubmissionError(relay.SubmissionInvalidInput, c.cfg.ChainID, relay.ErrEmptyBatch)
	}

	batch := make([]forwardRequestData, 0, len(reqs))
	total := new(big.Int)
	for i, req := range reqs {
		data, err := toForwardRequestData(req)
		if err != nil {
			return nil, relay.NewSubmissionError(relay.SubmissionInvalidInput, c.cfg.ChainID,
				fmt.Errorf("request #%d: %w", i, err))
		}
		total.Add(total, data.Value)
		batch = append(batch, data)
	}

	return c.transact(ctx, signer, total, executeBatchMethod, batch, refundReceiver)
}

func (c *Client) transact(
	ctx context.Context,
	signer *accounts.Credential,
	value *big.Int,
	method string,
	params ...interface{},
) (relay.PendingTx, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(signer.PrivateKey(), c.chainID)
	if err != nil {
		return nil, relay.NewSubmissionError(relay.SubmissionInvalidInput, c.cfg.ChainID,
			fmt.Errorf("failed to create transactor: %w", err))
	}
	opts.Context = ctx
	// the forwarder requires msg.value to match the sum of the requested values
	opts.Value = value

	tx, err := c.forwarder.Transact(opts, method, params...)
	if err != nil {
		c.logger.Debug("failed to send forwarder call",
			zap.String("method", method),
			zap.String("signer", signer.Address().Hex()),
			zap.Error(err))
		return nil, relay.NewSubmissionError(ClassifySendError(err), c.cfg.ChainID, err)
	}

	c.logger.Info("forwarder call sent",
		zap.String("method", method),
		zap.String("signer", signer.Address().Hex()),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()))

	return c.pending(tx.Hash()), nil
}

// PendingByHash returns a handle for a transaction sent earlier.
func (c *Client) PendingByHash(txHash string) (relay.PendingTx, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil {
		return nil, fmt.Errorf("invalid tx hash %q: %w", txHash, err)
	}
	if len(raw) != common.HashLength {
		return nil, fmt.Errorf("invalid tx hash %q: expected %d bytes, got %d", txHash, common.HashLength, len(raw))
	}

	return c.pending(common.BytesToHash(raw)), nil
}

func (c *Client) Close() {
	c.backend.Close()
}

func (c *Client) pending(hash common.Hash) *PendingTx {
	return NewPendingTx(hash, c.backend, c.cfg.PollInterval, c.cfg.MaxTransportErrors)
}

var rejectionMarkers = []string{
	"execution reverted",
	"insufficient funds",
	"nonce too low",
	"replacement transaction underpriced",
	"intrinsic gas too low",
	"gas required exceeds allowance",
	"exceeds block gas limit",
}

// ClassifySendError tells an answer of the node that rejected the call apart from a failure to
// reach the node.
func ClassifySendError(err error) relay.SubmissionErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return relay.SubmissionTransport
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return relay.SubmissionRejected
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return relay.SubmissionRejected
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rejectionMarkers {
		if strings.Contains(msg, marker) {
			return relay.SubmissionRejected
		}
	}

	return relay.SubmissionTransport
}
