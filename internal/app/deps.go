package app

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	nlogger "github.com/neutron-org/neutron-logger"

	"github.com/gasless-relayer/gasless-relayer/internal/accounts"
	"github.com/gasless-relayer/gasless-relayer/internal/chain"
	"github.com/gasless-relayer/gasless-relayer/internal/config"
	"github.com/gasless-relayer/gasless-relayer/internal/processor"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

// DependencyContainer holds the per chain dependencies built from the chains config.
type DependencyContainer struct {
	clients   map[uint64]relay.ChainClient
	processor *processor.Processor
}

func NewDefaultDependencyContainer(ctx context.Context,
	cfg config.GaslessRelayerConfig,
	logRegistry *nlogger.Registry) (*DependencyContainer, error) {
	logger := logRegistry.Get(ChainContext)
	deps := &DependencyContainer{clients: make(map[uint64]relay.ChainClient, len(cfg.Chains))}
	chains := make(map[uint64]processor.Chain, len(cfg.Chains))

	for _, chainCfg := range cfg.Chains {
		pool, err := accounts.NewPoolFromKeys(chainCfg.AccountsPrivateKeys)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("cannot load accounts of %s: %w", chainCfg.DisplayName(), err)
		}

		client, err := dialChain(ctx, cfg, chainCfg, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("cannot connect to %s: %w", chainCfg.DisplayName(), err)
		}

		deps.clients[chainCfg.ChainID] = client
		chains[chainCfg.ChainID] = processor.Chain{Client: client, Pool: pool}

		addresses := make([]string, 0, pool.Size())
		for _, addr := range pool.Addresses() {
			addresses = append(addresses, addr.Hex())
		}
		logger.Info("chain connected",
			zap.String("chain", chainCfg.DisplayName()),
			zap.Uint64("chain_id", chainCfg.ChainID),
			zap.String("trusted_forwarder", chainCfg.TrustedForwarder),
			zap.Strings("accounts", addresses))
	}

	deps.processor = processor.NewProcessor(chains, logRegistry.Get(ProcessorContext))
	return deps, nil
}

func dialChain(ctx context.Context, cfg config.GaslessRelayerConfig, chainCfg config.ChainConfig, logger *zap.Logger) (*chain.Client, error) {
	clientCfg := chain.Config{
		Name:               chainCfg.DisplayName(),
		ChainID:            chainCfg.ChainID,
		RPCURL:             chainCfg.RPCURL,
		TrustedForwarder:   common.HexToAddress(chainCfg.TrustedForwarder),
		PollInterval:       cfg.ReceiptPollInterval,
		MaxTransportErrors: cfg.ReceiptMaxTransportErrors,
	}

	var client *chain.Client
	err := retry.Do(func() error {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.ChainDialTimeout)
		defer cancel()

		var err error
		client, err = chain.Dial(dialCtx, clientCfg, logger)
		return err
	}, retry.Context(ctx), rtyAtt, rtyDel, rtyErr, retry.OnRetry(func(n uint, err error) {
		logger.Warn("failed to dial chain, retrying",
			zap.String("chain", clientCfg.Name), zap.Uint("attempt", n+1), zap.Error(err))
	}))
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (c DependencyContainer) GetProcessor() *processor.Processor {
	return c.processor
}

func (c DependencyContainer) GetChainClients() map[uint64]relay.ChainClient {
	return c.clients
}

// Close closes every chain connection.
func (c DependencyContainer) Close() {
	for _, client := range c.clients {
		client.Close()
	}
}
