package app

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	nlogger "github.com/neutron-org/neutron-logger"

	"github.com/gasless-relayer/gasless-relayer/internal/config"
	"github.com/gasless-relayer/gasless-relayer/internal/monitor"
	"github.com/gasless-relayer/gasless-relayer/internal/registry"
	"github.com/gasless-relayer/gasless-relayer/internal/relay"
	"github.com/gasless-relayer/gasless-relayer/internal/storage"
)

var (
	Version = ""
	Commit  = ""
)

const (
	AppContext        = "app"
	RelayerContext    = "relayer"
	ProcessorContext  = "processor"
	MonitorContext    = "monitor"
	SupervisorContext = "supervisor"
	ChainContext      = "chain"
)

// retries configuration for connecting to the chains
var (
	rtyAtt = retry.Attempts(uint(5))
	rtyDel = retry.Delay(time.Second * 2)
	rtyErr = retry.LastErrorOnly(true)
)

// LogContexts lists every logger context used by the relayer.
func LogContexts() []string {
	return []string{
		AppContext,
		RelayerContext,
		ProcessorContext,
		MonitorContext,
		SupervisorContext,
		ChainContext,
	}
}

// NewDefaultStorage opens the configured storage backend and wraps it in a cache of finalized records.
func NewDefaultStorage(ctx context.Context, cfg config.GaslessRelayerConfig, logger *zap.Logger) (relay.Storage, error) {
	var (
		inner relay.Storage
		err   error
	)

	switch cfg.StorageType {
	case config.PostgresStorage:
		inner, err = storage.NewPostgresStorage(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize postgres storage: %w", err)
		}
	case config.LevelDBStorage:
		inner, err = storage.NewLevelDBStorage(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize leveldb storage at %s: %w", cfg.StoragePath, err)
		}
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}

	logger.Info("storage initialized", zap.String("storage_type", cfg.StorageType))
	return storage.NewCachedStorage(inner, cfg.RecordCacheTTL), nil
}

func NewDefaultRelayer(
	cfg config.GaslessRelayerConfig,
	logRegistry *nlogger.Registry,
	storage relay.Storage,
	deps *DependencyContainer,
	queue chan<- relay.PendingConfirmation,
) *relay.Relayer {
	targets := registry.New(&registry.RegistryConfig{Addresses: cfg.AllowedTargets})
	return relay.NewRelayer(
		cfg.AccessKey,
		deps.GetProcessor(),
		storage,
		queue,
		targets,
		logRegistry.Get(RelayerContext),
	)
}

func NewDefaultMonitor(
	cfg config.GaslessRelayerConfig,
	logRegistry *nlogger.Registry,
	storage relay.Storage,
	deps *DependencyContainer,
) *monitor.Monitor {
	return monitor.NewMonitor(
		monitor.Config{
			ConfirmationTimeout: cfg.ConfirmationTimeout,
			Workers:             cfg.MonitorWorkers,
		},
		storage,
		deps.GetChainClients(),
		logRegistry.Get(MonitorContext),
	)
}
