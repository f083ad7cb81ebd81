package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "RELAYER"

	PostgresStorage = "postgres"
	LevelDBStorage  = "leveldb"
)

// GaslessRelayerConfig is the server configuration read from RELAYER_* environment variables.
type GaslessRelayerConfig struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"0.0.0.0:8080"`
	AccessKey  string `envconfig:"ACCESS_KEY" required:"true"`

	StorageType    string        `envconfig:"STORAGE_TYPE" default:"postgres"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	DBMaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	StoragePath    string        `envconfig:"STORAGE_PATH" default:"storage/leveldb"`
	RecordCacheTTL time.Duration `envconfig:"RECORD_CACHE_TTL" default:"1m"`

	ConfirmationQueueCapacity int           `envconfig:"CONFIRMATION_QUEUE_CAPACITY" default:"100"`
	ConfirmationTimeout       time.Duration `envconfig:"CONFIRMATION_TIMEOUT" default:"5m"`
	ReceiptPollInterval       time.Duration `envconfig:"RECEIPT_POLL_INTERVAL" default:"2s"`
	ReceiptMaxTransportErrors uint          `envconfig:"RECEIPT_MAX_TRANSPORT_ERRORS" default:"5"`
	MonitorWorkers            int           `envconfig:"MONITOR_WORKERS" default:"32"`

	ChainsConfigPath string        `envconfig:"CHAINS_CONFIG_PATH" required:"true"`
	ChainDialTimeout time.Duration `envconfig:"CHAIN_DIAL_TIMEOUT" default:"10s"`
	AllowedTargets   []string      `envconfig:"ALLOWED_TARGETS"`

	Chains []ChainConfig `ignored:"true"`
}

// ChainConfig is one entry of the chains file.
type ChainConfig struct {
	Name                string   `yaml:"name"`
	RPCURL              string   `yaml:"rpc_url"`
	ChainID             uint64   `yaml:"chain_id"`
	AccountsPrivateKeys []string `yaml:"accounts_private_keys"`
	TrustedForwarder    string   `yaml:"trusted_forwarder"`
}

type chainsFile struct {
	Chains []ChainConfig `yaml:"chains"`
}

// NewGaslessRelayerConfig reads the server configuration from the environment and the chains
// from the file it points to.
func NewGaslessRelayerConfig(logger *zap.Logger) (GaslessRelayerConfig, error) {
	var cfg GaslessRelayerConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to process env config: %w", err)
	}

	chains, err := LoadChains(cfg.ChainsConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg.Chains = chains

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("loaded relayer config",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("storage_type", cfg.StorageType),
		zap.Int("confirmation_queue_capacity", cfg.ConfirmationQueueCapacity),
		zap.Duration("confirmation_timeout", cfg.ConfirmationTimeout),
		zap.Int("monitor_workers", cfg.MonitorWorkers),
		zap.Int("chains", len(cfg.Chains)),
		zap.Strings("allowed_targets", cfg.AllowedTargets))

	return cfg, nil
}

// LoadChains parses the yaml chains file.
func LoadChains(path string) ([]ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chains config %s: %w", path, err)
	}

	var file chainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chains config %s: %w", path, err)
	}

	return file.Chains, nil
}

func (c GaslessRelayerConfig) Validate() error {
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key must not be empty")
	}

	switch c.StorageType {
	case PostgresStorage:
		if c.DatabaseURL == "" {
			return errors.New("database url is required for postgres storage")
		}
	case LevelDBStorage:
		if c.StoragePath == "" {
			return errors.New("storage path is required for leveldb storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}

	if c.ConfirmationQueueCapacity < 1 {
		return errors.New("confirmation queue capacity must be positive")
	}
	if c.ConfirmationTimeout <= 0 {
		return errors.New("confirmation timeout must be positive")
	}
	if c.ReceiptPollInterval <= 0 {
		return errors.New("receipt poll interval must be positive")
	}
	if c.MonitorWorkers < 1 {
		return errors.New("monitor workers must be positive")
	}

	for _, target := range c.AllowedTargets {
		if !common.IsHexAddress(target) {
			return fmt.Errorf("allowed target %q is not an address", target)
		}
	}

	if len(c.Chains) == 0 {
		return errors.New("no chains configured")
	}
	seen := make(map[uint64]struct{}, len(c.Chains))
	for i, chain := range c.Chains {
		if err := chain.Validate(); err != nil {
			return fmt.Errorf("chains[%d]: %w", i, err)
		}
		if _, ok := seen[chain.ChainID]; ok {
			return fmt.Errorf("chains[%d]: duplicate chain id %d", i, chain.ChainID)
		}
		seen[chain.ChainID] = struct{}{}
	}

	return nil
}

// Validate never includes private keys in its errors.
func (c ChainConfig) Validate() error {
	if c.ChainID == 0 {
		return errors.New("chain_id must be set")
	}
	if c.RPCURL == "" {
		return errors.New("rpc_url must be set")
	}
	if !common.IsHexAddress(c.TrustedForwarder) {
		return fmt.Errorf("trusted_forwarder %q is not an address", c.TrustedForwarder)
	}
	if len(c.AccountsPrivateKeys) == 0 {
		return errors.New("accounts_private_keys must not be empty")
	}
	return nil
}

// DisplayName returns the chain name, falling back to its id.
func (c ChainConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("chain-%d", c.ChainID)
}
