package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gasless-relayer/gasless-relayer/internal/config"
)

const (
	forwarder = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testKey   = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

const chainsYAML = `
chains:
  - name: anvil
    rpc_url: http://127.0.0.1:8545
    chain_id: 31337
    trusted_forwarder: ` + forwarder + `
    accounts_private_keys:
      - ` + testKey + `
  - rpc_url: http://127.0.0.1:9545
    chain_id: 10
    trusted_forwarder: ` + forwarder + `
    accounts_private_keys: ["` + testKey + `"]
`

func writeChains(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() config.GaslessRelayerConfig {
	return config.GaslessRelayerConfig{
		AccessKey:                 "secret",
		StorageType:               config.LevelDBStorage,
		StoragePath:               "storage",
		ConfirmationQueueCapacity: 100,
		ConfirmationTimeout:       time.Minute,
		ReceiptPollInterval:       time.Second,
		MonitorWorkers:            4,
		Chains: []config.ChainConfig{
			{ChainID: 1, RPCURL: "http://node", TrustedForwarder: forwarder, AccountsPrivateKeys: []string{testKey}},
		},
	}
}

func TestNewGaslessRelayerConfig(t *testing.T) {
	t.Setenv("RELAYER_ACCESS_KEY", "secret")
	t.Setenv("RELAYER_DATABASE_URL", "postgres://relayer@localhost/relayer?sslmode=disable")
	t.Setenv("RELAYER_CHAINS_CONFIG_PATH", writeChains(t, chainsYAML))
	t.Setenv("RELAYER_CONFIRMATION_TIMEOUT", "90s")
	t.Setenv("RELAYER_ALLOWED_TARGETS", forwarder)

	cfg, err := config.NewGaslessRelayerConfig(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr)
	assert.Equal(t, config.PostgresStorage, cfg.StorageType)
	assert.Equal(t, 100, cfg.ConfirmationQueueCapacity)
	assert.Equal(t, 90*time.Second, cfg.ConfirmationTimeout)
	assert.Equal(t, 2*time.Second, cfg.ReceiptPollInterval)
	assert.Equal(t, uint(5), cfg.ReceiptMaxTransportErrors)
	assert.Equal(t, []string{forwarder}, cfg.AllowedTargets)

	require.Len(t, cfg.Chains, 2)
	assert.Equal(t, "anvil", cfg.Chains[0].DisplayName())
	assert.Equal(t, uint64(31337), cfg.Chains[0].ChainID)
	assert.Equal(t, []string{testKey}, cfg.Chains[0].AccountsPrivateKeys)
	assert.Equal(t, "chain-10", cfg.Chains[1].DisplayName())
}

func TestNewGaslessRelayerConfigRequiresAccessKey(t *testing.T) {
	t.Setenv("RELAYER_ACCESS_KEY", "")
	t.Setenv("RELAYER_CHAINS_CONFIG_PATH", writeChains(t, chainsYAML))

	_, err := config.NewGaslessRelayerConfig(zap.NewNop())
	assert.Error(t, err)
}

func TestLoadChainsErrors(t *testing.T) {
	_, err := config.LoadChains(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read chains config")

	_, err = config.LoadChains(writeChains(t, "chains: [\n"))
	assert.ErrorContains(t, err, "failed to parse chains config")
}

func TestValidate(t *testing.T) {
	tt := []struct {
		name   string
		modify func(cfg *config.GaslessRelayerConfig)
		errMsg string
	}{
		{
			name:   "valid",
			modify: func(cfg *config.GaslessRelayerConfig) {},
		},
		{
			name:   "postgres without url",
			modify: func(cfg *config.GaslessRelayerConfig) { cfg.StorageType = config.PostgresStorage },
			errMsg: "database url is required",
		},
		{
			name:   "unknown storage",
			modify: func(cfg *config.GaslessRelayerConfig) { cfg.StorageType = "redis" },
			errMsg: "unknown storage type",
		},
		{
			name:   "zero queue capacity",
			modify: func(cfg *config.GaslessRelayerConfig) { cfg.ConfirmationQueueCapacity = 0 },
			errMsg: "queue capacity",
		},
		{
			name:   "malformed allowed target",
			modify: func(cfg *config.GaslessRelayerConfig) { cfg.AllowedTargets = []string{"0x12"} },
			errMsg: "allowed target",
		},
		{
			name:   "no chains",
			modify: func(cfg *config.GaslessRelayerConfig) { cfg.Chains = nil },
			errMsg: "no chains configured",
		},
		{
			name: "duplicate chain",
			modify: func(cfg *config.GaslessRelayerConfig) {
				cfg.Chains = append(cfg.Chains, cfg.Chains[0])
			},
			errMsg: "duplicate chain id 1",
		},
		{
			name:   "chain without keys",
			modify: func(cfg *config.GaslessRelayerConfig) { cfg.Chains[0].AccountsPrivateKeys = nil },
			errMsg: "accounts_private_keys must not be empty",
		},
		{
			name:   "chain with malformed forwarder",
			modify: func(cfg *config.GaslessRelayerConfig) { cfg.Chains[0].TrustedForwarder = "forwarder" },
			errMsg: "trusted_forwarder",
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.modify(&cfg)

			err := cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestValidateDoesNotLeakKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Chains[0].TrustedForwarder = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testKey[2:])
}
