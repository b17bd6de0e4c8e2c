package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nepapay/chaingate/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "testnet", cfg.Environment)
	assert.Equal(t, 1.2, cfg.GasMultiplier)
	assert.Equal(t, 30*time.Second, cfg.MonitorPollInterval)
	assert.Equal(t, time.Hour, cfg.MonitorTimeout)
}

func TestBlockchainConfigsOnlyConfiguredNetworks(t *testing.T) {
	t.Setenv("ETHEREUM_RPC_URL", "https://rpc.example/eth")
	t.Setenv("POLYGON_RPC_URL", "https://rpc.example/polygon")
	t.Setenv("CHAINGATE_ENVIRONMENT", "mainnet")

	cfg, err := Load()
	require.NoError(t, err)

	configs := cfg.BlockchainConfigs()
	require.Len(t, configs, 2)

	assert.Equal(t, types.NetworkEthereum, configs[0].Network)
	assert.Equal(t, "1", configs[0].ChainID)
	assert.Equal(t, types.EnvMainnet, configs[0].Environment)
	assert.Equal(t, 18, configs[0].NativeCurrency.Decimals)

	assert.Equal(t, types.NetworkPolygon, configs[1].Network)
	assert.Equal(t, "137", configs[1].ChainID)
}

func TestDerivedConfigs(t *testing.T) {
	t.Setenv("CHAINGATE_ENABLE_CROSS_CHAIN", "true")
	t.Setenv("CHAINGATE_MAX_GAS_PRICE", "500")
	t.Setenv("CHAINGATE_MONITOR_POLL_INTERVAL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	pc := cfg.PaymentsConfig()
	assert.True(t, pc.EnableCrossChain)
	assert.Equal(t, "500", pc.MaxGasPrice)

	mc := cfg.MonitorConfig()
	assert.Equal(t, 10*time.Second, mc.PollInterval)
}
