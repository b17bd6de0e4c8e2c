// Package config loads gateway configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/nepapay/chaingate/monitor"
	"github.com/nepapay/chaingate/payments"
	"github.com/nepapay/chaingate/types"
)

type Config struct {
	LogLevel      string `env:"CHAINGATE_LOG_LEVEL" envDefault:"info"`
	EnableMetrics bool   `env:"CHAINGATE_ENABLE_METRICS"`
	Environment   string `env:"CHAINGATE_ENVIRONMENT" envDefault:"testnet"`

	StellarRPCURL  string `env:"STELLAR_RPC_URL"`
	EthereumRPCURL string `env:"ETHEREUM_RPC_URL"`
	PolygonRPCURL  string `env:"POLYGON_RPC_URL"`
	BSCRPCURL      string `env:"BSC_RPC_URL"`
	ArbitrumRPCURL string `env:"ARBITRUM_RPC_URL"`
	OptimismRPCURL string `env:"OPTIMISM_RPC_URL"`

	GasMultiplier    float64 `env:"CHAINGATE_GAS_MULTIPLIER" envDefault:"1.2"`
	MaxGasPrice      string  `env:"CHAINGATE_MAX_GAS_PRICE"`
	EnableCrossChain bool    `env:"CHAINGATE_ENABLE_CROSS_CHAIN"`

	MonitorPollInterval time.Duration `env:"CHAINGATE_MONITOR_POLL_INTERVAL" envDefault:"30s"`
	MonitorTimeout      time.Duration `env:"CHAINGATE_MONITOR_TIMEOUT" envDefault:"1h"`
}

// Load reads configuration from the environment. A missing .env file is not
// an error; the process environment alone is enough.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PaymentsConfig derives the payment service policy.
func (c Config) PaymentsConfig() payments.Config {
	return payments.Config{
		GasMultiplier:    c.GasMultiplier,
		MaxGasPrice:      c.MaxGasPrice,
		EnableCrossChain: c.EnableCrossChain,
	}
}

// MonitorConfig derives the cross-chain monitor tuning.
func (c Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		PollInterval: c.MonitorPollInterval,
		Timeout:      c.MonitorTimeout,
	}
}

// BlockchainConfigs builds one BlockchainConfig per network with an RPC
// endpoint configured.
func (c Config) BlockchainConfigs() []types.BlockchainConfig {
	environment := types.NetworkEnvironment(c.Environment)

	all := []struct {
		network  types.BlockchainNetwork
		rpcURL   string
		chainID  string
		currency types.NativeCurrency
	}{
		{types.NetworkStellar, c.StellarRPCURL, "", types.NativeCurrency{Name: "Lumens", Symbol: "XLM", Decimals: 7}},
		{types.NetworkEthereum, c.EthereumRPCURL, mainnetOr(environment, "1", "11155111"), types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}},
		{types.NetworkPolygon, c.PolygonRPCURL, mainnetOr(environment, "137", "80002"), types.NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18}},
		{types.NetworkBSC, c.BSCRPCURL, mainnetOr(environment, "56", "97"), types.NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18}},
		{types.NetworkArbitrum, c.ArbitrumRPCURL, mainnetOr(environment, "42161", "421614"), types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}},
		{types.NetworkOptimism, c.OptimismRPCURL, mainnetOr(environment, "10", "11155420"), types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}},
	}

	var out []types.BlockchainConfig
	for _, n := range all {
		if n.rpcURL == "" {
			continue
		}
		out = append(out, types.BlockchainConfig{
			Network:        n.network,
			Environment:    environment,
			RPCUrl:         n.rpcURL,
			ChainID:        n.chainID,
			NativeCurrency: n.currency,
			GasMultiplier:  c.GasMultiplier,
			MaxGasPrice:    c.MaxGasPrice,
		})
	}
	return out
}

func mainnetOr(environment types.NetworkEnvironment, mainnet, testnet string) string {
	if environment == types.EnvMainnet {
		return mainnet
	}
	return testnet
}
