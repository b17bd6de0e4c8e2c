package types

// BlockchainNetwork identifies a supported chain.
type BlockchainNetwork string

const (
	NetworkStellar  BlockchainNetwork = "stellar"
	NetworkEthereum BlockchainNetwork = "ethereum"
	NetworkPolygon  BlockchainNetwork = "polygon"
	NetworkBSC      BlockchainNetwork = "bsc"
	NetworkArbitrum BlockchainNetwork = "arbitrum"
	NetworkOptimism BlockchainNetwork = "optimism"
)

// NetworkEnvironment selects which deployment of a network a config points at.
type NetworkEnvironment string

const (
	EnvMainnet NetworkEnvironment = "mainnet"
	EnvTestnet NetworkEnvironment = "testnet"
	EnvDevnet  NetworkEnvironment = "devnet"
)

// AllNetworks returns every network the gateway knows about.
func AllNetworks() []BlockchainNetwork {
	return []BlockchainNetwork{
		NetworkStellar,
		NetworkEthereum,
		NetworkPolygon,
		NetworkBSC,
		NetworkArbitrum,
		NetworkOptimism,
	}
}

// NativeCurrency describes the fee/native asset of a network.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// BlockchainConfig binds a network and environment to an RPC endpoint
// plus the gas policy knobs applied by the payment service.
type BlockchainConfig struct {
	Network        BlockchainNetwork  `json:"network"`
	Environment    NetworkEnvironment `json:"environment"`
	RPCUrl         string             `json:"rpcUrl"`
	ChainID        string             `json:"chainId,omitempty"`
	NativeCurrency NativeCurrency     `json:"nativeCurrency"`
	GasMultiplier  float64            `json:"gasMultiplier,omitempty"`
	MaxGasPrice    string             `json:"maxGasPrice,omitempty"`
}

// Helper functions for network classification
func (n BlockchainNetwork) IsEVM() bool {
	switch n {
	case NetworkEthereum, NetworkPolygon, NetworkBSC, NetworkArbitrum, NetworkOptimism:
		return true
	}
	return false
}

func (n BlockchainNetwork) IsStellar() bool {
	return n == NetworkStellar
}

func (n BlockchainNetwork) String() string {
	return string(n)
}

// NetworkPair is an ordered (source, destination) pair supported by a bridge.
type NetworkPair struct {
	From BlockchainNetwork `json:"from"`
	To   BlockchainNetwork `json:"to"`
}
