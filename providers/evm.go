package providers

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/nepapay/chaingate/types"
	"github.com/nepapay/chaingate/utils"
)

const (
	evmWaitPollInterval = 3 * time.Second
	evmWaitTimeout      = 5 * time.Minute
)

// EVMProvider is a thin ChainProvider binding over go-ethereum's ethclient.
// It serves any EVM-compatible network (ethereum, polygon, bsc, arbitrum,
// optimism); the chain is picked entirely by the config's RPC endpoint and
// chain id.
type EVMProvider struct {
	cfg types.BlockchainConfig
	key *ecdsa.PrivateKey

	mu        sync.RWMutex
	client    *ethclient.Client
	connected bool
	address   common.Address
}

// NewEVMProvider builds a provider for one EVM network. hexKey is the
// sender's private key; it may be empty for read-only use, in which case
// SendTransaction fails with NO_WALLET.
func NewEVMProvider(cfg types.BlockchainConfig, hexKey string) (*EVMProvider, error) {
	if !cfg.Network.IsEVM() {
		return nil, types.Errorf(types.ErrNoProvider, cfg.Network, "network %s is not EVM-compatible", cfg.Network)
	}
	if cfg.NativeCurrency.Decimals == 0 {
		cfg.NativeCurrency.Decimals = 18
	}

	p := &EVMProvider{cfg: cfg}
	if hexKey != "" {
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, types.WrapError(err, types.ErrNoWallet, cfg.Network)
		}
		p.key = key
		p.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	return p, nil
}

func (p *EVMProvider) Network() types.BlockchainNetwork { return p.cfg.Network }
func (p *EVMProvider) Config() types.BlockchainConfig   { return p.cfg }

func (p *EVMProvider) Connect(ctx context.Context) (*types.WalletConnection, error) {
	client, err := ethclient.DialContext(ctx, p.cfg.RPCUrl)
	if err != nil {
		return nil, types.WrapError(err, types.ErrConnectionFailed, p.cfg.Network)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, types.WrapError(err, types.ErrConnectionFailed, p.cfg.Network)
	}
	if p.cfg.ChainID != "" && chainID.String() != p.cfg.ChainID {
		client.Close()
		return nil, types.Errorf(types.ErrConnectionFailed, p.cfg.Network,
			"chain id mismatch: endpoint reports %s, config expects %s", chainID, p.cfg.ChainID)
	}

	p.mu.Lock()
	if p.client != nil {
		p.client.Close()
	}
	p.client = client
	p.connected = true
	p.mu.Unlock()

	return p.connection(chainID.String()), nil
}

func (p *EVMProvider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.connected = false
	return nil
}

func (p *EVMProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *EVMProvider) GetAccount(_ context.Context) (*types.WalletConnection, error) {
	if p.key == nil {
		return nil, types.NewError(types.ErrNoWallet, "no signing key configured", p.cfg.Network)
	}
	if !p.IsConnected() {
		return nil, types.NewError(types.ErrNotConnected, "provider is not connected", p.cfg.Network)
	}
	return p.connection(p.cfg.ChainID), nil
}

func (p *EVMProvider) SendTransaction(ctx context.Context, req *types.TransactionRequest) (*types.TransactionResponse, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	if p.key == nil {
		return nil, types.NewError(types.ErrNoWallet, "no signing key configured", p.cfg.Network)
	}

	value, err := p.toWei(req.Amount)
	if err != nil {
		return nil, types.WrapError(err, types.ErrInvalidAmount, p.cfg.Network)
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else {
		nonce, err = client.PendingNonceAt(ctx, p.address)
		if err != nil {
			return nil, types.WrapError(err, types.ErrTransactionFailed, p.cfg.Network)
		}
	}

	gasPrice, err := p.resolveGasPrice(ctx, client, req.GasPrice)
	if err != nil {
		return nil, err
	}

	gasLimit := uint64(21000)
	if req.GasLimit != "" {
		limit, ok := new(big.Int).SetString(req.GasLimit, 10)
		if !ok {
			return nil, types.Errorf(types.ErrInvalidRequest, p.cfg.Network, "invalid gas limit %q", req.GasLimit)
		}
		gasLimit = limit.Uint64()
	}

	to := common.HexToAddress(req.To)
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
	})

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, types.WrapError(err, types.ErrTransactionFailed, p.cfg.Network)
	}

	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return nil, types.WrapError(err, types.ErrTransactionFailed, p.cfg.Network)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, types.WrapError(err, types.ErrTransactionFailed, p.cfg.Network)
	}

	return &types.TransactionResponse{
		Hash:     signed.Hash().Hex(),
		Status:   types.TxPending,
		From:     p.address.Hex(),
		To:       req.To,
		Amount:   req.Amount,
		GasPrice: gasPrice.String(),
	}, nil
}

func (p *EVMProvider) EstimateGas(ctx context.Context, req *types.TransactionRequest) (*types.GasEstimate, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}

	value, err := p.toWei(req.Amount)
	if err != nil {
		return nil, types.WrapError(err, types.ErrInvalidAmount, p.cfg.Network)
	}

	from := p.address
	if req.From != "" {
		from = common.HexToAddress(req.From)
	}
	to := common.HexToAddress(req.To)

	limit, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value})
	if err != nil {
		return nil, types.WrapError(err, types.ErrGasEstimationFailed, p.cfg.Network)
	}

	price, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, types.WrapError(err, types.ErrGasEstimationFailed, p.cfg.Network)
	}

	cost := new(big.Int).Mul(price, new(big.Int).SetUint64(limit))
	formatted, _ := utils.FormatUnits(cost.String(), p.cfg.NativeCurrency.Decimals)

	return &types.GasEstimate{
		GasLimit:      fmt.Sprintf("%d", limit),
		GasPrice:      price.String(),
		EstimatedCost: formatted,
		Currency:      p.cfg.NativeCurrency.Symbol,
	}, nil
}

func (p *EVMProvider) GetTransactionStatus(ctx context.Context, hash string) (*types.TransactionResponse, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}

	h := common.HexToHash(hash)
	receipt, err := client.TransactionReceipt(ctx, h)
	if err == ethereum.NotFound {
		_, pending, txErr := client.TransactionByHash(ctx, h)
		if txErr != nil {
			return nil, types.WrapError(txErr, types.ErrTransactionNotFound, p.cfg.Network)
		}
		if pending {
			return &types.TransactionResponse{Hash: hash, Status: types.TxPending}, nil
		}
		return nil, types.NewError(types.ErrTransactionNotFound, "transaction not found", p.cfg.Network)
	}
	if err != nil {
		return nil, types.WrapError(err, types.ErrStatusCheckFailed, p.cfg.Network)
	}

	status := types.TxConfirmed
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		status = types.TxFailed
	}

	resp := &types.TransactionResponse{
		Hash:        hash,
		Status:      status,
		GasUsed:     fmt.Sprintf("%d", receipt.GasUsed),
		BlockNumber: receipt.BlockNumber.Uint64(),
		BlockHash:   receipt.BlockHash.Hex(),
	}

	if receipt.EffectiveGasPrice != nil {
		resp.GasPrice = receipt.EffectiveGasPrice.String()
		fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
		resp.Fee, _ = utils.FormatUnits(fee.String(), p.cfg.NativeCurrency.Decimals)
	}

	if head, err := client.BlockNumber(ctx); err == nil && head >= resp.BlockNumber {
		resp.Confirmations = int(head-resp.BlockNumber) + 1
	}

	return resp, nil
}

func (p *EVMProvider) WaitForTransaction(ctx context.Context, hash string, confirmations int) (*types.TransactionResponse, error) {
	if confirmations < 1 {
		confirmations = 1
	}

	waitCtx, cancel := context.WithTimeout(ctx, evmWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(evmWaitPollInterval)
	defer ticker.Stop()

	for {
		resp, err := p.GetTransactionStatus(waitCtx, hash)
		if err == nil && resp.Status != types.TxPending && resp.Confirmations >= confirmations {
			return resp, nil
		}

		select {
		case <-waitCtx.Done():
			be := types.WrapError(waitCtx.Err(), types.ErrWaitFailed, p.cfg.Network)
			be.TransactionHash = hash
			return nil, be
		case <-ticker.C:
		}
	}
}

func (p *EVMProvider) GetBalance(ctx context.Context, address, asset string) (*types.Balance, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	if asset != "" && asset != p.cfg.NativeCurrency.Symbol {
		return nil, types.Errorf(types.ErrBalanceCheckFailed, p.cfg.Network, "asset %q is not supported by this provider", asset)
	}

	raw, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, types.WrapError(err, types.ErrBalanceCheckFailed, p.cfg.Network)
	}

	formatted, _ := utils.FormatUnits(raw.String(), p.cfg.NativeCurrency.Decimals)
	return &types.Balance{
		Address:   address,
		Asset:     p.cfg.NativeCurrency.Symbol,
		Amount:    raw.String(),
		Decimals:  p.cfg.NativeCurrency.Decimals,
		Formatted: formatted,
	}, nil
}

func (p *EVMProvider) GetMultipleBalances(ctx context.Context, addresses []string, asset string) ([]*types.Balance, error) {
	balances := make([]*types.Balance, len(addresses))
	for i, addr := range addresses {
		b, err := p.GetBalance(ctx, addr, asset)
		if err != nil {
			return nil, err
		}
		balances[i] = b
	}
	return balances, nil
}

func (p *EVMProvider) GetNetworkFeeInfo(ctx context.Context) (*types.NetworkFeeInfo, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}

	price, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, types.WrapError(err, types.ErrFeeInfoFailed, p.cfg.Network)
	}

	standard := decimal.NewFromBigInt(price, 0)
	return &types.NetworkFeeInfo{
		Slow:     standard.Mul(decimal.NewFromFloat(0.8)).Truncate(0).String(),
		Standard: standard.String(),
		Fast:     standard.Mul(decimal.NewFromFloat(1.25)).Truncate(0).String(),
		Currency: p.cfg.NativeCurrency.Symbol,
	}, nil
}

func (p *EVMProvider) GetCurrentBlock(ctx context.Context) (uint64, error) {
	client, err := p.conn()
	if err != nil {
		return 0, err
	}

	n, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, types.WrapError(err, types.ErrBlockCheckFailed, p.cfg.Network)
	}
	return n, nil
}

func (p *EVMProvider) GetBlockTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	client, err := p.conn()
	if err != nil {
		return time.Time{}, err
	}

	header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return time.Time{}, types.WrapError(err, types.ErrBlockCheckFailed, p.cfg.Network)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

func (p *EVMProvider) ValidateAddress(address string) bool {
	return common.IsHexAddress(address)
}

func (p *EVMProvider) FormatAmount(raw string) (string, error) {
	return utils.FormatUnits(raw, p.cfg.NativeCurrency.Decimals)
}

func (p *EVMProvider) ParseAmount(formatted string) (string, error) {
	return utils.ParseUnits(formatted, p.cfg.NativeCurrency.Decimals)
}

// HealthCheck satisfies the manager's preferred probe.
func (p *EVMProvider) HealthCheck(ctx context.Context) error {
	_, err := p.GetCurrentBlock(ctx)
	return err
}

func (p *EVMProvider) conn() (*ethclient.Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, types.NewError(types.ErrNotConnected, "provider is not connected", p.cfg.Network)
	}
	return p.client, nil
}

func (p *EVMProvider) connection(chainID string) *types.WalletConnection {
	return &types.WalletConnection{
		Address:   p.address.Hex(),
		Network:   p.cfg.Network,
		ChainID:   chainID,
		Connected: true,
	}
}

func (p *EVMProvider) resolveGasPrice(ctx context.Context, client *ethclient.Client, override string) (*big.Int, error) {
	if override != "" {
		price, err := decimal.NewFromString(override)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidRequest, p.cfg.Network, "invalid gas price %q", override)
		}
		return price.Truncate(0).BigInt(), nil
	}

	price, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, types.WrapError(err, types.ErrGasEstimationFailed, p.cfg.Network)
	}
	return price, nil
}

func (p *EVMProvider) toWei(amount string) (*big.Int, error) {
	raw, err := utils.ParseUnits(amount, p.cfg.NativeCurrency.Decimals)
	if err != nil {
		return nil, err
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	return value, nil
}
