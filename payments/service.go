// Package payments is the orchestration layer on top of the connection
// manager: it enforces fee/amount/address policy before touching any
// network, submits and confirms single-chain payments, and initiates
// cross-chain transfers through a registered bridge provider.
package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nepapay/chaingate/logger"
	"github.com/nepapay/chaingate/manager"
	"github.com/nepapay/chaingate/metrics"
	"github.com/nepapay/chaingate/providers"
	"github.com/nepapay/chaingate/types"
)

// Config carries the payment policy knobs.
type Config struct {
	// GasMultiplier scales the quoted gas price before submission,
	// e.g. 1.2 turns a quote of 20 into a submitted price of 24.
	GasMultiplier float64

	// MaxGasPrice rejects payments whose gas quote exceeds this ceiling
	// (same unit as the provider's quote). Empty disables the ceiling.
	MaxGasPrice string

	// EnableCrossChain gates ProcessCrossChainPayment.
	EnableCrossChain bool

	// Confirmations to wait for after submission. Defaults to 1.
	Confirmations int
}

// PaymentRequest describes one utility-bill payment.
type PaymentRequest struct {
	BillID           string                  `json:"billId" validate:"required"`
	UserID           string                  `json:"userId" validate:"required"`
	Amount           string                  `json:"amount" validate:"required"`
	RecipientAddress string                  `json:"recipientAddress" validate:"required"`
	Network          types.BlockchainNetwork `json:"network" validate:"required"`

	FromAddress       string `json:"fromAddress,omitempty"`
	Asset             string `json:"asset,omitempty"`
	Memo              string `json:"memo,omitempty"`
	SkipGasEstimation bool   `json:"skipGasEstimation,omitempty"`
}

// CrossChainPaymentRequest describes a payment bridged between two networks.
type CrossChainPaymentRequest struct {
	BillID      string                  `json:"billId" validate:"required"`
	UserID      string                  `json:"userId" validate:"required"`
	FromNetwork types.BlockchainNetwork `json:"fromNetwork" validate:"required"`
	ToNetwork   types.BlockchainNetwork `json:"toNetwork" validate:"required"`
	FromAddress string                  `json:"fromAddress" validate:"required"`
	ToAddress   string                  `json:"toAddress" validate:"required"`
	Amount      string                  `json:"amount" validate:"required"`
	Asset       string                  `json:"asset,omitempty"`
}

// PaymentResult is returned by ProcessPayment for both outcomes. Callers
// never need their own error handling for the ordinary failure path: any
// failure is folded into Success=false with the normalized message and the
// same echoed fields.
type PaymentResult struct {
	Success             bool                    `json:"success"`
	TransactionHash     string                  `json:"transactionHash,omitempty"`
	Status              types.TransactionStatus `json:"status,omitempty"`
	Network             types.BlockchainNetwork `json:"network"`
	Amount              string                  `json:"amount"`
	Currency            string                  `json:"currency,omitempty"`
	GasUsed             string                  `json:"gasUsed,omitempty"`
	Fee                 string                  `json:"fee,omitempty"`
	EstimatedCompletion *time.Time              `json:"estimatedCompletion,omitempty"`
	Error               string                  `json:"error,omitempty"`
	ErrorCode           string                  `json:"errorCode,omitempty"`
}

// NetworkStats is a per-network snapshot of payment counters.
type NetworkStats struct {
	Submitted           int64 `json:"submitted"`
	Succeeded           int64 `json:"succeeded"`
	Failed              int64 `json:"failed"`
	CrossChainInitiated int64 `json:"crossChainInitiated"`
}

// Service orchestrates payments through the manager and bridge providers.
type Service struct {
	mgr      *manager.Manager
	cfg      Config
	validate *validator.Validate
	log      logger.Logger
	rec      metrics.Recorder

	mu      sync.Mutex
	bridges []providers.BridgeProvider
	stats   map[types.BlockchainNetwork]*NetworkStats
}

func NewService(mgr *manager.Manager, cfg Config, log logger.Logger, rec metrics.Recorder) *Service {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if cfg.Confirmations < 1 {
		cfg.Confirmations = 1
	}
	return &Service{
		mgr:      mgr,
		cfg:      cfg,
		validate: validator.New(),
		log:      log,
		rec:      rec,
		stats:    make(map[types.BlockchainNetwork]*NetworkStats),
	}
}

// ProcessPayment validates, estimates, submits, and confirms one payment.
// It never returns an error: validation failures short-circuit before any
// network call, and downstream failures are folded into the result.
func (s *Service) ProcessPayment(ctx context.Context, req *PaymentRequest) *PaymentResult {
	if req == nil {
		return &PaymentResult{
			Success:   false,
			Error:     "payment request is required",
			ErrorCode: types.ErrInvalidRequest,
		}
	}
	if be := s.validateRequest(req); be != nil {
		return s.failure(req, be)
	}

	s.count(req.Network, func(st *NetworkStats) { st.Submitted++ })
	s.rec.IncCounter("payment_submitted", map[string]string{"network": req.Network.String()})
	started := time.Now()

	if err := s.ensureConnection(ctx, req.Network); err != nil {
		return s.failure(req, err)
	}

	submit := &types.TransactionRequest{
		From:   req.FromAddress,
		To:     req.RecipientAddress,
		Amount: req.Amount,
		Asset:  req.Asset,
		Memo:   req.Memo,
	}

	if !req.SkipGasEstimation {
		gasPrice, err := s.applyGasPolicy(ctx, submit)
		if err != nil {
			return s.failure(req, err)
		}
		submit.GasPrice = gasPrice
	}

	resp, err := s.mgr.SendTransaction(ctx, submit)
	if err != nil {
		return s.failure(req, err)
	}

	confirmed, err := s.mgr.WaitForTransaction(ctx, resp.Hash, s.cfg.Confirmations)
	if err != nil {
		return s.failure(req, err)
	}

	s.count(req.Network, func(st *NetworkStats) { st.Succeeded++ })
	s.rec.IncCounter("payment_succeeded", map[string]string{"network": req.Network.String()})
	s.rec.ObserveLatency("process_payment", time.Since(started), map[string]string{"network": req.Network.String()})
	s.log.Info("payment confirmed", map[string]any{
		"billId": req.BillID, "network": req.Network, "hash": confirmed.Hash,
	})

	eta := time.Now().Add(estimatedConfirmation(req.Network))
	return &PaymentResult{
		Success:             true,
		TransactionHash:     confirmed.Hash,
		Status:              confirmed.Status,
		Network:             req.Network,
		Amount:              req.Amount,
		Currency:            s.currency(req),
		GasUsed:             confirmed.GasUsed,
		Fee:                 confirmed.Fee,
		EstimatedCompletion: &eta,
	}
}

// validateRequest runs every pre-flight check. No network call is made here.
func (s *Service) validateRequest(req *PaymentRequest) *types.BlockchainError {
	if req == nil {
		return types.NewError(types.ErrInvalidRequest, "payment request is required", "")
	}

	if err := s.validate.Struct(req); err != nil {
		var missing []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				missing = append(missing, jsonField(fe.Field()))
			}
		}
		return types.Errorf(types.ErrInvalidRequest, req.Network,
			"missing required fields: %s", strings.Join(missing, ", "))
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return types.Errorf(types.ErrInvalidAmount, req.Network, "amount must be a positive decimal, got %q", req.Amount)
	}

	p, perr := s.mgr.GetProvider(req.Network)
	if perr != nil {
		return types.WrapError(perr, types.ErrProviderNotFound, req.Network)
	}
	if !p.ValidateAddress(req.RecipientAddress) {
		return types.Errorf(types.ErrInvalidAddress, req.Network,
			"invalid recipient address %q for network %s", req.RecipientAddress, req.Network)
	}

	return nil
}

// ensureConnection makes the manager's current connection match the
// requested network, connecting or switching as needed.
func (s *Service) ensureConnection(ctx context.Context, network types.BlockchainNetwork) error {
	if current, ok := s.mgr.CurrentNetwork(); ok && current == network && s.mgr.IsConnected() {
		return nil
	}
	_, err := s.mgr.SwitchNetwork(ctx, network)
	return err
}

// applyGasPolicy estimates gas, enforces the MaxGasPrice ceiling, and
// returns the multiplier-adjusted gas price to submit with.
func (s *Service) applyGasPolicy(ctx context.Context, submit *types.TransactionRequest) (string, error) {
	est, err := s.mgr.EstimateGas(ctx, submit)
	if err != nil {
		return "", err
	}

	quoted, err := decimal.NewFromString(est.GasPrice)
	if err != nil {
		return "", types.Errorf(types.ErrGasEstimationFailed, "", "provider returned unparseable gas price %q", est.GasPrice)
	}

	if s.cfg.MaxGasPrice != "" {
		ceiling, cerr := decimal.NewFromString(s.cfg.MaxGasPrice)
		if cerr == nil && quoted.GreaterThan(ceiling) {
			return "", types.Errorf(types.ErrGasPriceTooHigh, "",
				"quoted gas price %s exceeds ceiling %s", est.GasPrice, s.cfg.MaxGasPrice)
		}
	}

	if s.cfg.GasMultiplier > 0 {
		quoted = quoted.Mul(decimal.NewFromFloat(s.cfg.GasMultiplier))
	}
	return quoted.String(), nil
}

// ProcessCrossChainPayment locates a bridge for the (from, to) pair,
// estimates the fee, and initiates the transfer. Monitoring the resulting
// transaction is a separate, explicit step.
func (s *Service) ProcessCrossChainPayment(ctx context.Context, req *CrossChainPaymentRequest) (*types.CrossChainTransaction, error) {
	if !s.cfg.EnableCrossChain {
		return nil, types.NewError(types.ErrCrossChainDisabled, "cross-chain payments are disabled", "")
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, types.WrapError(err, types.ErrInvalidRequest, "")
	}
	if amount, err := decimal.NewFromString(req.Amount); err != nil || !amount.IsPositive() {
		return nil, types.Errorf(types.ErrInvalidAmount, req.FromNetwork, "amount must be a positive decimal, got %q", req.Amount)
	}

	bridge := s.BridgeProviderFor(req.FromNetwork, req.ToNetwork)
	if bridge == nil {
		return nil, types.Errorf(types.ErrNoBridgeProvider, req.FromNetwork,
			"no bridge provider supports %s -> %s", req.FromNetwork, req.ToNetwork)
	}

	bridgeReq := &types.BridgeRequest{
		FromNetwork: req.FromNetwork,
		ToNetwork:   req.ToNetwork,
		FromAddress: req.FromAddress,
		ToAddress:   req.ToAddress,
		Amount:      req.Amount,
		Asset:       req.Asset,
	}

	fee, err := bridge.EstimateBridgeFee(ctx, bridgeReq)
	if err != nil {
		return nil, types.WrapError(err, types.ErrCrossChainFailed, req.FromNetwork)
	}
	s.log.Debug("bridge fee estimated", map[string]any{
		"bridge": bridge.Name(), "fee": fee.Amount, "currency": fee.Currency,
	})

	tx, err := bridge.InitiateBridge(ctx, bridgeReq)
	if err != nil {
		return nil, types.WrapError(err, types.ErrCrossChainFailed, req.FromNetwork)
	}

	s.count(req.FromNetwork, func(st *NetworkStats) { st.CrossChainInitiated++ })
	s.rec.IncCounter("cross_chain_initiated", map[string]string{"network": req.FromNetwork.String()})
	s.log.Info("cross-chain transfer initiated", map[string]any{
		"id": tx.ID, "from": req.FromNetwork, "to": req.ToNetwork, "bridge": bridge.Name(),
	})
	return tx, nil
}

// GetPaymentStatus looks up a transaction hash. With an explicit network it
// queries only that network; without one it probes every registered network
// in registration order and returns the first success. If every probe fails
// the returned error concatenates one reason per network.
func (s *Service) GetPaymentStatus(ctx context.Context, hash string, network ...types.BlockchainNetwork) (*types.TransactionResponse, error) {
	if len(network) > 0 {
		return s.mgr.GetTransactionStatus(ctx, hash, network[0])
	}

	var reasons []string
	for _, n := range s.mgr.GetSupportedNetworks() {
		resp, err := s.mgr.GetTransactionStatus(ctx, hash, n)
		if err == nil {
			return resp, nil
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", n, err.Error()))
	}

	be := types.Errorf(types.ErrTransactionNotFound, "",
		"transaction %s not found on any network: %s", hash, strings.Join(reasons, "; "))
	be.TransactionHash = hash
	return nil, be
}

func (s *Service) GetBalance(ctx context.Context, address, asset string, network ...types.BlockchainNetwork) (*types.Balance, error) {
	return s.mgr.GetBalance(ctx, address, asset, network...)
}

func (s *Service) GetNetworkFeeInfo(ctx context.Context, network ...types.BlockchainNetwork) (*types.NetworkFeeInfo, error) {
	return s.mgr.GetNetworkFeeInfo(ctx, network...)
}

// ValidateAddress checks an address against the named network's provider.
func (s *Service) ValidateAddress(address string, network types.BlockchainNetwork) (bool, error) {
	p, err := s.mgr.GetProvider(network)
	if err != nil {
		return false, err
	}
	return p.ValidateAddress(address), nil
}

func (s *Service) GetSupportedNetworks() []types.BlockchainNetwork {
	return s.mgr.GetSupportedNetworks()
}

// GetConnectionStatus returns the current wallet connection, or nil when
// disconnected.
func (s *Service) GetConnectionStatus(ctx context.Context) *types.WalletConnection {
	conn, err := s.mgr.CurrentAccount(ctx)
	if err != nil {
		return nil
	}
	return conn
}

func (s *Service) HealthCheck(ctx context.Context) map[types.BlockchainNetwork]bool {
	return s.mgr.HealthCheck(ctx)
}

// RegisterBridgeProvider adds a bridge to the lookup set.
func (s *Service) RegisterBridgeProvider(b providers.BridgeProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bridges = append(s.bridges, b)
}

// BridgeProviderFor returns the first registered bridge supporting the
// ordered (from, to) pair, or nil.
func (s *Service) BridgeProviderFor(from, to types.BlockchainNetwork) providers.BridgeProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bridges {
		if providers.SupportsPair(b, from, to) {
			return b
		}
	}
	return nil
}

// MetricsSnapshot returns a copy of the per-network payment counters.
func (s *Service) MetricsSnapshot() map[types.BlockchainNetwork]NetworkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[types.BlockchainNetwork]NetworkStats, len(s.stats))
	for n, st := range s.stats {
		out[n] = *st
	}
	return out
}

func (s *Service) failure(req *PaymentRequest, err error) *PaymentResult {
	be := types.WrapError(err, types.ErrTransactionFailed, req.Network)

	s.count(req.Network, func(st *NetworkStats) { st.Failed++ })
	s.rec.IncCounter("payment_failed", map[string]string{"network": req.Network.String()})
	s.log.Warn("payment failed", map[string]any{
		"billId": req.BillID, "network": req.Network, "code": be.Code, "error": be.Message,
	})

	return &PaymentResult{
		Success:   false,
		Network:   req.Network,
		Amount:    req.Amount,
		Currency:  s.currency(req),
		Error:     be.Message,
		ErrorCode: be.Code,
	}
}

func (s *Service) currency(req *PaymentRequest) string {
	if req.Asset != "" {
		return req.Asset
	}
	if p, err := s.mgr.GetProvider(req.Network); err == nil {
		return p.Config().NativeCurrency.Symbol
	}
	return ""
}

func (s *Service) count(network types.BlockchainNetwork, update func(*NetworkStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[network]
	if !ok {
		st = &NetworkStats{}
		s.stats[network] = st
	}
	update(st)
}

// estimatedConfirmation is a rough finality horizon per network, used only
// for the completion estimate echoed back to callers.
func estimatedConfirmation(network types.BlockchainNetwork) time.Duration {
	switch network {
	case types.NetworkStellar:
		return 5 * time.Second
	case types.NetworkEthereum:
		return 3 * time.Minute
	default:
		return 30 * time.Second
	}
}

// jsonField maps a Go struct field name to its wire name for error messages.
func jsonField(name string) string {
	switch name {
	case "BillID":
		return "billId"
	case "UserID":
		return "userId"
	case "RecipientAddress":
		return "recipientAddress"
	default:
		return strings.ToLower(name[:1]) + name[1:]
	}
}
