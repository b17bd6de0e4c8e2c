// Package chaingate is a unified transaction gateway that moves value on
// several independent blockchain networks through one interface and bridges
// value between two of them. It wires together the connection manager, the
// payment orchestration service, and the cross-chain monitor.
package chaingate

import (
	"context"

	"github.com/nepapay/chaingate/config"
	"github.com/nepapay/chaingate/logger"
	"github.com/nepapay/chaingate/manager"
	"github.com/nepapay/chaingate/metrics"
	"github.com/nepapay/chaingate/monitor"
	"github.com/nepapay/chaingate/payments"
	"github.com/nepapay/chaingate/providers"
	"github.com/nepapay/chaingate/types"
)

const Version = "1.0.0"

// Config assembles the per-component settings.
type Config struct {
	LogLevel      string
	EnableMetrics bool
	Payments      payments.Config
	Monitor       monitor.Config
}

// Gateway is the top-level entry point.
type Gateway struct {
	manager  *manager.Manager
	payments *payments.Service
	monitor  *monitor.Monitor
	log      logger.Logger
}

// New builds a gateway from explicit configuration.
func New(cfg *Config) *Gateway {
	if cfg == nil {
		cfg = &Config{}
	}

	var log logger.Logger = logger.NoopLogger{}
	if cfg.LogLevel != "" {
		log = logger.NewZapLogger(cfg.LogLevel)
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.EnableMetrics {
		rec = metrics.NewPrometheusRecorder()
	}

	mgr := manager.New(log)
	return &Gateway{
		manager:  mgr,
		payments: payments.NewService(mgr, cfg.Payments, log, rec),
		monitor:  monitor.New(mgr, cfg.Monitor, log, rec),
		log:      log,
	}
}

// NewWithDefaults builds a gateway with info logging, no metrics, and the
// monitor's default polling.
func NewWithDefaults() *Gateway {
	return New(&Config{
		LogLevel: "info",
		Payments: payments.Config{GasMultiplier: 1.2},
	})
}

// NewFromEnv builds a gateway from the process environment and registers an
// EVM provider for every EVM network with a configured RPC endpoint.
func NewFromEnv() (*Gateway, error) {
	envCfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	g := New(&Config{
		LogLevel:      envCfg.LogLevel,
		EnableMetrics: envCfg.EnableMetrics,
		Payments:      envCfg.PaymentsConfig(),
		Monitor:       envCfg.MonitorConfig(),
	})

	for _, bc := range envCfg.BlockchainConfigs() {
		if !bc.Network.IsEVM() {
			continue
		}
		p, err := providers.NewEVMProvider(bc, "")
		if err != nil {
			return nil, err
		}
		g.RegisterProvider(p)
	}
	return g, nil
}

// RegisterProvider adds a chain provider to the manager's registry.
func (g *Gateway) RegisterProvider(p providers.ChainProvider) {
	g.manager.RegisterProvider(p)
}

// RegisterBridgeProvider makes a bridge available to both the payment
// service and the monitor.
func (g *Gateway) RegisterBridgeProvider(b providers.BridgeProvider) {
	g.payments.RegisterBridgeProvider(b)
	g.monitor.RegisterBridgeProvider(b)
}

func (g *Gateway) Manager() *manager.Manager   { return g.manager }
func (g *Gateway) Payments() *payments.Service { return g.payments }
func (g *Gateway) Monitor() *monitor.Monitor   { return g.monitor }

// ProcessPayment submits and confirms a single-chain payment.
func (g *Gateway) ProcessPayment(ctx context.Context, req *payments.PaymentRequest) *payments.PaymentResult {
	return g.payments.ProcessPayment(ctx, req)
}

// ProcessCrossChainPayment initiates a bridge transfer. The returned
// transaction is in status initiated; monitoring it is a separate call to
// StartMonitoring.
func (g *Gateway) ProcessCrossChainPayment(ctx context.Context, req *payments.CrossChainPaymentRequest) (*types.CrossChainTransaction, error) {
	return g.payments.ProcessCrossChainPayment(ctx, req)
}

// StartMonitoring begins reconciling a cross-chain transfer.
func (g *Gateway) StartMonitoring(tx *types.CrossChainTransaction) {
	g.monitor.StartMonitoring(tx)
}

// StopMonitoring cancels monitoring for a transfer id.
func (g *Gateway) StopMonitoring(id string) {
	g.monitor.StopMonitoring(id)
}

// Close shuts the gateway down: the monitor is destroyed and the current
// connection, if any, is released.
func (g *Gateway) Close(ctx context.Context) error {
	g.monitor.Destroy()
	return g.manager.Disconnect(ctx)
}
