// Package monitor reconciles in-flight cross-chain transfers against both
// the bridge provider's reported status and direct on-chain lookups, driving
// each transfer's state machine to a terminal status or a timeout.
package monitor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nepapay/chaingate/logger"
	"github.com/nepapay/chaingate/metrics"
	"github.com/nepapay/chaingate/providers"
	"github.com/nepapay/chaingate/types"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultTimeout      = time.Hour
	defaultPollRate     = rate.Limit(10)
	defaultPollBurst    = 5
)

// StatusChecker is the slice of the connection manager the monitor needs
// for on-chain cross-checks.
type StatusChecker interface {
	GetTransactionStatus(ctx context.Context, hash string, network ...types.BlockchainNetwork) (*types.TransactionResponse, error)
}

// Config tunes the per-transfer polling.
type Config struct {
	// PollInterval is the gap between reconciliation ticks. Default 30s.
	PollInterval time.Duration

	// Timeout force-marks a transfer failed if it has not reached a
	// terminal status. Default 1h.
	Timeout time.Duration

	// PollRate and PollBurst bound bridge polls across all in-flight
	// transfers so a large backlog cannot hammer the bridge API.
	PollRate  rate.Limit
	PollBurst int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.PollRate <= 0 {
		c.PollRate = defaultPollRate
	}
	if c.PollBurst <= 0 {
		c.PollBurst = defaultPollBurst
	}
	return c
}

// entry is the map slot owning one transfer's state and its timer handles.
// The goroutine started by StartMonitoring is the only repeating task per
// id; cancel tears it down and active records whether it is still running.
type entry struct {
	tx     *types.CrossChainTransaction
	cancel context.CancelFunc
	active bool
}

// Stats summarizes everything the monitor is tracking.
type Stats struct {
	Total                 int                            `json:"total"`
	ByStatus              map[types.CrossChainStatus]int `json:"byStatus"`
	AverageCompletionTime time.Duration                  `json:"averageCompletionTime"`
	SuccessRate           float64                        `json:"successRate"`
}

// Monitor polls every in-flight cross-chain transfer until it reaches a
// terminal status or times out. Terminal statuses, once stored, are never
// overwritten by a later conflicting source.
type Monitor struct {
	cfg     Config
	chain   StatusChecker
	log     logger.Logger
	rec     metrics.Recorder
	limiter *rate.Limiter
	events  *hub

	mu      sync.RWMutex
	bridges []providers.BridgeProvider
	entries map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(chain StatusChecker, cfg Config, log logger.Logger, rec metrics.Recorder) *Monitor {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		cfg:     cfg,
		chain:   chain,
		log:     log,
		rec:     rec,
		limiter: rate.NewLimiter(cfg.PollRate, cfg.PollBurst),
		events:  newHub(),
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Subscribe registers a handler for one monitor event type.
func (m *Monitor) Subscribe(t EventType, fn Handler) int { return m.events.subscribe(t, fn) }

// Unsubscribe removes a handler registered with Subscribe.
func (m *Monitor) Unsubscribe(t EventType, id int) { m.events.unsubscribe(t, id) }

// RegisterBridgeProvider adds a bridge to the reconciliation lookup set.
func (m *Monitor) RegisterBridgeProvider(b providers.BridgeProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bridges = append(m.bridges, b)
}

// StartMonitoring begins polling one transfer. An id that is already
// tracked is rejected with a log line and no state change.
func (m *Monitor) StartMonitoring(tx *types.CrossChainTransaction) {
	if tx == nil || tx.ID == "" {
		return
	}

	stored := tx.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}

	m.mu.Lock()
	if _, exists := m.entries[stored.ID]; exists {
		m.mu.Unlock()
		m.log.Warn("transaction is already monitored", map[string]any{"id": stored.ID})
		return
	}

	runCtx, cancel := context.WithCancel(m.ctx)
	m.entries[stored.ID] = &entry{tx: stored, cancel: cancel, active: true}
	active := m.activeCountLocked()
	m.mu.Unlock()

	m.rec.SetGauge("monitored_transactions", float64(active), map[string]string{"network": "all"})
	m.log.Info("monitoring started", map[string]any{
		"id": stored.ID, "from": stored.FromNetwork, "to": stored.ToNetwork,
	})

	m.wg.Add(1)
	go m.run(runCtx, stored.ID)
}

// run is the single repeating task for one id. Ticks execute inline, so a
// tick always settles before the next firing can be handled; two
// reconciliations for the same id never race.
func (m *Monitor) run(ctx context.Context, id string) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(m.cfg.Timeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			m.handleTimeout(id)
			return
		case <-ticker.C:
			m.tick(ctx, id)
		}
	}
}

// tick is one reconciliation pass. Any error raised inside it is caught
// here, logged, and surfaced as a failure event carrying the last known
// snapshot; polling continues because upstream failures are expected to be
// transient. Only a terminal status or the absolute timeout stops it.
func (m *Monitor) tick(ctx context.Context, id string) {
	snap := m.snapshot(id)
	if snap == nil || snap.Status.IsTerminal() {
		return
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return
	}

	if err := m.reconcile(ctx, id, snap); err != nil {
		be := types.WrapError(err, types.ErrCrossChainFailed, snap.FromNetwork)
		m.log.Warn("reconciliation tick failed", map[string]any{"id": id, "error": be.Error()})
		if latest := m.snapshot(id); latest != nil {
			snap = latest
		}
		m.events.publish(Event{Type: EventFailure, Transaction: snap, Err: be})
	}
}

func (m *Monitor) reconcile(ctx context.Context, id string, snap *types.CrossChainTransaction) error {
	bridge := m.bridgeFor(snap.FromNetwork, snap.ToNetwork)
	if bridge == nil {
		return types.Errorf(types.ErrNoBridgeProvider, snap.FromNetwork,
			"no bridge provider supports %s -> %s", snap.FromNetwork, snap.ToNetwork)
	}

	remote, err := bridge.GetBridgeStatus(ctx, id)
	if err != nil {
		return err
	}

	snap = m.apply(id, remote)
	if snap == nil || snap.Status.IsTerminal() {
		return nil
	}

	// On-chain cross-check, independent of what the bridge reports.
	if snap.SourceTransactionHash != "" {
		resp, err := m.chain.GetTransactionStatus(ctx, snap.SourceTransactionHash, snap.FromNetwork)
		if err != nil {
			return err
		}
		switch {
		case resp.Status == types.TxFailed:
			m.forceStatus(id, types.CrossChainFailed)
			return nil
		case resp.Status == types.TxConfirmed && snap.Status == types.CrossChainInitiated:
			snap = m.forceStatus(id, types.CrossChainSourceConfirmed)
		}
	}

	if snap != nil && snap.DestinationTransactionHash != "" {
		resp, err := m.chain.GetTransactionStatus(ctx, snap.DestinationTransactionHash, snap.ToNetwork)
		if err != nil {
			return err
		}
		switch resp.Status {
		case types.TxFailed:
			m.forceStatus(id, types.CrossChainFailed)
		case types.TxConfirmed:
			m.forceStatus(id, types.CrossChainCompleted)
		}
	}

	return nil
}

// apply merges the bridge-reported copy into the stored transaction. The
// stored status only moves if it is non-terminal and actually different;
// a terminal stored status is never overwritten.
func (m *Monitor) apply(id string, remote *types.CrossChainTransaction) *types.CrossChainTransaction {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}

	if remote.SourceTransactionHash != "" {
		e.tx.SourceTransactionHash = remote.SourceTransactionHash
	}
	if remote.DestinationTransactionHash != "" {
		e.tx.DestinationTransactionHash = remote.DestinationTransactionHash
	}
	if remote.BridgeContract != "" {
		e.tx.BridgeContract = remote.BridgeContract
	}
	if remote.EstimatedCompletion != nil {
		e.tx.EstimatedCompletion = remote.EstimatedCompletion
	}

	if e.tx.Status.IsTerminal() || remote.Status == e.tx.Status {
		snap := e.tx.Clone()
		m.mu.Unlock()
		return snap
	}

	e.tx.Status = remote.Status
	e.tx.UpdatedAt = time.Now()
	if e.tx.Status.IsTerminal() {
		m.stopTimersLocked(e)
	}
	snap := e.tx.Clone()
	m.mu.Unlock()

	m.emitStatus(snap)
	return snap
}

// forceStatus moves the stored transaction to the given status, subject to
// the same terminal-wins rule as apply. Used by the on-chain cross-check.
func (m *Monitor) forceStatus(id string, status types.CrossChainStatus) *types.CrossChainTransaction {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || e.tx.Status.IsTerminal() || e.tx.Status == status {
		var snap *types.CrossChainTransaction
		if ok {
			snap = e.tx.Clone()
		}
		m.mu.Unlock()
		return snap
	}

	e.tx.Status = status
	e.tx.UpdatedAt = time.Now()
	if status.IsTerminal() {
		m.stopTimersLocked(e)
	}
	snap := e.tx.Clone()
	m.mu.Unlock()

	m.emitStatus(snap)
	return snap
}

func (m *Monitor) emitStatus(snap *types.CrossChainTransaction) {
	var t EventType
	switch snap.Status {
	case types.CrossChainCompleted:
		t = EventCompletion
	case types.CrossChainFailed, types.CrossChainRefunded:
		t = EventFailure
	default:
		t = EventStatusUpdate
	}

	m.rec.IncCounter("cross_chain_"+string(snap.Status), map[string]string{"network": snap.FromNetwork.String()})
	m.events.publish(Event{Type: t, Transaction: snap})
}

// handleTimeout force-marks a still-pending transfer failed and stops its
// monitoring. Exactly one timeout event fires per expired transfer.
func (m *Monitor) handleTimeout(id string) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || !e.active {
		m.mu.Unlock()
		return
	}
	if !e.tx.Status.IsTerminal() {
		e.tx.Status = types.CrossChainFailed
		e.tx.UpdatedAt = time.Now()
	}
	m.stopTimersLocked(e)
	snap := e.tx.Clone()
	m.mu.Unlock()

	m.log.Warn("monitoring timed out", map[string]any{"id": id})
	m.events.publish(Event{Type: EventTimeout, Transaction: snap})
}

// StopMonitoring cancels both the repeating tick and the timeout for an id.
// It is idempotent: unknown ids and already-stopped ids are safe no-ops.
// The transaction itself stays queryable until Cleanup or Destroy.
func (m *Monitor) StopMonitoring(id string) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		m.stopTimersLocked(e)
	}
	active := m.activeCountLocked()
	m.mu.Unlock()

	if ok {
		m.rec.SetGauge("monitored_transactions", float64(active), map[string]string{"network": "all"})
	}
}

// TransactionStatus returns a copy of one tracked transaction.
func (m *Monitor) TransactionStatus(id string) (*types.CrossChainTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, types.Errorf(types.ErrTransactionNotFound, "", "transaction %s is not tracked", id)
	}
	return e.tx.Clone(), nil
}

// AllMonitoredTransactions returns copies of every tracked transaction.
func (m *Monitor) AllMonitoredTransactions() []*types.CrossChainTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.CrossChainTransaction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.tx.Clone())
	}
	return out
}

// TransactionsByStatus filters tracked transactions by status.
func (m *Monitor) TransactionsByStatus(status types.CrossChainStatus) []*types.CrossChainTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.CrossChainTransaction
	for _, e := range m.entries {
		if e.tx.Status == status {
			out = append(out, e.tx.Clone())
		}
	}
	return out
}

// UpdateTransactionStatus runs one reconciliation tick immediately and
// returns the resulting snapshot.
func (m *Monitor) UpdateTransactionStatus(ctx context.Context, id string) (*types.CrossChainTransaction, error) {
	if _, err := m.TransactionStatus(id); err != nil {
		return nil, err
	}
	m.tick(ctx, id)
	return m.TransactionStatus(id)
}

// IsMonitoring reports whether the id's timers are still running.
func (m *Monitor) IsMonitoring(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return ok && e.active
}

// MonitoringStats aggregates per-status counts, the average wall-clock
// completion time across completed transfers, and the completed/total
// success rate as a percentage.
func (m *Monitor) MonitoringStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Total:    len(m.entries),
		ByStatus: make(map[types.CrossChainStatus]int),
	}

	var completed int
	var totalDuration time.Duration
	for _, e := range m.entries {
		stats.ByStatus[e.tx.Status]++
		if e.tx.Status == types.CrossChainCompleted {
			completed++
			totalDuration += e.tx.UpdatedAt.Sub(e.tx.CreatedAt)
		}
	}

	if completed > 0 {
		stats.AverageCompletionTime = totalDuration / time.Duration(completed)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(completed) / float64(stats.Total) * 100
	}
	return stats
}

// Cleanup removes terminal transactions whose last update is older than
// maxAge. Non-terminal or recent transactions are untouched and their
// timers remain cancellable.
func (m *Monitor) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var removed int
	for id, e := range m.entries {
		if e.tx.Status.IsTerminal() && e.tx.UpdatedAt.Before(cutoff) {
			m.stopTimersLocked(e)
			delete(m.entries, id)
			removed++
		}
	}
	active := m.activeCountLocked()
	m.mu.Unlock()

	if removed > 0 {
		m.rec.SetGauge("monitored_transactions", float64(active), map[string]string{"network": "all"})
		m.log.Debug("cleanup removed transactions", map[string]any{"count": removed})
	}
	return removed
}

// Destroy unconditionally clears every timer, the transaction map, the
// bridge registry, and all listeners. Process shutdown only.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	for _, e := range m.entries {
		m.stopTimersLocked(e)
	}
	m.entries = make(map[string]*entry)
	m.bridges = nil
	m.mu.Unlock()

	m.events.clear()
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) bridgeFor(from, to types.BlockchainNetwork) providers.BridgeProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bridges {
		if providers.SupportsPair(b, from, to) {
			return b
		}
	}
	return nil
}

func (m *Monitor) snapshot(id string) *types.CrossChainTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	return e.tx.Clone()
}

func (m *Monitor) stopTimersLocked(e *entry) {
	if e.active {
		e.active = false
		e.cancel()
	}
}

func (m *Monitor) activeCountLocked() int {
	var n int
	for _, e := range m.entries {
		if e.active {
			n++
		}
	}
	return n
}
