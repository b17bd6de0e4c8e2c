package metrics

import "time"

// Recorder is the metrics surface exercised by the manager, payment
// service, and cross-chain monitor.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}
