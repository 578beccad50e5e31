// Package metrics records payment engine events.
package metrics

import "time"

// Well-known label keys.
const (
	LabelNetwork = "network"
	LabelOutcome = "outcome"
)

// Recorder receives counters and latencies from the verifier and the gate.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
