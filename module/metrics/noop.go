package metrics

import (
	"time"
)

// NoopCollector implements all metrics interfaces with no operations, for
// callers that do not wire a registry.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) TransactionQueued()                                {}
func (nc *NoopCollector) TransactionBroadcast()                             {}
func (nc *NoopCollector) TransactionSpedUp()                                {}
func (nc *NoopCollector) TransactionFinalized()                             {}
func (nc *NoopCollector) TransactionFaulted(reason string)                  {}
func (nc *NoopCollector) QueueDepth(depth uint)                             {}
func (nc *NoopCollector) ScanCompleted(duration time.Duration, events uint) {}
func (nc *NoopCollector) ScanFailed()                                       {}
func (nc *NoopCollector) RitualObserved()                                   {}
func (nc *NoopCollector) ActiveRituals(count uint)                          {}
