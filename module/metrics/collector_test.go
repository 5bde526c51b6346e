package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMachineCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMachineCollector(registry)

	collector.TransactionQueued()
	collector.TransactionQueued()
	collector.TransactionBroadcast()
	collector.TransactionSpedUp()
	collector.TransactionFinalized()
	collector.TransactionFaulted("timeout")
	collector.TransactionFaulted("timeout")
	collector.TransactionFaulted("reverted")
	collector.QueueDepth(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.queued))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.broadcast))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.speedups))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.finalized))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.faulted.WithLabelValues("timeout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.faulted.WithLabelValues("reverted")))
	assert.Equal(t, float64(3), testutil.ToFloat64(collector.depth))
}

func TestTrackerCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewTrackerCollector(registry)

	collector.ScanCompleted(100*time.Millisecond, 7)
	collector.ScanFailed()
	collector.RitualObserved()
	collector.ActiveRituals(2)

	assert.Equal(t, float64(7), testutil.ToFloat64(collector.scanEvents))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.scanFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.observed))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.active))
}
