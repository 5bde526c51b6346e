package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cipherworks/machina/module"
)

// MachineCollector reports transaction machine metrics to prometheus.
type MachineCollector struct {
	queued    prometheus.Counter
	broadcast prometheus.Counter
	speedups  prometheus.Counter
	finalized prometheus.Counter
	faulted   *prometheus.CounterVec
	depth     prometheus.Gauge
}

var _ module.MachineMetrics = (*MachineCollector)(nil)

func NewMachineCollector(registerer prometheus.Registerer) *MachineCollector {
	factory := promauto.With(registerer)
	return &MachineCollector{
		queued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceMachine,
			Name:      "transactions_queued_total",
			Help:      "number of transactions accepted into the queue",
		}),
		broadcast: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceMachine,
			Name:      "transactions_broadcast_total",
			Help:      "number of first broadcasts",
		}),
		speedups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceMachine,
			Name:      "transactions_sped_up_total",
			Help:      "number of fee-bump re-broadcasts",
		}),
		finalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceMachine,
			Name:      "transactions_finalized_total",
			Help:      "number of transactions mined successfully",
		}),
		faulted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceMachine,
			Name:      "transactions_faulted_total",
			Help:      "number of terminally failed transactions by fault reason",
		}, []string{"reason"}),
		depth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceMachine,
			Name:      "queue_depth",
			Help:      "number of transactions currently queued",
		}),
	}
}

func (mc *MachineCollector) TransactionQueued() {
	mc.queued.Inc()
}

func (mc *MachineCollector) TransactionBroadcast() {
	mc.broadcast.Inc()
}

func (mc *MachineCollector) TransactionSpedUp() {
	mc.speedups.Inc()
}

func (mc *MachineCollector) TransactionFinalized() {
	mc.finalized.Inc()
}

func (mc *MachineCollector) TransactionFaulted(reason string) {
	mc.faulted.WithLabelValues(reason).Inc()
}

func (mc *MachineCollector) QueueDepth(depth uint) {
	mc.depth.Set(float64(depth))
}
