package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cipherworks/machina/module"
)

// TrackerCollector reports ritual tracker metrics to prometheus.
type TrackerCollector struct {
	scanDuration prometheus.Histogram
	scanEvents   prometheus.Counter
	scanFailures prometheus.Counter
	observed     prometheus.Counter
	active       prometheus.Gauge
}

var _ module.TrackerMetrics = (*TrackerCollector)(nil)

func NewTrackerCollector(registerer prometheus.Registerer) *TrackerCollector {
	factory := promauto.With(registerer)
	return &TrackerCollector{
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceTracker,
			Name:      "scan_duration_seconds",
			Help:      "duration of successful scan cycles",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		scanEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceTracker,
			Name:      "scan_events_total",
			Help:      "number of coordinator events applied",
		}),
		scanFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceTracker,
			Name:      "scan_failures_total",
			Help:      "number of failed scan cycles",
		}),
		observed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceTracker,
			Name:      "rituals_observed_total",
			Help:      "number of rituals recorded for the first time",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceTracker,
			Name:      "rituals_active",
			Help:      "number of tracked non-terminal rituals",
		}),
	}
}

func (tc *TrackerCollector) ScanCompleted(duration time.Duration, events uint) {
	tc.scanDuration.Observe(duration.Seconds())
	tc.scanEvents.Add(float64(events))
}

func (tc *TrackerCollector) ScanFailed() {
	tc.scanFailures.Inc()
}

func (tc *TrackerCollector) RitualObserved() {
	tc.observed.Inc()
}

func (tc *TrackerCollector) ActiveRituals(count uint) {
	tc.active.Set(float64(count))
}
