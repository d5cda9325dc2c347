package scheduler

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the scheduler's prometheus instrumentation.
type Metrics struct {
	FilesDispatched *prometheus.CounterVec
	FilesCompleted  *prometheus.CounterVec
	EventsProcessed prometheus.Counter
	WorkersRunning  prometheus.Gauge
	FileDuration    prometheus.Histogram
}

// NewMetrics creates the scheduler metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FilesDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bsmanalyze",
				Subsystem: "scheduler",
				Name:      "files_dispatched_total",
				Help:      "Total number of files handed to workers",
			},
			[]string{"worker"},
		),
		FilesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bsmanalyze",
				Subsystem: "scheduler",
				Name:      "files_completed_total",
				Help:      "Total number of files finished by workers",
			},
			[]string{"status"},
		),
		EventsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "bsmanalyze",
				Subsystem: "scheduler",
				Name:      "events_processed_total",
				Help:      "Total number of events passed to analyzers",
			},
		),
		WorkersRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "bsmanalyze",
				Subsystem: "scheduler",
				Name:      "workers_running",
				Help:      "Number of workers not yet retired in the current run",
			},
		),
		FileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "bsmanalyze",
				Subsystem: "scheduler",
				Name:      "file_duration_seconds",
				Help:      "Time spent reading and analyzing one file",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.FilesDispatched, m.FilesCompleted, m.EventsProcessed, m.WorkersRunning, m.FileDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register scheduler metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) fileDispatched(workerID uint64) {
	if m == nil {
		return
	}
	m.FilesDispatched.WithLabelValues(fmt.Sprintf("%d", workerID)).Inc()
}

func (m *Metrics) fileFinished(status FileStatus, events int64, seconds float64) {
	if m == nil {
		return
	}
	m.FilesCompleted.WithLabelValues(string(status)).Inc()
	m.EventsProcessed.Add(float64(events))
	if status != FileSkipped {
		m.FileDuration.Observe(seconds)
	}
}

func (m *Metrics) setRunning(n int) {
	if m == nil {
		return
	}
	m.WorkersRunning.Set(float64(n))
}
