package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 索引引擎的 Prometheus 指标；nil 接收者上的方法都是空操作
type Metrics struct {
	transitions    *prometheus.CounterVec
	sweepEvictions *prometheus.CounterVec
	listDuration   *prometheus.HistogramVec
	auditDropped   prometheus.Counter
	auditQueue     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topic_index",
			Name:      "transitions_total",
			Help:      "Topic state transitions applied, by type.",
		}, []string{"type"}),
		sweepEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topic_index",
			Name:      "sweep_evictions_total",
			Help:      "Topics evicted by read-time expiry sweeps.",
		}, []string{"sweep"}),
		listDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "topic_index",
			Name:      "list_duration_seconds",
			Help:      "Latency of category topic id pagination.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"sort"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "topic_index",
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the queue was full.",
		}),
		auditQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "topic_index",
			Name:      "audit_queue_length",
			Help:      "Sampled length of the audit event queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.sweepEvictions, m.listDuration, m.auditDropped, m.auditQueue)
	}
	return m
}

func (m *Metrics) transition(kind string) {
	if m != nil {
		m.transitions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) evicted(sweep string, n int) {
	if m != nil && n > 0 {
		m.sweepEvictions.WithLabelValues(sweep).Add(float64(n))
	}
}

func (m *Metrics) observeList(sort string, d time.Duration) {
	if m != nil {
		m.listDuration.WithLabelValues(sort).Observe(d.Seconds())
	}
}

func (m *Metrics) auditDrop() {
	if m != nil {
		m.auditDropped.Inc()
	}
}

func (m *Metrics) auditQueueLen(n int) {
	if m != nil {
		m.auditQueue.Set(float64(n))
	}
}
