package mq

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics RPC 调用指标；nil 时所有方法为空操作
type Metrics struct {
	calls           *prometheus.CounterVec
	pending         prometheus.Gauge
	publishFailures prometheus.Counter
}

// NewMetrics 创建并注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scsc",
			Subsystem: "bot_rpc",
			Name:      "calls_total",
			Help:      "Bot RPC calls by action code and outcome.",
		}, []string{"action", "outcome"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scsc",
			Subsystem: "bot_rpc",
			Name:      "pending_calls",
			Help:      "Calls currently waiting for a correlated reply.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scsc",
			Subsystem: "bot_rpc",
			Name:      "publish_failures_total",
			Help:      "Messages that could not be published to the broker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.pending, m.publishFailures)
	}
	return m
}

func (m *Metrics) observe(action int, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(strconv.Itoa(action), outcome).Inc()
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) publishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}
