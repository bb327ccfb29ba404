// internal/utils/metrics/collector.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "metapool"

// Collector держит метрики пула в собственном реестре.
type Collector struct {
	registry *prometheus.Registry

	instructions        *prometheus.CounterVec
	instructionDuration *prometheus.HistogramVec
	commits             *prometheus.CounterVec
	poolTotal           *prometheus.GaugeVec
	stakeTotal          *prometheus.GaugeVec
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instructions_total",
				Help:      "Total number of stake pool instructions processed",
			},
			[]string{"op", "result"},
		),
		instructionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "instruction_duration_seconds",
				Help:      "Stake pool instruction duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12),
			},
			[]string{"op"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_commits_total",
				Help:      "Ledger transactions by outcome",
			},
			[]string{"result"},
		),
		poolTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_total",
				Help:      "Outstanding pool shares",
			},
			[]string{"pool"},
		),
		stakeTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stake_total",
				Help:      "Lamports under pool management",
			},
			[]string{"pool"},
		),
	}
	c.registry.MustRegister(c.instructions, c.instructionDuration, c.commits, c.poolTotal, c.stakeTotal)
	return c
}

// Registry отдает реестр для экспорта и тестов
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler возвращает HTTP-обработчик для /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.instructions.Reset()
	c.instructionDuration.Reset()
	c.commits.Reset()
	c.poolTotal.Reset()
	c.stakeTotal.Reset()
}
