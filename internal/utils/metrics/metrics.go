// internal/utils/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// ObserveInstruction записывает результат и длительность инструкции пула
func (c *Collector) ObserveInstruction(op string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	c.instructions.WithLabelValues(op, result).Inc()
	c.instructionDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveCommit считает зафиксированные и откатанные транзакции
func (c *Collector) ObserveCommit(committed bool) {
	result := "committed"
	if !committed {
		result = "rolled_back"
	}
	c.commits.WithLabelValues(result).Inc()
}

// UpdatePoolTotals обновляет метрики пула
func (c *Collector) UpdatePoolTotals(pool solana.PublicKey, poolTotal, stakeTotal uint64) {
	c.poolTotal.WithLabelValues(pool.String()).Set(float64(poolTotal))
	c.stakeTotal.WithLabelValues(pool.String()).Set(float64(stakeTotal))
}
