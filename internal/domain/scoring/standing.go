package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/okian/loftrank/internal/domain/model"
)

// ReferenceScale is the cohort's average field size, or the configured
// fallback when no record carries one.
func (c *Calculator) ReferenceScale(stats CohortStats) decimal.Decimal {
	if stats.AvgFieldSize.Sign() > 0 {
		return stats.AvgFieldSize
	}
	return c.fallbackScale
}

// Standing places one index against the cohort. A positive deviation means
// the entry is below the cohort average.
func (c *Calculator) Standing(index decimal.Decimal, stats CohortStats) model.Standing {
	deviation := stats.AvgIndex.Sub(index).Round(model.Places)
	coefficient := decimal.Zero
	if scale := c.ReferenceScale(stats); scale.Sign() != 0 {
		coefficient = deviation.Div(scale).Round(c.coefficientPlaces)
	}
	return model.Standing{Deviation: deviation, Coefficient: coefficient}
}
