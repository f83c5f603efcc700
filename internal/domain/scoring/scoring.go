// Package scoring derives race-performance metrics from weekly results:
// per-week ratios, the seasonal index (UPR), cohort statistics, and each
// entry's deviation (SD) and coefficient relative to its cohort.
//
// All arithmetic is fixed-point (shopspring/decimal) and rounds half away
// from zero, so results do not depend on summation order.
package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/okian/loftrank/internal/domain/model"
)

// Default calculator configuration.
const (
	defaultCoefficientPlaces int32 = 4
	maxCoefficientPlaces     int32 = 12
)

var defaultFallbackScale = decimal.NewFromInt(1)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithFallbackReferenceScale sets the scale used when a cohort has no field
// size data. Non-positive values are ignored.
func WithFallbackReferenceScale(scale decimal.Decimal) Option {
	return func(c *Calculator) {
		if scale.Sign() > 0 {
			c.fallbackScale = scale
		}
	}
}

// WithCoefficientPlaces sets the rounding precision of the coefficient.
func WithCoefficientPlaces(places int32) Option {
	return func(c *Calculator) {
		if places >= 0 && places <= maxCoefficientPlaces {
			c.coefficientPlaces = places
		}
	}
}

// Calculator holds the cohort-level configuration. Normalization and the
// index are configuration-free and live as package functions.
type Calculator struct {
	fallbackScale     decimal.Decimal
	coefficientPlaces int32
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		fallbackScale:     defaultFallbackScale,
		coefficientPlaces: defaultCoefficientPlaces,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CoefficientPlaces returns the coefficient rounding precision.
func (c *Calculator) CoefficientPlaces() int32 { return c.coefficientPlaces }

// Assess computes cohort statistics over all entries, then the standing of
// each entry against those statistics. Statistics are complete before any
// standing is derived. The returned entries are copies in input order; an
// empty cohort yields no standings.
func (c *Calculator) Assess(entries []model.Entry) (CohortStats, []model.Entry) {
	stats := Cohort(entries)
	if stats.Empty {
		return stats, []model.Entry{}
	}

	out := make([]model.Entry, len(entries))
	for i := range entries {
		e := entries[i].Clone()
		s := c.Standing(e.Index, stats)
		e.Standing = &s
		out[i] = e
	}
	return stats, out
}
