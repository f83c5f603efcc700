// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Places is the fixed number of decimal places for every scored amount.
const Places int32 = 2

// SlotPrefix names week slots: week1, week2, ...
const SlotPrefix = "week"

// SlotName returns the name of the i-th week slot (1-based).
func SlotName(i int) string {
	return SlotPrefix + strconv.Itoa(i)
}

// SlotNames returns week1..weekN in order.
func SlotNames(n int) []string {
	names := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		names = append(names, SlotName(i))
	}
	return names
}

// WeekRecord is one normalized race result for an entry.
type WeekRecord struct {
	Rank                *int64 // nil when absent or invalid
	FieldSize           *int64 // "totalBirds"; nil when absent or invalid
	Points              decimal.Decimal
	ParticipationFactor decimal.Decimal // "f"
	Ratio               decimal.Decimal // rank / fieldSize, 0.00 when undefined
	WeightedPoints      decimal.Decimal // points * f
}

type weekRecordJSON struct {
	Rank           *int64 `json:"rank,omitempty"`
	TotalBirds     *int64 `json:"totalBirds,omitempty"`
	Points         string `json:"points"`
	F              string `json:"f"`
	Ratio          string `json:"ratio"`
	WeightedPoints string `json:"weightedPoints"`
}

// MarshalJSON writes every amount as a fixed two-place decimal string.
func (w WeekRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(weekRecordJSON{
		Rank:           w.Rank,
		TotalBirds:     w.FieldSize,
		Points:         w.Points.StringFixed(Places),
		F:              w.ParticipationFactor.StringFixed(Places),
		Ratio:          w.Ratio.StringFixed(Places),
		WeightedPoints: w.WeightedPoints.StringFixed(Places),
	})
}

// UnmarshalJSON reads the stored form written by MarshalJSON.
func (w *WeekRecord) UnmarshalJSON(b []byte) error {
	var raw weekRecordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	amounts := []struct {
		src string
		dst *decimal.Decimal
	}{
		{raw.Points, &w.Points},
		{raw.F, &w.ParticipationFactor},
		{raw.Ratio, &w.Ratio},
		{raw.WeightedPoints, &w.WeightedPoints},
	}
	for _, a := range amounts {
		if a.src == "" {
			*a.dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(a.src)
		if err != nil {
			return fmt.Errorf("week record amount %q: %w", a.src, err)
		}
		*a.dst = d
	}
	w.Rank = raw.Rank
	w.FieldSize = raw.TotalBirds
	return nil
}
