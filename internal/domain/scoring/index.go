package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/okian/loftrank/internal/domain/model"
)

// Index is the sum of every record's ratio divided by the number of week
// slots holding at least one record. Empty slots are left out of the
// denominator; an entry with no populated slot scores 0.00.
func Index(weeks map[string][]model.WeekRecord) decimal.Decimal {
	populated := model.PopulatedSlots(weeks)
	if populated == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, recs := range weeks {
		for _, r := range recs {
			sum = sum.Add(r.Ratio)
		}
	}
	return sum.Div(decimal.NewFromInt(int64(populated))).Round(model.Places)
}
