package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/okian/loftrank/internal/domain/model"
)

// CohortStats are the season-wide aggregates every standing is measured
// against. Averages are rounded once, after summation.
type CohortStats struct {
	Size    int // entries in the cohort
	Records int // week records across all entries

	AvgIndex               decimal.Decimal
	AvgParticipationFactor decimal.Decimal
	// AvgFieldSize averages only the records that carry a field size.
	AvgFieldSize decimal.Decimal

	Empty bool
}

// Cohort aggregates a snapshot of entries. Participation factor and field
// size are averaged over the flattened record set, not per entry.
func Cohort(entries []model.Entry) CohortStats {
	if len(entries) == 0 {
		return CohortStats{
			AvgIndex:               decimal.Zero,
			AvgParticipationFactor: decimal.Zero,
			AvgFieldSize:           decimal.Zero,
			Empty:                  true,
		}
	}

	sumIndex, sumFactor, sumField := decimal.Zero, decimal.Zero, decimal.Zero
	records, sized := 0, 0
	for i := range entries {
		sumIndex = sumIndex.Add(entries[i].Index)
		for _, recs := range entries[i].Weeks {
			for _, r := range recs {
				records++
				sumFactor = sumFactor.Add(r.ParticipationFactor)
				if r.FieldSize != nil {
					sized++
					sumField = sumField.Add(decimal.NewFromInt(*r.FieldSize))
				}
			}
		}
	}

	return CohortStats{
		Size:                   len(entries),
		Records:                records,
		AvgIndex:               mean(sumIndex, len(entries)),
		AvgParticipationFactor: mean(sumFactor, records),
		AvgFieldSize:           mean(sumField, sized),
	}
}

func mean(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(model.Places)
}
