package model

import (
	"github.com/shopspring/decimal"
)

// Entry is one scored competitor (a bird or line) within a season.
//
// Index depends only on the entry's own weeks. Standing depends on the whole
// cohort and is only ever set on entries assembled for a report.
type Entry struct {
	Season  string
	ID      string
	Line    string
	Family  string
	Sire    string
	Dam     string
	Remarks string

	// Weeks maps slot name (week1..weekN) to its normalized records.
	// Every configured slot is present; unpopulated slots hold no records.
	Weeks map[string][]WeekRecord

	Index    decimal.Decimal
	Standing *Standing
}

// Standing is an entry's position relative to its cohort.
type Standing struct {
	Deviation   decimal.Decimal `json:"deviation"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

// PopulatedSlots returns how many week slots hold at least one record.
func PopulatedSlots(weeks map[string][]WeekRecord) int {
	n := 0
	for _, recs := range weeks {
		if len(recs) > 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so stored entries cannot be mutated by callers.
func (e Entry) Clone() Entry {
	out := e
	if e.Weeks != nil {
		out.Weeks = make(map[string][]WeekRecord, len(e.Weeks))
		for slot, recs := range e.Weeks {
			cp := make([]WeekRecord, len(recs))
			copy(cp, recs)
			out.Weeks[slot] = cp
		}
	}
	if e.Standing != nil {
		s := *e.Standing
		out.Standing = &s
	}
	return out
}
