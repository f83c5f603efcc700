package seasonsim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/types"
)

// ErrVerification wraps every inconsistency found in a report.
var ErrVerification = errors.New("report verification failed")

// Verify checks a report against the locally expected indexes and against
// itself: the cohort average, every deviation and coefficient, and the
// index ordering when sortedByIndex is set.
func Verify(report types.SeasonReport, expected map[string]string, sortedByIndex bool) error {
	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if report.EntryCount != len(expected) || len(report.Entries) != len(expected) {
		fail("entry count %d (%d listed), expected %d", report.EntryCount, len(report.Entries), len(expected))
	}
	if report.Empty != (len(expected) == 0) {
		fail("empty flag %v with %d expected entries", report.Empty, len(expected))
	}

	avg, err := decimal.NewFromString(report.AvgIndex)
	if err != nil {
		return fmt.Errorf("%w: avgIndex %q: %w", ErrVerification, report.AvgIndex, err)
	}
	scale, err := decimal.NewFromString(report.ReferenceScale)
	if err != nil {
		return fmt.Errorf("%w: referenceScale %q: %w", ErrVerification, report.ReferenceScale, err)
	}

	sum := decimal.Zero
	var prev *decimal.Decimal
	for i, e := range report.Entries {
		want, ok := expected[e.ID]
		switch {
		case !ok:
			fail("unexpected entry %s", e.ID)
		case want != e.Index:
			fail("entry %s index %s, expected %s", e.ID, e.Index, want)
		}

		index, err := decimal.NewFromString(e.Index)
		if err != nil {
			fail("entry %s index %q: %v", e.ID, e.Index, err)
			continue
		}
		sum = sum.Add(index)

		if sortedByIndex && prev != nil && index.GreaterThan(*prev) {
			fail("entry %d (%s) breaks index order", i, e.ID)
		}
		prev = &index

		if e.Deviation == nil || e.Coefficient == nil {
			fail("entry %s has no standing", e.ID)
			continue
		}
		deviation := avg.Sub(index).Round(model.Places)
		if got := deviation.StringFixed(model.Places); got != *e.Deviation {
			fail("entry %s deviation %s, expected %s", e.ID, *e.Deviation, got)
		}
		if scale.Sign() > 0 {
			places := decimalPlaces(*e.Coefficient)
			if got := deviation.Div(scale).StringFixed(places); got != *e.Coefficient {
				fail("entry %s coefficient %s, expected %s", e.ID, *e.Coefficient, got)
			}
		}
	}

	if n := len(report.Entries); n > 0 {
		want := sum.Div(decimal.NewFromInt(int64(n))).StringFixed(model.Places)
		if want != report.AvgIndex {
			fail("avgIndex %s, expected %s", report.AvgIndex, want)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrVerification, errors.Join(problems...))
	}
	return nil
}

func decimalPlaces(s string) int32 {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return int32(len(s) - i - 1)
	}
	return 0
}
