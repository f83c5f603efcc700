package scoring_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/loftrank/internal/domain/model"
	scoring "github.com/okian/loftrank/internal/domain/scoring"
)

func i64(v int64) *int64 { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

func rawEntry(t *testing.T, body string) model.RawEntry {
	t.Helper()
	var r model.RawEntry
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("decode raw entry: %v", err)
	}
	return r
}

func TestRatio(t *testing.T) {
	Convey("Given rank and field size", t, func() {
		Convey("Then a missing or zero field size never divides", func() {
			So(fixed(scoring.Ratio(i64(1), nil)), ShouldEqual, "0.00")
			So(fixed(scoring.Ratio(nil, i64(10))), ShouldEqual, "0.00")
			So(fixed(scoring.Ratio(i64(1), i64(0))), ShouldEqual, "0.00")
		})

		Convey("Then the ratio is fixed to two places, half away from zero", func() {
			So(fixed(scoring.Ratio(i64(1), i64(10))), ShouldEqual, "0.10")
			So(fixed(scoring.Ratio(i64(1), i64(3))), ShouldEqual, "0.33")
			So(fixed(scoring.Ratio(i64(2), i64(3))), ShouldEqual, "0.67")
			So(fixed(scoring.Ratio(i64(1), i64(8))), ShouldEqual, "0.13")
		})
	})
}

func TestNormalizeWeek(t *testing.T) {
	Convey("Given raw week values", t, func() {
		Convey("When the week is a single object", func() {
			recs, notes, err := scoring.NormalizeWeek("week1", json.RawMessage(`{"rank": 1, "totalBirds": 10, "points": 12.345, "f": 2}`))

			Convey("Then it becomes a one-element list", func() {
				So(err, ShouldBeNil)
				So(notes, ShouldBeEmpty)
				So(len(recs), ShouldEqual, 1)
				So(*recs[0].Rank, ShouldEqual, int64(1))
				So(fixed(recs[0].Ratio), ShouldEqual, "0.10")
				So(fixed(recs[0].Points), ShouldEqual, "12.35")
				So(fixed(recs[0].WeightedPoints), ShouldEqual, "24.70")
			})
		})

		Convey("When the week is a list with a null element", func() {
			recs, _, err := scoring.NormalizeWeek("week2", json.RawMessage(`[{"rank": "2", "totalBirds": "20"}, null, {"rank": 5, "fieldSize": 10}]`))

			Convey("Then nulls are dropped and string numbers accepted", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(fixed(recs[0].Ratio), ShouldEqual, "0.10")
				So(fixed(recs[1].Ratio), ShouldEqual, "0.50")
			})
		})

		Convey("When the week is null or absent", func() {
			for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`  `)} {
				recs, notes, err := scoring.NormalizeWeek("week3", raw)
				So(err, ShouldBeNil)
				So(recs, ShouldBeEmpty)
				So(notes, ShouldBeEmpty)
			}
		})

		Convey("When rank or field size are missing", func() {
			recs, notes, err := scoring.NormalizeWeek("week1", json.RawMessage(`{"points": 3}`))

			Convey("Then the ratio is zero and the gap is noted", func() {
				So(err, ShouldBeNil)
				So(fixed(recs[0].Ratio), ShouldEqual, "0.00")
				So(fixed(recs[0].ParticipationFactor), ShouldEqual, "0.00")
				So(len(notes), ShouldEqual, 2)
				So(notes[0].Reason, ShouldEqual, scoring.NoteMissingRank)
				So(notes[1].Reason, ShouldEqual, scoring.NoteMissingFieldSize)
			})
		})

		Convey("When fields are malformed", func() {
			recs, notes, err := scoring.NormalizeWeek("week1", json.RawMessage(`{"rank": 1, "totalBirds": 0, "points": "abc", "f": true}`))

			Convey("Then they default to zero with notes instead of failing", func() {
				So(err, ShouldBeNil)
				So(recs[0].FieldSize, ShouldBeNil)
				So(fixed(recs[0].Ratio), ShouldEqual, "0.00")
				So(fixed(recs[0].Points), ShouldEqual, "0.00")
				reasons := make([]scoring.NoteReason, 0, len(notes))
				for _, n := range notes {
					reasons = append(reasons, n.Reason)
				}
				So(reasons, ShouldResemble, []scoring.NoteReason{
					scoring.NoteInvalidFieldSize, scoring.NoteMalformedPoints, scoring.NoteMalformedFactor,
				})
			})
		})

		Convey("When counts do not fit in 64 bits", func() {
			recs, notes, err := scoring.NormalizeWeek("week1", json.RawMessage(`[
				{"rank": 1, "totalBirds": 18446744073709551626},
				{"rank": 9223372036854775808, "totalBirds": 10}
			]`))

			Convey("Then they are invalid rather than wrapped", func() {
				So(err, ShouldBeNil)
				So(recs[0].FieldSize, ShouldBeNil)
				So(fixed(recs[0].Ratio), ShouldEqual, "0.00")
				So(recs[1].Rank, ShouldBeNil)
				So(notes, ShouldHaveLength, 2)
				So(notes[0].Reason, ShouldEqual, scoring.NoteInvalidFieldSize)
				So(notes[0].Detail, ShouldEqual, "totalBirds=18446744073709551626")
				So(notes[1].Reason, ShouldEqual, scoring.NoteInvalidRank)
			})
		})

		Convey("When numbers carry extreme exponents or digit counts", func() {
			long := strings.Repeat("9", 5000)
			recs, notes, err := scoring.NormalizeWeek("week1", json.RawMessage(
				`{"rank": 1, "totalBirds": 1e3, "points": 1e20000000, "f": "1e-20000000"}`))
			So(err, ShouldBeNil)

			Convey("Then amounts are malformed and default to zero", func() {
				So(*recs[0].FieldSize, ShouldEqual, 1000)
				So(fixed(recs[0].Points), ShouldEqual, "0.00")
				So(fixed(recs[0].ParticipationFactor), ShouldEqual, "0.00")
				So(notes, ShouldHaveLength, 2)
				So(notes[0].Reason, ShouldEqual, scoring.NoteMalformedPoints)
				So(notes[1].Reason, ShouldEqual, scoring.NoteMalformedFactor)
			})

			Convey("Then an overlong count is invalid with a shortened detail", func() {
				recs, notes, err := scoring.NormalizeWeek("week1", json.RawMessage(`{"rank": `+long+`, "totalBirds": 10}`))
				So(err, ShouldBeNil)
				So(recs[0].Rank, ShouldBeNil)
				So(notes, ShouldHaveLength, 1)
				So(notes[0].Reason, ShouldEqual, scoring.NoteInvalidRank)
				So(len(notes[0].Detail), ShouldBeLessThan, 64)
			})
		})

		Convey("When the week is structurally unusable", func() {
			for _, raw := range []string{`5`, `"week"`, `true`, `[1, 2]`, `[{"rank": 1}, "x"]`} {
				_, _, err := scoring.NormalizeWeek("week1", json.RawMessage(raw))
				So(errors.Is(err, scoring.ErrUnparseableWeek), ShouldBeTrue)
			}
		})
	})
}

func TestIndex(t *testing.T) {
	Convey("Given normalized weeks", t, func() {
		Convey("Then one record in week1 of 1/10 scores 0.10", func() {
			weeks := map[string][]model.WeekRecord{
				"week1": {{Ratio: dec("0.10")}},
				"week2": {}, "week3": {}, "week4": {}, "week5": {},
			}
			So(fixed(scoring.Index(weeks)), ShouldEqual, "0.10")
		})

		Convey("Then no populated slot scores 0.00", func() {
			So(fixed(scoring.Index(map[string][]model.WeekRecord{"week1": {}, "week2": nil})), ShouldEqual, "0.00")
			So(fixed(scoring.Index(nil)), ShouldEqual, "0.00")
		})

		Convey("Then empty slots are left out of the denominator", func() {
			weeks := map[string][]model.WeekRecord{
				"week1": {{Ratio: dec("0.10")}, {Ratio: dec("0.20")}},
				"week2": {{Ratio: dec("0.30")}},
				"week3": {},
			}
			So(fixed(scoring.Index(weeks)), ShouldEqual, "0.30")
		})

		Convey("Then rounding happens once at the end", func() {
			weeks := map[string][]model.WeekRecord{
				"week1": {{Ratio: dec("0.33")}},
				"week2": {{Ratio: dec("0.33")}},
				"week3": {{Ratio: dec("0.35")}},
			}
			So(fixed(scoring.Index(weeks)), ShouldEqual, "0.34")
		})
	})
}

func TestNormalizeEntry(t *testing.T) {
	slots := model.SlotNames(5)

	Convey("Given a raw entry", t, func() {
		Convey("When it has one week populated", func() {
			raw := rawEntry(t, `{"id": "PH-1", "line": "Janssen", "week1": [{"rank": 1, "totalBirds": 10}], "week7": {"rank": 1}}`)
			entry, notes, err := scoring.NormalizeEntry("2024", raw, slots)

			Convey("Then every configured slot exists and the index is computed", func() {
				So(err, ShouldBeNil)
				So(entry.Season, ShouldEqual, "2024")
				So(entry.ID, ShouldEqual, "PH-1")
				So(entry.Line, ShouldEqual, "Janssen")
				So(len(entry.Weeks), ShouldEqual, 5)
				So(entry.Weeks["week2"], ShouldNotBeNil)
				So(entry.Weeks["week2"], ShouldBeEmpty)
				So(fixed(entry.Index), ShouldEqual, "0.10")
			})

			Convey("Then slots beyond the configured set are noted", func() {
				So(len(notes), ShouldEqual, 1)
				So(notes[0].Slot, ShouldEqual, "week7")
				So(notes[0].Reason, ShouldEqual, scoring.NoteSlotOutOfRange)
			})
		})

		Convey("When the identifier is missing", func() {
			_, _, err := scoring.NormalizeEntry("2024", rawEntry(t, `{"line": "x"}`), slots)
			So(errors.Is(err, scoring.ErrMissingIdentifier), ShouldBeTrue)
		})

		Convey("When a week is unparseable", func() {
			_, _, err := scoring.NormalizeEntry("2024", rawEntry(t, `{"id": "A", "week2": 17}`), slots)
			So(errors.Is(err, scoring.ErrUnparseableWeek), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "week2")
		})

		Convey("When the record could not be decoded", func() {
			_, _, err := scoring.NormalizeEntry("2024", model.RawEntry{ID: "A", Err: model.ErrNotAnObject}, slots)
			So(errors.Is(err, scoring.ErrMalformedEntry), ShouldBeTrue)
		})
	})
}

func cohortFixture() []model.Entry {
	return []model.Entry{
		{
			ID:    "A",
			Index: dec("0.15"),
			Weeks: map[string][]model.WeekRecord{
				"week1": {
					{FieldSize: i64(10), ParticipationFactor: dec("1")},
					{FieldSize: i64(20), ParticipationFactor: dec("1")},
				},
				"week2": {{ParticipationFactor: dec("1")}},
			},
		},
		{
			ID:    "B",
			Index: dec("0.25"),
			Weeks: map[string][]model.WeekRecord{
				"week1": {{FieldSize: i64(30), ParticipationFactor: dec("3")}},
			},
		},
	}
}

func TestCohort(t *testing.T) {
	Convey("Given a cohort", t, func() {
		Convey("When it is empty", func() {
			stats := scoring.Cohort(nil)

			Convey("Then it is marked empty with zero aggregates", func() {
				So(stats.Empty, ShouldBeTrue)
				So(stats.Size, ShouldEqual, 0)
				So(fixed(stats.AvgIndex), ShouldEqual, "0.00")
				So(fixed(stats.AvgParticipationFactor), ShouldEqual, "0.00")
				So(fixed(stats.AvgFieldSize), ShouldEqual, "0.00")
			})
		})

		Convey("When it has entries with differing record counts", func() {
			stats := scoring.Cohort(cohortFixture())

			Convey("Then averages are taken over the flattened records", func() {
				So(stats.Empty, ShouldBeFalse)
				So(stats.Size, ShouldEqual, 2)
				So(stats.Records, ShouldEqual, 4)
				So(fixed(stats.AvgIndex), ShouldEqual, "0.20")
				So(fixed(stats.AvgParticipationFactor), ShouldEqual, "1.50")
				So(fixed(stats.AvgFieldSize), ShouldEqual, "20.00")
			})
		})

		Convey("When computed twice or in another order", func() {
			entries := cohortFixture()
			first := scoring.Cohort(entries)
			second := scoring.Cohort(entries)
			reversed := scoring.Cohort([]model.Entry{entries[1], entries[0]})

			Convey("Then results are identical", func() {
				So(first.AvgIndex.Equal(second.AvgIndex), ShouldBeTrue)
				So(first.AvgParticipationFactor.String(), ShouldEqual, second.AvgParticipationFactor.String())
				So(first.AvgFieldSize.String(), ShouldEqual, reversed.AvgFieldSize.String())
				So(first.AvgIndex.String(), ShouldEqual, reversed.AvgIndex.String())
			})
		})
	})
}

func TestStanding(t *testing.T) {
	Convey("Given a calculator", t, func() {
		calc := scoring.NewCalculator()

		Convey("When an entry is below the cohort average", func() {
			stats := scoring.CohortStats{Size: 2, AvgIndex: dec("0.20"), AvgFieldSize: dec("10")}
			s := calc.Standing(dec("0.15"), stats)

			Convey("Then the deviation is positive", func() {
				So(fixed(s.Deviation), ShouldEqual, "0.05")
				So(s.Coefficient.StringFixed(4), ShouldEqual, "0.0050")
			})
		})

		Convey("When an entry is above the cohort average", func() {
			s := calc.Standing(dec("0.30"), scoring.CohortStats{Size: 2, AvgIndex: dec("0.20"), AvgFieldSize: dec("4")})
			So(fixed(s.Deviation), ShouldEqual, "-0.10")
			So(s.Coefficient.StringFixed(4), ShouldEqual, "-0.0250")
		})

		Convey("When the cohort has no field sizes", func() {
			stats := scoring.CohortStats{Size: 1, AvgIndex: dec("0.20")}

			Convey("Then the fallback scale is used", func() {
				So(calc.ReferenceScale(stats).String(), ShouldEqual, "1")
				s := calc.Standing(dec("0.10"), stats)
				So(s.Coefficient.StringFixed(4), ShouldEqual, "0.1000")
			})

			Convey("Then a configured fallback applies", func() {
				c := scoring.NewCalculator(scoring.WithFallbackReferenceScale(dec("4")), scoring.WithCoefficientPlaces(2))
				s := c.Standing(dec("0.10"), stats)
				So(s.Coefficient.StringFixed(2), ShouldEqual, "0.03")
				So(c.CoefficientPlaces(), ShouldEqual, int32(2))
			})

			Convey("Then a non-positive fallback is ignored", func() {
				c := scoring.NewCalculator(scoring.WithFallbackReferenceScale(decimal.Zero))
				So(c.ReferenceScale(stats).String(), ShouldEqual, "1")
			})
		})
	})
}

func TestAssess(t *testing.T) {
	Convey("Given a calculator", t, func() {
		calc := scoring.NewCalculator()

		Convey("When the cohort is empty", func() {
			stats, entries := calc.Assess(nil)
			So(stats.Empty, ShouldBeTrue)
			So(entries, ShouldBeEmpty)
		})

		Convey("When the cohort has entries", func() {
			in := cohortFixture()
			stats, out := calc.Assess(in)

			Convey("Then every entry carries a standing against the same aggregates", func() {
				So(fixed(stats.AvgIndex), ShouldEqual, "0.20")
				So(len(out), ShouldEqual, 2)
				So(out[0].ID, ShouldEqual, "A")
				So(fixed(out[0].Standing.Deviation), ShouldEqual, "0.05")
				So(fixed(out[1].Standing.Deviation), ShouldEqual, "-0.05")
			})

			Convey("Then the input entries are not modified", func() {
				So(in[0].Standing, ShouldBeNil)
				So(in[1].Standing, ShouldBeNil)
			})
		})
	})
}
