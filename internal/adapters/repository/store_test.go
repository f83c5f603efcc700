package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/okian/loftrank/internal/domain/model"
)

func int64p(v int64) *int64 { return &v }

func sampleEntry(season, id, index string) model.Entry {
	return model.Entry{
		Season: season,
		ID:     id,
		Line:   "Janssen",
		Sire:   "S-" + id,
		Weeks: map[string][]model.WeekRecord{
			"week1": {{
				Rank:                int64p(1),
				FieldSize:           int64p(10),
				Points:              decimal.RequireFromString("12.50"),
				ParticipationFactor: decimal.NewFromInt(1),
				Ratio:               decimal.RequireFromString("0.10"),
				WeightedPoints:      decimal.RequireFromString("12.50"),
			}},
			"week2": {},
		},
		Index: decimal.RequireFromString(index),
	}
}

// storeFactories returns one fresh store per implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore(context.Background()) },
		"sqlite": func() Store {
			name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
			dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
			s, err := Open(context.Background(), DriverSQLite, dsn)
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return s
		},
	}
}

func TestStore_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			for _, id := range []string{"B", "A", "C"} {
				if _, err := store.Upsert(ctx, sampleEntry("2024", id, "0.10")); err != nil {
					t.Fatalf("upsert %s: %v", id, err)
				}
			}
			if _, err := store.Upsert(ctx, sampleEntry("2023", "A", "0.50")); err != nil {
				t.Fatalf("upsert other season: %v", err)
			}

			entries, err := store.ListAll(ctx, "2024")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 3 {
				t.Fatalf("expected 3 entries, got %d", len(entries))
			}
			for i, want := range []string{"A", "B", "C"} {
				if entries[i].ID != want {
					t.Errorf("entry %d: expected id %s, got %s", i, want, entries[i].ID)
				}
			}

			got := entries[0]
			if got.Line != "Janssen" || got.Sire != "S-A" {
				t.Errorf("lineage not round-tripped: %+v", got)
			}
			if got.Index.StringFixed(2) != "0.10" {
				t.Errorf("expected index 0.10, got %s", got.Index.StringFixed(2))
			}
			recs := got.Weeks["week1"]
			if len(recs) != 1 || *recs[0].Rank != 1 || *recs[0].FieldSize != 10 {
				t.Errorf("week1 not round-tripped: %+v", recs)
			}
			if recs[0].Points.StringFixed(2) != "12.50" {
				t.Errorf("expected points 12.50, got %s", recs[0].Points.StringFixed(2))
			}
			if len(got.Weeks["week2"]) != 0 {
				t.Errorf("expected empty week2, got %+v", got.Weeks["week2"])
			}

			if n := store.Count(ctx); n != 4 {
				t.Errorf("expected count 4, got %d", n)
			}
		})
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			first := sampleEntry("2024", "A", "0.10")
			first.Remarks = "first"
			if _, err := store.Upsert(ctx, first); err != nil {
				t.Fatalf("upsert: %v", err)
			}

			second := sampleEntry("2024", "A", "0.40")
			second.Line = ""
			second.Weeks = map[string][]model.WeekRecord{"week1": {}, "week2": {}}
			if _, err := store.Upsert(ctx, second); err != nil {
				t.Fatalf("upsert again: %v", err)
			}

			entries, err := store.ListAll(ctx, "2024")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			got := entries[0]
			if got.Remarks != "" || got.Line != "" {
				t.Errorf("expected full replace, got remarks=%q line=%q", got.Remarks, got.Line)
			}
			if got.Index.StringFixed(2) != "0.40" {
				t.Errorf("expected index 0.40, got %s", got.Index.StringFixed(2))
			}
			if model.PopulatedSlots(got.Weeks) != 0 {
				t.Errorf("expected no populated slots, got %d", model.PopulatedSlots(got.Weeks))
			}
		})
	}
}

func TestStore_Standings(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			for _, id := range []string{"A", "B"} {
				if _, err := store.Upsert(ctx, sampleEntry("2024", id, "0.10")); err != nil {
					t.Fatalf("upsert: %v", err)
				}
			}

			gen, err := store.Generation(ctx, "2024")
			if err != nil {
				t.Fatalf("generation: %v", err)
			}
			err = store.SaveStandings(ctx, "2024", gen, map[string]model.Standing{
				"A":       {Deviation: decimal.RequireFromString("0.05"), Coefficient: decimal.RequireFromString("0.005")},
				"missing": {Deviation: decimal.NewFromInt(1)},
			})
			if err != nil {
				t.Fatalf("save standings: %v", err)
			}

			entries, _ := store.ListAll(ctx, "2024")
			if entries[0].Standing == nil || entries[0].Standing.Deviation.StringFixed(2) != "0.05" {
				t.Fatalf("expected cached standing on A, got %+v", entries[0].Standing)
			}
			if entries[1].Standing != nil {
				t.Errorf("expected no standing on B, got %+v", entries[1].Standing)
			}

			if err := store.InvalidateStandings(ctx, "2024"); err != nil {
				t.Fatalf("invalidate: %v", err)
			}
			entries, _ = store.ListAll(ctx, "2024")
			for _, e := range entries {
				if e.Standing != nil {
					t.Errorf("expected standing cleared on %s", e.ID)
				}
			}

			// standings computed before the invalidation are refused
			err = store.SaveStandings(ctx, "2024", gen, map[string]model.Standing{"A": {Deviation: decimal.NewFromInt(1)}})
			if !errors.Is(err, ErrStaleStandings) {
				t.Fatalf("expected ErrStaleStandings, got %v", err)
			}
			entries, _ = store.ListAll(ctx, "2024")
			if entries[0].Standing != nil {
				t.Errorf("expected stale write to leave A uncached")
			}

			// an upsert also drops the cached standing of the replaced row
			next, err := store.Generation(ctx, "2024")
			if err != nil {
				t.Fatalf("generation: %v", err)
			}
			if next != gen+1 {
				t.Errorf("expected generation %d, got %d", gen+1, next)
			}
			if err := store.SaveStandings(ctx, "2024", next, map[string]model.Standing{"A": {Deviation: decimal.NewFromInt(1)}}); err != nil {
				t.Fatalf("save standings: %v", err)
			}
			if _, err := store.Upsert(ctx, sampleEntry("2024", "A", "0.20")); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			entries, _ = store.ListAll(ctx, "2024")
			if entries[0].Standing != nil {
				t.Errorf("expected upsert to drop cached standing")
			}
		})
	}
}

func TestStore_InvalidEntry(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			if _, err := store.Upsert(ctx, model.Entry{Season: "2024"}); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("expected ErrInvalidEntry, got %v", err)
			}
			entries, err := store.ListAll(ctx, "empty")
			if err != nil || len(entries) != 0 {
				t.Errorf("expected empty season, got %d entries err=%v", len(entries), err)
			}
		})
	}
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx)
	defer store.Close()

	e := sampleEntry("2024", "A", "0.10")
	if _, err := store.Upsert(ctx, e); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e.Weeks["week1"][0].Ratio = decimal.NewFromInt(9)

	entries, _ := store.ListAll(ctx, "2024")
	if entries[0].Weeks["week1"][0].Ratio.StringFixed(2) != "0.10" {
		t.Errorf("store shares week slices with the caller")
	}
	entries[0].Line = "changed"
	again, _ := store.ListAll(ctx, "2024")
	if again[0].Line != "Janssen" {
		t.Errorf("store shares entries with readers")
	}
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", "")
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected memory store by default, got %T", s)
	}
	_ = s.Close()

	if _, err := Open(ctx, "mongo", ""); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
	if _, err := Open(ctx, DriverPostgres, ""); !errors.Is(err, ErrMissingDSN) {
		t.Errorf("expected ErrMissingDSN, got %v", err)
	}
}
