package seasonsim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/scoring"
	"github.com/okian/loftrank/pkg/logger"
)

// band is the share of the field a bird usually finishes within.
type band struct {
	name   string
	lo, hi float64
}

var bands = []band{
	{"elite", 0.01, 0.10},
	{"high", 0.05, 0.30},
	{"average", 0.20, 0.70},
	{"average", 0.20, 0.70},
	{"low", 0.50, 1.00},
}

var (
	factors  = []float64{1, 1.25, 1.5, 2}
	families = []string{"Janssen", "Van Loon", "Delbar", "Sion", "Meulemans", "Bricoux"}
)

type rawResult struct {
	Rank       int64   `json:"rank"`
	TotalBirds *int64  `json:"totalBirds,omitempty"`
	Points     float64 `json:"points"`
	F          float64 `json:"f"`
}

// Season is a generated batch and the index every entry should score.
type Season struct {
	Entries  []map[string]any
	Expected map[string]string
}

// Generate builds cfg.Entries synthetic entries. Weeks are sent as a single
// result object, a list, or left out, the way upstream exports mix them.
func Generate(ctx context.Context, cfg *Config) (*Season, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1))
	logger.Get().Info(ctx, "generating season",
		logger.String("season", cfg.Season),
		logger.Int("entries", cfg.Entries),
		logger.Int("weeks", cfg.Weeks),
		logger.Any("seed", seed))

	// one race per slot, shared by every entry
	fields := make([]int64, cfg.Weeks)
	for w := range fields {
		fields[w] = int64(minFieldSize + rng.IntN(fieldSizeSpread))
	}

	entries := make([]map[string]any, cfg.Entries)
	for i := range entries {
		entries[i] = generateEntry(rng, i, cfg.Season, fields)
	}

	expected, err := expectedIndexes(ctx, cfg, entries)
	if err != nil {
		return nil, err
	}
	return &Season{Entries: entries, Expected: expected}, nil
}

func generateEntry(rng *rand.Rand, i int, season string, fields []int64) map[string]any {
	b := bands[rng.IntN(len(bands))]
	e := map[string]any{
		"id":      fmt.Sprintf("%s-%05d", season, i+1),
		"line":    fmt.Sprintf("L%d", rng.IntN(12)+1),
		"family":  families[rng.IntN(len(families))],
		"sire":    fmt.Sprintf("S-%04d", rng.IntN(500)),
		"dam":     fmt.Sprintf("D-%04d", rng.IntN(500)),
		"remarks": b.name,
	}
	for w, field := range fields {
		if rng.Float64() > participateOdds {
			continue
		}
		slot := model.SlotName(w + 1)
		first := generateResult(rng, b, field)
		if rng.Float64() < doubleRaceOdds {
			e[slot] = []rawResult{first, generateResult(rng, b, field)}
			continue
		}
		e[slot] = first
	}
	return e
}

func generateResult(rng *rand.Rand, b band, field int64) rawResult {
	share := b.lo + rng.Float64()*(b.hi-b.lo)
	rank := max(int64(math.Ceil(share*float64(field))), 1)
	r := rawResult{
		Rank:   rank,
		Points: math.Round(float64(field-rank+1)*rng.Float64()*percentScale) / percentScale,
		F:      factors[rng.IntN(len(factors))],
	}
	if rng.Float64() >= missingFieldOdds {
		fs := field
		r.TotalBirds = &fs
	}
	return r
}

// expectedIndexes scores the generated entries locally through the same
// normalization the service runs on import.
func expectedIndexes(ctx context.Context, cfg *Config, entries []map[string]any) (map[string]string, error) {
	slots := model.SlotNames(cfg.Weeks)
	indexes := make([]string, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := json.Marshal(entries[i])
			if err != nil {
				return err
			}
			var raw model.RawEntry
			if err := json.Unmarshal(b, &raw); err != nil {
				return err
			}
			e, _, err := scoring.NormalizeEntry(cfg.Season, raw, slots)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			indexes[i] = e.Index.StringFixed(model.Places)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score generated season: %w", err)
	}

	expected := make(map[string]string, len(entries))
	for i, e := range entries {
		expected[e["id"].(string)] = indexes[i]
	}
	return expected, nil
}
