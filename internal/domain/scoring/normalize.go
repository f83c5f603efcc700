package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/loftrank/internal/domain/model"
)

var nullLiteral = []byte("null")

// Bounds on numeric input. Larger literals are treated as malformed so one
// field cannot make decimal rescaling allocate without limit.
const (
	maxNumberLength = 40
	maxExponent     = 24
)

var maxCount = decimal.NewFromInt(math.MaxInt64)

// weekShape tags the upstream form of one week slot.
type weekShape int

const (
	shapeEmpty  weekShape = iota // missing or null
	shapeSingle                  // one result object
	shapeList                    // array of result objects
)

func classify(raw json.RawMessage) (weekShape, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return shapeEmpty, nil
	}
	switch trimmed[0] {
	case '{':
		return shapeSingle, nil
	case '[':
		return shapeList, nil
	}
	return shapeEmpty, fmt.Errorf("%w: expected object or array, got %s", ErrUnparseableWeek, preview(trimmed))
}

// flexNumber accepts a JSON number, a numeric string, or null. Anything else
// is remembered as malformed rather than failing the decode.
type flexNumber struct {
	value     decimal.Decimal
	present   bool
	malformed bool
	raw       string
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	if s == "" {
		return nil
	}
	n.present = true
	if len(s) > maxNumberLength {
		n.malformed = true
		n.raw = preview([]byte(s))
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.Exponent() > maxExponent || d.Exponent() < -maxExponent {
		n.malformed = true
		n.raw = s
		return nil
	}
	n.value = d
	return nil
}

// rawResult is one upstream race result. Upstream calls the field size
// totalBirds and the participation factor f; the long names are accepted
// too. Unknown keys (e.g. previously computed "week" or "upr") are ignored.
type rawResult struct {
	Rank                flexNumber `json:"rank"`
	TotalBirds          flexNumber `json:"totalBirds"`
	FieldSize           flexNumber `json:"fieldSize"`
	Points              flexNumber `json:"points"`
	F                   flexNumber `json:"f"`
	ParticipationFactor flexNumber `json:"participationFactor"`
}

func either(primary, alias flexNumber) flexNumber {
	if primary.present {
		return primary
	}
	return alias
}

// NormalizeWeek converts one raw week slot into canonical records. A single
// object is treated as a one-element list; null or missing yields no records.
// Only a structurally unusable value is an error.
func NormalizeWeek(slot string, raw json.RawMessage) ([]model.WeekRecord, []Note, error) {
	shape, err := classify(raw)
	if err != nil {
		return nil, nil, err
	}

	var items []json.RawMessage
	switch shape {
	case shapeEmpty:
		return nil, nil, nil
	case shapeSingle:
		items = []json.RawMessage{raw}
	case shapeList:
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnparseableWeek, err)
		}
	}

	records := make([]model.WeekRecord, 0, len(items))
	var notes []Note
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if bytes.Equal(trimmed, nullLiteral) {
			continue
		}
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, nil, fmt.Errorf("%w: list element is not an object: %s", ErrUnparseableWeek, preview(trimmed))
		}
		var r rawResult
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnparseableWeek, err)
		}
		records = append(records, normalizeResult(slot, r, &notes))
	}
	return records, notes, nil
}

func normalizeResult(slot string, r rawResult, notes *[]Note) model.WeekRecord {
	rec := model.WeekRecord{
		Rank:                count(slot, "rank", r.Rank, NoteMissingRank, NoteInvalidRank, notes),
		FieldSize:           count(slot, "totalBirds", either(r.TotalBirds, r.FieldSize), NoteMissingFieldSize, NoteInvalidFieldSize, notes),
		Points:              amount(slot, "points", r.Points, NoteMalformedPoints, notes),
		ParticipationFactor: amount(slot, "f", either(r.F, r.ParticipationFactor), NoteMalformedFactor, notes),
	}
	if rec.Rank != nil && rec.FieldSize != nil && *rec.Rank > *rec.FieldSize {
		*notes = append(*notes, Note{Slot: slot, Reason: NoteRankAboveField,
			Detail: fmt.Sprintf("rank %d > totalBirds %d", *rec.Rank, *rec.FieldSize)})
	}
	rec.Ratio = Ratio(rec.Rank, rec.FieldSize)
	rec.WeightedPoints = rec.Points.Mul(rec.ParticipationFactor).Round(model.Places)
	return rec
}

// count resolves a positive integer field that fits in int64; anything else
// becomes absent.
func count(slot, field string, n flexNumber, missing, invalid NoteReason, notes *[]Note) *int64 {
	if !n.present {
		*notes = append(*notes, Note{Slot: slot, Reason: missing})
		return nil
	}
	if n.malformed || !n.value.IsInteger() || n.value.Sign() <= 0 || n.value.GreaterThan(maxCount) {
		detail := n.raw
		if detail == "" {
			detail = n.value.String()
		}
		*notes = append(*notes, Note{Slot: slot, Reason: invalid, Detail: field + "=" + detail})
		return nil
	}
	v := n.value.IntPart()
	return &v
}

// amount resolves a decimal field; missing defaults to zero silently,
// malformed defaults to zero with a note.
func amount(slot, field string, n flexNumber, malformed NoteReason, notes *[]Note) decimal.Decimal {
	if n.malformed {
		*notes = append(*notes, Note{Slot: slot, Reason: malformed, Detail: field + "=" + n.raw})
		return decimal.Zero
	}
	if !n.present {
		return decimal.Zero
	}
	return n.value.Round(model.Places)
}

// Ratio is rank/fieldSize to two places, or 0.00 when either is absent.
func Ratio(rank, fieldSize *int64) decimal.Decimal {
	if rank == nil || fieldSize == nil || *fieldSize <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(*rank).Div(decimal.NewFromInt(*fieldSize)).Round(model.Places)
}

// NormalizeEntry normalizes every configured slot of a raw entry and computes
// its index. Slots the raw entry sends beyond the configured set are ignored
// with a note.
func NormalizeEntry(season string, raw model.RawEntry, slots []string) (model.Entry, []Note, error) {
	if raw.Err != nil {
		return model.Entry{}, nil, fmt.Errorf("%w: %v", ErrMalformedEntry, raw.Err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return model.Entry{}, nil, ErrMissingIdentifier
	}

	entry := model.Entry{
		Season:  season,
		ID:      raw.ID,
		Line:    raw.Line,
		Family:  raw.Family,
		Sire:    raw.Sire,
		Dam:     raw.Dam,
		Remarks: raw.Remarks,
		Weeks:   make(map[string][]model.WeekRecord, len(slots)),
	}

	var notes []Note
	configured := make(map[string]bool, len(slots))
	for _, slot := range slots {
		configured[slot] = true
		recs, n, err := NormalizeWeek(slot, raw.Weeks[slot])
		if err != nil {
			return model.Entry{}, nil, fmt.Errorf("%s: %w", slot, err)
		}
		if recs == nil {
			recs = []model.WeekRecord{}
		}
		entry.Weeks[slot] = recs
		notes = append(notes, n...)
	}

	var extra []string
	for slot := range raw.Weeks {
		if !configured[slot] {
			extra = append(extra, slot)
		}
	}
	sort.Strings(extra)
	for _, slot := range extra {
		notes = append(notes, Note{Slot: slot, Reason: NoteSlotOutOfRange})
	}

	entry.Index = Index(entry.Weeks)
	return entry, notes, nil
}

func preview(b []byte) string {
	const maxPreview = 32
	if len(b) > maxPreview {
		return string(b[:maxPreview]) + "..."
	}
	return string(b)
}
