package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var slotKey = regexp.MustCompile(`^week([1-9][0-9]*)$`)

// IsSlotKey reports whether key names a week slot (week1, week2, ...).
func IsSlotKey(key string) bool { return slotKey.MatchString(key) }

// Legacy section keys: rank data and points data were exported separately.
const (
	legacyRankSection   = "sdfa_coefficient"
	legacyPointsSection = "sdfa_points"
)

// RawEntry is one upstream record before normalization. Week values are kept
// raw because upstream sends either a single result object or a list.
type RawEntry struct {
	ID      string
	Line    string
	Family  string
	Sire    string
	Dam     string
	Remarks string
	Weeks   map[string]json.RawMessage

	// Err is set by ParseRawBatch when the record could not be decoded at all.
	Err error
}

// UnmarshalJSON accepts {id, line, family, sire, dam, remarks, week1..weekN}
// and the legacy export that splits weeks into sdfa_coefficient/sdfa_points.
func (r *RawEntry) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}
	if fields == nil {
		return ErrNotAnObject
	}

	if raw, ok := fields["id"]; ok {
		id, err := scalarString(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadIdentifier, err)
		}
		r.ID = strings.TrimSpace(id)
	}
	for key, dst := range map[string]*string{
		"line":    &r.Line,
		"family":  &r.Family,
		"sire":    &r.Sire,
		"dam":     &r.Dam,
		"remarks": &r.Remarks,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		s, err := scalarString(raw)
		if err != nil {
			// lineage is opaque text; keep whatever was sent
			s = string(bytes.TrimSpace(raw))
		}
		*dst = s
	}

	r.Weeks = make(map[string]json.RawMessage)
	for key, raw := range fields {
		if IsSlotKey(key) {
			r.Weeks[key] = raw
		}
	}
	return mergeLegacy(r.Weeks, fields[legacyRankSection], fields[legacyPointsSection])
}

// mergeLegacy folds the legacy per-section week objects into slot objects.
// Slots sent directly as weekN win over legacy sections.
func mergeLegacy(weeks map[string]json.RawMessage, sections ...json.RawMessage) error {
	merged := make(map[string]map[string]json.RawMessage)
	for _, sec := range sections {
		if isNull(sec) {
			continue
		}
		items, err := objectList(sec)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnparseableLegacy, err)
		}
		for _, item := range items {
			for slot, val := range item {
				if !IsSlotKey(slot) {
					continue
				}
				var obj map[string]json.RawMessage
				if err := json.Unmarshal(val, &obj); err != nil || obj == nil {
					return fmt.Errorf("%w: %s is not an object", ErrUnparseableLegacy, slot)
				}
				if merged[slot] == nil {
					merged[slot] = make(map[string]json.RawMessage, len(obj))
				}
				for k, v := range obj {
					merged[slot][k] = v
				}
			}
		}
	}
	for slot, obj := range merged {
		if _, direct := weeks[slot]; direct {
			continue
		}
		b, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnparseableLegacy, err)
		}
		weeks[slot] = b
	}
	return nil
}

// objectList accepts an array of objects or a single object.
func objectList(raw json.RawMessage) ([]map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		return []map[string]json.RawMessage{one}, nil
	}
	var many []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// ParseRawBatch decodes a batch body: either a JSON array of raw entries or
// the export file shape {"data": [...]}. Only a malformed envelope is an
// error; a record that cannot be decoded is returned with Err set so the
// import can skip it and continue.
func ParseRawBatch(data []byte) ([]RawEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrBatchShape)
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBatchShape, err)
		}
	case '{':
		var envelope struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBatchShape, err)
		}
		if envelope.Data == nil {
			return nil, fmt.Errorf("%w: missing \"data\" array", ErrBatchShape)
		}
		items = envelope.Data
	default:
		return nil, fmt.Errorf("%w: expected array or object", ErrBatchShape)
	}

	out := make([]RawEntry, len(items))
	for i, item := range items {
		var r RawEntry
		if err := json.Unmarshal(item, &r); err != nil {
			out[i] = RawEntry{ID: bestEffortID(item), Err: err}
			continue
		}
		out[i] = r
	}
	return out, nil
}

func bestEffortID(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	id, err := scalarString(fields["id"])
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

// scalarString renders a JSON string or number as text; null is "".
func scalarString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if isNull(trimmed) {
		return "", nil
	}
	switch c := trimmed[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("expected string or number, got %s", trimmed)
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
