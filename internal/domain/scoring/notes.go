package scoring

// NoteReason classifies a data-quality observation.
type NoteReason string

// Data-quality reasons. None of them stop an entry from being imported.
const (
	NoteMissingRank      NoteReason = "missing_rank"
	NoteMissingFieldSize NoteReason = "missing_field_size"
	NoteInvalidRank      NoteReason = "invalid_rank"
	NoteInvalidFieldSize NoteReason = "invalid_field_size"
	NoteRankAboveField   NoteReason = "rank_above_field_size"
	NoteMalformedPoints  NoteReason = "malformed_points"
	NoteMalformedFactor  NoteReason = "malformed_f"
	NoteSlotOutOfRange   NoteReason = "slot_out_of_range"
)

// Note is a data-quality observation made while normalizing a week.
type Note struct {
	Slot   string     `json:"slot"`
	Reason NoteReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}
