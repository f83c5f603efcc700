// Package types contains the request and response shapes shared by the
// service, the HTTP API and the CLI.
package types

import (
	"time"

	"github.com/okian/loftrank/internal/domain/model"
)

// ImportError names an entry that was skipped and why.
type ImportError struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// ImportNote is a data-quality observation on an imported entry.
type ImportNote struct {
	Identifier string `json:"identifier"`
	Slot       string `json:"slot"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// ImportResult summarizes one batch import.
type ImportResult struct {
	Season        string        `json:"season"`
	ImportedCount int           `json:"importedCount"`
	SkippedCount  int           `json:"skippedCount"`
	Errors        []ImportError `json:"errors"`
	Notes         []ImportNote  `json:"notes"`
}

// ReportEntry is one entry of a season report. Deviation and coefficient
// are null when the entry was not assessed against a cohort.
type ReportEntry struct {
	ID          string                        `json:"id"`
	Line        string                        `json:"line"`
	Family      string                        `json:"family"`
	Sire        string                        `json:"sire"`
	Dam         string                        `json:"dam"`
	Remarks     string                        `json:"remarks"`
	Index       string                        `json:"index"`
	Deviation   *string                       `json:"deviation"`
	Coefficient *string                       `json:"coefficient"`
	Weeks       map[string][]model.WeekRecord `json:"weeks"`
}

// SeasonReport is the cohort aggregates plus every assessed entry.
type SeasonReport struct {
	Season                 string        `json:"season"`
	AvgIndex               string        `json:"avgIndex"`
	AvgParticipationFactor string        `json:"avgParticipationFactor"`
	AvgFieldSize           string        `json:"avgFieldSize"`
	ReferenceScale         string        `json:"referenceScale"`
	EntryCount             int           `json:"entryCount"`
	Empty                  bool          `json:"empty"`
	Entries                []ReportEntry `json:"entries"`
}

// NewReportEntry renders an entry with two-place amounts and the
// coefficient at the given precision.
func NewReportEntry(e model.Entry, coefficientPlaces int32) ReportEntry {
	out := ReportEntry{
		ID:      e.ID,
		Line:    e.Line,
		Family:  e.Family,
		Sire:    e.Sire,
		Dam:     e.Dam,
		Remarks: e.Remarks,
		Index:   e.Index.StringFixed(model.Places),
		Weeks:   e.Weeks,
	}
	if e.Standing != nil {
		dev := e.Standing.Deviation.StringFixed(model.Places)
		coef := e.Standing.Coefficient.StringFixed(coefficientPlaces)
		out.Deviation = &dev
		out.Coefficient = &coef
	}
	return out
}

// JobStatus is the lifecycle state of an asynchronous import.
type JobStatus string

// Job states.
const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether the job will not change again.
func (s JobStatus) Terminal() bool { return s == JobDone || s == JobFailed }

// Job is an asynchronous import as seen by clients.
type Job struct {
	ID         string        `json:"id"`
	Season     string        `json:"season"`
	RequestID  string        `json:"requestId,omitempty"`
	Status     JobStatus     `json:"status"`
	EntryCount int           `json:"entryCount"`
	Result     *ImportResult `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}
