package model

import "errors"

// Sentinel kinds for raw record decoding.
var (
	ErrBatchShape        = errors.New("batch must be a JSON array or {\"data\": [...]}")
	ErrNotAnObject       = errors.New("raw entry is not a JSON object")
	ErrBadIdentifier     = errors.New("raw entry id must be a string or number")
	ErrUnparseableLegacy = errors.New("legacy week sections are malformed")
)
