package scoring

import "errors"

// Entry-level failures. Each causes the entry to be skipped during import;
// field-level problems are reported as Notes instead.
var (
	ErrUnparseableWeek   = errors.New("week value is neither an object, a list of objects, nor null")
	ErrMissingIdentifier = errors.New("entry has no identifier")
	ErrMalformedEntry    = errors.New("entry could not be decoded")
)
