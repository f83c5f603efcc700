package seasonsim

import "time"

// Retry and polling constants.
const (
	maxRetries       = 5
	retryBaseDelay   = 100 * time.Millisecond
	jobPollInterval  = 50 * time.Millisecond
	directoryPerm    = 0750
	filePerm         = 0600
	percentScale     = 100
	minFieldSize     = 20
	fieldSizeSpread  = 380
	participateOdds  = 0.85
	doubleRaceOdds   = 0.2
	missingFieldOdds = 0.03
)
