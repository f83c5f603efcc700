package repository

import (
	"time"

	"github.com/okian/loftrank/pkg/logger"
)

type options struct {
	metricsUpdateInterval time.Duration
	logger                logger.Logger
}

func defaultOptions() options {
	return options{metricsUpdateInterval: 5 * time.Second}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithLogger sets the logger used for background failures.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
