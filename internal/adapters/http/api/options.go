package api

// defaultMaxBodyBytes bounds import request bodies (32 MiB).
const defaultMaxBodyBytes int64 = 32 << 20

type options struct {
	maxBodyBytes int64
}

func defaultOptions() options {
	return options{maxBodyBytes: defaultMaxBodyBytes}
}

// Option configures the API server.
type Option func(*options)

// WithMaxBodyBytes caps the size of import request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}
