package layered

import "go.uber.org/zap"

const defaultKeySeparator = "."

// Option configures how a Config loads and resolves values.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	skipMissing bool
	expandEnv   bool
	separator   string
}

func newOptions(opts []Option) options {
	o := options{
		logger:    zap.NewNop(),
		separator: defaultKeySeparator,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for load and reload events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSkipMissing makes missing files a warning instead of an error.
// Skipped files are still reported by Files.
func WithSkipMissing() Option {
	return func(o *options) {
		o.skipMissing = true
	}
}

// WithExpandEnv expands $VAR and ${VAR} references in string values
// returned by lookups.
func WithExpandEnv() Option {
	return func(o *options) {
		o.expandEnv = true
	}
}

// WithKeySeparator overrides the "." separator used in key paths.
func WithKeySeparator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.separator = sep
		}
	}
}
