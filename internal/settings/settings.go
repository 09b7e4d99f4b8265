package settings

import (
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"

	"github.com/eugenenazirov/layered-config/layered"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LAYEREDCONFIG_"

// Settings aggregates tool settings resolved from multiple sources.
type Settings struct {
	LogLevel             string
	Port                 string
	Separator            string
	SkipMissing          bool
	ExpandEnv            bool
	Watch                bool
	WatchDebounce        time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
}

// Overrides is a single settings layer. Nil fields are left to lower layers,
// which lets an explicit false or zero win over a lower layer's value.
type Overrides struct {
	LogLevel             *string        `env:"LOG_LEVEL" yaml:"log_level"`
	Port                 *string        `env:"PORT" yaml:"port"`
	Separator            *string        `env:"SEPARATOR" yaml:"separator"`
	SkipMissing          *bool          `env:"SKIP_MISSING" yaml:"skip_missing"`
	ExpandEnv            *bool          `env:"EXPAND_ENV" yaml:"expand_env"`
	Watch                *bool          `env:"WATCH" yaml:"watch"`
	WatchDebounce        *time.Duration `env:"WATCH_DEBOUNCE" yaml:"watch_debounce"`
	EnableRequestLogging *bool          `env:"REQUEST_LOGGING" yaml:"enable_request_logging"`
	RateLimitRPS         *float64       `env:"RATE_LIMIT_RPS" yaml:"rate_limit_rps"`
	RateLimitBurst       *int           `env:"RATE_LIMIT_BURST" yaml:"rate_limit_burst"`
	ShutdownGracePeriod  *time.Duration `env:"SHUTDOWN_GRACE_PERIOD" yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    *time.Duration `env:"READ_HEADER_TIMEOUT" yaml:"read_header_timeout"`
	WriteTimeout         *time.Duration `env:"WRITE_TIMEOUT" yaml:"write_timeout"`
	IdleTimeout          *time.Duration `env:"IDLE_TIMEOUT" yaml:"idle_timeout"`
}

// Load resolves settings with precedence: flags > settings files >
// environment > defaults. flags may be nil. Settings files are themselves
// layered, later files overriding earlier ones.
func Load(flags *Overrides, files ...string) (Settings, error) {
	fileLayer, err := fromFiles(files)
	if err != nil {
		return Settings{}, err
	}

	envLayer, err := fromEnv()
	if err != nil {
		return Settings{}, err
	}

	var merged Overrides
	for _, layer := range []*Overrides{flags, fileLayer, envLayer, defaults()} {
		if layer == nil {
			continue
		}
		// Higher layers are merged first; mergo only fills fields that are
		// still nil.
		if err := mergo.Merge(&merged, layer, mergo.WithoutDereference); err != nil {
			return Settings{}, fmt.Errorf("merge settings: %w", err)
		}
	}

	s := merged.resolve()
	if err := validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// defaults returns the lowest-precedence layer; every field is set.
func defaults() *Overrides {
	return &Overrides{
		LogLevel:             ptr("info"),
		Port:                 ptr("8080"),
		Separator:            ptr("."),
		SkipMissing:          ptr(false),
		ExpandEnv:            ptr(false),
		Watch:                ptr(false),
		WatchDebounce:        ptr(250 * time.Millisecond),
		EnableRequestLogging: ptr(true),
		RateLimitRPS:         ptr(25.0),
		RateLimitBurst:       ptr(50),
		ShutdownGracePeriod:  ptr(10 * time.Second),
		ReadHeaderTimeout:    ptr(5 * time.Second),
		WriteTimeout:         ptr(15 * time.Second),
		IdleTimeout:          ptr(60 * time.Second),
	}
}

// fromFiles merges the given YAML settings files. It returns nil when no
// file is given.
func fromFiles(paths []string) (*Overrides, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	cfg, err := layered.New(paths)
	if err != nil {
		return nil, fmt.Errorf("load settings files: %w", err)
	}

	var o Overrides
	if err := cfg.Decode("", &o); err != nil {
		return nil, fmt.Errorf("decode settings files: %w", err)
	}
	return &o, nil
}

// fromEnv reads the LAYEREDCONFIG_* environment variables.
func fromEnv() (*Overrides, error) {
	var o Overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &o, nil
}

func (o Overrides) resolve() Settings {
	return Settings{
		LogLevel:             deref(o.LogLevel),
		Port:                 deref(o.Port),
		Separator:            deref(o.Separator),
		SkipMissing:          deref(o.SkipMissing),
		ExpandEnv:            deref(o.ExpandEnv),
		Watch:                deref(o.Watch),
		WatchDebounce:        deref(o.WatchDebounce),
		EnableRequestLogging: deref(o.EnableRequestLogging),
		RateLimitRPS:         deref(o.RateLimitRPS),
		RateLimitBurst:       deref(o.RateLimitBurst),
		ShutdownGracePeriod:  deref(o.ShutdownGracePeriod),
		ReadHeaderTimeout:    deref(o.ReadHeaderTimeout),
		WriteTimeout:         deref(o.WriteTimeout),
		IdleTimeout:          deref(o.IdleTimeout),
	}
}

// validate validates the final settings.
func validate(s Settings) error {
	if s.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if s.Separator == "" {
		return fmt.Errorf("key separator cannot be empty")
	}
	if s.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit rps must be >= 0")
	}
	if s.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit burst must be >= 0")
	}
	if s.WatchDebounce <= 0 {
		return fmt.Errorf("watch debounce must be positive")
	}
	if s.ShutdownGracePeriod < 0 {
		return fmt.Errorf("shutdown grace period must be >= 0")
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
