package main

import (
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/eugenenazirov/layered-config/internal/settings"
)

// flagLayer captures global flags. Only flags given on the command line end
// up in the settings overrides, so environment values still apply otherwise.
type flagLayer struct {
	logLevel       string
	port           string
	separator      string
	skipMissing    bool
	expandEnv      bool
	watch          bool
	watchDebounce  time.Duration
	requestLogging bool
	rateLimitRPS   float64
	rateLimitBurst int
	settingsFiles  []string

	set map[string]*bool
}

func bindFlags(app *kingpin.Application) *flagLayer {
	f := &flagLayer{set: make(map[string]*bool)}
	flag := func(name, help string) *kingpin.FlagClause {
		isSet := new(bool)
		f.set[name] = isSet
		return app.Flag(name, help).IsSetByUser(isSet)
	}

	flag("log-level", "Log level: debug, info, warn or error").StringVar(&f.logLevel)
	flag("port", "HTTP port used by serve").StringVar(&f.port)
	flag("separator", "Separator between key path segments").StringVar(&f.separator)
	flag("skip-missing", "Skip missing files with a warning instead of failing").BoolVar(&f.skipMissing)
	flag("expand-env", "Expand $VAR references in string values").BoolVar(&f.expandEnv)
	flag("watch", "Reload configuration when files change (serve only)").BoolVar(&f.watch)
	flag("watch-debounce", "Quiet period before a watched change is reloaded").DurationVar(&f.watchDebounce)
	flag("request-logging", "Log every HTTP request (serve only)").BoolVar(&f.requestLogging)
	flag("rate-limit-rps", "Requests per second allowed per client (set 0 to disable)").Float64Var(&f.rateLimitRPS)
	flag("rate-limit-burst", "Burst capacity per client (set 0 to disable)").IntVar(&f.rateLimitBurst)
	flag("config", "YAML settings file for this tool, repeatable; later files win").StringsVar(&f.settingsFiles)

	return f
}

func (f *flagLayer) isSet(name string) bool {
	isSet, ok := f.set[name]
	return ok && *isSet
}

func (f *flagLayer) overrides() *settings.Overrides {
	o := &settings.Overrides{}
	if f.isSet("log-level") {
		o.LogLevel = &f.logLevel
	}
	if f.isSet("port") {
		o.Port = &f.port
	}
	if f.isSet("separator") {
		o.Separator = &f.separator
	}
	if f.isSet("skip-missing") {
		o.SkipMissing = &f.skipMissing
	}
	if f.isSet("expand-env") {
		o.ExpandEnv = &f.expandEnv
	}
	if f.isSet("watch") {
		o.Watch = &f.watch
	}
	if f.isSet("watch-debounce") {
		o.WatchDebounce = &f.watchDebounce
	}
	if f.isSet("request-logging") {
		o.EnableRequestLogging = &f.requestLogging
	}
	if f.isSet("rate-limit-rps") {
		o.RateLimitRPS = &f.rateLimitRPS
	}
	if f.isSet("rate-limit-burst") {
		o.RateLimitBurst = &f.rateLimitBurst
	}
	return o
}
