package layered

import (
	"errors"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Config is a configuration assembled from an ordered list of YAML files.
// Later files override earlier ones and nested mappings are merged key by key.
//
// Embed Config in a named struct to get a distinct singleton from Instance:
//
//	type AppConfig struct {
//		layered.Config
//	}
//
//	cfg, err := layered.Instance[AppConfig]("base.yaml", "prod.yaml")
type Config struct {
	// loadMu serializes Add and Reload from snapshot to commit. mu guards
	// the fields below it.
	loadMu sync.Mutex

	mu    sync.RWMutex
	opts  options
	files []string
	data  map[string]any
	memo  map[string]memoEntry
}

type memoEntry struct {
	value any
	found bool
}

// New loads and merges the given files in order. Unlike Instance the result
// is not cached anywhere.
func New(paths []string, opts ...Option) (*Config, error) {
	c := &Config{}
	if err := c.init(paths, opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) base() *Config {
	return c
}

// logger falls back to a no-op logger for a Config that was never
// initialised, such as a zero value embedded in another struct.
func (c *Config) logger() *zap.Logger {
	if c.opts.logger == nil {
		return zap.NewNop()
	}
	return c.opts.logger
}

func (c *Config) init(paths []string, opts []Option) error {
	if len(paths) == 0 {
		return ErrNoFiles
	}

	c.opts = newOptions(opts)
	data, err := c.loadAll(make(map[string]any), paths)
	if err != nil {
		return err
	}

	c.files = slices.Clone(paths)
	c.data = data
	c.memo = make(map[string]memoEntry)

	c.logger().Info("configuration loaded",
		zap.Strings("files", c.files),
		zap.Int("keys", len(data)),
	)
	return nil
}

// loadAll reads every path and merges the results onto base in order.
// base is modified in place.
func (c *Config) loadAll(base map[string]any, paths []string) (map[string]any, error) {
	merged := base
	for _, path := range paths {
		layer, err := loadFile(path)
		if err != nil {
			if c.opts.skipMissing && errors.Is(err, ErrFileNotFound) {
				c.logger().Warn("skipping missing configuration file", zap.String("path", path))
				continue
			}
			return nil, err
		}
		merged = mergeInto(merged, layer)
		c.logger().Debug("configuration file merged",
			zap.String("path", path),
			zap.Int("keys", len(layer)),
		)
	}
	return merged, nil
}

// Files returns the source paths in the order they were given, including
// duplicates and files skipped as missing.
func (c *Config) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.files)
}

// Add merges additional files on top of the current configuration.
// If any file fails to load the configuration is left unchanged.
func (c *Config) Add(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.RLock()
	base, _ := deepCopy(c.data).(map[string]any)
	c.mu.RUnlock()

	data, err := c.loadAll(base, paths)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.files = append(c.files, paths...)
	c.memo = make(map[string]memoEntry)

	c.logger().Info("configuration files added", zap.Strings("files", paths))
	return nil
}

// Reload re-reads every source file from scratch. On failure the previously
// merged values are kept and the error is returned.
func (c *Config) Reload() error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.RLock()
	paths := slices.Clone(c.files)
	c.mu.RUnlock()

	data, err := c.loadAll(make(map[string]any), paths)
	if err != nil {
		c.logger().Error("configuration reload failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.memo = make(map[string]memoEntry)

	c.logger().Info("configuration reloaded", zap.Strings("files", paths))
	return nil
}

// Clear drops memoized lookups. The source files and merged values are kept.
func (c *Config) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memo = make(map[string]memoEntry)
}

// All returns a deep copy of the merged configuration.
func (c *Config) All() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return map[string]any{}
	}
	return deepCopy(c.data).(map[string]any)
}

// Keys returns the sorted top-level keys.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.data))
	for key := range c.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
