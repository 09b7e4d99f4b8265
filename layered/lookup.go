package layered

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Get resolves a key path such as "server.tls.cert" or "servers.0.host".
// Path segments descend into mappings by key and into sequences by index.
// The empty key returns the whole configuration.
//
// Results are memoized until Clear, Add or Reload is called. The returned
// value is a copy and may be modified freely.
func (c *Config) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, hit := c.memo[key]
	c.mu.RUnlock()
	if hit {
		return deepCopy(entry.value), entry.found
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, hit := c.memo[key]; hit {
		return deepCopy(entry.value), entry.found
	}

	value, found := resolve(c.data, c.splitKey(key))
	if found && c.opts.expandEnv {
		value = expandEnv(value)
	}
	if c.memo == nil {
		c.memo = make(map[string]memoEntry)
	}
	c.memo[key] = memoEntry{value: value, found: found}
	return deepCopy(value), found
}

// Has reports whether the key path resolves to a value.
func (c *Config) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// String returns the value at key formatted as a string. Mappings and
// sequences are not converted.
func (c *Config) String(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok || KindOf(v) != KindScalar {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Int returns the value at key as an int.
func (c *Config) Int(key string) (int, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		if t < math.MinInt || t > math.MaxInt {
			return 0, false
		}
		return int(t), true
	case uint64:
		if t > math.MaxInt {
			return 0, false
		}
		return int(t), true
	case float64:
		if t != math.Trunc(t) || t < math.MinInt || t > math.MaxInt {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

// Float64 returns the value at key as a float64.
func (c *Config) Float64(key string) (float64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the value at key as a bool.
func (c *Config) Bool(key string) (bool, bool) {
	v, ok := c.Get(key)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	default:
		return false, false
	}
}

// Duration parses the string value at key with time.ParseDuration.
func (c *Config) Duration(key string) (time.Duration, bool) {
	s, ok := c.String(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	return d, err == nil
}

// StringSlice returns a sequence of scalars as strings.
func (c *Config) StringSlice(key string) ([]string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	seq, ok := v.([]any)
	if !ok {
		return nil, false
	}

	out := make([]string, 0, len(seq))
	for _, item := range seq {
		if KindOf(item) != KindScalar {
			return nil, false
		}
		out = append(out, fmt.Sprint(item))
	}
	return out, true
}

// Decode decodes the subtree at key into out using YAML struct tags.
func (c *Config) Decode(key string, out any) error {
	v, ok := c.Get(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

func (c *Config) splitKey(key string) []string {
	if key == "" {
		return nil
	}
	sep := c.opts.separator
	if sep == "" {
		sep = defaultKeySeparator
	}
	return strings.Split(key, sep)
}

func resolve(data map[string]any, path []string) (any, bool) {
	var cur any = data
	if data == nil {
		cur = map[string]any{}
	}
	for _, segment := range path {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// expandEnv returns a copy of v with environment references expanded in
// every string leaf.
func expandEnv(v any) any {
	switch t := v.(type) {
	case string:
		return os.ExpandEnv(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = expandEnv(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = expandEnv(val)
		}
		return out
	default:
		return v
	}
}
