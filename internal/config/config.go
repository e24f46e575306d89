// Package config holds the flat key/value configuration shared by the
// registry, the engines and the vertex program factory.
//
// Only the engine selector is interpreted here. Every other key is passed
// through unchanged to whoever consumes it.
package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/traverse/internal/traversal"
)

// Recognised keys.
const (
	// KeyEngine selects the execution engine: standard or computer.
	KeyEngine = "traversal.engine"

	// KeySource holds a CUE traversal source for the traversal vertex program.
	KeySource = "traversal.source"

	// KeyProgram names the vertex program built by the program factory.
	KeyProgram = "computer.program"

	// KeyMaxSupersteps caps the number of supersteps of a computer job.
	KeyMaxSupersteps = "computer.max_supersteps"

	// KeyWorkers is the number of partitions a computer job runs in parallel.
	KeyWorkers = "computer.workers"
)

// DefaultMaxSupersteps applies when KeyMaxSupersteps is unset.
const DefaultMaxSupersteps = 100

// EnvPrefix prefixes environment overrides: computer.max_supersteps is
// overridden by TRAVERSE_COMPUTER_MAX_SUPERSTEPS.
const EnvPrefix = "TRAVERSE"

// Config is a flat mapping of dotted keys to string values.
type Config map[string]string

// New builds a Config from alternating keys and values.
func New(kv ...string) Config {
	c := Config{}
	for i := 0; i+1 < len(kv); i += 2 {
		c[kv[i]] = kv[i+1]
	}
	return c
}

// Get returns the value of key.
func (c Config) Get(key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

// String returns the value of key, or def when unset.
func (c Config) String(key, def string) string {
	if v, ok := c[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value of key, or def when unset.
func (c Config) Int(key string, def int) (int, error) {
	v, ok := c[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return n, nil
}

// Engine returns the engine selected by traversal.engine. Unset means Standard.
func (c Config) Engine() (traversal.EngineKind, error) {
	return traversal.ParseEngineKind(c[KeyEngine])
}

// With returns a copy of c with key set to value.
func (c Config) With(key, value string) Config {
	cp := maps.Clone(c)
	if cp == nil {
		cp = Config{}
	}
	cp[key] = value
	return cp
}

// PassThrough returns every key the core does not interpret.
func (c Config) PassThrough() Config {
	out := Config{}
	for k, v := range c {
		if k != KeyEngine {
			out[k] = v
		}
	}
	return out
}

// Keys returns the keys in sorted order.
func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Load reads a YAML, TOML or JSON file (by extension) and applies
// environment overrides. Nested file sections flatten to dotted keys. An
// empty path loads environment overrides for the recognised keys only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for _, key := range []string{KeyEngine, KeySource, KeyProgram, KeyMaxSupersteps, KeyWorkers} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	c := Config{}
	for _, key := range v.AllKeys() {
		if v.IsSet(key) {
			c[key] = v.GetString(key)
		}
	}
	if _, err := c.Engine(); err != nil {
		return nil, err
	}
	return c, nil
}
