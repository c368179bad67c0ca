package eventbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// BusConfig is the typed configuration surface for NewBus.
type BusConfig struct {
	// MatchPolicy selects which tiers Publish consults when resolving
	// handlers for a message.
	MatchPolicy MatchPolicy

	// NumberOfThreads sizes the async dispatcher's worker pool. Normalized
	// to a power of two with a floor of 2.
	NumberOfThreads int

	// BufferSize sizes the async dispatcher's job queue.
	BufferSize int

	// OnError receives every handler failure. Defaults to
	// DefaultErrorHandler, which logs via slog.
	OnError ErrorHandler

	// Metrics receives bus-level counters. Defaults to NoopMetrics.
	Metrics MetricsRecorder

	// Tracer wraps each Publish/PublishAsync call in a span. Defaults to a
	// no-op tracer.
	Tracer trace.Tracer

	// Logger receives debug/info records for subscribe, unsubscribe,
	// publish, and dead-message events. Handler failures go to OnError
	// instead. A nil Logger (the default)
	// disables these records entirely; it does not fall back to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultBusConfig is a reasonable BusConfig for most callers: exact +
// supertype + var-arg matching, 4 worker threads, a 256-deep queue, default logging
// error handling, and no metrics.
var DefaultBusConfig = BusConfig{
	MatchPolicy:     ExactWithSuperTypesAndVarArgs,
	NumberOfThreads: 4,
	BufferSize:      256,
}

func (c BusConfig) withDefaults() BusConfig {
	if c.NumberOfThreads == 0 {
		c.NumberOfThreads = DefaultBusConfig.NumberOfThreads
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBusConfig.BufferSize
	}
	return c
}

// BusConfigFromMap builds a BusConfig from a generic Config, for callers
// loading settings from a YAML or JSON file rather than constructing
// BusConfig literally. Recognized keys: "match_policy" (one of "exact",
// "exact_supertypes", "exact_supertypes_vararg"), "threads", "buffer_size".
func BusConfigFromMap(cfg *Config) BusConfig {
	out := DefaultBusConfig

	switch strings.ToLower(cfg.String("match_policy", "")) {
	case "exact":
		out.MatchPolicy = ExactOnly
	case "exact_supertypes":
		out.MatchPolicy = ExactWithSuperTypes
	case "exact_supertypes_vararg":
		out.MatchPolicy = ExactWithSuperTypesAndVarArgs
	}

	if n := cfg.Int("threads", 0); n > 0 {
		out.NumberOfThreads = n
	}
	if n := cfg.Int("buffer_size", 0); n > 0 {
		out.BufferSize = n
	}

	return out
}

// Config wraps a generic string-keyed map with typed, default-on-mismatch
// accessors, for settings loaded from a file rather than built as a
// BusConfig literal.
type Config struct {
	values map[string]any
}

// NewConfig wraps an existing map. A nil map is treated as empty.
func NewConfig(values map[string]any) *Config {
	if values == nil {
		values = make(map[string]any)
	}
	return &Config{values: values}
}

// FromYAML parses YAML-encoded settings into a Config.
func FromYAML(data []byte) (*Config, error) {
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("eventbus: parse yaml config: %w", err)
	}
	return NewConfig(values), nil
}

// FromJSON parses JSON-encoded settings into a Config.
func FromJSON(data []byte) (*Config, error) {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("eventbus: parse json config: %w", err)
	}
	return NewConfig(values), nil
}

// FromFile loads a Config from path, dispatching on its extension (.yaml,
// .yml, or .json).
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eventbus: read config file: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return FromYAML(data)
	case strings.HasSuffix(path, ".json"):
		return FromJSON(data)
	default:
		return nil, fmt.Errorf("eventbus: unrecognized config file extension: %s", path)
	}
}

// Has reports whether key is present.
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Any returns the raw value for key, or def if absent.
func (c *Config) Any(key string, def any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Raw returns the underlying map. Callers must not mutate it.
func (c *Config) Raw() map[string]any {
	return c.values
}

// String returns key as a string, or def if absent or not a string.
func (c *Config) String(key, def string) string {
	if v, ok := c.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns key as a bool, or def if absent or not a bool.
func (c *Config) Bool(key string, def bool) bool {
	if v, ok := c.values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns key as an int, accepting any numeric JSON/YAML decoding, or
// def if absent or not numeric.
func (c *Config) Int(key string, def int) int {
	v, ok := c.values[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// StringSlice returns key as a []string, or def if absent or not a slice of
// strings.
func (c *Config) StringSlice(key string, def []string) []string {
	v, ok := c.values[key]
	if !ok {
		return def
	}
	raw, ok := v.([]any)
	if !ok {
		return def
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return def
		}
		out = append(out, s)
	}
	return out
}
