// Package config loads the masskey configuration from a YAML file with
// MASSKEY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/MassKey/pkg/retrieve"
	"github.com/ChrisMcGann/MassKey/pkg/tolerance"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Search modes.
const (
	ModeSymmetric = "symmetric"
	ModeInterval  = "interval"
	ModeDiscrete  = "discrete"
)

// Config is the top-level configuration.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Search        SearchConfig        `yaml:"search"`
	Modifications ModificationsConfig `yaml:"modifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// LoggingConfig controls the slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// SearchConfig selects the precursor window strategy and ranking.
type SearchConfig struct {
	Mode        string    `yaml:"mode"`
	Tolerance   string    `yaml:"tolerance"`
	LowerOffset float64   `yaml:"lowerOffset"`
	UpperOffset float64   `yaml:"upperOffset"`
	Offsets     []float64 `yaml:"offsets"`
	TopK        int       `yaml:"topK"`
	Threads     int       `yaml:"threads"`
	BinWidth    float64   `yaml:"binWidth"`
	TopPeaks    int       `yaml:"topPeaks"` // 0 keeps every peak
}

// ModificationsConfig controls modification lookup by mass.
type ModificationsConfig struct {
	Tolerance string `yaml:"tolerance"`
	CustomCSV string `yaml:"customCSV"`
}

// MetricsConfig names the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Load reads the YAML file at path, if any, over the defaults and then
// applies environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Search: SearchConfig{
			Mode:        ModeSymmetric,
			Tolerance:   "10ppm",
			LowerOffset: -0.5,
			UpperOffset: 2.5,
			Offsets:     []float64{0},
			TopK:        5,
			Threads:     4,
			BinWidth:    1.0005,
			TopPeaks:    150,
		},
		Modifications: ModificationsConfig{
			Tolerance: "0.5Da",
		},
	}
}

// applyEnvOverrides reads MASSKEY_* variables over cfg.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MASSKEY_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MASSKEY_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MASSKEY_SEARCH_MODE"); v != "" {
		cfg.Search.Mode = v
	}
	if v := os.Getenv("MASSKEY_SEARCH_TOLERANCE"); v != "" {
		cfg.Search.Tolerance = v
	}
	if v := os.Getenv("MASSKEY_SEARCH_OFFSETS"); v != "" {
		offsets, err := ParseOffsets(v)
		if err != nil {
			return fmt.Errorf("MASSKEY_SEARCH_OFFSETS: %w", err)
		}
		cfg.Search.Offsets = offsets
	}
	if v := os.Getenv("MASSKEY_SEARCH_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MASSKEY_SEARCH_TOP_K: %w", err)
		}
		cfg.Search.TopK = n
	}
	if v := os.Getenv("MASSKEY_SEARCH_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MASSKEY_SEARCH_THREADS: %w", err)
		}
		cfg.Search.Threads = n
	}
	if v := os.Getenv("MASSKEY_MODIFICATIONS_TOLERANCE"); v != "" {
		cfg.Modifications.Tolerance = v
	}
	if v := os.Getenv("MASSKEY_MODIFICATIONS_CUSTOM_CSV"); v != "" {
		cfg.Modifications.CustomCSV = v
	}
	if v := os.Getenv("MASSKEY_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	return nil
}

// ParseOffsets parses a comma separated list of m/z offsets.
func ParseOffsets(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("offset %q: %w", f, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Validate checks every section. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	switch c.Search.Mode {
	case ModeSymmetric, ModeInterval, ModeDiscrete:
	default:
		errs = append(errs, fmt.Errorf("search.mode %q: want %s, %s or %s", c.Search.Mode, ModeSymmetric, ModeInterval, ModeDiscrete))
	}
	if _, err := c.Strategy(); err != nil && len(errs) == 0 {
		errs = append(errs, err)
	}
	if c.Search.TopK <= 0 {
		errs = append(errs, fmt.Errorf("search.topK must be positive, got %d", c.Search.TopK))
	}
	if c.Search.Threads < 0 {
		errs = append(errs, fmt.Errorf("search.threads must not be negative, got %d", c.Search.Threads))
	}
	if c.Search.TopPeaks < 0 {
		errs = append(errs, fmt.Errorf("search.topPeaks must not be negative, got %d", c.Search.TopPeaks))
	}
	if _, err := c.ModificationTolerance(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Strategy builds the precursor window strategy of the search section.
func (c *Config) Strategy() (retrieve.Strategy, error) {
	s := c.Search
	switch s.Mode {
	case ModeSymmetric:
		tol, err := tolerance.Parse(s.Tolerance)
		if err != nil {
			return nil, fmt.Errorf("search.tolerance: %w", err)
		}
		return retrieve.NewSymmetric(tol), nil
	case ModeInterval:
		f, err := retrieve.NewFixedOffset(s.LowerOffset, s.UpperOffset)
		if err != nil {
			return nil, fmt.Errorf("search.lowerOffset/upperOffset: %w", err)
		}
		return f, nil
	case ModeDiscrete:
		tol, err := tolerance.Parse(s.Tolerance)
		if err != nil {
			return nil, fmt.Errorf("search.tolerance: %w", err)
		}
		d, err := retrieve.NewDiscreteOffsets(s.Offsets, tol)
		if err != nil {
			return nil, fmt.Errorf("search.offsets: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: unknown search.mode %q", ErrInvalidConfig, s.Mode)
	}
}

// ModificationTolerance parses modifications.tolerance.
func (c *Config) ModificationTolerance() (tolerance.Tolerance, error) {
	tol, err := tolerance.Parse(c.Modifications.Tolerance)
	if err != nil {
		return tolerance.Tolerance{}, fmt.Errorf("modifications.tolerance: %w", err)
	}
	return tol, nil
}
