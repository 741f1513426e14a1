// Package config defines the configuration for the mpr tool. A single
// Config structure covers every stage of a load, organized into sections:
//
//   - Source: how raw rows are parsed out of the input
//   - Intuition: sample bounds for row and type intuition
//   - Stats: statistics workers and sampling
//   - Compression: row block algorithm and level
//   - Logging: level and encoding
//
// Example usage:
//
//	cfg := config.NewDefault()
//	cfg.Compression.Algorithm = "lz4"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/rowpack/mpr/pkg/compression"
	"github.com/rowpack/mpr/pkg/errors"
	"github.com/rowpack/mpr/pkg/intuit"
)

// Config is the full configuration for a load
type Config struct {
	Source      SourceConfig      `yaml:"source" json:"source"`
	Intuition   IntuitionConfig   `yaml:"intuition" json:"intuition"`
	Stats       StatsConfig       `yaml:"stats" json:"stats"`
	Compression CompressionConfig `yaml:"compression" json:"compression"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// SourceConfig controls raw row parsing
type SourceConfig struct {
	// Delimiter is the field separator for delimited files, "," when empty
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// LazyQuotes relaxes quote handling for files that mix quoting styles
	LazyQuotes bool `yaml:"lazy_quotes" json:"lazy_quotes"`
}

// IntuitionConfig bounds the sampling passes
type IntuitionConfig struct {
	// SampleRows is the prefix examined for header/data-start detection
	SampleRows int `yaml:"sample_rows" json:"sample_rows"`
	// TypeSampleRows bounds type intuition; 0 means every data row
	TypeSampleRows int `yaml:"type_sample_rows" json:"type_sample_rows"`
	// MultiPass re-reads the source per stage instead of fusing
	MultiPass bool `yaml:"multi_pass" json:"multi_pass"`
}

// StatsConfig controls statistics computation
type StatsConfig struct {
	// Workers > 1 fans column accumulators out across goroutines
	Workers int `yaml:"workers" json:"workers"`
	// SampleStride > 1 computes statistics from every Nth data row
	SampleStride int64 `yaml:"sample_stride" json:"sample_stride"`
}

// CompressionConfig selects the row block compression
type CompressionConfig struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`
	Level     string `yaml:"level" json:"level"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Encoding string `yaml:"encoding" json:"encoding"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Config {
	return &Config{
		Source: SourceConfig{
			Delimiter: ",",
		},
		Intuition: IntuitionConfig{
			SampleRows: intuit.DefaultSampleRows,
		},
		Stats: StatsConfig{
			Workers: 1,
		},
		Compression: CompressionConfig{
			Algorithm: string(compression.Zstd),
			Level:     "default",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	if len(c.Source.Delimiter) > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "delimiter must be a single character, got %q", c.Source.Delimiter)
	}
	if c.Intuition.SampleRows < 0 || c.Intuition.TypeSampleRows < 0 {
		return errors.New(errors.ErrorTypeConfig, "sample bounds must not be negative")
	}
	if c.Stats.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "stats workers must not be negative")
	}
	if c.Stats.SampleStride < 0 {
		return errors.New(errors.ErrorTypeConfig, "sample stride must not be negative")
	}
	if c.Compression.Algorithm != "" {
		if _, err := compression.ParseAlgorithm(c.Compression.Algorithm); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "compression algorithm")
		}
	}
	switch c.Compression.Level {
	case "", "fastest", "default", "better", "best":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown compression level %q", c.Compression.Level)
	}
	return nil
}

// CompressorConfig resolves the compression section into the compressor
// package's config.
func (c *Config) CompressorConfig() (*compression.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg := compression.DefaultConfig()
	if c.Compression.Algorithm != "" {
		algo, err := compression.ParseAlgorithm(c.Compression.Algorithm)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "compression algorithm")
		}
		cfg.Algorithm = algo
	}
	switch c.Compression.Level {
	case "fastest":
		cfg.Level = compression.Fastest
	case "better":
		cfg.Level = compression.Better
	case "best":
		cfg.Level = compression.Best
	}
	return cfg, nil
}
