// Package config loads the optional silkconv YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fmueller/silkconv/internal/convert"
	"github.com/fmueller/silkconv/internal/tools"
)

// Config is the complete file layout. Zero values mean "not set" and are
// filled from Default before validation.
type Config struct {
	Tools    ToolsConfig    `yaml:"tools"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Batch    BatchConfig    `yaml:"batch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ToolsConfig controls where the external executables are looked up.
type ToolsConfig struct {
	Dir        string `yaml:"dir"`
	Decoder    string `yaml:"decoder"`
	Encoder    string `yaml:"encoder"`
	Transcoder string `yaml:"transcoder"`
	// Paths pins a tool name to an explicit executable path.
	Paths map[string]string `yaml:"paths"`
}

// DefaultsConfig holds conversion parameters used when no flag is given.
type DefaultsConfig struct {
	Format       string `yaml:"format"`
	SampleRate   int    `yaml:"sample_rate"`
	Bitrate      int    `yaml:"bitrate"`
	PacketLength int    `yaml:"packet_length"`
	Complexity   *int   `yaml:"complexity"`
	VendorCompat *bool  `yaml:"vendor_compat"`
}

type BatchConfig struct {
	Workers      int           `yaml:"workers"`
	StageTimeout time.Duration `yaml:"stage_timeout"`
	Collision    string        `yaml:"collision"`
	Strict       bool          `yaml:"strict"`
	Fallback     *bool         `yaml:"fallback"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	complexity := convert.DefaultComplexity
	vendorCompat := true
	fallback := true
	return Config{
		Tools: ToolsConfig{
			Decoder:    tools.DefaultDecoder,
			Encoder:    tools.DefaultEncoder,
			Transcoder: tools.DefaultTranscoder,
		},
		Defaults: DefaultsConfig{
			Format:       string(convert.FormatMP3),
			SampleRate:   convert.DefaultSampleRate,
			Bitrate:      convert.DefaultBitrate,
			PacketLength: convert.DefaultPacketLength,
			Complexity:   &complexity,
			VendorCompat: &vendorCompat,
		},
		Batch: BatchConfig{
			Workers:   1,
			Collision: convert.CollisionOverwrite.String(),
			Fallback:  &fallback,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path and merges it over Default. When explicit is false a
// missing file is not an error and the defaults are returned.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.merge(file)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) merge(file Config) {
	if file.Tools.Dir != "" {
		c.Tools.Dir = file.Tools.Dir
	}
	if file.Tools.Decoder != "" {
		c.Tools.Decoder = file.Tools.Decoder
	}
	if file.Tools.Encoder != "" {
		c.Tools.Encoder = file.Tools.Encoder
	}
	if file.Tools.Transcoder != "" {
		c.Tools.Transcoder = file.Tools.Transcoder
	}
	if len(file.Tools.Paths) > 0 {
		c.Tools.Paths = file.Tools.Paths
	}

	if file.Defaults.Format != "" {
		c.Defaults.Format = file.Defaults.Format
	}
	if file.Defaults.SampleRate != 0 {
		c.Defaults.SampleRate = file.Defaults.SampleRate
	}
	if file.Defaults.Bitrate != 0 {
		c.Defaults.Bitrate = file.Defaults.Bitrate
	}
	if file.Defaults.PacketLength != 0 {
		c.Defaults.PacketLength = file.Defaults.PacketLength
	}
	if file.Defaults.Complexity != nil {
		c.Defaults.Complexity = file.Defaults.Complexity
	}
	if file.Defaults.VendorCompat != nil {
		c.Defaults.VendorCompat = file.Defaults.VendorCompat
	}

	if file.Batch.Workers != 0 {
		c.Batch.Workers = file.Batch.Workers
	}
	if file.Batch.StageTimeout != 0 {
		c.Batch.StageTimeout = file.Batch.StageTimeout
	}
	if file.Batch.Collision != "" {
		c.Batch.Collision = file.Batch.Collision
	}
	c.Batch.Strict = c.Batch.Strict || file.Batch.Strict
	if file.Batch.Fallback != nil {
		c.Batch.Fallback = file.Batch.Fallback
	}

	if file.Logging.Level != "" {
		c.Logging.Level = file.Logging.Level
	}
	c.Logging.JSON = c.Logging.JSON || file.Logging.JSON

	if file.Metrics.File != "" {
		c.Metrics.File = file.Metrics.File
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools config: %w", err)
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults config: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (t *ToolsConfig) Validate() error {
	if strings.TrimSpace(t.Decoder) == "" || strings.TrimSpace(t.Encoder) == "" || strings.TrimSpace(t.Transcoder) == "" {
		return fmt.Errorf("decoder, encoder and transcoder names cannot be empty")
	}
	for name, path := range t.Paths {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("path for %s cannot be empty", name)
		}
	}
	return nil
}

func (d *DefaultsConfig) Validate() error {
	if _, err := convert.ParseFormat(d.Format); err != nil {
		return err
	}
	if d.SampleRate < 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", d.SampleRate)
	}
	if d.Bitrate < 0 {
		return fmt.Errorf("bitrate must be positive, got %d", d.Bitrate)
	}
	if d.PacketLength < 0 {
		return fmt.Errorf("packet_length must be positive, got %d", d.PacketLength)
	}
	if d.Complexity != nil && (*d.Complexity < convert.MinComplexity || *d.Complexity > convert.MaxComplexity) {
		return fmt.Errorf("complexity must be between %d and %d, got %d", convert.MinComplexity, convert.MaxComplexity, *d.Complexity)
	}
	return nil
}

func (b *BatchConfig) Validate() error {
	if b.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", b.Workers)
	}
	if b.StageTimeout < 0 {
		return fmt.Errorf("stage_timeout cannot be negative, got %s", b.StageTimeout)
	}
	if _, err := convert.ParseCollisionPolicy(b.Collision); err != nil {
		return err
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("level must be debug, info, warn or error, got %q", l.Level)
	}
}

// FallbackEnabled reports the effective fallback setting.
func (b BatchConfig) FallbackEnabled() bool {
	return b.Fallback == nil || *b.Fallback
}
