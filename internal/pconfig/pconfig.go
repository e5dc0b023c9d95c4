// Package pconfig loads the pipeline's tunable knobs from a YAML file.
// chasquid's own internal/config is generated from a protobuf schema; that
// generator isn't available here, so this package covers the same ground
// (a typed, defaulted config loaded from disk) with gopkg.in/yaml.v2
// instead.
package pconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/mailpipe/mailpipe/internal/scanner"
)

// Config holds every tunable the pipeline exposes. Zero values are
// replaced by WithDefaults with the constants the rest of the code already
// assumes.
type Config struct {
	// ScannerChunkSize is the body chunk size the scanner emits BodyChunk
	// events at (spec §4.2). Purely a performance knob: chunk boundaries
	// carry no semantic meaning downstream.
	ScannerChunkSize int `yaml:"scanner_chunk_size"`

	// MaxDKIMSignatures caps how many DKIM-Signature headers the checker
	// will instantiate a verifier for (RFC 6376 §8.4).
	MaxDKIMSignatures int `yaml:"max_dkim_signatures"`

	// LogLevel names a log level ("info", "debug", ...). It is loaded and
	// defaulted here; cmd/mailpipe does not apply it to the logger.
	LogLevel string `yaml:"log_level"`
}

// WithDefaults returns a copy of c with zero-valued fields replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.ScannerChunkSize == 0 {
		c.ScannerChunkSize = scanner.DefaultChunkSize
	}
	if c.MaxDKIMSignatures == 0 {
		c.MaxDKIMSignatures = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return c
}

// Load reads and parses the YAML config at path, applying defaults to
// whatever it leaves unset. A missing file is not an error: it yields the
// all-defaults Config, the same as an empty one would.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}.WithDefaults(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("pconfig: reading %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("pconfig: parsing %s: %w", path, err)
	}

	return c.WithDefaults(), nil
}
