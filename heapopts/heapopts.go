// Package heapopts loads the collector configuration used by the entry shim.
// Config files are YAML with human-readable byte sizes:
//
//	heap-size: 64KB
//	trace: false
//	snapshot: heap.hex
//	script: demo.alloc
package heapopts

import (
	"fmt"
	"os"
	"strconv"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// A Size is a byte count that unmarshals from strings like "512B", "64KB" or
// "1MB", or from a bare integer.
type Size uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		var n uint64
		if err := unmarshal(&n); err != nil {
			return err
		}
		*s = Size(n)
		return nil
	}
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		*s = Size(n)
		return nil
	}
	v, err := bytesize.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", raw, err)
	}
	*s = Size(v)
	return nil
}

// String formats the size the way it would appear in a config file.
func (s Size) String() string {
	return bytesize.New(float64(s)).String()
}

// Config describes one heap run.
type Config struct {
	// HeapSize is the arena size handed to gc.New.
	HeapSize Size `yaml:"heap-size"`

	// Trace makes the shim report every script step as it runs.
	Trace bool `yaml:"trace"`

	// Snapshot is the path the shim writes an Intel HEX heap image to
	// after the script finishes. Empty disables the snapshot.
	Snapshot string `yaml:"snapshot"`

	// Script is the path of the allocation script to run.
	Script string `yaml:"script"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{HeapSize: 64 * 1024}
}

// Parse reads a Config from YAML text.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("heapopts: %w", err)
	}
	if cfg.HeapSize == 0 {
		return nil, fmt.Errorf("heapopts: heap-size must be positive")
	}
	return cfg, nil
}

// Load reads a Config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("heapopts: %w", err)
	}
	return Parse(data)
}
