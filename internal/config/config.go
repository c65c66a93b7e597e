// Package config loads the optional YAML configuration of the soitools CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted when a setting is absent from the file.
const (
	EnvConfig  = "SOITOOLS_CONFIG"
	EnvOutput  = "SOITOOLS_OUTPUT"
	EnvWorkers = "SOITOOLS_WORKERS"
)

const defaultOutput = "output"

// Config is the root of the configuration file.
type Config struct {
	Output   string          `yaml:"output"`
	Workers  int             `yaml:"workers"`
	Metrics  string          `yaml:"metrics_file"`
	Extract  ExtractConfig   `yaml:"extract"`
	Packages []PackageConfig `yaml:"packages"`
}

// ExtractConfig mirrors the extraction options.
type ExtractConfig struct {
	SectionDirs      bool     `yaml:"section_dirs"`
	Compress         bool     `yaml:"compress"`
	CompressionLevel int      `yaml:"compression_level"`
	ConvertTextures  bool     `yaml:"convert_textures"`
	ImageFormat      string   `yaml:"image_format"` // dds or png, default dds
	Kinds            []string `yaml:"kinds"`
}

// PackageConfig names one package. TOC, SOI and STR default to Base with the
// .toc, .soi and .str suffixes.
type PackageConfig struct {
	Name string `yaml:"name"`
	Base string `yaml:"base"`
	TOC  string `yaml:"toc"`
	SOI  string `yaml:"soi"`
	STR  string `yaml:"str"`
}

// Paths returns the three file paths of the package.
func (p PackageConfig) Paths() (tocPath, soiPath, strPath string) {
	pick := func(explicit, suffix string) string {
		if explicit != "" {
			return explicit
		}
		return p.Base + suffix
	}
	return pick(p.TOC, ".toc"), pick(p.SOI, ".soi"), pick(p.STR, ".str")
}

// DisplayName returns Name, or the base file name when Name is empty.
func (p PackageConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	base := p.Base
	if base == "" {
		base = strings.TrimSuffix(p.TOC, filepath.Ext(p.TOC))
	}
	return filepath.Base(base)
}

// Validate checks that every package can be located.
func (c *Config) Validate() error {
	names := make(map[string]int, len(c.Packages))
	for i, p := range c.Packages {
		if p.Base == "" && (p.TOC == "" || p.SOI == "" || p.STR == "") {
			return fmt.Errorf("package %d: base or all of toc, soi and str must be set", i)
		}
		// Each package extracts into a directory named after it.
		name := p.DisplayName()
		if j, ok := names[name]; ok {
			return fmt.Errorf("packages %d and %d share the name %q", j, i, name)
		}
		names[name] = i
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	switch c.Extract.ImageFormat {
	case "", "dds", "png":
	default:
		return fmt.Errorf("image_format must be dds or png, got %q", c.Extract.ImageFormat)
	}
	return nil
}

// GetOutput returns the output directory: config, then SOITOOLS_OUTPUT, then "output".
func (c *Config) GetOutput() string {
	if c.Output != "" {
		return c.Output
	}
	if env := os.Getenv(EnvOutput); env != "" {
		return env
	}
	return defaultOutput
}

// GetWorkers returns the worker count: config, then SOITOOLS_WORKERS, then the CPU count.
func (c *Config) GetWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if env := os.Getenv(EnvWorkers); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// Load reads a YAML configuration file. With an empty path it falls back to
// SOITOOLS_CONFIG, and with neither set it returns an empty Config.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
		if path == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}
