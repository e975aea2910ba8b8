package core

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tinyrange/irvm/internal/guestmem"
)

const (
	DefaultArenaSize        = 4096
	DefaultIndexSize        = 256
	DefaultProgramCacheSize = 4096
)

// FaultMode selects what happens when a guest instruction faults.
type FaultMode string

const (
	// FaultAbort stops the whole run with the fault as its error.
	FaultAbort FaultMode = "abort"
	// FaultSignal records the matching signal on the thread and stops only
	// that thread.
	FaultSignal FaultMode = "signal"
)

// CPU feature sets reported through CPUID.
const (
	CPUFeaturesHost     = "host"
	CPUFeaturesBaseline = "baseline"
)

// MemoryRegion describes a guest memory mapping created at startup.
type MemoryRegion struct {
	Name string `yaml:"name,omitempty"`
	Base uint64 `yaml:"base"`
	Size uint64 `yaml:"size"`
}

// Config holds the runtime settings of an emulator instance.
type Config struct {
	ArenaSize        int `yaml:"arenaSize,omitempty"`
	IndexSize        int `yaml:"indexSize,omitempty"`
	ProgramCacheSize int `yaml:"programCacheSize,omitempty"`

	// DeterministicCycles makes CycleCounter read as zero so repeated runs
	// produce identical state.
	DeterministicCycles bool      `yaml:"deterministicCycles,omitempty"`
	FaultMode           FaultMode `yaml:"faultMode,omitempty"`
	CPUFeatures         string    `yaml:"cpuFeatures,omitempty"`
	LogLevel            string    `yaml:"logLevel,omitempty"`

	Memory []MemoryRegion `yaml:"memory,omitempty"`
}

func (c *Config) normalize() {
	if c.ArenaSize == 0 {
		c.ArenaSize = DefaultArenaSize
	}
	if c.IndexSize == 0 {
		c.IndexSize = DefaultIndexSize
	}
	if c.ProgramCacheSize == 0 {
		c.ProgramCacheSize = DefaultProgramCacheSize
	}
	if c.FaultMode == "" {
		c.FaultMode = FaultAbort
	}
	if c.CPUFeatures == "" {
		c.CPUFeatures = CPUFeaturesHost
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Memory {
		if c.Memory[i].Name == "" {
			c.Memory[i].Name = fmt.Sprintf("region%d", i)
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ArenaSize < 0 || c.IndexSize < 0 || c.ProgramCacheSize < 0 {
		return fmt.Errorf("config: sizes must not be negative")
	}
	switch c.FaultMode {
	case FaultAbort, FaultSignal, "":
	default:
		return fmt.Errorf("config: unknown fault mode %q", c.FaultMode)
	}
	switch c.CPUFeatures {
	case CPUFeaturesHost, CPUFeaturesBaseline, "":
	default:
		return fmt.Errorf("config: unknown cpu feature set %q", c.CPUFeatures)
	}
	if c.LogLevel != "" {
		if _, err := parseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	for _, r := range c.Memory {
		if r.Size == 0 {
			return fmt.Errorf("config: memory region %q has zero size", r.Name)
		}
		if r.Base%guestmem.PageSize != 0 {
			return fmt.Errorf("config: memory region %q base %#x is not page aligned", r.Name, r.Base)
		}
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
	return l, nil
}

// ParseConfig decodes a YAML configuration, filling defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

// LoadConfig reads and parses the configuration at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() Config {
	var cfg Config
	cfg.normalize()
	return cfg
}
