package bench

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Implementations understood by NewLocker.
const (
	ImplMonitor = "monitor"
	ImplChannel = "channel"
	ImplStdlib  = "stdlib"
)

var ErrInvalidConfig = errors.New("bench: invalid config")

// Config описывает нагрузку: сколько читателей и писателей и что они делают.
type Config struct {
	Impl          string        `yaml:"impl"`
	Readers       int           `yaml:"readers"`
	Writers       int           `yaml:"writers"`
	OpsPerReader  int           `yaml:"ops_per_reader"`
	OpsPerWriter  int           `yaml:"ops_per_writer"`
	ReadHold      time.Duration `yaml:"read_hold"`
	WriteHold     time.Duration `yaml:"write_hold"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// DefaultConfig returns a small mixed workload on the monitor lock.
func DefaultConfig() Config {
	return Config{
		Impl:          ImplMonitor,
		Readers:       8,
		Writers:       2,
		OpsPerReader:  1000,
		OpsPerWriter:  100,
		SlowThreshold: 100 * time.Millisecond,
	}
}

// LoadConfig reads a YAML workload from path on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if len(data) == 0 {
		return &config, nil
	}

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Impl {
	case ImplMonitor, ImplChannel, ImplStdlib:
	default:
		return fmt.Errorf("%w: unknown impl %q", ErrInvalidConfig, c.Impl)
	}
	if c.Readers < 0 || c.Writers < 0 {
		return fmt.Errorf("%w: negative participant count", ErrInvalidConfig)
	}
	if c.Readers+c.Writers == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidConfig)
	}
	if c.OpsPerReader < 0 || c.OpsPerWriter < 0 {
		return fmt.Errorf("%w: negative op count", ErrInvalidConfig)
	}
	if c.ReadHold < 0 || c.WriteHold < 0 || c.SlowThreshold < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}
