package staging

import (
	"fmt"
	"time"
)

// Defaults sized for a receiver streaming raw measurements to an SD card.
const (
	DefaultCapacity          = 16 * 1024
	DefaultBlockSize         = 512
	DefaultReportInterval    = time.Second
	DefaultHighWaterFraction = 0.8
	DefaultGraceInterval     = time.Second
)

// Config is fixed at startup.
type Config struct {
	// Capacity is the ring size C in bytes. It should absorb the ingest
	// arriving during the longest expected sink stall.
	Capacity int `yaml:"capacity"`
	// BlockSize is the write granularity W.
	BlockSize int `yaml:"block_size"`
	// ReportInterval is the wall-clock cadence of progress reports and
	// capacity checks.
	ReportInterval time.Duration `yaml:"report_interval"`
	// HighWaterFraction of Capacity above which the monitor warns.
	HighWaterFraction float64 `yaml:"high_water_fraction"`
	// GraceInterval is waited after StopAutoReports for in-flight bytes.
	GraceInterval time.Duration `yaml:"grace_interval"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:          DefaultCapacity,
		BlockSize:         DefaultBlockSize,
		ReportInterval:    DefaultReportInterval,
		HighWaterFraction: DefaultHighWaterFraction,
		GraceInterval:     DefaultGraceInterval,
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d", ErrInvalidConfig, c.Capacity)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, c.BlockSize)
	case c.BlockSize > c.Capacity:
		return fmt.Errorf("%w: block size %d exceeds capacity %d", ErrInvalidConfig, c.BlockSize, c.Capacity)
	case c.ReportInterval <= 0:
		return fmt.Errorf("%w: report interval %v", ErrInvalidConfig, c.ReportInterval)
	case c.HighWaterFraction <= 0 || c.HighWaterFraction > 1:
		return fmt.Errorf("%w: high-water fraction %v", ErrInvalidConfig, c.HighWaterFraction)
	case c.GraceInterval < 0:
		return fmt.Errorf("%w: grace interval %v", ErrInvalidConfig, c.GraceInterval)
	}
	return nil
}
