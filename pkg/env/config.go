// Package env sets up a logger from configuration.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/rawlog/pkg/staging"
)

// Config provides the options to setup a logging session.
type Config struct {
	// Device names the receiver in reports and log file names.
	Device string `yaml:"device"`
	// Source is the receiver URL, see OpenSource.
	Source string `yaml:"source"`
	// Sink is a comma separated list of sink URLs, see OpenSink.
	Sink string `yaml:"sink"`
	// MQTTBrokerURL receives reports, e.g. mqtt://host:port/topic-prefix.
	MQTTBrokerURL string `yaml:"mqtt"`
	// MetricsAddr serves Prometheus metrics if not empty.
	MetricsAddr string `yaml:"metrics"`

	PollInterval time.Duration `yaml:"poll_interval"`
	HoldingSize  int           `yaml:"holding_size"`
	WriteRetries int           `yaml:"write_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// StallLatency is added to every StallEvery-th block write.
	StallLatency time.Duration `yaml:"stall_latency"`
	StallEvery   int           `yaml:"stall_every"`

	Staging staging.Config `yaml:"staging"`
}

var defaultConfig = Config{
	Sink:         "file://./logs",
	PollInterval: 10 * time.Millisecond,
	RetryBackoff: 50 * time.Millisecond,
	Staging:      staging.DefaultConfig(),
}

func init() {
	if val := os.Getenv("RAWLOG_CONFIG"); val != "" {
		if err := defaultConfig.LoadFile(val); err != nil {
			log.Fatalln(err)
		}
	}
	envString(&defaultConfig.Device, "RAWLOG_DEVICE")
	envString(&defaultConfig.Source, "RAWLOG_SOURCE")
	envString(&defaultConfig.Sink, "RAWLOG_SINK")
	envString(&defaultConfig.MQTTBrokerURL, "RAWLOG_MQTT_URL")
	envString(&defaultConfig.MetricsAddr, "RAWLOG_METRICS_ADDR")
	if val := os.Getenv("RAWLOG_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			defaultConfig.Staging.Capacity = n
		}
	}
	if defaultConfig.Device == "" {
		defaultConfig.Device = MachineID()
	}
}

func envString(p *string, name string) {
	if val := os.Getenv(name); val != "" {
		*p = val
	}
}

// SetupFlags sets up command line flags.
// -config is applied when parsed, so flags after it override the file.
func SetupFlags() {
	flag.Func("config", "YAML config file, flags after it override the file", defaultConfig.LoadFile)
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Device name")
	flag.StringVar(&defaultConfig.Source, "source", defaultConfig.Source, "Receiver URL")
	flag.StringVar(&defaultConfig.Sink, "sink", defaultConfig.Sink, "Comma separated sink URLs")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for reports")
	flag.StringVar(&defaultConfig.MetricsAddr, "metrics", defaultConfig.MetricsAddr, "Prometheus listen address")
	flag.DurationVar(&defaultConfig.PollInterval, "poll-interval", defaultConfig.PollInterval, "Control loop interval")
	flag.IntVar(&defaultConfig.HoldingSize, "holding-size", defaultConfig.HoldingSize, "Receiver holding area in bytes")
	flag.IntVar(&defaultConfig.WriteRetries, "write-retries", defaultConfig.WriteRetries, "Retries of a failed block write")
	flag.DurationVar(&defaultConfig.RetryBackoff, "retry-backoff", defaultConfig.RetryBackoff, "Backoff between write retries")
	flag.DurationVar(&defaultConfig.StallLatency, "stall", defaultConfig.StallLatency, "Simulated sink stall")
	flag.IntVar(&defaultConfig.StallEvery, "stall-every", defaultConfig.StallEvery, "Stall every N-th block write")
	flag.IntVar(&defaultConfig.Staging.Capacity, "capacity", defaultConfig.Staging.Capacity, "Staging ring capacity in bytes")
	flag.IntVar(&defaultConfig.Staging.BlockSize, "block-size", defaultConfig.Staging.BlockSize, "Write block size in bytes")
	flag.DurationVar(&defaultConfig.Staging.ReportInterval, "report-interval", defaultConfig.Staging.ReportInterval, "Report interval")
	flag.Float64Var(&defaultConfig.Staging.HighWaterFraction, "high-water", defaultConfig.Staging.HighWaterFraction, "High-water warning fraction of capacity")
	flag.DurationVar(&defaultConfig.Staging.GraceInterval, "grace", defaultConfig.Staging.GraceInterval, "Wait for in-flight bytes on stop")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile overrides the config with a YAML file.
func (c *Config) LoadFile(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", fn, err)
	}
	return nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source must be specified")
	}
	if c.Sink == "" {
		return fmt.Errorf("sink must be specified")
	}
	if c.Device == "" {
		return fmt.Errorf("device must be specified")
	}
	return c.Staging.Validate()
}
