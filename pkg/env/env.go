package env

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	fx "github.com/robotalks/rawlog/pkg/framework"
	"github.com/robotalks/rawlog/pkg/metrics"
	"github.com/robotalks/rawlog/pkg/report"
	"github.com/robotalks/rawlog/pkg/sink"
	"github.com/robotalks/rawlog/pkg/staging"
)

// Env is a logging session assembled from Config.
type Env struct {
	Config        *Config
	Source        staging.Source
	Sink          staging.Sink
	Reporter      report.Mux
	Metrics       *metrics.Metrics
	MetricsServer *metrics.Server
	Logger        *staging.Logger

	closers []io.Closer
}

// NewEnv opens the source and sinks and creates the Logger.
func (c *Config) NewEnv(ctx context.Context) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	env := &Env{Config: c, Reporter: report.Mux{report.Log{}}}
	if err := env.open(ctx); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(ctx context.Context) *Env {
	env, err := c.NewEnv(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

func (e *Env) open(ctx context.Context) error {
	c := e.Config
	src, closer, err := OpenSource(ctx, c.Source, c.HoldingSize)
	if err != nil {
		return fmt.Errorf("open source %s: %w", c.Source, err)
	}
	e.Source = src
	e.closers = append(e.closers, closer)

	blockSink, closers, err := OpenSink(ctx, c.Sink, c.Device)
	if err != nil {
		return fmt.Errorf("open sink %s: %w", c.Sink, err)
	}
	e.closers = append(e.closers, closers...)
	if c.StallLatency > 0 {
		blockSink = &sink.Delay{Sink: blockSink, Latency: c.StallLatency, Every: c.StallEvery}
	}
	if c.WriteRetries > 0 {
		blockSink = &sink.Retry{Sink: blockSink, Retries: c.WriteRetries, Backoff: c.RetryBackoff}
	}
	e.Sink = blockSink

	if c.MQTTBrokerURL != "" {
		r, err := report.NewMQTTFromURL(c.MQTTBrokerURL, c.Device)
		if err != nil {
			return fmt.Errorf("create MQTT reporter error: %w", err)
		}
		e.Reporter = append(e.Reporter, r)
	}

	opts := []staging.Option{staging.WithReporter(e.Reporter)}
	if c.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		e.Metrics = metrics.New(reg)
		e.MetricsServer = &metrics.Server{Addr: c.MetricsAddr, Gatherer: reg}
		if err := e.MetricsServer.Listen(); err != nil {
			return fmt.Errorf("metrics listen %s: %w", c.MetricsAddr, err)
		}
		opts = append(opts, staging.WithObserver(e.Metrics))
	}

	if e.Logger, err = staging.New(c.Staging, e.Source, e.Sink, opts...); err != nil {
		return err
	}
	return nil
}

// AddToLoop adds the Logger and the supporting runnables to loop.
func (e *Env) AddToLoop(loop *fx.Loop) {
	if e.Config.PollInterval > 0 {
		loop.Interval = e.Config.PollInterval
	}
	loop.Add(e.Logger)
	if e.MetricsServer != nil {
		loop.AddRunnable(e.MetricsServer)
	}
}

// Close releases the source and sinks.
func (e *Env) Close() error {
	errs := &fx.AggregatedError{}
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs.Add(e.closers[i].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}
