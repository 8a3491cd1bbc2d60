package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/rawlog/pkg/staging"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRing(88, 600, 1024)
	m.ObserveBlock(512, 3*time.Millisecond)
	m.ObserveBlock(300, time.Millisecond)
	m.ObserveDropped(188)
	m.ObserveState(staging.StateDraining)

	require.Equal(t, 88.0, testutil.ToFloat64(m.RingAvailable))
	require.Equal(t, 600.0, testutil.ToFloat64(m.RingHighWaterMark))
	require.Equal(t, 1024.0, testutil.ToFloat64(m.RingCapacity))
	require.Equal(t, 812.0, testutil.ToFloat64(m.CommittedBytes))
	require.Equal(t, 2.0, testutil.ToFloat64(m.BlocksWritten))
	require.Equal(t, 188.0, testutil.ToFloat64(m.DroppedBytes))
	require.Equal(t, 1.0, testutil.ToFloat64(m.State.WithLabelValues("draining")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.State.WithLabelValues("running")))
	require.Equal(t, 1, testutil.CollectAndCount(m.WriteLatency))
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveBlock(512, time.Millisecond)

	srv := &Server{Addr: "127.0.0.1:0", Gatherer: reg}
	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	resp, err := http.Get("http://" + srv.ListenAddr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "rawlog_committed_bytes_total 512"))

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}
