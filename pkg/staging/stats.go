package staging

import (
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// WriteStats keeps sink write latencies.
// Percentiles have 1% relative accuracy.
type WriteStats struct {
	count  uint64
	max    time.Duration
	sketch *ddsketch.DDSketch
}

// NewWriteStats creates a WriteStats.
func NewWriteStats() *WriteStats {
	s := &WriteStats{}
	if sketch, err := ddsketch.NewDefaultDDSketch(0.01); err == nil {
		s.sketch = sketch
	}
	return s
}

// Add records a single write latency.
func (s *WriteStats) Add(d time.Duration) {
	s.count++
	if d > s.max {
		s.max = d
	}
	if s.sketch != nil {
		s.sketch.Add(float64(d))
	}
}

// Count returns the number of recorded writes.
func (s *WriteStats) Count() uint64 {
	return s.count
}

// Max returns the slowest write.
func (s *WriteStats) Max() time.Duration {
	return s.max
}

// Quantile returns the latency at quantile q, 0 when empty.
func (s *WriteStats) Quantile(q float64) time.Duration {
	if s.count == 0 || s.sketch == nil {
		return 0
	}
	v, err := s.sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	return time.Duration(v)
}

func (s *WriteStats) fill(ev *Event) {
	ev.Blocks = s.count
	ev.WriteP50 = s.Quantile(0.5)
	ev.WriteP99 = s.Quantile(0.99)
	ev.WriteMax = s.max
}
