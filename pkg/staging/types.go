package staging

import (
	"fmt"
	"time"
)

// Source provides raw receiver bytes.
type Source interface {
	// Poll returns the bytes which became available since the last call.
	// It must not block. io.EOF indicates the source is exhausted.
	Poll() ([]byte, error)
	// StopAutoReports asks the receiver to stop queuing new messages.
	StopAutoReports() error
}

// Sink persists blocks.
type Sink interface {
	// WriteBlock appends a block. It may block for a variable time.
	// The block must not be retained after return unless copied.
	WriteBlock([]byte) error
}

// Reporter receives events. Delivery is best-effort.
type Reporter interface {
	Report(*Event)
}

// ReportFunc is func form of Reporter.
type ReportFunc func(*Event)

// Report implements Reporter.
func (f ReportFunc) Report(ev *Event) {
	f(ev)
}

// Observer receives fine grained measurements, e.g. for metrics.
type Observer interface {
	ObserveRing(available, highWaterMark, capacity int)
	ObserveBlock(size int, latency time.Duration)
	ObserveDropped(n int)
	ObserveState(State)
}

// State is the lifecycle state of a Logger.
type State int

// States
const (
	StateRunning State = iota
	StateDraining
	StateStopped
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal indicates no further operations are valid.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// EventKind classifies events.
type EventKind int

// Event kinds
const (
	// EventProgress is the periodic byte count report.
	EventProgress EventKind = iota
	// EventOverflow means bytes were dropped by the ring.
	EventOverflow
	// EventHighWater means the high-water mark crossed the warning threshold.
	EventHighWater
	// EventStopped is the final report after flush.
	EventStopped
	// EventFailed reports a fatal error.
	EventFailed
)

var eventKindNames = map[EventKind]string{
	EventProgress:  "progress",
	EventOverflow:  "overflow",
	EventHighWater: "high-water",
	EventStopped:   "stopped",
	EventFailed:    "failed",
}

// String implements fmt.Stringer.
func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// ParseEventKind is the reverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for k, name := range eventKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// IsWarning indicates data loss or marginal capacity.
func (k EventKind) IsWarning() bool {
	return k == EventOverflow || k == EventHighWater
}

// Event is emitted on the reporting channel.
type Event struct {
	Kind  EventKind
	RunID string
	Time  time.Time

	// Committed is the cumulative bytes written to the sink.
	Committed     uint64
	Available     int
	HighWaterMark int
	Capacity      int

	// Dropped is the bytes lost by the push that raised EventOverflow.
	Dropped int
	// Threshold is the fill level which raises EventHighWater.
	Threshold int

	Blocks   uint64
	WriteP50 time.Duration
	WriteP99 time.Duration
	WriteMax time.Duration

	Err error
}
