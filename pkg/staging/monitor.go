package staging

import "time"

// DefaultWarnRepeat is the number of report intervals after which a
// high-water warning is repeated while the mark stays above the threshold.
const DefaultWarnRepeat = 10

// Monitor decides when progress is reported and when the high-water
// mark deserves a warning. It runs on wall-clock cadence regardless of
// how often Check is called, and never touches the buffer.
type Monitor struct {
	interval  time.Duration
	threshold int
	// WarnRepeat repeats an unchanged warning every WarnRepeat reports.
	// 0 warns only when the mark rises.
	WarnRepeat int

	last      time.Time
	warned    int
	sinceWarn int
}

// NewMonitor creates a Monitor warning when the high-water mark exceeds
// threshold bytes.
func NewMonitor(interval time.Duration, threshold int) *Monitor {
	return &Monitor{interval: interval, threshold: threshold, WarnRepeat: DefaultWarnRepeat, warned: -1}
}

// Threshold returns the warning threshold in bytes.
func (m *Monitor) Threshold() int {
	return m.threshold
}

// Check is called with the current time and high-water mark.
// The first call starts the cadence. When an interval elapsed, report is
// true; warn is additionally true if hwm exceeds the threshold and has
// risen since the previous warning, or WarnRepeat reports passed since it.
func (m *Monitor) Check(now time.Time, hwm int) (report, warn bool) {
	if m.last.IsZero() {
		m.last = now
		return false, false
	}
	if now.Sub(m.last) < m.interval {
		return false, false
	}
	m.last = now
	if hwm <= m.threshold {
		return true, false
	}
	m.sinceWarn++
	if hwm > m.warned || (m.WarnRepeat > 0 && m.sinceWarn >= m.WarnRepeat) {
		m.warned, m.sinceWarn = hwm, 0
		warn = true
	}
	return true, warn
}
