// Package report delivers staging events to logs and remote monitors.
package report

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
	"github.com/golang/glog"

	"github.com/robotalks/rawlog/pkg/staging"
)

// Log reports events to glog at the severity of the event.
type Log struct{}

// Report implements staging.Reporter.
func (Log) Report(ev *staging.Event) {
	msg := Format(ev)
	switch {
	case ev.Kind == staging.EventFailed:
		glog.Error(msg)
	case ev.Kind.IsWarning():
		glog.Warning(msg)
	default:
		glog.Info(msg)
	}
}

// Format renders an event as a single human readable line.
func Format(ev *staging.Event) string {
	switch ev.Kind {
	case staging.EventOverflow:
		return fmt.Sprintf("overflow: dropped %s, ring full at %s",
			humanize.Bytes(uint64(ev.Dropped)), humanize.Bytes(uint64(ev.Capacity)))
	case staging.EventHighWater:
		return fmt.Sprintf("high-water: %s of %s exceeds %s, capacity or drain cadence is marginal",
			humanize.Bytes(uint64(ev.HighWaterMark)), humanize.Bytes(uint64(ev.Capacity)),
			humanize.Bytes(uint64(ev.Threshold)))
	case staging.EventFailed:
		return fmt.Sprintf("failed after %s committed: %v", humanize.Bytes(ev.Committed), ev.Err)
	}
	return fmt.Sprintf("%s: committed %s in %s blocks, queued %d, high-water %d/%d, write p50 %v p99 %v max %v",
		ev.Kind, humanize.Bytes(ev.Committed), humanize.Comma(int64(ev.Blocks)),
		ev.Available, ev.HighWaterMark, ev.Capacity,
		ev.WriteP50, ev.WriteP99, ev.WriteMax)
}
