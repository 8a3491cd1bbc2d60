package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/robotalks/rawlog/pkg/staging"
)

// Encode serializes an event as a protobuf Struct.
func Encode(ev *staging.Event) ([]byte, error) {
	fields := map[string]interface{}{
		"kind":            ev.Kind.String(),
		"run_id":          ev.RunID,
		"time":            ev.Time.UTC().Format(time.RFC3339Nano),
		"committed":       float64(ev.Committed),
		"available":       ev.Available,
		"high_water_mark": ev.HighWaterMark,
		"capacity":        ev.Capacity,
		"dropped":         ev.Dropped,
		"threshold":       ev.Threshold,
		"blocks":          float64(ev.Blocks),
		"write_p50_us":    ev.WriteP50.Microseconds(),
		"write_p99_us":    ev.WriteP99.Microseconds(),
		"write_max_us":    ev.WriteMax.Microseconds(),
	}
	if ev.Err != nil {
		fields["error"] = ev.Err.Error()
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Decode is the reverse of Encode.
// The error of a failed event is restored as a plain message.
func Decode(data []byte) (*staging.Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	f := s.GetFields()
	kind, ok := staging.ParseEventKind(f["kind"].GetStringValue())
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", f["kind"].GetStringValue())
	}
	ev := &staging.Event{
		Kind:          kind,
		RunID:         f["run_id"].GetStringValue(),
		Committed:     uint64(f["committed"].GetNumberValue()),
		Available:     int(f["available"].GetNumberValue()),
		HighWaterMark: int(f["high_water_mark"].GetNumberValue()),
		Capacity:      int(f["capacity"].GetNumberValue()),
		Dropped:       int(f["dropped"].GetNumberValue()),
		Threshold:     int(f["threshold"].GetNumberValue()),
		Blocks:        uint64(f["blocks"].GetNumberValue()),
		WriteP50:      time.Duration(f["write_p50_us"].GetNumberValue()) * time.Microsecond,
		WriteP99:      time.Duration(f["write_p99_us"].GetNumberValue()) * time.Microsecond,
		WriteMax:      time.Duration(f["write_max_us"].GetNumberValue()) * time.Microsecond,
	}
	if ts := f["time"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		ev.Time = t
	}
	if msg := f["error"].GetStringValue(); msg != "" {
		ev.Err = errors.New(msg)
	}
	return ev, nil
}
