package report

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rawlog/pkg/comm/mqtt"
	"github.com/robotalks/rawlog/pkg/staging"
)

// DefaultBacklog is the number of events queued while the broker is slow.
const DefaultBacklog = 64

const publishTimeout = 2 * time.Second

// Status payloads published retained on <device>/status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// EventsTopic returns the events topic of a device.
func EventsTopic(device string) string {
	return device + "/events"
}

// StatusTopic returns the status topic of a device.
func StatusTopic(device string) string {
	return device + "/status"
}

// MQTT publishes events to <prefix><device>/events.
// Report never blocks; events are dropped when the backlog is full.
type MQTT struct {
	Queue  *mqtt.Queue
	Device string

	eventCh chan *staging.Event
	dropped atomic.Uint64
}

// NewMQTT creates a MQTT reporter with an existing queue.
func NewMQTT(q *mqtt.Queue, device string, backlog int) *MQTT {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &MQTT{Queue: q, Device: device, eventCh: make(chan *staging.Event, backlog)}
}

// NewMQTTFromURL creates a MQTT reporter connecting to brokerURL.
// The broker marks the device offline if the connection is lost.
func NewMQTTFromURL(brokerURL, device string) (*MQTT, error) {
	opts, topicPrefix, err := mqtt.ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+StatusTopic(device), []byte(StatusOffline), 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("rawlog:" + device)
	}
	return NewMQTT(mqtt.NewQueue(opts, topicPrefix), device, 0), nil
}

// Name implements framework.Named.
func (m *MQTT) Name() string {
	return "mqtt-reporter"
}

// Report implements staging.Reporter.
func (m *MQTT) Report(ev *staging.Event) {
	select {
	case m.eventCh <- ev:
	default:
		m.dropped.Add(1)
	}
}

// Dropped returns the number of events not published.
func (m *MQTT) Dropped() uint64 {
	return m.dropped.Load()
}

// Run implements framework.Runnable.
// Queued events are published before returning.
func (m *MQTT) Run(ctx context.Context) error {
	if err := m.Queue.Connect(ctx); err != nil {
		glog.Errorf("mqtt reporter disabled: %v", err)
		return err
	}
	defer m.Queue.Close()
	m.publishStatus(StatusOnline)
	for {
		select {
		case ev := <-m.eventCh:
			m.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-m.eventCh:
					m.publish(ev)
				default:
					m.publishStatus(StatusOffline)
					return ctx.Err()
				}
			}
		}
	}
}

func (m *MQTT) publish(ev *staging.Event) {
	payload, err := Encode(ev)
	if err != nil {
		glog.Errorf("encode event: %v", err)
		return
	}
	var qos byte
	if ev.Kind != staging.EventProgress {
		qos = 1
	}
	token := m.Queue.PubWith(EventsTopic(m.Device), payload, qos, false)
	if !token.WaitTimeout(publishTimeout) {
		glog.Warningf("publish %s event timed out", ev.Kind)
	} else if err := token.Error(); err != nil {
		glog.Warningf("publish %s event: %v", ev.Kind, err)
	}
}

func (m *MQTT) publishStatus(status string) {
	token := m.Queue.PubWith(StatusTopic(m.Device), []byte(status), 1, true)
	token.WaitTimeout(publishTimeout)
}
