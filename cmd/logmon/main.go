package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/robotalks/rawlog/pkg/comm/mqtt"
	"github.com/robotalks/rawlog/pkg/report"
	"github.com/robotalks/rawlog/pkg/staging"
)

var (
	mqttURL  = "mqtt://localhost:1883/"
	device   = "+"
	kinds    string
	warnOnly bool
)

func init() {
	if val := os.Getenv("RAWLOG_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "device", device, "Device to monitor, + for all.")
	flag.StringVar(&kinds, "kinds", kinds, "Comma separated event kinds to show.")
	flag.BoolVar(&warnOnly, "warn", warnOnly, "Show warnings and failures only.")
}

func parseKinds(s string) map[staging.EventKind]bool {
	if s == "" {
		return nil
	}
	filter := make(map[staging.EventKind]bool)
	for _, name := range strings.Split(s, ",") {
		kind, ok := staging.ParseEventKind(strings.TrimSpace(name))
		if !ok {
			log.Fatalf("unknown event kind %q", name)
		}
		filter[kind] = true
	}
	return filter
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)
	filter := parseKinds(kinds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub(report.StatusTopic(device), mqtt.Handler(func(topic string, payload []byte) {
		log.Printf("%s: %s", topic, string(payload))
	}))
	q.Sub(report.EventsTopic(device), mqtt.Handler(func(topic string, payload []byte) {
		ev, err := report.Decode(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		if filter != nil && !filter[ev.Kind] {
			return
		}
		if warnOnly && !ev.Kind.IsWarning() && ev.Kind != staging.EventFailed {
			return
		}
		log.Printf("%s: %s", strings.TrimSuffix(topic, "/events"), report.Format(ev))
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := q.Connect(ctx); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()
	<-ctx.Done()
}
