package env

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/robotalks/rawlog/pkg/sink"
	"github.com/robotalks/rawlog/pkg/sink/file"
	"github.com/robotalks/rawlog/pkg/sink/redis"
	"github.com/robotalks/rawlog/pkg/staging"
)

// OpenSink opens the comma separated sink URLs. Supported schemes:
//
//	file:///dir?prefix=rx&max-size=64MB&sync=true
//	redis://host:6379/0?key=blocks&max-len=10000
//
// prefix and key default to names derived from device.
// Multiple sinks receive every block.
func OpenSink(ctx context.Context, spec, device string) (staging.Sink, []io.Closer, error) {
	var sinks sink.Tee
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	for _, rawURL := range strings.Split(spec, ",") {
		if rawURL = strings.TrimSpace(rawURL); rawURL == "" {
			continue
		}
		s, closer, err := openSink(ctx, rawURL, device)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
		closers = append(closers, closer)
	}
	if len(sinks) == 0 {
		return nil, nil, fmt.Errorf("no sink in %q", spec)
	}
	if len(sinks) == 1 {
		return sinks[0], closers, nil
	}
	return sinks, closers, nil
}

type closableSink interface {
	staging.Sink
	io.Closer
}

func openSink(ctx context.Context, rawURL, device string) (closableSink, io.Closer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid sink URL: %w", err)
	}
	query := u.Query()
	switch u.Scheme {
	case "file":
		conf := file.Config{
			Dir:    u.Host + u.Path,
			Prefix: query.Get("prefix"),
			Sync:   query.Get("sync") == "true",
		}
		if conf.Prefix == "" {
			conf.Prefix = device
		}
		if val := query.Get("max-size"); val != "" {
			size, err := humanize.ParseBytes(val)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid max-size %q: %w", val, err)
			}
			conf.MaxFileSize = int64(size)
		}
		s, err := file.Open(conf)
		return s, s, err
	case "redis", "rediss":
		key := query.Get("key")
		if key == "" {
			key = "rawlog:" + device + ":blocks"
		}
		var maxLen int64
		if val := query.Get("max-len"); val != "" {
			if maxLen, err = strconv.ParseInt(val, 10, 64); err != nil {
				return nil, nil, fmt.Errorf("invalid max-len %q: %w", val, err)
			}
		}
		query.Del("key")
		query.Del("max-len")
		u.RawQuery = query.Encode()
		s, err := redis.Open(ctx, u.String(), key)
		if err != nil {
			return nil, nil, err
		}
		s.MaxLen = maxLen
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown sink URL scheme: %q", u.Scheme)
}
