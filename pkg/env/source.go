package env

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"

	"github.com/robotalks/rawlog/pkg/comm/stream"
	"github.com/robotalks/rawlog/pkg/comm/websocket"
	"github.com/robotalks/rawlog/pkg/source"
	"github.com/robotalks/rawlog/pkg/staging"
	"github.com/robotalks/rawlog/pkg/ubx"
)

// OpenSource opens the receiver at rawURL. Supported schemes:
//
//	serial:///dev/ttyACM0   receiver port, the line must be configured already
//	tcp://host:port         receiver port bridged to TCP
//	stream+tcp://host:port  4-byte length prefixed packets
//	ws://host/path          websocket binary messages
//	file:///path/log.ubx    replay of a captured log
//
// The returned closer releases the underlying connection. It is shared with
// the source, which closes the connection when its reader stops, so closing
// twice is harmless.
func OpenSource(ctx context.Context, rawURL string, holdingSize int) (staging.Source, io.Closer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid source URL: %w", err)
	}
	switch u.Scheme {
	case "serial":
		f, err := os.OpenFile(u.Host+u.Path, os.O_RDWR, 0)
		if err != nil {
			return nil, nil, err
		}
		return receiver(f, holdingSize)
	case "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, nil, err
		}
		return receiver(conn, holdingSize)
	case "stream+tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, nil, err
		}
		src, err := source.NewPackets(stream.New(conn), holdingSize)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		closer := &onceCloser{closer: conn}
		src.Closer = closer
		return src, closer, nil
	case "ws", "wss":
		origin := "http://localhost/"
		if u.Scheme == "wss" {
			origin = "https://localhost/"
		}
		rw, err := websocket.Dial(rawURL, origin)
		if err != nil {
			return nil, nil, err
		}
		src, err := source.NewPackets(rw, holdingSize)
		if err != nil {
			rw.Close()
			return nil, nil, err
		}
		closer := &onceCloser{closer: rw}
		src.Closer = closer
		return src, closer, nil
	case "file":
		f, err := os.Open(u.Host + u.Path)
		if err != nil {
			return nil, nil, err
		}
		return source.NewReader(f), f, nil
	}
	return nil, nil, fmt.Errorf("unknown source URL scheme: %q", u.Scheme)
}

func receiver(rw io.ReadWriteCloser, holdingSize int) (staging.Source, io.Closer, error) {
	closer := &onceCloser{closer: rw}
	r, err := ubx.NewReceiver(port{ReadWriter: rw, onceCloser: closer}, holdingSize)
	if err != nil {
		rw.Close()
		return nil, nil, err
	}
	return r, closer, nil
}

// onceCloser closes the underlying closer once and returns the result of
// that first Close afterwards.
type onceCloser struct {
	closer io.Closer
	once   sync.Once
	err    error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() { c.err = c.closer.Close() })
	return c.err
}

type port struct {
	io.ReadWriter
	*onceCloser
}
