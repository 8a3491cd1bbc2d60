// Package redis appends blocks to a Redis list, e.g. to stream a
// receiver to a base station.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultTimeout bounds a single block write.
const DefaultTimeout = 5 * time.Second

// Sink implements staging.Sink using RPUSH.
type Sink struct {
	Client *goredis.Client
	Key    string
	// MaxLen trims the list to the newest MaxLen blocks. 0 keeps all.
	MaxLen  int64
	Timeout time.Duration
}

// Open connects to the server at redisURL, e.g. redis://host:6379/0,
// and verifies the connection.
func Open(ctx context.Context, redisURL, key string) (*Sink, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	s := &Sink{Client: goredis.NewClient(opts), Key: key, Timeout: DefaultTimeout}
	if err := s.Client.Ping(ctx).Err(); err != nil {
		s.Client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return s, nil
}

// WriteBlock implements staging.Sink.
func (s *Sink) WriteBlock(p []byte) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if s.MaxLen <= 0 {
		return s.Client.RPush(ctx, s.Key, p).Err()
	}
	pipe := s.Client.TxPipeline()
	pipe.RPush(ctx, s.Key, p)
	pipe.LTrim(ctx, s.Key, -s.MaxLen, -1)
	_, err := pipe.Exec(ctx)
	return err
}

// Close implements io.Closer.
func (s *Sink) Close() error {
	return s.Client.Close()
}
