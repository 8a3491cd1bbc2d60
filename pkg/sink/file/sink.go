// Package file writes blocks into a series of log files.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	humanize "github.com/dustin/go-humanize"
	"github.com/golang/glog"
)

// Extension of log files.
const Extension = ".ubx"

// Config configures a Sink.
type Config struct {
	Dir    string
	Prefix string
	// MaxFileSize rotates to a new file before it is exceeded. 0 disables
	// rotation.
	MaxFileSize int64
	// Sync flushes the file to the medium after every block.
	Sync bool
}

// Sink appends blocks to log files named <prefix>-<seq>.ubx.
type Sink struct {
	Config

	file    *os.File
	size    int64
	seq     int
	written uint64
}

// Open creates the directory if needed and opens the next log file.
// Existing files are never overwritten.
func Open(conf Config) (*Sink, error) {
	if conf.Prefix == "" {
		return nil, fmt.Errorf("file prefix is required")
	}
	if err := os.MkdirAll(conf.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	files, err := List(conf.Dir, conf.Prefix)
	if err != nil {
		return nil, err
	}
	s := &Sink{Config: conf}
	if n := len(files); n > 0 {
		fmt.Sscanf(filepath.Base(files[n-1]), conf.Prefix+"-%06d"+Extension, &s.seq)
	}
	if err := s.next(); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns log files with prefix in dir, ordered by sequence.
func List(dir, prefix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"-[0-9][0-9][0-9][0-9][0-9][0-9]"+Extension))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Name returns the current file path, empty once closed.
func (s *Sink) Name() string {
	if s.file == nil {
		return ""
	}
	return s.file.Name()
}

// Written returns total bytes written.
func (s *Sink) Written() uint64 {
	return s.written
}

// WriteBlock implements staging.Sink.
func (s *Sink) WriteBlock(p []byte) error {
	if s.file == nil {
		return os.ErrClosed
	}
	if s.MaxFileSize > 0 && s.size > 0 && s.size+int64(len(p)) > s.MaxFileSize {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	n, err := s.file.Write(p)
	s.size += int64(n)
	s.written += uint64(n)
	if err != nil {
		return err
	}
	if s.Sync {
		return s.file.Sync()
	}
	return nil
}

// Close implements io.Closer.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	glog.Infof("closing %s, %s", s.file.Name(), humanize.Bytes(uint64(s.size)))
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sink) rotate() error {
	if err := s.Close(); err != nil {
		return err
	}
	return s.next()
}

func (s *Sink) next() error {
	s.seq++
	name := filepath.Join(s.Dir, fmt.Sprintf("%s-%06d%s", s.Prefix, s.seq, Extension))
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	glog.Infof("logging to %s", name)
	s.file, s.size = f, 0
	return nil
}
