// Package translog writes one line per handled request to the shared
// transaction log file.
package translog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pelageech/fileserv/httpdate"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("transaction log is closed")

// Record describes one completed or failed request.
type Record struct {
	ClientAddr string
	AccessTime time.Time
	FileName   string
	Status     string
}

// Line renders the record in the log file format, newline included.
func (r Record) Line() string {
	return "Client Hostname/IP Address: " + r.ClientAddr +
		"\t Access Time: " + httpdate.Format(r.AccessTime) +
		"\t Requested File Name: " + r.FileName +
		"\t Response Type: " + r.Status + "\n"
}

// Appender accepts records from concurrent handlers.
type Appender interface {
	Append(r Record) error
}

// Sink serializes appends so that every record reaches the underlying writer
// as a single Write call.
type Sink struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

// NewSink wraps w.
func NewSink(w io.WriteCloser) *Sink {
	return &Sink{w: w}
}

// FileMode is the permission of a newly created log file. Rotated files keep
// the mode of the file they replace.
const FileMode os.FileMode = 0o644

// Open returns a Sink appending to the file at path. The file is created with
// FileMode if missing and rotated once it grows past maxSizeMB megabytes.
func Open(path string, maxSizeMB int) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, FileMode)
	if err != nil {
		return nil, fmt.Errorf("open transaction log: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("open transaction log: %w", err)
	}

	return NewSink(&lumberjack.Logger{
		Filename:  path,
		MaxSize:   maxSizeMB,
		LocalTime: false,
		Compress:  false,
	}), nil
}

// Append writes r as one line.
func (s *Sink) Append(r Record) error {
	line := []byte(r.Line())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	_, err := s.w.Write(line)
	return err
}

// Close closes the underlying writer. Further appends fail with ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}
