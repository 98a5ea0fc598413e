package translog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRecordLine(t *testing.T) {
	r := Record{
		ClientAddr: "127.0.0.1:53412",
		AccessTime: time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC),
		FileName:   "index.html",
		Status:     "HTTP/1.0 200 OK",
	}

	want := "Client Hostname/IP Address: 127.0.0.1:53412\t Access Time: Thu, 01 Jun 2023 12:00:00 GMT" +
		"\t Requested File Name: index.html\t Response Type: HTTP/1.0 200 OK\n"
	if got := r.Line(); got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}

func TestSinkConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HTTPLogFile.txt")
	sink, err := Open(path, 100)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := sink.Append(Record{
				ClientAddr: fmt.Sprintf("10.0.0.%d:1000", i),
				AccessTime: time.Now(),
				FileName:   strings.Repeat("f", 512),
				Status:     "HTTP/1.0 404 File Not Found",
			})
			if err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != writers {
		t.Fatalf("got %d lines, want %d", len(lines), writers)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "Client Hostname/IP Address: 10.0.0.") ||
			!strings.HasSuffix(line, "Response Type: HTTP/1.0 404 File Not Found") {
			t.Errorf("interleaved line: %q", line)
		}
	}
}

func TestSinkAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HTTPLogFile.txt")
	if err := os.WriteFile(path, []byte("previous\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink, err := Open(path, 100)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := sink.Append(Record{ClientAddr: "a", Status: "HTTP/1.0 200 OK"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	_ = sink.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.HasPrefix(string(data), "previous\nClient Hostname/IP Address: a") {
		t.Errorf("log content = %q", data)
	}
}

func TestSinkClosed(t *testing.T) {
	sink, err := Open(filepath.Join(t.TempDir(), "log.txt"), 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = sink.Close()

	if err := sink.Append(Record{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Append() error = %v, want %v", err, ErrClosed)
	}
}

func TestOpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "HTTPLogFile.txt")
	if _, err := Open(path, 1); err == nil {
		t.Error("Open() error = nil, want error for missing directory")
	}
}
