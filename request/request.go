// Package request reads and tokenizes the header block of an HTTP/1.0
// request.
package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	MethodGet  = "GET"
	MethodHead = "HEAD"

	ifModifiedSinceToken = "If-Modified-Since:"

	// MaxLineBytes bounds a single header line, terminator included.
	MaxLineBytes = 8 << 10
	// MaxHeaderBytes bounds the whole header block.
	MaxHeaderBytes = 64 << 10
)

var (
	// ErrEmptyRequest is returned when the connection ends before any line.
	ErrEmptyRequest = errors.New("empty request")

	// ErrMalformedRequestLine is returned when the request line lacks a method or target.
	ErrMalformedRequestLine = errors.New("malformed request line")

	// ErrUnsupportedMethod is returned for any method other than GET and HEAD.
	ErrUnsupportedMethod = errors.New("unsupported method")

	// ErrLineTooLong is returned when a header line exceeds MaxLineBytes.
	ErrLineTooLong = errors.New("header line too long")

	// ErrHeaderTooLarge is returned when the header block exceeds MaxHeaderBytes.
	ErrHeaderTooLarge = errors.New("header block too large")
)

// Lines is the header block of a request in arrival order.
// Lines[0] is the request line.
type Lines []string

// Line is a tokenized request line.
type Line struct {
	Method string
	Target string
}

// ReadLines reads lines until an empty line. A connection closed after at
// least one line also ends the block. Lines longer than MaxLineBytes and
// blocks larger than MaxHeaderBytes are rejected.
func ReadLines(r *bufio.Reader) (Lines, error) {
	var (
		lines Lines
		total int
	)
	for {
		raw, err := readLine(r)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		total += len(raw)
		if total > MaxHeaderBytes {
			return nil, ErrHeaderTooLarge
		}

		line := strings.TrimRight(raw, "\r\n")
		if line != "" {
			lines = append(lines, line)
		}

		if errors.Is(err, io.EOF) || line == "" {
			break
		}
	}

	if len(lines) == 0 {
		return nil, ErrEmptyRequest
	}
	return lines, nil
}

// readLine returns one line including its terminator, or the partial line
// before io.EOF.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > MaxLineBytes {
			return "", ErrLineTooLong
		}
		buf = append(buf, chunk...)

		switch {
		case err == nil:
			return string(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return string(buf), io.EOF
		default:
			return string(buf), fmt.Errorf("read request: %w", err)
		}
	}
}

// RequestLine returns the first line, or "" if there is none.
func (l Lines) RequestLine() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// IfModifiedSince returns the raw value of the first If-Modified-Since header
// line. Only the exact token "If-Modified-Since:" matches.
func (l Lines) IfModifiedSince() (string, bool) {
	if len(l) < 2 {
		return "", false
	}

	for _, line := range l[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != ifModifiedSinceToken {
			continue
		}

		_, value, _ := strings.Cut(line, ifModifiedSinceToken)
		return strings.TrimSpace(value), true
	}
	return "", false
}

// ParseLine tokenizes the request line by whitespace. For an unsupported
// method the returned Line still carries the target when one was sent.
func ParseLine(line string) (Line, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Line{}, ErrMalformedRequestLine
	}

	parsed := Line{Method: fields[0]}
	if len(fields) > 1 {
		parsed.Target = fields[1]
	}

	if parsed.Method != MethodGet && parsed.Method != MethodHead {
		return parsed, fmt.Errorf("%w: %s", ErrUnsupportedMethod, parsed.Method)
	}
	if parsed.Target == "" {
		return parsed, ErrMalformedRequestLine
	}
	return parsed, nil
}

// FilePath strips exactly one leading slash from target. No other
// normalization is applied.
func FilePath(target string) string {
	return strings.TrimPrefix(target, "/")
}
