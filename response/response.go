// Package response maps request outcomes to HTTP/1.0 status lines and writes
// responses to the client.
package response

import (
	"bufio"
	"io"
)

// Outcome is the single source of truth for what a response contains.
type Outcome int

const (
	OK Outcome = iota
	NotModified
	BadRequest
	NotFound
)

const crlf = "\r\n"

var statusLines = map[Outcome]string{
	OK:          "HTTP/1.0 200 OK",
	NotModified: "HTTP/1.0 304 Not Modified",
	BadRequest:  "HTTP/1.0 400 Bad Request",
	NotFound:    "HTTP/1.0 404 File Not Found",
}

var statusCodes = map[Outcome]int{
	OK:          200,
	NotModified: 304,
	BadRequest:  400,
	NotFound:    404,
}

// StatusLine returns the full status line without the line terminator.
func (o Outcome) StatusLine() string {
	return statusLines[o]
}

// Code returns the numeric status code.
func (o Outcome) Code() int {
	return statusCodes[o]
}

func (o Outcome) String() string {
	return o.StatusLine()
}

// HasLastModified reports whether the outcome carries a Last-Modified header.
func (o Outcome) HasLastModified() bool {
	return o == OK || o == NotModified
}

// Response is everything needed to serialize one reply.
type Response struct {
	Outcome Outcome

	// LastModified is the formatted HTTP-date; used only for OK and NotModified.
	LastModified string

	// Body is sent only when Outcome is OK and SendBody is set.
	Body     []byte
	SendBody bool
}

// BodySent reports whether Write will emit the body.
func (r Response) BodySent() bool {
	return r.Outcome == OK && r.SendBody
}

// Write serializes r to w as a status line, an optional Last-Modified header,
// a blank line and an optional body. The whole response goes out in one flush.
func Write(w io.Writer, r Response) (int64, error) {
	size := 4096
	if r.BodySent() {
		size += len(r.Body)
	}
	bw := bufio.NewWriterSize(w, size)

	_, _ = bw.WriteString(r.Outcome.StatusLine() + crlf)
	if r.Outcome.HasLastModified() && r.LastModified != "" {
		_, _ = bw.WriteString("Last-Modified: " + r.LastModified + crlf)
	}
	_, _ = bw.WriteString(crlf)

	var bodyLen int64
	if r.BodySent() {
		_, _ = bw.Write(r.Body)
		bodyLen = int64(len(r.Body))
	}

	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return bodyLen, nil
}
