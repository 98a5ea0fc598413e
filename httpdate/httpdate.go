// Package httpdate converts between timestamps and the textual HTTP-date form
// used by the Last-Modified and If-Modified-Since headers, and decides
// whether a resource is unchanged since a client-supplied date.
package httpdate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the IMF-fixdate layout. Whole-second precision only.
const Layout = "Mon, 02 Jan 2006 15:04:05 GMT"

// ErrMalformedDate is returned when a header value is not an HTTP-date.
var ErrMalformedDate = errors.New("malformed HTTP-date")

// Format renders t as an HTTP-date in UTC.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads an HTTP-date. Surrounding whitespace is ignored.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return t, nil
}

// Truncate passes t through Format and Parse so the result carries the same
// precision as any date a client can send back. It returns the truncated time
// together with its textual form.
func Truncate(t time.Time) (time.Time, string) {
	formatted := Format(t)
	truncated, err := Parse(formatted)
	if err != nil {
		// Format output always parses; fall back to arithmetic truncation.
		return t.UTC().Truncate(time.Second), formatted
	}
	return truncated, formatted
}

// Condition is the result of evaluating If-Modified-Since against a resource.
type Condition struct {
	// IfModifiedSince is the parsed header value, zero when Present is false.
	IfModifiedSince time.Time

	// Present reports whether the request carried the header.
	Present bool

	// NotModified is true when the resource was last modified at or before
	// IfModifiedSince.
	NotModified bool
}

// Evaluate compares the truncated lastModified against the raw header value.
// A header that does not parse is an error, never ignored.
func Evaluate(lastModified time.Time, header string, present bool) (Condition, error) {
	if !present {
		return Condition{}, nil
	}

	ims, err := Parse(header)
	if err != nil {
		return Condition{}, err
	}

	truncated, _ := Truncate(lastModified)
	return Condition{
		IfModifiedSince: ims,
		Present:         true,
		NotModified:     !truncated.After(ims),
	}, nil
}
