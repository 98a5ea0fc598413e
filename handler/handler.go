// Package handler serves one HTTP/1.0 request per connection.
//
// Each connection runs through a fixed sequence of states:
//
//	parsing -> resolving -> evaluating -> emitting -> logging -> closed
//
// A failure in any state before emitting jumps straight to emitting with the
// outcome that failure maps to.
package handler

import (
	"bufio"
	"errors"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelageech/fileserv/httpdate"
	"github.com/pelageech/fileserv/metrics"
	"github.com/pelageech/fileserv/request"
	"github.com/pelageech/fileserv/resource"
	"github.com/pelageech/fileserv/response"
	"github.com/pelageech/fileserv/translog"
)

type state int

const (
	stateParsing state = iota
	stateResolving
	stateEvaluating
	stateEmitting
	stateLogging
	stateClosed
)

var stateNames = [...]string{"parsing", "resolving", "evaluating", "emitting", "logging", "closed"}

func (s state) String() string {
	return stateNames[s]
}

// StatsRecorder receives one call per logged response.
type StatsRecorder interface {
	Record(fileName string, code int) error
}

// Options configures a Handler. Translog is required; the rest may be zero.
type Options struct {
	Logger        *log.Logger
	Translog      translog.Appender
	Stats         StatsRecorder
	Metrics       *metrics.Metrics
	SanitizePaths bool
}

// Handler owns connections handed to it by the acceptor. It holds no
// per-request state and is safe for concurrent use.
type Handler struct {
	logger   *log.Logger
	translog translog.Appender
	stats    StatsRecorder
	metrics  *metrics.Metrics
	sanitize bool
	now      func() time.Time
}

// New creates a Handler.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "handler",
		})
	}

	return &Handler{
		logger:   logger,
		translog: opts.Translog,
		stats:    opts.Stats,
		metrics:  opts.Metrics,
		sanitize: opts.SanitizePaths,
		now:      time.Now,
	}
}

// exchange is the state of one connection. It never outlives Serve.
type exchange struct {
	client string

	method   string
	fileName string

	ifModifiedSince string
	hasIMS          bool

	res          *resource.Resource
	lastModified string

	outcome response.Outcome
	err     error
}

func (ex *exchange) fail(outcome response.Outcome, err error) state {
	ex.outcome = outcome
	ex.err = err
	return stateEmitting
}

// Serve handles conn from the first byte to close.
func (h *Handler) Serve(conn net.Conn) {
	h.metrics.RequestStarted()
	defer h.metrics.RequestFinished()

	ex := &exchange{client: conn.RemoteAddr().String()}
	h.logger.Info("Connection established", "client", ex.client)

	r := bufio.NewReader(conn)
	st := stateParsing
	logged := false
	for st != stateClosed {
		h.logger.Debug("State", "client", ex.client, "state", st)

		switch st {
		case stateParsing:
			st = h.parse(ex, r)
		case stateResolving:
			st = h.resolve(ex)
		case stateEvaluating:
			st = h.evaluate(ex)
		case stateEmitting:
			st = h.emit(ex, conn)
		case stateLogging:
			h.record(ex)
			logged = true
			st = stateClosed
		}
	}

	if err := conn.Close(); err != nil {
		h.logger.Warn("Failed to close connection", "client", ex.client, "err", err)
	} else {
		h.logger.Info("Connection closed", "client", ex.client)
	}

	// Stats are written after close so the client sees EOF without waiting
	// on the stats database.
	if logged {
		h.recordStats(ex)
	}
}

func (h *Handler) parse(ex *exchange, r *bufio.Reader) state {
	lines, err := request.ReadLines(r)
	if errors.Is(err, request.ErrEmptyRequest) ||
		errors.Is(err, request.ErrLineTooLong) ||
		errors.Is(err, request.ErrHeaderTooLarge) {
		return ex.fail(response.BadRequest, err)
	}
	if err != nil {
		return ex.fail(response.NotFound, err)
	}

	line, err := request.ParseLine(lines.RequestLine())
	ex.method = line.Method
	if line.Target != "" {
		ex.fileName = request.FilePath(line.Target)
	}
	if err != nil {
		return ex.fail(response.BadRequest, err)
	}

	ex.ifModifiedSince, ex.hasIMS = lines.IfModifiedSince()
	return stateResolving
}

func (h *Handler) resolve(ex *exchange) state {
	path := ex.fileName
	if h.sanitize {
		confined, err := resource.Confine(path)
		if err != nil {
			return ex.fail(response.NotFound, err)
		}
		path = confined
	}

	res, err := resource.Open(path)
	if err != nil {
		return ex.fail(response.NotFound, err)
	}
	ex.res = res
	return stateEvaluating
}

func (h *Handler) evaluate(ex *exchange) state {
	_, ex.lastModified = httpdate.Truncate(ex.res.LastModified)

	cond, err := httpdate.Evaluate(ex.res.LastModified, ex.ifModifiedSince, ex.hasIMS)
	if err != nil {
		ex.lastModified = ""
		return ex.fail(response.BadRequest, err)
	}

	if cond.NotModified {
		ex.outcome = response.NotModified
	} else {
		ex.outcome = response.OK
	}
	return stateEmitting
}

func (h *Handler) emit(ex *exchange, conn net.Conn) state {
	resp := response.Response{
		Outcome:      ex.outcome,
		LastModified: ex.lastModified,
		SendBody:     ex.method == request.MethodGet,
	}
	if ex.res != nil {
		resp.Body = ex.res.Content
	}

	bodyBytes, err := response.Write(conn, resp)
	if err == nil {
		h.metrics.ObserveResponse(ex.outcome.Code(), bodyBytes)
		return stateLogging
	}

	if ex.err != nil {
		// The error response itself could not be sent.
		h.logger.Warn("Connection aborted", "client", ex.client, "err", err, "cause", ex.err)
		return stateClosed
	}

	h.logger.Warn("Failed to write response", "client", ex.client, "response", ex.outcome, "err", err)
	ex.outcome, ex.err, ex.lastModified, ex.res = response.NotFound, err, "", nil
	return stateEmitting
}

func (h *Handler) record(ex *exchange) {
	status := ex.outcome.StatusLine()

	keyvals := []interface{}{
		"method", ex.method,
		"client", ex.client,
		"file", ex.fileName,
		"response", status,
	}
	if ex.hasIMS {
		keyvals = append(keyvals, "if_modified_since", ex.ifModifiedSince)
	}
	if ex.err != nil {
		keyvals = append(keyvals, "err", ex.err)
	}
	h.logger.Info("Request handled", keyvals...)

	err := h.translog.Append(translog.Record{
		ClientAddr: ex.client,
		AccessTime: h.now(),
		FileName:   ex.fileName,
		Status:     status,
	})
	if err != nil {
		h.logger.Error("Failed to write transaction log", "client", ex.client, "err", err)
	}
}

func (h *Handler) recordStats(ex *exchange) {
	if h.stats == nil {
		return
	}
	if err := h.stats.Record(ex.fileName, ex.outcome.Code()); err != nil {
		h.logger.Error("Failed to record stats", "client", ex.client, "file", ex.fileName, "err", err)
	}
}
