// Package acceptor owns the listening socket and hands every accepted
// connection to its own goroutine.
package acceptor

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const maxAcceptDelay = time.Second

// Acceptor dispatches connections without limit or backpressure.
type Acceptor struct {
	handle func(conn net.Conn)
	logger *log.Logger
	wg     sync.WaitGroup
}

// New creates an Acceptor that runs handle for every connection.
func New(handle func(conn net.Conn), logger *log.Logger) *Acceptor {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "acceptor",
		})
	}
	return &Acceptor{handle: handle, logger: logger}
}

// ListenAndServe binds addr and serves until ctx is done.
func (a *Acceptor) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ln is closed. Cancelling ctx closes
// ln. It returns nil after a cancellation and the accept error otherwise.
func (a *Acceptor) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			a.logger.Error("Failed to close listener", "err", err)
		}
	})
	defer stop()

	a.logger.Info("This server is ready to receive", "addr", ln.Addr().String())

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			a.logger.Error("Error accepting connection", "err", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handle(conn)
		}()
	}
}

// Wait blocks until every dispatched handler has returned.
func (a *Acceptor) Wait() {
	a.wg.Wait()
}
