package timer

import (
	"net"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "timer",
})

// SetLevel sets the level of the timer logger.
func SetLevel(level log.Level) {
	logger.SetLevel(level)
}

// MakeConnTimeTracker wraps a connection handler so that the time spent on the
// connection, from hand-off to return, is passed to every saver.
func MakeConnTimeTracker(
	handler func(conn net.Conn),
	savers ...func(t time.Duration),
) func(conn net.Conn) {
	return func(conn net.Conn) {
		start := time.Now()
		handler(conn)
		elapsed := time.Since(start)
		for _, save := range savers {
			save(elapsed)
		}
	}
}

// SaveHandleTime logs the time a connection was held.
func SaveHandleTime(handleTime time.Duration) {
	logger.Debugf("Connection handled in %v", handleTime)
}
