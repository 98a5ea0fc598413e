package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/boltdb/bolt"
	"github.com/charmbracelet/log"
	"github.com/pelageech/fileserv/acceptor"
	"github.com/pelageech/fileserv/admin"
	"github.com/pelageech/fileserv/config"
	"github.com/pelageech/fileserv/handler"
	"github.com/pelageech/fileserv/metrics"
	"github.com/pelageech/fileserv/stats"
	"github.com/pelageech/fileserv/timer"
	"github.com/pelageech/fileserv/translog"
)

const (
	port         = 8080
	translogPath = "HTTPLogFile.txt"
	configPath   = "./resources/config.json"

	statsOpenTimeout = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Prefix:          "fileserv",
})

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func subLogger(prefix string, level log.Level) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	l.SetLevel(level)
	return l
}

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", "path", configPath, "err", err)
	}

	level := parseLevel(cfg.LogLevel)
	logger.SetLevel(level)
	timer.SetLevel(level)

	logger.Info("Config loaded",
		"admin_addr", cfg.AdminAddr,
		"log_level", cfg.LogLevel,
		"stats_path", cfg.StatsPath,
		"sanitize_paths", cfg.SanitizePaths,
	)
	if !cfg.SanitizePaths {
		logger.Warn("Request paths are not sanitized: any file readable by this process can be served")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := translog.Open(translogPath, cfg.TranslogMaxSizeMB)
	if err != nil {
		logger.Fatal("Failed to open transaction log", "path", translogPath, "err", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("Failed to close transaction log", "err", err)
		}
	}()

	m := metrics.NewMetrics()
	go m.Observe(ctx)

	opts := handler.Options{
		Logger:        subLogger("handler", level),
		Translog:      sink,
		Metrics:       m,
		SanitizePaths: cfg.SanitizePaths,
	}

	var statsService *stats.Service
	if cfg.StatsPath != "" {
		statsService = &stats.Service{}
		statsService.SetLogger(subLogger("stats", level))
		if err := statsService.Connect(cfg.StatsPath, 0o600, &bolt.Options{Timeout: statsOpenTimeout}); err != nil {
			logger.Fatal("Failed to open stats database", "path", cfg.StatsPath, "err", err)
		}
		defer func() {
			if err := statsService.Close(); err != nil {
				logger.Error("Failed to close stats database", "err", err)
			}
		}()
		opts.Stats = statsService
	}

	h := handler.New(opts)
	a := acceptor.New(
		timer.MakeConnTimeTracker(h.Serve, timer.SaveHandleTime, m.ObserveHandleTime),
		subLogger("acceptor", level),
	)

	var adminServer *http.Server
	if cfg.AdminAddr != "" {
		adminOpts := admin.Options{
			Logger:  subLogger("admin", level),
			Metrics: m.Handler(),
			Secret:  []byte(cfg.AdminSecret),
		}
		if statsService != nil {
			adminOpts.Stats = statsService
		}
		adminServer = &http.Server{Addr: cfg.AdminAddr, Handler: admin.NewRouter(adminOpts)}

		go func() {
			logger.Info("Admin API listening", "addr", cfg.AdminAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Admin API failed", "err", err)
			}
		}()
	}

	if err := a.ListenAndServe(ctx, ":"+strconv.Itoa(port)); err != nil {
		logger.Error("Acceptor stopped", "err", err)
	}

	logger.Info("Shutting down, waiting for open connections")
	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("Grace period exceeded, leaving open connections behind")
	}

	if adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Admin API shutdown failed", "err", err)
		}
	}
}
