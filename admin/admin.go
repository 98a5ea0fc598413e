// Package admin serves the operator API next to the file server: health,
// Prometheus metrics and per-file response counters.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pelageech/fileserv/stats"
)

// StatsReader is the read side of the stats store.
type StatsReader interface {
	Get(fileName string) (stats.Counts, error)
	All() (map[string]stats.Counts, error)
}

// Options configures the admin router. Zero fields disable what they serve.
type Options struct {
	Logger  *log.Logger
	Metrics http.Handler
	Stats   StatsReader

	// Secret is the HS256 key tokens are checked against. Empty disables auth.
	Secret []byte
}

type server struct {
	logger *log.Logger
	stats  StatsReader
}

// NewRouter builds the admin HTTP handler.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "admin",
		})
	}
	s := &server{logger: logger, stats: opts.Stats}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if len(opts.Secret) > 0 {
			r.Use(requireToken(opts.Secret))
		}
		if opts.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", opts.Metrics)
		}
		if opts.Stats != nil {
			r.Get("/stats", s.allStatsHandler)
			r.Get("/stats/*", s.fileStatsHandler)
		}
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		s.logger.Debug("admin request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", req.RemoteAddr,
		)
	})
}

func (s *server) allStatsHandler(rw http.ResponseWriter, _ *http.Request) {
	all, err := s.stats.All()
	if err != nil {
		s.logger.Error("Failed to read stats", "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(rw, all)
}

func (s *server) fileStatsHandler(rw http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "*")
	counts, err := s.stats.Get(name)
	if errors.Is(err, stats.ErrNoRecord) {
		http.Error(rw, "No record for "+name, http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to read stats", "file", name, "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(rw, counts)
}

func writeJSON(rw http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(rw, "Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = rw.Write(b)
}

// requireToken rejects requests without a valid, unexpired HS256 bearer token.
func requireToken(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(*jwt.Token) (interface{}, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			raw, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				http.Error(rw, "Unauthorized", http.StatusUnauthorized)
				return
			}

			_, err := jwt.Parse(raw, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithExpirationRequired(),
			)
			if err != nil {
				http.Error(rw, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(rw, req)
		})
	}
}

// NewToken signs an operator token valid for ttl.
func NewToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
