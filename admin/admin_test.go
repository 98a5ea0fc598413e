package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelageech/fileserv/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats map[string]stats.Counts

func (f fakeStats) Get(name string) (stats.Counts, error) {
	c, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", stats.ErrNoRecord, name)
	}
	return c, nil
}

func (f fakeStats) All() (map[string]stats.Counts, error) {
	return f, nil
}

var secret = []byte("test-secret")

func newTestRouter(withSecret bool) http.Handler {
	opts := Options{
		Logger: log.New(io.Discard),
		Metrics: http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
			_, _ = rw.Write([]byte("# metrics"))
		}),
		Stats: fakeStats{
			"index.html":     {200: 3, 304: 1},
			"docs/guide.txt": {404: 2},
		},
	}
	if withSecret {
		opts.Secret = secret
	}
	return NewRouter(opts)
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(newTestRouter(true), "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStats(t *testing.T) {
	h := newTestRouter(false)

	rec := get(h, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all map[string]map[string]uint64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, uint64(3), all["index.html"]["200"])

	rec = get(h, "/stats/docs/guide.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"404":2}`, rec.Body.String())

	rec = get(h, "/stats/missing.txt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenRequired(t *testing.T) {
	h := newTestRouter(true)

	valid, err := NewToken(secret, "operator", time.Minute)
	require.NoError(t, err)
	expired, err := NewToken(secret, "operator", -time.Minute)
	require.NoError(t, err)
	forged, err := NewToken([]byte("other"), "operator", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  int
	}{
		{name: "missing", token: "", code: http.StatusUnauthorized},
		{name: "garbage", token: "abc.def.ghi", code: http.StatusUnauthorized},
		{name: "expired", token: expired, code: http.StatusUnauthorized},
		{name: "wrong key", token: forged, code: http.StatusUnauthorized},
		{name: "valid", token: valid, code: http.StatusOK},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.code, get(h, "/metrics", test.token).Code)
			assert.Equal(t, test.code, get(h, "/stats", test.token).Code)
		})
	}
}
