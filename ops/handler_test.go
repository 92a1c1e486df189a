package ops

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawish/deck-ticker/ticker"
)

type stubLister struct {
	list []ticker.InstanceInfo
}

func (s *stubLister) ListAll() []ticker.InstanceInfo { return s.list }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func identity(next http.Handler) http.Handler { return next }

func newTestMux(lister InstanceLister, buf *Buffer) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandler(lister, buf, testLogger(), "v1.2.3", time.Now())
	h.RegisterRoutes(mux, identity)
	return mux
}

func TestServeHealth(t *testing.T) {
	lister := &stubLister{list: []ticker.InstanceInfo{{ID: "key1"}}}
	mux := newTestMux(lister, NewBuffer(8))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "v1.2.3", body.Version)
	assert.Equal(t, 1, body.Instances)
}

func TestServeInstances(t *testing.T) {
	lister := &stubLister{list: []ticker.InstanceInfo{
		{ID: "key1", Symbol: "BTCUSDT", HasPayload: true, LastPrice: "117,251", Trend: "up"},
	}}
	mux := newTestMux(lister, NewBuffer(8))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/instances", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body []ticker.InstanceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "BTCUSDT", body[0].Symbol)
}

func TestServeLogs(t *testing.T) {
	buf := NewBuffer(8)
	for _, msg := range []string{"one", "two", "three"} {
		buf.Append(Record{Message: msg})
	}
	mux := newTestMux(&stubLister{}, buf)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/logs?n=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body []Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "two", body[0].Message)
	assert.Equal(t, "three", body[1].Message)
}

func TestServeLogsRejectsBadCount(t *testing.T) {
	mux := newTestMux(&stubLister{}, NewBuffer(8))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/logs?n=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLimiterMiddleware(t *testing.T) {
	l := NewLimiter()
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// The burst is allowed, then requests are rejected.
	for i := 0; i < limiterBurst; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
		req.RemoteAddr = "127.0.0.1:5000"
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d inside burst", i)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client has its own budget.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ops/health", nil)
	req.RemoteAddr = "10.0.0.9:5000"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
