package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, calls)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := serve(h, request("10.0.0.1:1", map[string]string{RequestIDHeader: "req-123"}))
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	for _, bad := range []string{"", strings.Repeat("a", 129), "bad\x01id"} {
		w = serve(h, request("10.0.0.1:1", map[string]string{RequestIDHeader: bad}))
		assert.Len(t, seen, 36, "input %q", bad)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	}
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), InjectLogger(zap.New(core)), Recovery())

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal", body["code"])
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	r := chi.NewRouter()
	r.Use(RequestID(), InjectLogger(zap.New(core)), LogRequests())
	r.Get("/api/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Handling")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}"))
	})

	serve(r, request("10.0.0.1:1", map[string]string{RequestIDHeader: "req-9"}))
	req := httptest.NewRequest(http.MethodGet, "/api/orders/o-42", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	serve(r, req)

	entries := logs.FilterMessage("Request").All()
	require.Len(t, entries, 2)

	unmatched := entries[0].ContextMap()
	assert.Equal(t, "unmatched", unmatched["route"])

	got := entries[1].ContextMap()
	assert.Equal(t, "/api/orders/{orderID}", got["route"])
	assert.Equal(t, int64(http.StatusNotFound), got["status"])
	assert.Equal(t, int64(2), got["bytes"])
	assert.Equal(t, "req-9", got["request_id"])

	handling := logs.FilterMessage("Handling").All()
	require.Len(t, handling, 1)
	assert.Equal(t, "req-9", handling[0].ContextMap()["request_id"])
}
