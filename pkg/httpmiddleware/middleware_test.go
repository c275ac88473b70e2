package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func tag(name string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestWrap_Order(t *testing.T) {
	var order []string
	h := Wrap(okHandler(), tag("outer", &order), tag("inner", &order))

	hit(h, nil)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	})
	return r
}

func TestChiRouteFinder(t *testing.T) {
	find := ChiRouteFinder(newRouter())

	route, ok := find(httptest.NewRequest(http.MethodGet, "/api/products/42", nil))
	require.True(t, ok)
	assert.Equal(t, "/api/products/{id}", route)

	_, ok = find(httptest.NewRequest(http.MethodPost, "/api/products/42", nil))
	assert.False(t, ok)
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mux := newRouter()
	h := Wrap(mux, InjectLogger(zap.New(core)), RequestID(), LogRequests(ChiRouteFinder(mux)))

	hit(h, func(r *http.Request) {
		r.URL.Path = "/api/products/7"
		r.Header.Set(RequestIDHeader, "req-1")
	})
	hit(h, func(r *http.Request) { r.URL.Path = "/api/boom" })

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "/api/products/{id}", first["route"])
	assert.EqualValues(t, http.StatusOK, first["status"])
	assert.Equal(t, "req-1", first["request_id"])

	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusBadGateway, entries[1].ContextMap()["status"])
}

func TestInstrument_PassesThrough(t *testing.T) {
	mux := newRouter()
	h := Instrument("test", ChiRouteFinder(mux), tracenoop.NewTracerProvider(), noop.NewMeterProvider())(mux)

	w := hit(h, func(r *http.Request) { r.URL.Path = "/api/products/1" })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	h := Wrap(panicking, InjectLogger(zap.New(core)), Recovery())

	w := hit(h, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kaboom", logs.All()[0].ContextMap()["panic"])
}

func TestRecovery_AbortHandler(t *testing.T) {
	aborting := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) })
	h := Recovery()(aborting)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { hit(h, nil) })
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		zctx.From(r.Context()).Info("inside")
	}))

	tests := []struct {
		name     string
		incoming string
		reused   bool
	}{
		{name: "Reuse", incoming: "abc-123", reused: true},
		{name: "Missing", incoming: ""},
		{name: "TooLong", incoming: strings.Repeat("x", 129)},
		{name: "ControlChars", incoming: "bad\x01id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := hit(h, func(r *http.Request) {
				if tt.incoming != "" {
					r.Header.Set(RequestIDHeader, tt.incoming)
				}
			})
			got := w.Header().Get(RequestIDHeader)
			assert.Equal(t, got, seen)
			if tt.reused {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.Len(t, got, 36)
			}
		})
	}
}
