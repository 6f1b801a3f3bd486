package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/pkg/log"
)

// capHandler — тестовый slog.Handler: собирает attrs последней записи
// вместе с базовыми attrs из Logger.With.
type capHandler struct {
	mu      sync.Mutex
	base    []slog.Attr
	lastMsg string
	attrs   map[string]any
	count   int
}

func (h *capHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]any, len(h.base)+8)
	for _, a := range h.base {
		out[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.Any()
		return true
	})
	h.count++
	h.lastMsg = r.Message
	h.attrs = out

	return nil
}

func (h *capHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.base = append(h.base, attrs...)
	return h
}

func (h *capHandler) WithGroup(string) slog.Handler { return h }

type validatorFunc func(string) (string, error)

func (f validatorFunc) Validate(tok string) (string, error) { return f(tok) }

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()

	var body apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

	return body
}

func TestChain_Order(t *testing.T) {
	order := []string{}
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-begin")
				next.ServeHTTP(w, r)
				order = append(order, name+"-end")
			})
		}
	}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	Chain(final, mw("m1"), mw("m2")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chain", nil))

	require.Equal(t, []string{"m1-begin", "m2-begin", "handler", "m2-end", "m1-end"}, order)
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	var seen string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	})

	rr := httptest.NewRecorder()
	Chain(h, RequestID()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rid", nil))

	id := rr.Header().Get("X-Request-Id")
	require.Len(t, id, 36)
	require.Equal(t, id, seen)
}

func TestRequestID_UseExisting(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set("X-Request-Id", "given-id")

	rr := httptest.NewRecorder()
	Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), RequestID()).ServeHTTP(rr, req)

	require.Equal(t, "given-id", rr.Header().Get("X-Request-Id"))
}

func TestAuthenticate(t *testing.T) {
	v := validatorFunc(func(tok string) (string, error) {
		if tok == "good" {
			return "u1", nil
		}
		return "", errors.New("bad token")
	})

	cases := []struct {
		name       string
		header     string
		target     string
		allowQuery bool
		status     int
		user       string
	}{
		{name: "bearer", header: "Bearer good", target: "/", status: http.StatusOK, user: "u1"},
		{name: "lowercase scheme", header: "bearer good", target: "/", status: http.StatusOK, user: "u1"},
		{name: "missing", target: "/", status: http.StatusUnauthorized},
		{name: "basic", header: "Basic good", target: "/", status: http.StatusUnauthorized},
		{name: "rejected", header: "Bearer bad", target: "/", status: http.StatusUnauthorized},
		{name: "query allowed", target: "/?access_token=good", allowQuery: true, status: http.StatusOK, user: "u1"},
		{name: "query not allowed", target: "/?access_token=good", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var user string
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user, _ = UserIDFrom(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			Chain(h, Authenticate(v, tc.allowQuery)).ServeHTTP(rr, req)

			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, tc.user, user)
			if tc.status == http.StatusUnauthorized {
				require.Equal(t, "Could not validate credentials", decodeErr(t, rr).Detail)
			}
		})
	}
}

func TestTimeout_SetsDeadline_WhenAbsent(t *testing.T) {
	var has bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, has = r.Context().Deadline()
	})

	Chain(h, Timeout(50*time.Millisecond)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, has)

	has = false
	Chain(h, Timeout(0)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, has)
}

func TestTimeout_DoesNotOverrideExistingDeadline(t *testing.T) {
	var child time.Time
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		child, _ = r.Context().Deadline()
	})

	parent, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(parent)
	Chain(h, Timeout(time.Second)).ServeHTTP(httptest.NewRecorder(), req)

	pd, _ := parent.Deadline()
	require.WithinDuration(t, pd, child, time.Millisecond)
}

func TestTimeout_ExpiredWithoutAnswer_Writes504(t *testing.T) {
	ch := &capHandler{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/", nil)
	req.Header.Set("X-Request-Id", "rid-504")
	req = req.WithContext(log.Into(req.Context(), slog.New(ch)))

	rr := httptest.NewRecorder()
	Chain(h, Timeout(10*time.Millisecond)).ServeHTTP(rr, req)

	require.Equal(t, http.StatusGatewayTimeout, rr.Code)
	body := decodeErr(t, rr)
	require.Equal(t, "deadline_exceeded", body.Code)
	require.Equal(t, "rid-504", body.RequestID)

	require.Equal(t, "request_timeout", ch.lastMsg)
	require.Equal(t, false, ch.attrs["answered"])
}

func TestTimeout_KeepsAnswerWrittenBeforeDeadline(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		<-r.Context().Done()
	})

	rr := httptest.NewRecorder()
	Chain(h, Timeout(10*time.Millisecond)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Empty(t, rr.Body.String())
}

func TestRecover_ConvertsPanicTo500(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	Chain(h, Recover()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeErr(t, rr)
	require.Equal(t, "internal", body.Code)
	require.NotContains(t, body.Detail, "boom")
}

func TestLogging_RecordWithoutTokenInPath(t *testing.T) {
	ch := &capHandler{}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?access_token=secret-jwt", nil)
	req.Header.Set("X-Request-Id", "rid-456")

	rr := httptest.NewRecorder()
	Chain(final, RequestID(), Logging(slog.New(ch))).ServeHTTP(rr, req)

	require.Equal(t, 1, ch.count)
	require.Equal(t, "http", ch.lastMsg)
	require.Equal(t, "rid-456", ch.attrs["request_id"])
	require.EqualValues(t, http.StatusOK, ch.attrs["status"])
	require.EqualValues(t, 10, ch.attrs["bytes"])

	path, _ := ch.attrs["path"].(string)
	require.True(t, strings.HasPrefix(path, "/api/v1/events"))
	require.NotContains(t, path, "secret-jwt")
}

func TestStatusWriter_FlushPassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := newStatusWriter(rr)

	var f http.Flusher = sw
	f.Flush()

	require.True(t, rr.Flushed)
	require.Equal(t, http.StatusOK, sw.Status())
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()

	r := chi.NewRouter()
	r.Use(Instrument(reg))
	r.Get("/api/v1/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/notes/n1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/notes/n2", nil))

	const want = `
# HELP aihub_devserver_http_requests_total HTTP requests by method, route and status code.
# TYPE aihub_devserver_http_requests_total counter
aihub_devserver_http_requests_total{code="404",method="GET",route="/api/v1/notes/{id}"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "aihub_devserver_http_requests_total"))
}
