package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pribylovaa/aihub-client/internal/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// navRecorder считает переходы на страницу входа.
type navRecorder struct {
	calls atomic.Int32
	path  atomic.Value
}

func (n *navRecorder) NavigateToLogin(_ context.Context, path string) {
	n.calls.Add(1)
	n.path.Store(path)
}

func newTestClient(t *testing.T, baseURL string, st tokenstore.Store, rt http.RoundTripper, mod ...func(*Options)) (*Client, *navRecorder) {
	t.Helper()

	nav := &navRecorder{}
	opts := Options{
		BaseURL:    baseURL,
		Store:      st,
		Transport:  rt,
		Logger:     silentLogger(),
		Navigator:  nav,
		UserAgent:  "aihub-test",
		Registerer: prometheus.NewRegistry(),
	}
	for _, m := range mod {
		m(&opts)
	}

	c, err := New(opts)
	require.NoError(t, err)

	return c, nav
}

func seededStore(t *testing.T, access, refresh string) *tokenstore.Memory {
	t.Helper()
	st := tokenstore.NewMemory()
	require.NoError(t, st.SetTokens(context.Background(), access, refresh))
	return st
}

func jsonResp(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

// backendConfig задаётся до старта сервера и дальше не меняется.
type backendConfig struct {
	valid         string
	refreshToken  string
	nextAccess    string
	rotateTo      string
	refreshStatus int
	// gate, если задан, держит refresh-ответ до закрытия канала.
	gate chan struct{}
	// rejectAll — сервер не принимает никакой access-токен.
	rejectAll bool
}

// backend — управляемый сервер: принимает только текущий валидный токен
// и обслуживает refresh-эндпоинт.
type backend struct {
	srv *httptest.Server
	cfg backendConfig

	mu    sync.Mutex
	valid string
	seen  []string

	refreshCalls atomic.Int32
}

func newBackend(t *testing.T, cfg backendConfig) *backend {
	t.Helper()

	b := &backend{cfg: cfg, valid: cfg.valid}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)

	return b
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == DefaultRefreshPath {
		b.refreshCalls.Add(1)
		if b.cfg.gate != nil {
			<-b.cfg.gate
		}
		b.refresh(w, r)
		return
	}

	b.mu.Lock()
	ok := !b.cfg.rejectAll && r.Header.Get("Authorization") == "Bearer "+b.valid
	if ok {
		b.seen = append(b.seen, r.URL.Path)
	}
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Not authenticated"}`)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
}

func (b *backend) refresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.refreshStatus != 0 {
		w.WriteHeader(b.cfg.refreshStatus)
		_, _ = io.WriteString(w, `{"detail":"Invalid refresh token"}`)
		return
	}

	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RefreshToken != b.cfg.refreshToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Invalid refresh token"}`)
		return
	}

	b.valid = b.cfg.nextAccess
	out := map[string]any{"access_token": b.cfg.nextAccess, "token_type": "bearer", "expires_in": 900}
	if b.cfg.rotateTo != "" {
		out["refresh_token"] = b.cfg.rotateTo
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (b *backend) seenPaths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seen...)
}

// expired — типовая конфигурация: у клиента A1/R1, сервер ждёт обновления до A2.
func expired() backendConfig {
	return backendConfig{valid: "A0", refreshToken: "R1", nextAccess: "A2"}
}
