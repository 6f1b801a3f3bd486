package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pribylovaa/aihub-client/internal/tokenstore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// Тесты координатора обновления токена:
//   - single-flight: N одновременных 401 -> ровно один refresh (N = 1, 2, 10);
//   - FIFO: повторы уходят в порядке вступления в очередь с одним и тем же токеном;
//   - повтор выполняется один раз, повторный 401 окончательный;
//   - refresh-токен не меняется (и меняется только при включённой ротации);
//   - отказ refresh очищает учётные данные, все ждущие получают session expired;
//   - отмена ожидающего не задерживает остальных;
//   - поздний 401 после неудачного эпизода не запускает второй эпизод;
//   - зависший повтор одного участника не держит очередь дольше handoff.

const waitFor = 3 * time.Second

func TestRefresh_SingleFlight(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 10} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			t.Parallel()

			cfg := expired()
			cfg.gate = make(chan struct{})
			b := newBackend(t, cfg)
			st := seededStore(t, "A1", "R1")
			c, nav := newTestClient(t, b.srv.URL, st, nil)

			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = Get[map[string]string](context.Background(), c, fmt.Sprintf("/api/v1/notes/%d", i), nil)
				}(i)
			}

			require.Eventually(t, func() bool { return c.refresher.pending() == n }, waitFor, time.Millisecond)
			close(cfg.gate)
			wg.Wait()

			for _, err := range errs {
				require.NoError(t, err)
			}
			require.Equal(t, int32(1), b.refreshCalls.Load())
			require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.refresh.WithLabelValues(refreshSuccess)))
			require.Equal(t, float64(n), testutil.ToFloat64(c.metrics.replays))
			require.Len(t, b.seenPaths(), n)
			require.Zero(t, nav.calls.Load())

			at, _ := st.AccessToken(context.Background())
			rt, _ := st.RefreshToken(context.Background())
			require.Equal(t, "A2", at)
			require.Equal(t, "R1", rt)
			require.Zero(t, c.refresher.pending())
		})
	}
}

// Сценарий: токен A1 истёк, R1, R2, R3 получают 401 по порядку, refresh
// (запущенный только R1) возвращает A2; повторы идут с A2 в том же порядке.
func TestRefresh_FIFOReplayOrder(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		order    []string
		replayed []string
		refresh  atomic.Int32
	)
	gate := make(chan struct{})

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == DefaultRefreshPath {
			refresh.Add(1)
			<-gate
			return jsonResp(r, http.StatusOK, `{"access_token":"A2","token_type":"bearer","expires_in":900}`), nil
		}

		switch r.Header.Get("Authorization") {
		case "Bearer A1":
			return jsonResp(r, http.StatusUnauthorized, `{"detail":"Token expired"}`), nil
		case "Bearer A2":
			mu.Lock()
			order = append(order, r.URL.Path)
			replayed = append(replayed, r.Header.Get("Authorization"))
			mu.Unlock()
			return jsonResp(r, http.StatusOK, `{}`), nil
		}
		return jsonResp(r, http.StatusUnauthorized, `{"detail":"no token"}`), nil
	})

	st := seededStore(t, "A1", "R1")
	c, _ := newTestClient(t, "http://backend.test", st, rt)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, path := range []string{"/r1", "/r2", "/r3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Execute(context.Background(), Request{Method: http.MethodPost, Path: path, Body: map[string]int{"n": i}})
		}()
		want := i + 1
		require.Eventually(t, func() bool { return c.refresher.pending() == want }, waitFor, time.Millisecond)
	}

	close(gate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int32(1), refresh.Load())
	require.Equal(t, []string{"/r1", "/r2", "/r3"}, order)
	require.Equal(t, []string{"Bearer A2", "Bearer A2", "Bearer A2"}, replayed)

	at, _ := st.AccessToken(context.Background())
	rtok, _ := st.RefreshToken(context.Background())
	require.Equal(t, "A2", at)
	require.Equal(t, "R1", rtok)
}

// Повтор получает 401 снова: второй refresh не запускается, ошибка окончательная.
func TestRefresh_NoInfiniteRetry(t *testing.T) {
	t.Parallel()

	// После refresh сервер всё равно не принимает новый токен.
	cfg := expired()
	cfg.rejectAll = true
	b := newBackend(t, cfg)
	st := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, b.srv.URL, st, nil)

	_, err := c.Execute(context.Background(), Request{Path: "/api/v1/notes/"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "Not authenticated", apiErr.Detail)
	require.False(t, errors.Is(err, ErrSessionExpired))

	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.replays))
	require.Zero(t, nav.calls.Load())

	at, _ := st.AccessToken(context.Background())
	require.Equal(t, "A2", at, "учётные данные не очищаются: refresh прошёл успешно")
}

func TestRefresh_RefreshTokenStability(t *testing.T) {
	t.Parallel()

	cfg := expired()
	cfg.rotateTo = "R2" // сервер предлагает новый refresh-токен, но ротация выключена
	b := newBackend(t, cfg)
	st := seededStore(t, "A1", "R1")
	c, _ := newTestClient(t, b.srv.URL, st, nil)

	_, err := c.Execute(context.Background(), Request{Path: "/api/v1/papers/"})
	require.NoError(t, err)

	rt, _ := st.RefreshToken(context.Background())
	require.Equal(t, "R1", rt)
}

func TestRefresh_RotationOptIn(t *testing.T) {
	t.Parallel()

	cfg := expired()
	cfg.rotateTo = "R2"
	b := newBackend(t, cfg)
	st := seededStore(t, "A1", "R1")
	c, _ := newTestClient(t, b.srv.URL, st, nil, func(o *Options) { o.RotateRefreshToken = true })

	_, err := c.Execute(context.Background(), Request{Path: "/api/v1/papers/"})
	require.NoError(t, err)

	at, _ := st.AccessToken(context.Background())
	rt, _ := st.RefreshToken(context.Background())
	require.Equal(t, "A2", at)
	require.Equal(t, "R2", rt)
}

// Отказ refresh: все ждущие получают session expired, хранилище пусто,
// переход на страницу входа выполнен один раз.
func TestRefresh_FailClosed(t *testing.T) {
	t.Parallel()

	const n = 3
	cfg := expired()
	cfg.refreshStatus = http.StatusUnauthorized
	cfg.gate = make(chan struct{})
	b := newBackend(t, cfg)
	st := seededStore(t, "A1", "R1")
	require.NoError(t, st.SetIdentity(context.Background(), []byte(`{"id":"u1"}`)))
	c, nav := newTestClient(t, b.srv.URL, st, nil)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Execute(context.Background(), Request{Path: fmt.Sprintf("/api/v1/notes/%d", i)})
		}(i)
	}
	require.Eventually(t, func() bool { return c.refresher.pending() == n }, waitFor, time.Millisecond)
	close(cfg.gate)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrSessionExpired)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.Status)
		require.Equal(t, "Session expired. Please log in again.", apiErr.Detail)
	}

	ctx := context.Background()
	_, err := st.AccessToken(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
	_, err = st.RefreshToken(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
	_, err = st.Identity(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNotFound)

	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, int32(1), nav.calls.Load())
	require.Equal(t, DefaultLoginPath, nav.path.Load())
	require.Empty(t, b.seenPaths(), "после отказа повторов нет")
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.refresh.WithLabelValues(refreshRejected)))
}

func TestRefresh_MissingRefreshToken(t *testing.T) {
	t.Parallel()

	b := newBackend(t, expired())
	st := seededStore(t, "A1", "")
	c, nav := newTestClient(t, b.srv.URL, st, nil, func(o *Options) { o.LoginPath = "/login" })

	_, err := c.Execute(context.Background(), Request{Path: "/api/v1/auth/me"})
	require.ErrorIs(t, err, ErrSessionExpired)

	require.Zero(t, b.refreshCalls.Load(), "без refresh-токена сеть не трогаем")
	require.Equal(t, int32(1), nav.calls.Load())
	require.Equal(t, "/login", nav.path.Load())

	_, err = st.AccessToken(context.Background())
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestRefresh_TransportFailure(t *testing.T) {
	t.Parallel()

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == DefaultRefreshPath {
			return nil, errors.New("connection reset by peer")
		}
		return jsonResp(r, http.StatusUnauthorized, `{"detail":"expired"}`), nil
	})

	st := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, "http://backend.test", st, rt)

	_, err := c.Execute(context.Background(), Request{Path: "/api/v1/notes/"})
	require.ErrorIs(t, err, ErrSessionExpired)

	var terr *TransportError
	require.ErrorAs(t, err, &terr, "причина отказа сохраняется в цепочке")

	_, err = st.RefreshToken(context.Background())
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
	require.Equal(t, int32(1), nav.calls.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.refresh.WithLabelValues(refreshNetwork)))
}

func TestRefresh_EmptyAccessTokenIsFailure(t *testing.T) {
	t.Parallel()

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == DefaultRefreshPath {
			return jsonResp(r, http.StatusOK, `{"token_type":"bearer"}`), nil
		}
		return jsonResp(r, http.StatusUnauthorized, `{"detail":"expired"}`), nil
	})

	st := seededStore(t, "A1", "R1")
	c, _ := newTestClient(t, "http://backend.test", st, rt)

	_, err := c.Execute(context.Background(), Request{Path: "/x"})
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.refresh.WithLabelValues(refreshInvalid)))
}

// 401 пришёл на старый токен уже после завершения эпизода: повтор идёт
// с токеном из хранилища без нового refresh.
func TestRefresh_StaleTokenReplaysWithoutRefresh(t *testing.T) {
	t.Parallel()

	st := seededStore(t, "A1", "R1")
	var refresh atomic.Int32

	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		switch {
		case r.URL.Path == DefaultRefreshPath:
			refresh.Add(1)
			return jsonResp(r, http.StatusOK, `{"access_token":"A3"}`), nil
		case r.Header.Get("Authorization") == "Bearer A1":
			// Другой участник успел обновить токен, пока этот запрос был в пути.
			_ = st.SetTokens(r.Context(), "A2", "R1")
			return jsonResp(r, http.StatusUnauthorized, `{"detail":"expired"}`), nil
		case r.Header.Get("Authorization") == "Bearer A2":
			return jsonResp(r, http.StatusOK, `{"ok":true}`), nil
		}
		return jsonResp(r, http.StatusUnauthorized, `{}`), nil
	})

	c, _ := newTestClient(t, "http://backend.test", st, rt)

	out, err := Get[map[string]bool](context.Background(), c, "/x", nil)
	require.NoError(t, err)
	require.True(t, out["ok"])
	require.Zero(t, refresh.Load())
}

// Отменённый участник покидает очередь, остальные получают токен.
func TestRefresh_CanceledWaiterDoesNotBlockQueue(t *testing.T) {
	t.Parallel()

	cfg := expired()
	cfg.gate = make(chan struct{})
	b := newBackend(t, cfg)
	c, _ := newTestClient(t, b.srv.URL, seededStore(t, "A1", "R1"), nil)

	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), Request{Path: "/leader"})
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return c.refresher.pending() == 1 }, waitFor, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() {
		_, err := c.Execute(ctx, Request{Path: "/waiter"})
		waiterErr <- err
	}()
	require.Eventually(t, func() bool { return c.refresher.pending() == 2 }, waitFor, time.Millisecond)

	lastErr := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), Request{Path: "/last"})
		lastErr <- err
	}()
	require.Eventually(t, func() bool { return c.refresher.pending() == 3 }, waitFor, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-waiterErr, context.Canceled)

	close(cfg.gate)
	require.NoError(t, <-leaderErr)
	require.NoError(t, <-lastErr)
	require.ElementsMatch(t, []string{"/leader", "/last"}, b.seenPaths())
}

// Явный Refresh присоединяется к идущему эпизоду.
func TestClient_Refresh_JoinsEpisode(t *testing.T) {
	t.Parallel()

	cfg := expired()
	cfg.gate = make(chan struct{})
	b := newBackend(t, cfg)
	c, _ := newTestClient(t, b.srv.URL, seededStore(t, "A1", "R1"), nil)

	type res struct {
		tok string
		err error
	}
	results := make(chan res, 2)
	for i := 0; i < 2; i++ {
		go func() {
			tok, err := c.Refresh(context.Background())
			results <- res{tok, err}
		}()
	}
	require.Eventually(t, func() bool { return c.refresher.pending() == 2 }, waitFor, time.Millisecond)
	close(cfg.gate)

	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.Equal(t, "A2", r.tok)
	}
	require.Equal(t, int32(1), b.refreshCalls.Load())
}

// Независимые клиенты не делят состояние обновления.
func TestRefresh_IndependentClients(t *testing.T) {
	t.Parallel()

	cfg1 := expired()
	cfg1.gate = make(chan struct{})
	b1 := newBackend(t, cfg1)
	c1, _ := newTestClient(t, b1.srv.URL, seededStore(t, "A1", "R1"), nil)

	b2 := newBackend(t, expired())
	c2, _ := newTestClient(t, b2.srv.URL, seededStore(t, "A1", "R1"), nil)

	done1 := make(chan error, 1)
	go func() {
		_, err := c1.Execute(context.Background(), Request{Path: "/one"})
		done1 <- err
	}()
	require.Eventually(t, func() bool { return c1.refresher.pending() == 1 }, waitFor, time.Millisecond)

	// Пока c1 ждёт, c2 проходит свой эпизод целиком.
	_, err := c2.Execute(context.Background(), Request{Path: "/two"})
	require.NoError(t, err)
	require.Equal(t, int32(1), b2.refreshCalls.Load())

	close(cfg1.gate)
	require.NoError(t, <-done1)
	require.Equal(t, int32(1), b1.refreshCalls.Load())
}

// 401 на запрос, отправленный до неудачного эпизода, приходит после него:
// вызывающий получает ту же ошибку без второго refresh и второго перехода
// на страницу входа.
func TestRefresh_LateUnauthorizedAfterFailedEpisode(t *testing.T) {
	t.Parallel()

	var (
		refreshCalls atomic.Int32
		slowArrived  = make(chan struct{})
		releaseSlow  = make(chan struct{})
		once         sync.Once
	)
	release := func() { once.Do(func() { close(releaseSlow) }) }

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case DefaultRefreshPath:
			refreshCalls.Add(1)
		case "/slow":
			close(slowArrived)
			<-releaseSlow
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Not authenticated"}`)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(release)

	st := seededStore(t, "A1", "R1")
	c, nav := newTestClient(t, srv.URL, st, nil)
	ctx := context.Background()

	slowErr := make(chan error, 1)
	go func() {
		_, err := c.Execute(ctx, Request{Path: "/slow"})
		slowErr <- err
	}()

	select {
	case <-slowArrived:
	case <-time.After(waitFor):
		t.Fatal("slow request did not reach the server")
	}

	_, err := c.Execute(ctx, Request{Path: "/fast"})
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, int32(1), refreshCalls.Load())
	require.Equal(t, int32(1), nav.calls.Load())

	release()
	require.ErrorIs(t, <-slowErr, ErrSessionExpired)

	require.Equal(t, int32(1), refreshCalls.Load())
	require.Equal(t, int32(1), nav.calls.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(c.metrics.refresh.WithLabelValues(refreshRejected)))
	require.Zero(t, testutil.ToFloat64(c.metrics.refresh.WithLabelValues(refreshNoToken)))
}

func TestRefresher_RemembersFailedEpisode(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	failure := errors.New("refresh rejected")
	r := &refresher{
		run: func(context.Context) (string, error) {
			runs.Add(1)
			return "", failure
		},
		current: func(context.Context) (string, bool) { return "", false },
	}
	ctx := context.Background()

	before := r.generation()
	_, err := r.join(ctx, "A1", before, false).wait(ctx)
	require.ErrorIs(t, err, failure)
	require.Equal(t, int32(1), runs.Load())

	// Запрос ушёл до эпизода: ошибка эпизода без нового refresh.
	_, err = r.join(ctx, "A1", before, false).wait(ctx)
	require.ErrorIs(t, err, failure)
	require.Equal(t, int32(1), runs.Load())

	// Запрос ушёл после эпизода: новый эпизод.
	_, err = r.join(ctx, "A1", r.generation(), false).wait(ctx)
	require.ErrorIs(t, err, failure)
	require.Equal(t, int32(2), runs.Load())
}

// Участник получил токен, но его повтор так и не ушёл в сеть: следующий
// получает токен по истечении handoff.
func TestRefresher_StalledReplayDoesNotHoldQueue(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	r := &refresher{
		run: func(context.Context) (string, error) {
			<-gate
			return "A2", nil
		},
		current: func(context.Context) (string, bool) { return "A1", true },
		handoff: 20 * time.Millisecond,
	}
	ctx := context.Background()

	first := r.join(ctx, "A1", 0, false)
	second := r.join(ctx, "A1", 0, false)
	require.Equal(t, 2, r.pending())
	close(gate)

	tok, err := first.wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "A2", tok)

	wctx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()

	tok, err = second.wait(wctx)
	require.NoError(t, err)
	require.Equal(t, "A2", tok)
	require.Zero(t, r.pending())
}
