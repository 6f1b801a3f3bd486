// client — конвейер аутентифицированных HTTP-запросов к backend'у AI Hub.
//
// Конвейер прикладывает access-токен, классифицирует ответ и при 401 на
// запросе с токеном выполняет единственное на эпизод обновление токена
// (single-flight), после чего каждый участник повторяет свой запрос ровно
// один раз. Потоковые вызовы (StreamChat, Connect) в обновлении не участвуют.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"github.com/pribylovaa/aihub-client/internal/models"
	"github.com/pribylovaa/aihub-client/internal/tokenstore"
	"github.com/pribylovaa/aihub-client/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultRefreshPath = "/api/v1/auth/refresh"
	DefaultLoginPath   = "/auth/login"
)

// Navigator переводит окружение вызывающего на страницу входа после
// необратимого отказа обновления. Вызывается один раз на эпизод, уже после
// очистки учётных данных.
type Navigator interface {
	NavigateToLogin(ctx context.Context, path string)
}

// NavigatorFunc — адаптер функции к Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) NavigateToLogin(ctx context.Context, path string) { f(ctx, path) }

// Options — параметры конвейера.
type Options struct {
	BaseURL string
	Store   tokenstore.Store
	// Transport — базовый транспорт; по умолчанию http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout — таймаут вызова без собственного дедлайна; 0 — без таймаута.
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
	Navigator Navigator
	// LoginPath передаётся Navigator'у; по умолчанию "/auth/login".
	LoginPath string
	// RefreshPath — эндпоинт обновления; по умолчанию "/api/v1/auth/refresh".
	RefreshPath string
	// RotateRefreshToken — сохранять refresh_token из ответа обновления
	// вместе с новым access-токеном. По умолчанию refresh-токен не меняется.
	RotateRefreshToken bool
	// Registerer — куда регистрировать метрики; nil — не регистрировать.
	Registerer prometheus.Registerer
}

// Client — конвейер запросов. Безопасен для конкурентного использования.
type Client struct {
	base        *url.URL
	http        *http.Client
	store       tokenstore.Store
	nav         Navigator
	log         *slog.Logger
	metrics     *Metrics
	refresher   *refresher
	loginPath   string
	refreshPath string
	rotate      bool
}

// New создаёт конвейер.
func New(opts Options) (*Client, error) {
	const op = "client/client/New"

	if opts.Store == nil {
		return nil, fmt.Errorf("%s: token store is required", op)
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%s: base url must be http(s), got %q", op, opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "api_client"))

	nav := opts.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(context.Context, string) {})
	}

	c := &Client{
		base:        base,
		store:       opts.Store,
		nav:         nav,
		log:         logger,
		metrics:     NewMetrics(opts.Registerer),
		loginPath:   orDefault(opts.LoginPath, DefaultLoginPath),
		refreshPath: orDefault(opts.RefreshPath, DefaultRefreshPath),
		rotate:      opts.RotateRefreshToken,
	}

	rt := opts.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	rt = withTimeout(rt, opts.Timeout)
	rt = withMetrics(rt, c.metrics)
	rt = withLogging(rt, logger)
	rt = withMetadata(rt, opts.UserAgent)

	// Таймауты задаются цепочкой транспорта, а не http.Client: потоки
	// живут сколько угодно долго.
	c.http = &http.Client{Transport: rt}

	c.refresher = &refresher{
		run:     c.refresh,
		current: c.accessToken,
	}

	return c, nil
}

// Execute выполняет один логический вызов.
//
// Результат — успешный (KindSuccess/KindEmpty) Result либо ошибка:
// *APIError для не-2xx статусов, *TransportError для сетевых сбоев,
// *APIError с ErrSessionExpired, если обновление токена не удалось.
func (c *Client) Execute(ctx context.Context, r Request) (*Result, error) {
	const op = "client/client/Execute"

	body, err := r.encode()
	if err != nil {
		return nil, fmt.Errorf("%s: encode body: %w", op, err)
	}

	sent := c.refresher.generation()

	var token string
	if !r.SkipAuth {
		token, _ = c.accessToken(ctx)
	}

	resp, err := c.send(ctx, r, body, token, nil)
	if err != nil {
		return nil, err
	}

	// 401 без приложенного токена — обычная ошибка, не повод обновлять.
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return c.result(r, resp)
	}
	discard(resp)

	c.log.Debug("auth_rejected", slog.String("method", r.Method), slog.String("path", r.Path))

	t := c.refresher.join(ctx, token, sent, false)
	fresh, err := t.wait(ctx)
	if err != nil {
		return nil, err
	}

	// Повтор ровно один: 401 здесь — окончательная ошибка.
	c.metrics.replays.Inc()
	resp, err = c.send(ctx, r, body, fresh, t)
	if err != nil {
		return nil, err
	}

	return c.result(r, resp)
}

// Refresh присоединяется к текущему эпизоду обновления или начинает новый
// и возвращает полученный access-токен. Параллельный refresh-вызов не создаётся.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	t := c.refresher.join(ctx, "", 0, true)
	defer t.release()

	return t.wait(ctx)
}

// Store возвращает хранилище учётных данных конвейера.
func (c *Client) Store() tokenstore.Store { return c.store }

// send выполняет одну попытку. Если задан ticket, он освобождается, как
// только запрос записан в соединение (или попытка завершилась).
func (c *Client) send(ctx context.Context, r Request, body payload, token string, t *ticket) (*http.Response, error) {
	if t != nil {
		defer t.release()
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(httptrace.WroteRequestInfo) { t.release() },
		})
	}

	req, err := c.build(ctx, r, body, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, Path: r.Path, Err: unwrapURLError(err)}
	}

	return resp, nil
}

func (c *Client) result(r Request, resp *http.Response) (*Result, error) {
	res, err := classify(resp)
	if err != nil {
		return nil, &TransportError{Method: r.Method, Path: r.Path, Err: err}
	}
	if res.Kind == KindError {
		return nil, res.Err
	}

	return res, nil
}

// accessToken читает токен; недоступность хранилища равна отсутствию токена.
func (c *Client) accessToken(ctx context.Context) (string, bool) {
	tok, err := c.store.AccessToken(ctx)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		c.log.Warn("token_store_read_failed", slog.String("err", err.Error()))
	}

	return tokenstore.Lookup(tok, err)
}

// refresh — тело эпизода: ровно один refresh-вызов и запись результата.
// При любом отказе учётные данные очищаются, окружение переводится на
// страницу входа, а всем участникам достаётся ошибка окончания сессии.
func (c *Client) refresh(ctx context.Context) (string, error) {
	start := time.Now()
	ctx, l := log.With(log.Into(ctx, c.log), slog.String("op", "token_refresh"))
	l.Info("refresh_started")

	if rt, ok := tokenstore.Lookup(c.store.RefreshToken(ctx)); ok {
		return c.exchange(ctx, l, rt, start)
	}

	return "", c.expire(ctx, l, refreshNoToken, nil)
}

func (c *Client) exchange(ctx context.Context, l *slog.Logger, refreshToken string, start time.Time) (string, error) {
	req := Request{
		Method:   http.MethodPost,
		Path:     c.refreshPath,
		Body:     models.RefreshRequest{RefreshToken: refreshToken},
		SkipAuth: true,
	}
	body, err := req.encode()
	if err != nil {
		return "", c.expire(ctx, l, refreshInvalid, err)
	}

	resp, err := c.send(ctx, req, body, "", nil)
	if err != nil {
		return "", c.expire(ctx, l, refreshNetwork, err)
	}

	res, err := c.result(req, resp)
	if err != nil {
		return "", c.expire(ctx, l, refreshRejected, err)
	}

	var out models.RefreshResponse
	if err := res.Decode(&out); err != nil || out.AccessToken == "" {
		if err == nil {
			err = errors.New("empty access_token")
		}
		return "", c.expire(ctx, l, refreshInvalid, err)
	}

	next := refreshToken
	if c.rotate && out.RefreshToken != "" {
		next = out.RefreshToken
	}

	// Обе записи одним вызовом: частичное состояние не наблюдаемо.
	if err := c.store.SetTokens(ctx, out.AccessToken, next); err != nil {
		l.Warn("token_store_write_failed", slog.String("err", err.Error()))
	}

	c.metrics.refresh.WithLabelValues(refreshSuccess).Inc()
	l.Info("refresh_succeeded",
		slog.Bool("rotated", next != refreshToken),
		slog.Duration("dur", time.Since(start)),
	)

	return out.AccessToken, nil
}

func (c *Client) expire(ctx context.Context, l *slog.Logger, reason string, cause error) error {
	c.metrics.refresh.WithLabelValues(reason).Inc()

	attrs := []any{slog.String("reason", reason)}
	if cause != nil {
		attrs = append(attrs, slog.String("err", cause.Error()))
	}
	l.Warn("refresh_failed", attrs...)

	if err := c.store.Clear(ctx); err != nil {
		l.Error("token_store_clear_failed", slog.String("err", err.Error()))
	}
	c.nav.NavigateToLogin(ctx, c.loginPath)

	return sessionExpired(cause)
}

// unwrapURLError снимает обёртку *url.Error: в TransportError уже есть
// метод и путь.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}

	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
