package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/aihub-client/pkg/redact"
)

// Цепочка http.RoundTripper для исходящих вызовов. Порядок:
// metadata -> logging -> metrics -> timeout -> базовый транспорт.

const headerRequestID = "X-Request-Id"

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxNoTimeout
)

// WithRequestID задаёт X-Request-Id для вызовов с этим контекстом.
// Без него каждый вызов получает новый UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// withoutTimeout помечает долгоживущие вызовы (потоки), для которых
// таймаут по умолчанию не применяется.
func withoutTimeout(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxNoTimeout, true)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// withMetadata добавляет X-Request-Id (из контекста или новый) и User-Agent.
func withMetadata(next http.RoundTripper, userAgent string) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())

		if r.Header.Get(headerRequestID) == "" {
			rid, _ := r.Context().Value(ctxRequestID).(string)
			if rid == "" {
				rid = uuid.NewString()
			}
			r.Header.Set(headerRequestID, rid)
		}
		if userAgent != "" && r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", userAgent)
		}

		return next.RoundTrip(r)
	})
}

// withLogging пишет одну итоговую запись на вызов: msg="http_client",
// request_id, method, path, status, dur. Токены из query маскируются,
// заголовки и тела не логируются.
func withLogging(next http.RoundTripper, base *slog.Logger) http.RoundTripper {
	if base == nil {
		base = slog.Default()
	}

	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()

		l := base.With(
			slog.String("request_id", r.Header.Get(headerRequestID)),
			slog.String("method", r.Method),
			slog.String("path", redact.URL(r.URL.RequestURI())),
		)

		resp, err := next.RoundTrip(r)
		if err != nil {
			l.Warn("http_client",
				slog.String("err", err.Error()),
				slog.Duration("dur", time.Since(start)),
			)
			return nil, err
		}

		l.Info("http_client",
			slog.Int("status", resp.StatusCode),
			slog.Duration("dur", time.Since(start)),
		)

		return resp, nil
	})
}

// withMetrics считает вызовы и длительность до получения заголовков ответа.
func withMetrics(next http.RoundTripper, m *Metrics) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)

		code := "error"
		if err == nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		m.requests.WithLabelValues(r.Method, code).Inc()
		m.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())

		return resp, err
	})
}

// withTimeout навешивает таймаут d на вызов, если у контекста ещё нет
// дедлайна и вызов не помечен как поток. Существующий дедлайн не
// переопределяется. Таймаут покрывает и чтение тела: cancel вызывается
// при закрытии тела ответа.
func withTimeout(next http.RoundTripper, d time.Duration) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		ctx := r.Context()
		if d <= 0 || ctx.Value(ctxNoTimeout) != nil {
			return next.RoundTrip(r)
		}
		if _, ok := ctx.Deadline(); ok {
			return next.RoundTrip(r)
		}

		cctx, cancel := context.WithTimeout(ctx, d)
		resp, err := next.RoundTrip(r.WithContext(cctx))
		if err != nil {
			cancel()
			return nil, err
		}

		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	})
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
