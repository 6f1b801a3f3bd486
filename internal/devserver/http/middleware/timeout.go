package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/pkg/log"
)

// Timeout ограничивает обработку запроса сроком d, если у запроса нет
// собственного дедлайна. Когда срок истёк, а обработчик ничего не записал,
// клиент получает 504 в формате {"detail","code"}. d <= 0 отключает мидлвар.
//
// Потоковые маршруты (чат, /events) в группу с Timeout не входят.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := ctx.Deadline(); !ok {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}

			log.From(ctx).Warn("request_timeout",
				slog.Duration("limit", d),
				slog.Bool("answered", sw.status != 0),
			)
			if sw.status == 0 {
				apierrors.WriteError(sw, r, context.DeadlineExceeded)
			}
		})
	}
}
