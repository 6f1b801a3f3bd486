package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/pkg/log"
)

// Validator проверяет access-токен и возвращает id пользователя.
type Validator interface {
	Validate(accessToken string) (string, error)
}

// Authenticate требует валидный access-токен. Токен берётся из
// Authorization: Bearer, а если allowQuery — ещё и из параметра
// access_token (для SSE, где заголовки задать нельзя).
func Authenticate(v Validator, allowQuery bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r.Header.Get("Authorization"))
			if token == "" && allowQuery {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			uid, err := v.Validate(token)
			if err != nil {
				log.From(r.Context()).Debug("auth_rejected", slog.String("err", err.Error()))
				apierrors.WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func bearer(h string) string {
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(h[len(prefix):])
}
