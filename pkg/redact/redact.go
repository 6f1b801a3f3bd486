// redact предоставляет утилиты безопасного редактирования чувствительных
// данных для логов: e-mail, токены, пароли, заголовок Authorization и
// query-параметры с токенами (SSE-канал передаёт access_token в URL).
package redact

import (
	"net/url"
	"strings"
)

const (
	tokenStub    = "[REDACTED_TOKEN]"
	passwordStub = "[REDACTED_PASSWORD]"
)

// sensitiveParams — query-параметры, значения которых никогда не попадают в лог.
var sensitiveParams = []string{"access_token", "refresh_token", "token", "password"}

// Email маскирует e-mail для логирования.
//
// Правила:
//   - строка должна содержать ровно один '@', иначе возвращается "***";
//   - локальная часть заменяется на первые два символа (по рунам) + "***";
//   - если локальная часть не длиннее двух символов, возвращается "***@<domain>".
//
// Примеры:
//
//	"foobar@example.com" -> "fo***@example.com"
//	"ab@ex.com"          -> "***@ex.com"
//	"no-at"              -> "***"
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := s[:i], s[i+1:]

	if lr := []rune(local); len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token возвращает литерал-заглушку для токена в логах.
func Token() string { return tokenStub }

// Password возвращает литерал-заглушку для пароля в логах.
func Password() string { return passwordStub }

// Authorization маскирует значение заголовка Authorization, сохраняя схему:
// "Bearer abc" -> "Bearer [REDACTED_TOKEN]". Пустое значение остаётся пустым.
func Authorization(v string) string {
	if v == "" {
		return ""
	}
	if scheme, _, ok := strings.Cut(v, " "); ok {
		return scheme + " " + tokenStub
	}

	return tokenStub
}

// URL возвращает строку адреса, в которой значения чувствительных
// query-параметров заменены заглушкой. Некорректный адрес маскируется целиком.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}

	q := u.Query()
	changed := false
	for _, p := range sensitiveParams {
		if q.Has(p) {
			q.Set(p, tokenStub)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	return u.String()
}
