package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// Текст, который получает вызывающий при окончании сессии.
	sessionExpiredDetail = "Session expired. Please log in again."
	// CodeSessionExpired — машиночитаемый код ошибки окончания сессии.
	CodeSessionExpired = "session_expired"
	// Сообщение по умолчанию, если тело ошибки не содержит описания.
	defaultDetail = "An error occurred"
)

// ErrSessionExpired — обновление токена невозможно: учётные данные очищены,
// пользователь должен войти заново. Проверяется через errors.Is.
var ErrSessionExpired = errors.New("session expired")

// APIError — ответ backend'а с неуспешным статусом.
// Detail — человекочитаемое описание, Code — необязательный стабильный код.
type APIError struct {
	Status int
	Detail string
	Code   string

	cause error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Detail)
	}

	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error { return e.cause }

// TransportError — сбой до получения ответа: отказ в соединении, DNS,
// таймаут, обрыв при чтении тела. Конвейер не повторяет такие запросы.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsStatus сообщает, является ли err ответом backend'а с указанным статусом.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// sessionExpired строит ошибку окончания сессии; cause — причина отказа
// refresh-вызова (может быть nil).
func sessionExpired(cause error) *APIError {
	wrapped := ErrSessionExpired
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", ErrSessionExpired, cause)
	}

	return &APIError{
		Status: http.StatusUnauthorized,
		Detail: sessionExpiredDetail,
		Code:   CodeSessionExpired,
		cause:  wrapped,
	}
}

// errorBody — известные формы тела ошибки. detail бывает строкой или
// структурой (ошибки валидации), поэтому читается как RawMessage.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
	Code   string          `json:"code"`
}

// parseAPIError никогда не падает: нечитаемое тело даёт сообщение
// "HTTP <status>: <status text>".
func parseAPIError(status int, statusLine string, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &APIError{
			Status: status,
			Detail: fmt.Sprintf("HTTP %d: %s", status, statusText(status, statusLine)),
		}
	}

	detail := detailText(eb.Detail)
	if detail == "" {
		detail = eb.Error
	}
	if detail == "" {
		detail = defaultDetail
	}

	return &APIError{Status: status, Detail: detail, Code: eb.Code}
}

func detailText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

// statusText извлекает текст статуса из строки вида "404 Not Found".
func statusText(status int, statusLine string) string {
	if t := strings.TrimPrefix(statusLine, strconv.Itoa(status)+" "); t != "" && t != statusLine {
		return t
	}

	return http.StatusText(status)
}
