// errors стандартизирует ответы об ошибках dev-сервера. Тело ответа —
// {"detail": ..., "code": ...}: detail читается клиентом как сообщение,
// code — короткий стабильный машиночитаемый код.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/aihub-client/internal/devserver/auth"
	"github.com/pribylovaa/aihub-client/internal/devserver/storage"
)

// Нестандартный код для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Ошибки уровня HTTP, не привязанные к домену.
var (
	ErrBadRequest      = stderrors.New("bad request")
	ErrUnauthenticated = stderrors.New("unauthenticated")
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа. Неизвестные
// ошибки становятся 500/internal без утечки деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error", Code: "internal"}
	case stderrors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, ErrorResponse{Detail: "Invalid request body", Code: "invalid_argument"}
	case stderrors.Is(err, auth.ErrInvalidInput):
		return http.StatusUnprocessableEntity, ErrorResponse{Detail: "Validation error", Code: "invalid_argument"}
	case stderrors.Is(err, auth.ErrEmailTaken):
		return http.StatusBadRequest, ErrorResponse{Detail: "Email already registered", Code: "already_exists"}
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Detail: "Incorrect email or password", Code: "invalid_credentials"}
	case stderrors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, ErrorResponse{Detail: "Token has expired", Code: "token_expired"}
	case stderrors.Is(err, auth.ErrTokenRevoked), stderrors.Is(err, auth.ErrInvalidToken), stderrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Detail: "Could not validate credentials", Code: "unauthenticated"}
	case stderrors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Detail: "Not found", Code: "not_found"}
	case stderrors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict, ErrorResponse{Detail: "Already exists", Code: "already_exists"}
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ErrorResponse{Detail: "Request canceled", Code: "canceled"}
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Detail: "Request timed out", Code: "deadline_exceeded"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error", Code: "internal"}
	}
}

// WriteError пишет статус и тело, добавляя request_id из заголовка.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
