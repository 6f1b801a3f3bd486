package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pribylovaa/aihub-client/internal/devserver/auth"
	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/internal/devserver/events"
	"github.com/pribylovaa/aihub-client/internal/devserver/http/middleware"
	"github.com/pribylovaa/aihub-client/internal/devserver/storage"
)

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	Auth  *auth.Service
	Store *storage.Memory
	Hub   *events.Hub
	// ChunkDelay — пауза между фрагментами потокового ответа.
	ChunkDelay time.Duration
	// Heartbeat — период комментариев-пингов SSE-ленты.
	Heartbeat time.Duration
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// userID достаёт пользователя, проверенного мидлваром Authenticate.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
	}

	return uid, ok
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}

	return v
}
