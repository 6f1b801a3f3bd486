// tokenstore хранит пару токенов (access/refresh) и кэшированный профиль
// пользователя. Хранилище не содержит логики: только чтение и запись
// значений, каждое из которых атомарно с точки зрения вызывающего.
package tokenstore

import (
	"context"
	"errors"
)

// Ключи хранения. Общие для всех драйверов, чтобы данные были переносимы.
const (
	KeyAccessToken  = "ai_hub_access_token"
	KeyRefreshToken = "ai_hub_refresh_token"
	KeyUser         = "ai_hub_user"
)

var (
	// ErrNotFound — значение отсутствует (нет входа или хранилище очищено).
	ErrNotFound = errors.New("not found")
	// ErrUnavailable — носитель недоступен. Для конвейера запросов это
	// равносильно отсутствию токена.
	ErrUnavailable = errors.New("storage unavailable")
)

// Store — контракт хранилища учётных данных.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks . Store
type Store interface {
	// AccessToken возвращает access-токен или ErrNotFound.
	AccessToken(ctx context.Context) (string, error)
	// RefreshToken возвращает refresh-токен или ErrNotFound.
	RefreshToken(ctx context.Context) (string, error)
	// SetTokens перезаписывает оба токена; частичная запись не наблюдаема.
	SetTokens(ctx context.Context, access, refresh string) error
	// Clear удаляет оба токена и кэш профиля. Повторный вызов не ошибка.
	Clear(ctx context.Context) error
	// Identity возвращает кэшированный JSON профиля или ErrNotFound.
	Identity(ctx context.Context) ([]byte, error)
	// SetIdentity сохраняет JSON профиля.
	SetIdentity(ctx context.Context, user []byte) error
}

// Lookup превращает результат чтения токена в пару (значение, найдено).
// Любая ошибка, включая недоступность носителя, означает «токена нет».
func Lookup(tok string, err error) (string, bool) {
	if err != nil || tok == "" {
		return "", false
	}

	return tok, true
}
