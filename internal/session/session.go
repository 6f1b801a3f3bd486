// session — сценарии учётной записи поверх конвейера запросов: вход,
// регистрация, выход, обновление токенов и профиль текущего пользователя.
//
// Session не хранит состояния сверх того, что лежит в tokenstore.Store;
// несколько Session поверх одного хранилища видят одни и те же данные.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
	"github.com/pribylovaa/aihub-client/internal/services"
	"github.com/pribylovaa/aihub-client/internal/tokenstore"
	"github.com/pribylovaa/aihub-client/pkg/log"
	"github.com/pribylovaa/aihub-client/pkg/redact"
)

var (
	// ErrNotAuthenticated — в хранилище нет access-токена.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrIncompleteTokens — сервер вернул пару без одного из токенов.
	ErrIncompleteTokens = errors.New("incomplete token pair")
)

// Session описывает сессию одного профиля.
type Session struct {
	c     *client.Client
	api   *services.Services
	store tokenstore.Store
}

// New создаёт сессию поверх конвейера и его хранилища.
func New(c *client.Client, api *services.Services) *Session {
	return &Session{c: c, api: api, store: c.Store()}
}

// Login входит по email и паролю, сохраняет пару токенов и кэширует профиль.
func (s *Session) Login(ctx context.Context, email, password string) (models.User, error) {
	const op = "session/session/Login"

	ctx, lg := log.With(ctx, slog.String("op", op), slog.String("email", redact.Email(email)))

	tp, err := s.api.Auth.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		lg.Warn("login_failed", slog.String("err", err.Error()))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.establish(ctx, tp)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	lg.Info("login_succeeded", slog.String("user_id", u.ID))

	return u, nil
}

// Register создаёт учётную запись и сразу входит в неё.
func (s *Session) Register(ctx context.Context, username, email, password string) (models.User, error) {
	const op = "session/session/Register"

	ctx, lg := log.With(ctx, slog.String("op", op), slog.String("email", redact.Email(email)))

	tp, err := s.api.Auth.Register(ctx, models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		lg.Warn("register_failed", slog.String("err", err.Error()))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.establish(ctx, tp)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	lg.Info("register_succeeded", slog.String("user_id", u.ID))

	return u, nil
}

// Logout удаляет учётные данные и профиль. Повторный вызов не ошибка.
func (s *Session) Logout(ctx context.Context) error {
	const op = "session/session/Logout"

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.From(ctx).Info("logout", slog.String("op", op))

	return nil
}

// RefreshTokens обновляет access-токен. Если обновление уже идёт, вызов
// присоединяется к нему; отдельный refresh-запрос не отправляется.
func (s *Session) RefreshTokens(ctx context.Context) error {
	const op = "session/session/RefreshTokens"

	if _, err := s.c.Refresh(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CurrentUser возвращает профиль из кэша, а при его отсутствии
// запрашивает /auth/me и кэширует ответ.
func (s *Session) CurrentUser(ctx context.Context) (models.User, error) {
	const op = "session/session/CurrentUser"

	if !s.IsAuthenticated(ctx) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	if raw, err := s.store.Identity(ctx); err == nil {
		var u models.User
		if err := json.Unmarshal(raw, &u); err == nil && u.ID != "" {
			return u, nil
		}
		log.From(ctx).Warn("identity_cache_corrupt", slog.String("op", op))
	}

	u, err := s.fetchUser(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// IsAuthenticated сообщает, есть ли access-токен. Срок действия не
// проверяется: истёкший токен обновится на первом же запросе.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	_, ok := tokenstore.Lookup(s.store.AccessToken(ctx))
	return ok
}

func (s *Session) establish(ctx context.Context, tp models.TokenResponse) (models.User, error) {
	if tp.AccessToken == "" || tp.RefreshToken == "" {
		return models.User{}, ErrIncompleteTokens
	}

	if err := s.store.SetTokens(ctx, tp.AccessToken, tp.RefreshToken); err != nil {
		return models.User{}, err
	}

	return s.fetchUser(ctx)
}

func (s *Session) fetchUser(ctx context.Context) (models.User, error) {
	u, err := s.api.Auth.Me(ctx)
	if err != nil {
		return models.User{}, err
	}

	raw, err := json.Marshal(u)
	if err != nil {
		return models.User{}, err
	}
	// Кэш профиля не обязателен: сбой записи не отменяет вход.
	if err := s.store.SetIdentity(ctx, raw); err != nil {
		log.From(ctx).Warn("identity_cache_write_failed", slog.String("err", err.Error()))
	}

	return u, nil
}
