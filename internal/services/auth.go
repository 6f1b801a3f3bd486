package services

import (
	"context"
	"net/http"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
)

type AuthService struct{ c *client.Client }

// Register и Login выполняются без токена: 401 здесь — неверные данные,
// а не истёкшая сессия.
func (s *AuthService) Register(ctx context.Context, in models.RegisterRequest) (models.TokenResponse, error) {
	return client.Do[models.TokenResponse](ctx, s.c, client.Request{
		Method: http.MethodPost, Path: path("auth", "register"), Body: in, SkipAuth: true,
	})
}

func (s *AuthService) Login(ctx context.Context, in models.LoginRequest) (models.TokenResponse, error) {
	return client.Do[models.TokenResponse](ctx, s.c, client.Request{
		Method: http.MethodPost, Path: path("auth", "login"), Body: in, SkipAuth: true,
	})
}

// Refresh — прямой вызов эндпоинта обновления, без записи в хранилище.
// Для обновления сессии используйте client.Refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.RefreshResponse, error) {
	return client.Do[models.RefreshResponse](ctx, s.c, client.Request{
		Method:   http.MethodPost,
		Path:     path("auth", "refresh"),
		Body:     models.RefreshRequest{RefreshToken: refreshToken},
		SkipAuth: true,
	})
}

func (s *AuthService) Me(ctx context.Context) (models.User, error) {
	return client.Get[models.User](ctx, s.c, path("auth", "me"), nil)
}
