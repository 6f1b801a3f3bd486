// auth — выпуск и проверка токенов dev-сервера: access-токены JWT HS256,
// refresh-токены случайные, хранятся в RefreshCache по SHA-256 хэшу.
// Обновление не ротирует refresh-токен.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/aihub-client/internal/config"
	"github.com/pribylovaa/aihub-client/internal/devserver/storage"
	"github.com/pribylovaa/aihub-client/internal/models"
	"github.com/pribylovaa/aihub-client/pkg/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials — неверная пара email/пароль. HTTP 401.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrInvalidToken — токен повреждён, подписан не тем ключом или
	// неизвестен. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired — срок токена истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked — refresh-токен отозван. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrEmailTaken — email уже зарегистрирован. HTTP 400.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput — пустые или некорректные поля. HTTP 422.
	ErrInvalidInput = errors.New("invalid input")
)

// Users — нужная сервису часть хранилища пользователей.
type Users interface {
	CreateUser(username, email, passwordHash string) (models.User, error)
	UserByEmail(email string) (storage.UserRecord, error)
	UserByID(id string) (models.User, error)
}

// Service выпускает и проверяет токены.
type Service struct {
	users  Users
	cache  RefreshCache
	cfg    config.AuthConfig
	now    func() time.Time
	bcrypt int
}

func New(users Users, cache RefreshCache, cfg config.AuthConfig) *Service {
	return &Service{
		users:  users,
		cache:  cache,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		bcrypt: bcrypt.DefaultCost,
	}
}

type accessClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Register создаёт пользователя и выпускает пару токенов.
func (s *Service) Register(ctx context.Context, in models.RegisterRequest) (models.TokenResponse, error) {
	const op = "devserver/auth/Register"

	email, err := normalizeEmail(in.Email)
	if err != nil || strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcrypt)
	if err != nil {
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.users.CreateUser(strings.TrimSpace(in.Username), email, string(hash))
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.TokenResponse{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.issuePair(ctx, u)
}

// Login проверяет пароль и выпускает пару токенов.
func (s *Service) Login(ctx context.Context, in models.LoginRequest) (models.TokenResponse, error) {
	const op = "devserver/auth/Login"

	email, err := normalizeEmail(in.Email)
	if err != nil || in.Password == "" {
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	rec, err := s.users.UserByEmail(email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.TokenResponse{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(in.Password)) != nil {
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.issuePair(ctx, rec.User)
}

// Refresh выпускает новый access-токен. Refresh-токен остаётся прежним
// и в ответ не включается.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.RefreshResponse, error) {
	const op = "devserver/auth/Refresh"

	lg := log.From(ctx)

	e, ok, err := s.cache.Get(ctx, hashToken(refreshToken))
	if err != nil {
		lg.Error("refresh_lookup_failed", slog.String("op", op), slog.String("err", err.Error()))
		return models.RefreshResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case !ok:
		lg.Warn("refresh_lookup_not_found", slog.String("op", op))
		return models.RefreshResponse{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	case e.Revoked:
		lg.Warn("refresh_revoked", slog.String("op", op), slog.String("user_id", e.UserID))
		return models.RefreshResponse{}, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	case s.now().After(e.ExpiresAt):
		lg.Warn("refresh_expired", slog.String("op", op), slog.String("user_id", e.UserID))
		return models.RefreshResponse{}, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	u, err := s.users.UserByID(e.UserID)
	if err != nil {
		return models.RefreshResponse{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	access, err := s.signAccess(u, s.now())
	if err != nil {
		return models.RefreshResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.RefreshResponse{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Revoke отзывает refresh-токен. Неизвестный токен не ошибка.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	const op = "devserver/auth/Revoke"

	if err := s.cache.MarkRevoked(ctx, hashToken(refreshToken)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Validate проверяет access-токен и возвращает идентификатор пользователя.
func (s *Service) Validate(accessToken string) (string, error) {
	const op = "devserver/auth/Validate"

	token, err := jwt.ParseWithClaims(accessToken, &accessClaims{},
		func(*jwt.Token) (interface{}, error) { return []byte(s.cfg.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims.UserID, nil
}

// User возвращает профиль по идентификатору из токена.
func (s *Service) User(id string) (models.User, error) {
	return s.users.UserByID(id)
}

func (s *Service) issuePair(ctx context.Context, u models.User) (models.TokenResponse, error) {
	const op = "devserver/auth/issuePair"

	now := s.now()

	access, err := s.signAccess(u, now)
	if err != nil {
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	refresh := base64.RawURLEncoding.EncodeToString(b[:])

	entry := &RefreshEntry{UserID: u.ID, ExpiresAt: now.Add(s.cfg.RefreshTokenTTL)}
	if err := s.cache.Set(ctx, hashToken(refresh), entry, s.cfg.RefreshTokenTTL); err != nil {
		log.From(ctx).Error("save_refresh_token_failed", slog.String("op", op), slog.String("err", err.Error()))
		return models.TokenResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) signAccess(u models.User, now time.Time) (string, error) {
	claims := accessClaims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}

	return strings.ToLower(email), nil
}
