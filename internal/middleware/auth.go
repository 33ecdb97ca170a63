// Package middleware содержит HTTP middleware сервиса ticketpay.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/ticketpay/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

const bearerPrefix = "Bearer "

var (
	// ErrNoToken возвращается, если заголовок Authorization не содержит bearer-токен.
	ErrNoToken = errors.New("bearer token not provided")
	// ErrInvalidToken возвращается для неверно подписанного, просроченного или неполного токена.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims описывает утверждения токена доступа.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет bearer-токены доступа, подписанные HS256.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secretKey: []byte(secret)}
}

// Middleware проверяет токен и добавляет identity вызывающего в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Authenticate разбирает значение заголовка Authorization.
func (a *AuthMiddleware) Authenticate(header string) (model.Identity, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return model.Identity{}, ErrNoToken
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" || len(a.secretKey) == 0 {
		return model.Identity{}, ErrNoToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	return model.Identity{UserID: claims.Subject, Email: claims.Email, Token: raw}, nil
}

// WithIdentity кладёт identity вызывающего в контекст.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext извлекает identity вызывающего из контекста запроса.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}
