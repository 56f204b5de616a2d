package authentication

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/omxchavan/mentos-talk/config"
	"github.com/omxchavan/mentos-talk/models/users"
)

// ErrNoIdentity — запрос без валидной идентичности.
var ErrNoIdentity = errors.New("no identity presented")

// Claims — утверждения сервисного токена. Subject — стабильный
// идентификатор пользователя у внешнего провайдера (clerk id).
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Identity проверяет и выпускает сервисные токены. Сами учётные данные
// живут у внешнего провайдера, сервис только подтверждает его subject.
type Identity struct {
	secret []byte
	ttl    time.Duration
}

func New(cfg *config.Config) *Identity {
	return &Identity{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenDuration,
	}
}

// Issue выпускает токен для пользователя после подтверждения провайдером.
func (a *Identity) Issue(u *users.User) (string, error) {
	claims := &Claims{
		Role: u.Role,
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ClerkID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate извлекает идентичность вызывающего из заголовка Authorization.
func (a *Identity) Validate(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrNoIdentity
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrNoIdentity
	}

	return claims, nil
}
