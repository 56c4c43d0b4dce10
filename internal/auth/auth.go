// Package auth выпускает и проверяет JWT-токены пользователей.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GGmuzem/formula-engine/pkg/models"
)

var (
	ErrInvalidToken = errors.New("неверный или истекший токен")
	ErrMissingToken = errors.New("требуется авторизация")
)

// Claims структура для JWT-токена
type Claims struct {
	UserID int    `json:"user_id"`
	Login  string `json:"login"`
	jwt.RegisteredClaims
}

// Manager выпускает и проверяет токены, подписанные общим секретом
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken создает JWT токен для пользователя
func (m *Manager) GenerateToken(user models.User) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID: user.ID,
		Login:  user.Login,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken проверяет подпись и срок действия токена
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем метод подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate проверяет значение заголовка Authorization и возвращает пользователя
func (m *Manager) Authenticate(header string) (models.User, error) {
	tokenString := ExtractToken(header)
	if tokenString == "" {
		return models.User{}, ErrMissingToken
	}
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return models.User{}, err
	}
	return models.User{ID: claims.UserID, Login: claims.Login}, nil
}

// ExtractToken извлекает токен из значения "Bearer <token>"
func ExtractToken(header string) string {
	if len(header) > 7 && strings.ToUpper(header[0:7]) == "BEARER " {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ExtractTokenFromRequest извлекает токен из HTTP-запроса
func ExtractTokenFromRequest(r *http.Request) string {
	return ExtractToken(r.Header.Get("Authorization"))
}

// Middleware требует действительный токен и кладёт пользователя в контекст
func (m *Manager) Middleware(onError func(http.ResponseWriter, error), next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := m.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			onError(w, err)
			return
		}
		next(w, r.WithContext(SetUserContext(r.Context(), user)))
	}
}

// Optional кладёт пользователя в контекст, если передан действительный токен.
// Недействительный токен не прерывает запрос: он обрабатывается как анонимный.
func (m *Manager) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if user, err := m.Authenticate(r.Header.Get("Authorization")); err == nil {
			r = r.WithContext(SetUserContext(r.Context(), user))
		}
		next(w, r)
	}
}
