// Package middleware содержит HTTP middleware сервиса бронирования.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const usernameKey contextKey = "username"

const (
	authCookieName = "resort_session"
	authCookieTTL  = 12 * time.Hour
)

// AuthMiddleware проверяет сессию сотрудника по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт AuthMiddleware. Пустой secret заменяется случайным ключом:
// сессии тогда не переживают перезапуск процесса.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte("ocean-view-resort-session")
		}
	}

	return &AuthMiddleware{secretKey: key}
}

// Middleware пропускает запрос дальше, только если cookie сессии подписан этим ключом.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		username, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie выдаёт cookie сессии для сотрудника username.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, username string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    username + "." + a.sign(username),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie завершает сессию.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthMiddleware) sign(username string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(username))
	return hex.EncodeToString(mac.Sum(nil))
}

// parseCookie проверяет подпись. Имя может содержать точки, поэтому подпись отделяется по последней.
func (a *AuthMiddleware) parseCookie(value string) (string, bool) {
	i := strings.LastIndex(value, ".")
	if i <= 0 || i == len(value)-1 {
		return "", false
	}

	username, signature := value[:i], value[i+1:]
	if !hmac.Equal([]byte(signature), []byte(a.sign(username))) {
		return "", false
	}

	return username, true
}

// GetUsernameFromContext извлекает имя сотрудника из контекста запроса.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok
}
