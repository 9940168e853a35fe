package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// Auth проверяет bearer токен устройства по bcrypt хешу из конфигурации
type Auth struct {
	hash []byte
	log  *slog.Logger

	mu       sync.RWMutex
	verified string
}

func New(tokenHash string, log *slog.Logger) *Auth {
	return &Auth{
		hash: []byte(tokenHash),
		log:  log.With(slog.String("component", "auth_middleware")),
	}
}

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context)).
// При пустом хеше проверка отключена.
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if len(a.hash) == 0 {
			next(ctx)
			return
		}

		header := ctx.Header("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			a.log.Warn("missing bearer token", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx)
			return
		}

		if !a.valid(token) {
			a.log.Warn("invalid bearer token", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx)
			return
		}

		next(ctx)
	}
}

// valid сверяет токен с хешем; последний подтвержденный токен запоминается,
// чтобы не считать bcrypt на каждый запрос
func (a *Auth) valid(token string) bool {
	a.mu.RLock()
	cached := a.verified
	a.mu.RUnlock()
	if cached != "" && subtle.ConstantTimeCompare([]byte(cached), []byte(token)) == 1 {
		return true
	}

	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(token)); err != nil {
		return false
	}

	a.mu.Lock()
	a.verified = token
	a.mu.Unlock()
	return true
}

func (a *Auth) unauthorized(ctx huma.Context) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)
	if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error": "Unauthorized",
	}); err != nil {
		a.log.Error("encode unauthorized response", slog.Any("error", err))
	}
}
