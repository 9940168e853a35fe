// GET  /api/health        # Состояние сервера и хранилища (публичный)
// GET  /api/sync/status   # Текущая глобальная версия (auth)
// POST /api/sync/push     # Пакет локальных изменений (auth)
// GET  /api/sync/pull     # Страница изменений после курсора (auth)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"praxsync/internal/app/server/api/http/health"
	"praxsync/internal/app/server/api/http/middleware"
	"praxsync/internal/app/server/api/http/middleware/auth"
	"praxsync/internal/app/server/api/http/middleware/logger"
	syncAPI "praxsync/internal/app/server/api/http/sync"
	"praxsync/internal/app/server/config"
	syncdomain "praxsync/internal/domain/sync"
)

type Handlers struct {
	Health *health.Handler
	Sync   *syncAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register.
// signer может быть nil, если хранилище вложений не настроено.
func New(repo syncdomain.Repository, signer syncdomain.AttachmentSigner, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("praxsync sync API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(repo, signer, cfg, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(repo syncdomain.Repository, signer syncdomain.AttachmentSigner, cfg *config.Config, log *slog.Logger) *Handlers {
	authMW := auth.New(cfg.Auth.TokenHash, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	healthHandler := health.NewHandler(log, repo, middlewares.Add(loggerMW.Middleware()).Take())

	syncService := syncdomain.NewService(repo, signer, log, &syncdomain.ServiceConfig{
		PageSize:    cfg.Sync.PageSize,
		MaxPageSize: cfg.Sync.MaxPageSize,
	})
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.Add(loggerMW.Middleware(), authMW.Middleware()).Take())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
	}
}
