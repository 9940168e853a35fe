package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// VersionReader источник текущей версии, заодно проверка хранилища
type VersionReader interface {
	CurrentVersion(ctx context.Context) (int64, error)
}

type Handler struct {
	log        *slog.Logger
	storage    VersionReader
	middleware huma.Middlewares
}

func NewHandler(log *slog.Logger, storage VersionReader, middleware huma.Middlewares) *Handler {
	return &Handler{
		log:        log,
		storage:    storage,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	version, err := h.storage.CurrentVersion(ctx)
	if err != nil {
		h.log.Warn("storage health check failed", slog.Any("error", err))
		return nil, huma.Error503ServiceUnavailable("storage unavailable")
	}

	return &Output{
		Body: Response{
			Status:  "OK",
			Storage: "OK",
			Version: version,
		},
	}, nil
}
