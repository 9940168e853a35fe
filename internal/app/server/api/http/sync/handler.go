package sync

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	syncdomain "praxsync/internal/domain/sync"
)

type Handler struct {
	service    syncdomain.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service syncdomain.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("component", "sync_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getStatusOp(), h.getStatus)
	huma.Register(api, h.pushOp(), h.push)
	huma.Register(api, h.pullOp(), h.pull)
}

func (h *Handler) getStatus(ctx context.Context, _ *statusInput) (*statusOutput, error) {
	status, err := h.service.Status(ctx)
	if err != nil {
		h.log.Error("status failed", slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to read status")
	}
	return &statusOutput{Body: *status}, nil
}

func (h *Handler) push(ctx context.Context, input *pushInput) (*pushOutput, error) {
	resp, err := h.service.Push(ctx, input.Body)
	switch {
	case errors.Is(err, syncdomain.ErrMissingDevice), errors.Is(err, syncdomain.ErrEmptyBatch):
		return nil, huma.Error400BadRequest(err.Error())
	case err != nil:
		h.log.Error("push failed",
			slog.String("device_id", input.Body.DeviceID),
			slog.String("sync_id", input.Body.SyncID),
			slog.Any("error", err),
		)
		return nil, huma.Error500InternalServerError("failed to process push")
	}
	return &pushOutput{Body: *resp}, nil
}

func (h *Handler) pull(ctx context.Context, input *pullInput) (*pullOutput, error) {
	resp, err := h.service.Pull(ctx, input.SinceVersion, input.Limit)
	if err != nil {
		h.log.Error("pull failed", slog.Int64("since_version", input.SinceVersion), slog.Any("error", err))
		return nil, huma.Error500InternalServerError("failed to read changes")
	}
	return &pullOutput{Body: *resp}, nil
}
