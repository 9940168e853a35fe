package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Server and storage health",
		Description: "Reads the current global version; 503 when storage is unavailable",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
