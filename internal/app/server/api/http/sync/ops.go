package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) getStatusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-get-status",
		Method:      http.MethodGet,
		Path:        "/api/sync/status",
		Summary:     "Текущая версия сервера",
		Description: "Возвращает последнюю выданную глобальную версию. Используется клиентом как проверка связи.",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
		Security:    []map[string][]string{{"bearer": {}}},
	}
}

func (h *Handler) pushOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-push",
		Method:      http.MethodPost,
		Path:        "/api/sync/push",
		Summary:     "Отправить пакет изменений",
		Description: "Принимает локальные изменения устройства и возвращает принятые, конфликты и ошибки по каждой сущности",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
		Security:    []map[string][]string{{"bearer": {}}},
	}
}

func (h *Handler) pullOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-pull",
		Method:      http.MethodGet,
		Path:        "/api/sync/pull",
		Summary:     "Получить изменения после версии",
		Description: "Возвращает страницу изменений в порядке версий",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
		Security:    []map[string][]string{{"bearer": {}}},
	}
}
