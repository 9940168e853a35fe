package client

import (
	"errors"
	"fmt"
)

var (
	ErrSyncInProgress = errors.New("синхронизация уже выполняется")
	ErrUnreachable    = errors.New("сервер синхронизации недоступен")
	ErrStopped        = errors.New("координатор синхронизации остановлен")
)

// HTTPError ответ сервера синхронизации со статусом вне 2xx
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ошибка сервера: статус %d", e.StatusCode)
	}
	return fmt.Sprintf("ошибка сервера: статус %d: %s", e.StatusCode, e.Message)
}
