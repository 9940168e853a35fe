package sync

import (
	syncdomain "praxsync/internal/domain/sync"
)

type statusInput struct{}

type statusOutput struct {
	Body syncdomain.StatusResponse
}

type pushInput struct {
	Body syncdomain.PushRequest
}

type pushOutput struct {
	Body syncdomain.PushResponse
}

type pullInput struct {
	SinceVersion int64 `query:"sinceVersion" minimum:"0" doc:"Вернуть изменения с версией больше указанной"`
	Limit        int   `query:"limit" minimum:"0" doc:"Размер страницы, 0 означает значение по умолчанию"`
}

type pullOutput struct {
	Body syncdomain.PullResponse
}
