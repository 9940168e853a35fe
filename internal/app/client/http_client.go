package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"praxsync/internal/app/client/config"
	syncdomain "praxsync/internal/domain/sync"
)

// Transport клиентская сторона протокола синхронизации
type Transport interface {
	// Status запрашивает текущую глобальную версию сервера
	Status(ctx context.Context) (*syncdomain.StatusResponse, error)

	// Push отправляет пакет локальных изменений
	Push(ctx context.Context, req syncdomain.PushRequest) (*syncdomain.PushResponse, error)

	// Pull запрашивает страницу изменений после sinceVersion
	Pull(ctx context.Context, sinceVersion int64) (*syncdomain.PullResponse, error)
}

// HTTPClient реализация Transport поверх JSON HTTP API сервера.
// Ответы 429 и 5xx, а также сетевые ошибки повторяются с экспоненциальной задержкой.
type HTTPClient struct {
	client     *http.Client
	log        *slog.Logger
	baseURL    string
	userAgent  string
	pageSize   int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*HTTPClient, error) {
	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("адрес сервера не задан")
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &HTTPClient{
		client:     client,
		log:        log.With(slog.String("component", "http_client")),
		baseURL:    cfg.BaseURL(),
		userAgent:  "praxsync-client/1.0",
		pageSize:   cfg.PullPageSize,
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}, nil
}

// SetToken устанавливает токен доступа к серверу
func (h *HTTPClient) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *HTTPClient) Status(ctx context.Context) (*syncdomain.StatusResponse, error) {
	var resp syncdomain.StatusResponse
	if err := h.doJSON(ctx, http.MethodGet, "/api/sync/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (h *HTTPClient) Push(ctx context.Context, req syncdomain.PushRequest) (*syncdomain.PushResponse, error) {
	var resp syncdomain.PushResponse
	if err := h.doJSON(ctx, http.MethodPost, "/api/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (h *HTTPClient) Pull(ctx context.Context, sinceVersion int64) (*syncdomain.PullResponse, error) {
	q := url.Values{}
	q.Set("sinceVersion", strconv.FormatInt(sinceVersion, 10))
	if h.pageSize > 0 {
		q.Set("limit", strconv.Itoa(h.pageSize))
	}

	var resp syncdomain.PullResponse
	if err := h.doJSON(ctx, http.MethodGet, "/api/sync/pull?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (h *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("ошибка создания запроса: %w", err)
		}
		req.Header.Set("User-Agent", h.userAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		h.mu.RLock()
		if h.token != "" {
			req.Header.Set("Authorization", "Bearer "+h.token)
		}
		h.mu.RUnlock()

		h.log.Debug("Отправка запроса", slog.String("method", method), slog.String("path", path), slog.Int("attempt", attempt))

		resp, err := h.client.Do(req)
		if err != nil {
			if attempt < h.maxRetries && ctx.Err() == nil {
				if waitErr := waitWithContext(ctx, h.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("ошибка выполнения запроса: %w", err)
		}
		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("ошибка чтения ответа: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(data) == 0 {
				return nil
			}
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			if err := dec.Decode(out); err != nil {
				return fmt.Errorf("ошибка парсинга ответа: %w", err)
			}
			return nil
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < h.maxRetries {
			if waitErr := waitWithContext(ctx, h.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
}

// errorMessage достает описание ошибки из ответа в формате problem+json
func errorMessage(data []byte) string {
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &problem); err != nil {
		return ""
	}
	switch {
	case problem.Detail != "":
		return problem.Detail
	case problem.Error != "":
		return problem.Error
	default:
		return problem.Title
	}
}

func (h *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := h.maxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}
	delay := h.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
