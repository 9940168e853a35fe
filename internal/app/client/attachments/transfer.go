package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	syncdomain "praxsync/internal/domain/sync"
)

// Transfer передает файлы вложений по подписанным ссылкам хранилища объектов
type Transfer struct {
	store  *Store
	client *http.Client
	log    *slog.Logger
}

// NewTransfer создает передатчик. client может быть nil.
func NewTransfer(store *Store, client *http.Client, log *slog.Logger) *Transfer {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Transfer{
		store:  store,
		client: client,
		log:    log.With(slog.String("component", "attachments")),
	}
}

// Upload отправляет локальный файл по ссылке загрузки
func (t *Transfer) Upload(ctx context.Context, u syncdomain.PendingUpload) error {
	data, err := t.store.Read(u.AttachmentID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.UploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка загрузки вложения %s: %w", u.AttachmentID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("загрузка вложения %s: статус %d", u.AttachmentID, resp.StatusCode)
	}

	t.log.Debug("вложение загружено", slog.String("attachment_id", u.AttachmentID), slog.Int("bytes", len(data)))
	return nil
}

// Download скачивает вложение, если его нет локально, и проверяет контрольную сумму
func (t *Transfer) Download(ctx context.Context, a syncdomain.Attachment) error {
	if t.store.Has(a.AttachmentID) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка скачивания вложения %s: %w", a.AttachmentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("скачивание вложения %s: статус %d", a.AttachmentID, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения вложения %s: %w", a.AttachmentID, err)
	}
	if err := verify(data, a.Checksum); err != nil {
		return err
	}
	if err := t.store.Put(a.AttachmentID, data); err != nil {
		return err
	}

	t.log.Debug("вложение скачано", slog.String("attachment_id", a.AttachmentID), slog.Int("bytes", len(data)))
	return nil
}

// UploadAll отправляет вложения, ошибки логируются и не прерывают остальные
func (t *Transfer) UploadAll(ctx context.Context, uploads []syncdomain.PendingUpload) error {
	var errs []error
	for _, u := range uploads {
		if err := t.Upload(ctx, u); err != nil {
			t.log.Warn("не удалось загрузить вложение", slog.String("attachment_id", u.AttachmentID), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DownloadAll скачивает вложения, ошибки логируются и не прерывают остальные
func (t *Transfer) DownloadAll(ctx context.Context, atts []syncdomain.Attachment) error {
	var errs []error
	for _, a := range atts {
		if err := t.Download(ctx, a); err != nil {
			t.log.Warn("не удалось скачать вложение", slog.String("attachment_id", a.AttachmentID), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
