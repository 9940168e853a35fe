package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"praxsync/internal/domain/entity"
)

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// Status возвращает текущую глобальную версию
	Status(ctx context.Context) (*StatusResponse, error)

	// Push применяет пакет изменений устройства
	Push(ctx context.Context, req PushRequest) (*PushResponse, error)

	// Pull возвращает страницу изменений после sinceVersion
	Pull(ctx context.Context, sinceVersion int64, limit int) (*PullResponse, error)
}

// AttachmentSigner выдает подписанные ссылки для передачи вложений
type AttachmentSigner interface {
	UploadURL(ctx context.Context, key string) (string, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Service реализация сервиса синхронизации
type Service struct {
	repo   Repository
	signer AttachmentSigner
	log    *slog.Logger
	config *ServiceConfig
	now    func() time.Time
}

// NewService создает новый сервис синхронизации. signer может быть nil,
// тогда вложения не передаются.
func NewService(repo Repository, signer AttachmentSigner, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.PageSize <= 0 {
		config.PageSize = 200
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 1000
	}

	return &Service{
		repo:   repo,
		signer: signer,
		log:    log.With(slog.String("component", "sync_service")),
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Status возвращает текущую глобальную версию
func (s *Service) Status(ctx context.Context) (*StatusResponse, error) {
	v, err := s.repo.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}
	return &StatusResponse{CurrentVersion: v, ServerTime: s.now()}, nil
}

// Push применяет пакет изменений. Ошибка возвращается только если
// пакет не может быть обработан целиком; ошибки отдельных изменений
// попадают в ответ.
func (s *Service) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	if req.DeviceID == "" {
		return nil, ErrMissingDevice
	}
	if len(req.Changes) == 0 {
		return nil, ErrEmptyBatch
	}

	resp := &PushResponse{
		Accepted:  []AcceptedChange{},
		Conflicts: []ConflictRecord{},
		Errors:    []ChangeError{},
	}

	for _, change := range req.Changes {
		s.applyChange(ctx, req.DeviceID, change, resp)
	}

	for _, change := range req.Changes {
		if upload, ok := s.pendingUpload(ctx, change, resp); ok {
			resp.PendingUploads = append(resp.PendingUploads, upload)
		}
	}

	err := s.repo.RecordSync(ctx, &SyncLog{
		SyncID:     req.SyncID,
		DeviceID:   req.DeviceID,
		ReceivedAt: s.now(),
		Accepted:   len(resp.Accepted),
		Conflicts:  len(resp.Conflicts),
		Errors:     len(resp.Errors),
	})
	if err != nil {
		s.log.Warn("failed to record sync log", slog.String("sync_id", req.SyncID), slog.Any("error", err))
	}

	s.log.Info("push processed",
		slog.String("device_id", req.DeviceID),
		slog.String("sync_id", req.SyncID),
		slog.Int("accepted", len(resp.Accepted)),
		slog.Int("conflicts", len(resp.Conflicts)),
		slog.Int("errors", len(resp.Errors)),
	)

	return resp, nil
}

func (s *Service) applyChange(ctx context.Context, deviceID string, change PushChange, resp *PushResponse) {
	if err := validateChange(change); err != nil {
		resp.Errors = append(resp.Errors, ChangeError{EntityID: change.EntityID, Code: CodeInvalid, Message: err.Error()})
		return
	}

	existing, err := s.repo.GetEntity(ctx, change.EntityID)
	if err != nil && !errors.Is(err, ErrEntityNotFound) {
		resp.Errors = append(resp.Errors, ChangeError{EntityID: change.EntityID, Code: CodeStorage, Message: err.Error()})
		return
	}

	if existing == nil {
		s.accept(ctx, deviceID, change, resp)
		return
	}

	if change.Version > existing.Version {
		resp.Errors = append(resp.Errors, ChangeError{
			EntityID: change.EntityID,
			Code:     CodeVersionAhead,
			Message:  fmt.Sprintf("client version %d is ahead of server version %d", change.Version, existing.Version),
		})
		return
	}

	if change.Operation == entity.OperationCreate || change.Version < existing.Version {
		same, err := entity.Equal(change.Fields, existing.Fields)
		if err == nil && same {
			// повторная отправка уже принятого состояния
			resp.Accepted = append(resp.Accepted, AcceptedChange{
				EntityID:         change.EntityID,
				ServerVersion:    existing.Version,
				ServerModifiedAt: existing.ModifiedAt,
			})
			return
		}
		s.conflict(ctx, deviceID, change, existing, resp)
		return
	}

	s.accept(ctx, deviceID, change, resp)
}

func (s *Service) accept(ctx context.Context, deviceID string, change PushChange, resp *PushResponse) {
	stored := storedFromChange(deviceID, change, s.now())
	version, err := s.repo.SaveEntity(ctx, stored)
	if err != nil {
		resp.Errors = append(resp.Errors, ChangeError{EntityID: change.EntityID, Code: CodeStorage, Message: err.Error()})
		return
	}
	resp.Accepted = append(resp.Accepted, AcceptedChange{
		EntityID:         change.EntityID,
		ServerVersion:    version,
		ServerModifiedAt: stored.ModifiedAt,
	})
}

// conflict разрешает конфликт по категории данных: параметры и мастер-данные
// остаются серверными, транзакционные данные принимаются от клиента.
func (s *Service) conflict(ctx context.Context, deviceID string, change PushChange, existing *StoredEntity, resp *PushResponse) {
	record := ConflictRecord{
		EntityType:    change.EntityType,
		DataCategory:  change.DataCategory,
		EntityID:      change.EntityID,
		ClientVersion: change.Version,
		ServerVersion: existing.Version,
		ServerData:    existing.Fields,
		ClientData:    change.Fields,
	}

	switch change.DataCategory {
	case entity.CategoryParameter, entity.CategoryMasterData:
		record.Resolution = ResolutionServerWins
	default:
		stored := storedFromChange(deviceID, change, s.now())
		version, err := s.repo.SaveEntity(ctx, stored)
		if err != nil {
			resp.Errors = append(resp.Errors, ChangeError{EntityID: change.EntityID, Code: CodeStorage, Message: err.Error()})
			return
		}
		record.Resolution = ResolutionClientWins
		record.ServerVersion = version
		record.ServerData = nil
	}

	s.log.Warn("conflict resolved",
		slog.String("entity_id", change.EntityID),
		slog.String("resolution", string(record.Resolution)),
		slog.Int64("client_version", change.Version),
		slog.Int64("server_version", existing.Version),
	)
	resp.Conflicts = append(resp.Conflicts, record)
}

func (s *Service) pendingUpload(ctx context.Context, change PushChange, resp *PushResponse) (PendingUpload, bool) {
	if s.signer == nil || change.EntityType != entity.TypeDocumentMeta {
		return PendingUpload{}, false
	}
	attachmentID, _ := change.Fields["attachmentId"].(string)
	if attachmentID == "" {
		return PendingUpload{}, false
	}
	if !acceptedOrClientWins(resp, change.EntityID) {
		return PendingUpload{}, false
	}
	u, err := s.signer.UploadURL(ctx, attachmentKey(attachmentID))
	if err != nil {
		s.log.Warn("failed to sign upload url", slog.String("attachment_id", attachmentID), slog.Any("error", err))
		return PendingUpload{}, false
	}
	return PendingUpload{AttachmentID: attachmentID, EntityID: change.EntityID, UploadURL: u}, true
}

func acceptedOrClientWins(resp *PushResponse, entityID string) bool {
	for _, a := range resp.Accepted {
		if a.EntityID == entityID {
			return true
		}
	}
	for _, c := range resp.Conflicts {
		if c.EntityID == entityID && c.Resolution == ResolutionClientWins {
			return true
		}
	}
	return false
}

// Pull возвращает страницу изменений после sinceVersion
func (s *Service) Pull(ctx context.Context, sinceVersion int64, limit int) (*PullResponse, error) {
	if sinceVersion < 0 {
		sinceVersion = 0
	}
	if limit <= 0 {
		limit = s.config.PageSize
	}
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}

	current, err := s.repo.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	// запрашиваем на одну запись больше, чтобы понять, есть ли следующая страница
	entities, err := s.repo.ChangesSince(ctx, sinceVersion, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get changes: %w", err)
	}

	hasMore := len(entities) > limit
	if hasMore {
		entities = entities[:limit]
	}

	resp := &PullResponse{
		Changes:        make([]PullChange, 0, len(entities)),
		HasMore:        hasMore,
		CurrentVersion: current,
	}
	for _, e := range entities {
		change := e.ToPullChange(entity.OperationUpdate)
		change.Attachments = s.attachments(ctx, e)
		resp.Changes = append(resp.Changes, change)
	}
	if hasMore && len(resp.Changes) > 0 {
		next := resp.Changes[len(resp.Changes)-1].Version
		resp.NextVersion = &next
	}

	return resp, nil
}

func (s *Service) attachments(ctx context.Context, e *StoredEntity) []Attachment {
	if s.signer == nil || e.EntityType != entity.TypeDocumentMeta {
		return nil
	}
	attachmentID, _ := e.Fields["attachmentId"].(string)
	if attachmentID == "" {
		return nil
	}
	u, err := s.signer.DownloadURL(ctx, attachmentKey(attachmentID))
	if err != nil {
		s.log.Warn("failed to sign download url", slog.String("attachment_id", attachmentID), slog.Any("error", err))
		return nil
	}
	att := Attachment{AttachmentID: attachmentID, DownloadURL: u}
	att.FileName, _ = e.Fields["fileName"].(string)
	att.ContentType, _ = e.Fields["contentType"].(string)
	att.Checksum, _ = e.Fields["checksum"].(string)
	return []Attachment{att}
}

func attachmentKey(id string) string {
	return "attachments/" + id
}

func validateChange(c PushChange) error {
	if c.EntityID == "" {
		return errors.New("entityId is required")
	}
	if !c.EntityType.Valid() {
		return fmt.Errorf("unknown entity type %q", c.EntityType)
	}
	if c.DataCategory != c.EntityType.Category() {
		return fmt.Errorf("entity type %q does not belong to category %q", c.EntityType, c.DataCategory)
	}
	if c.Operation != entity.OperationCreate && c.Operation != entity.OperationUpdate {
		return fmt.Errorf("unsupported operation %q", c.Operation)
	}
	if c.Fields == nil {
		return errors.New("fields are required")
	}
	return nil
}

func storedFromChange(deviceID string, c PushChange, at time.Time) *StoredEntity {
	return &StoredEntity{
		EntityType:   c.EntityType,
		EntityID:     c.EntityID,
		ParentID:     c.ParentID,
		DataCategory: c.DataCategory,
		Fields:       c.Fields,
		ModifiedAt:   at,
		DeviceID:     deviceID,
	}
}
