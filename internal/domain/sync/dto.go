package sync

import (
	"encoding/json"
	"time"

	"praxsync/internal/domain/entity"
)

// Resolution результат разрешения конфликта на сервере
type Resolution string

const (
	ResolutionServerWins Resolution = "server_wins"
	ResolutionClientWins Resolution = "client_wins"
	ResolutionManual     Resolution = "manual"
)

// PushChange одна локальная правка в пакете отправки
type PushChange struct {
	DataCategory     entity.Category  `json:"dataCategory"`
	EntityType       entity.Type      `json:"entityType"`
	EntityID         string           `json:"entityId"`
	ParentID         string           `json:"parentId,omitempty"`
	Operation        entity.Operation `json:"operation"`
	Version          int64            `json:"version"`
	Fields           entity.Fields    `json:"fields"`
	ClientModifiedAt time.Time        `json:"clientModifiedAt"`
}

// PushRequest пакет локальных изменений устройства
type PushRequest struct {
	DeviceID        string       `json:"deviceId"`
	SyncID          string       `json:"syncId"`
	ClientTimestamp time.Time    `json:"clientTimestamp"`
	LastPullVersion int64        `json:"lastPullVersion"`
	Changes         []PushChange `json:"changes"`
	Attachments     []Attachment `json:"attachments" required:"false"`
}

// MarshalJSON всегда пишет changes и attachments массивами, а не null
func (r PushRequest) MarshalJSON() ([]byte, error) {
	type plain PushRequest
	if r.Changes == nil {
		r.Changes = []PushChange{}
	}
	if r.Attachments == nil {
		r.Attachments = []Attachment{}
	}
	return json.Marshal(plain(r))
}

type AcceptedChange struct {
	EntityID         string    `json:"entityId"`
	ServerVersion    int64     `json:"serverVersion"`
	ServerModifiedAt time.Time `json:"serverModifiedAt"`
}

type ConflictRecord struct {
	EntityType    entity.Type     `json:"entityType"`
	DataCategory  entity.Category `json:"dataCategory"`
	EntityID      string          `json:"entityId"`
	ClientVersion int64           `json:"clientVersion"`
	ServerVersion int64           `json:"serverVersion"`
	ServerData    entity.Fields   `json:"serverData,omitempty"`
	ClientData    entity.Fields   `json:"clientData,omitempty"`
	Resolution    Resolution      `json:"resolution"`
}

type ChangeError struct {
	EntityID string `json:"entityId"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// PendingUpload вложение, которое сервер ожидает получить по ссылке
type PendingUpload struct {
	AttachmentID string `json:"attachmentId"`
	EntityID     string `json:"entityId"`
	UploadURL    string `json:"uploadUrl"`
}

type PushResponse struct {
	Accepted       []AcceptedChange `json:"accepted"`
	Conflicts      []ConflictRecord `json:"conflicts"`
	Errors         []ChangeError    `json:"errors"`
	PendingUploads []PendingUpload  `json:"pendingUploads,omitempty"`
}

// Attachment описание вложения, доступного для скачивания
type Attachment struct {
	AttachmentID string `json:"attachmentId"`
	FileName     string `json:"fileName,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
	Checksum     string `json:"checksum,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
}

// PullChange изменение на сервере после курсора клиента
type PullChange struct {
	DataCategory     entity.Category  `json:"dataCategory"`
	EntityType       entity.Type      `json:"entityType"`
	EntityID         string           `json:"entityId"`
	ParentID         string           `json:"parentId,omitempty"`
	Operation        entity.Operation `json:"operation"`
	Version          int64            `json:"version"`
	Fields           entity.Fields    `json:"fields"`
	ServerModifiedAt time.Time        `json:"serverModifiedAt"`
	Attachments      []Attachment     `json:"attachments,omitempty"`
}

// Entity возвращает изменение в виде извлеченной сущности
func (c PullChange) Entity() entity.Extracted {
	return entity.Extracted{
		EntityType:   c.EntityType,
		EntityID:     c.EntityID,
		ParentID:     c.ParentID,
		DataCategory: c.DataCategory,
		Fields:       c.Fields,
	}
}

type PullResponse struct {
	Changes        []PullChange `json:"changes"`
	HasMore        bool         `json:"hasMore"`
	NextVersion    *int64       `json:"nextVersion,omitempty"`
	CurrentVersion int64        `json:"currentVersion"`
}

type StatusResponse struct {
	CurrentVersion int64     `json:"currentVersion"`
	ServerTime     time.Time `json:"serverTime"`
}
