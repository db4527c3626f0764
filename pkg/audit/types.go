package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of activity event
type EventType string

const (
	// File and document lifecycle
	EventTypeFileCreate         EventType = "file.create"
	EventTypeFileUpdate         EventType = "file.update"
	EventTypeFileReplaceContent EventType = "file.replace_content"
	EventTypeFileActivate       EventType = "file.activate"
	EventTypeFileDeactivate     EventType = "file.deactivate"
	EventTypeFileTrash          EventType = "file.trash"
	EventTypeFileRestore        EventType = "file.restore"
	EventTypeFileForceDelete    EventType = "file.force_delete"
	EventTypeFileDownload       EventType = "file.download"

	// Grower assignment
	EventTypeGrowerAssign   EventType = "grower.assign"
	EventTypeGrowerUnassign EventType = "grower.unassign"

	// File type management
	EventTypeFileTypeCreate EventType = "file_type.create"
	EventTypeFileTypeDelete EventType = "file_type.delete"

	// Reconciliation problems
	EventTypeBlobOrphaned EventType = "storage.blob_orphaned"

	// Authorization
	EventTypeAccessDenied EventType = "authz.access_denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of record an event refers to
type ResourceType string

const (
	ResourceTypeFile     ResourceType = "file"
	ResourceTypeDocument ResourceType = "document"
	ResourceTypeGrower   ResourceType = "grower"
	ResourceTypeFileType ResourceType = "file_type"
	ResourceTypeBlob     ResourceType = "blob"
)

// Event is one activity log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	TenantID int64  `json:"tenant_id"`
	UserID   *int64 `json:"user_id,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	// ResourceIDs lists every record touched; bulk operations log one event
	ResourceIDs []int64 `json:"resource_ids,omitempty"`

	RequestID string         `json:"request_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
