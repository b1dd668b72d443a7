package reportfile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a file record. Transitions only move
// forward: active -> expired -> deleted, or active -> deleted directly.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusDeleted Status = "deleted"
)

// AccessType distinguishes preview from download issuance in the audit
// log. Downloads additionally bump the record's download count.
type AccessType string

const (
	AccessPreview  AccessType = "preview"
	AccessDownload AccessType = "download"
)

// JSONMap is an opaque key-value blob attached to a file record. The
// service stores and returns it verbatim and never interprets it, but
// nesting is bounded so callers cannot store pathological structures.
type JSONMap map[string]any

const maxMetadataDepth = 5

// Validate rejects maps nesting deeper than maxMetadataDepth levels.
func (m JSONMap) Validate() error {
	for _, v := range m {
		if err := checkDepth(v, maxMetadataDepth-1); err != nil {
			return err
		}
	}
	return nil
}

func checkDepth(v any, remaining int) error {
	var children []any
	switch val := v.(type) {
	case map[string]any:
		if remaining <= 0 {
			return fmt.Errorf("metadata nests deeper than %d levels", maxMetadataDepth)
		}
		for _, inner := range val {
			children = append(children, inner)
		}
	case []any:
		if remaining <= 0 {
			return fmt.Errorf("metadata nests deeper than %d levels", maxMetadataDepth)
		}
		children = val
	default:
		return nil
	}
	for _, inner := range children {
		if err := checkDepth(inner, remaining-1); err != nil {
			return err
		}
	}
	return nil
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}
	return json.Unmarshal(data, m)
}

// FileRecord is the metadata row for one uploaded report artifact.
// StorageKey is derived from the ID at upload time and never reused
// across records, so a stale presigned URL can never resolve to a
// different file.
type FileRecord struct {
	ID            string     `gorm:"column:id;primaryKey" json:"id"`
	OriginalName  string     `gorm:"column:original_name" json:"original_name"`
	SizeBytes     int64      `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey    string     `gorm:"column:storage_key;uniqueIndex" json:"-"`
	BackendType   string     `gorm:"column:backend_type" json:"backend_type"`
	ContentType   string     `gorm:"column:content_type" json:"content_type"`
	CreatedBy     *string    `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	ExpiresAt     *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	DownloadCount int64      `gorm:"column:download_count" json:"download_count"`
	Status        Status     `gorm:"column:status" json:"status"`
	Metadata      JSONMap    `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
}

func (FileRecord) TableName() string { return "file_records" }

// Expired reports whether the record's TTL has passed at the given
// moment. Status is checked separately.
func (r *FileRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// AccessLogEntry is one append-only audit row per presign issuance.
// Entries outlive their file record so the audit trail survives
// deletion.
type AccessLogEntry struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FileID       string     `gorm:"column:file_id;index" json:"file_id"`
	ActorID      *string    `gorm:"column:actor_id" json:"actor_id,omitempty"`
	AccessType   AccessType `gorm:"column:access_type" json:"access_type"`
	SourceIP     string     `gorm:"column:source_ip" json:"source_ip"`
	UserAgent    string     `gorm:"column:user_agent" json:"user_agent"`
	IssuedURL    string     `gorm:"column:issued_url" json:"-"`
	URLExpiresAt time.Time  `gorm:"column:url_expires_at" json:"url_expires_at"`
	AccessedAt   time.Time  `gorm:"column:accessed_at" json:"accessed_at"`
}

func (AccessLogEntry) TableName() string { return "access_log_entries" }
