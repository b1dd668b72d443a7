package reportfile

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Repository is the durable store for file records and access logs.
// All mutations are single-record transactional; status changes go
// through the compare-and-swap UpdateStatus, never read-then-write.
type Repository interface {
	Create(ctx context.Context, rec *FileRecord) error
	GetByID(ctx context.Context, id string) (*FileRecord, error)
	GetByStorageKey(ctx context.Context, key string) (*FileRecord, error)
	ListByCreator(ctx context.Context, actorID string) ([]*FileRecord, error)

	// UpdateStatus applies from -> to only if the stored status still
	// equals from; otherwise it returns ErrStatusConflict.
	UpdateStatus(ctx context.Context, id string, from, to Status) error

	// IncrementDownloadCount atomically bumps the counter and returns
	// the new value.
	IncrementDownloadCount(ctx context.Context, id string) (int64, error)

	// ListExpiredBefore pages through active records whose TTL passed
	// before the given moment. afterID is the keyset cursor; pass ""
	// to start from the beginning.
	ListExpiredBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]*FileRecord, error)

	AppendAccessLog(ctx context.Context, entry *AccessLogEntry) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rec *FileRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil && isDuplicate(err) {
		return ErrRecordConflict
	}
	return err
}

// isDuplicate matches unique-constraint violations across drivers; the
// modernc sqlite driver bypasses gorm's error translation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}

func (r *repository) GetByID(ctx context.Context, id string) (*FileRecord, error) {
	var rec FileRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) GetByStorageKey(ctx context.Context, key string) (*FileRecord, error) {
	var rec FileRecord
	err := r.db.WithContext(ctx).Where("storage_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) ListByCreator(ctx context.Context, actorID string) ([]*FileRecord, error) {
	var recs []*FileRecord
	err := r.db.WithContext(ctx).
		Where("created_by = ?", actorID).
		Order("created_at DESC").
		Find(&recs).Error
	return recs, err
}

func (r *repository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	tx := r.db.WithContext(ctx).
		Model(&FileRecord{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		// Distinguish a lost race from a missing record.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *repository) IncrementDownloadCount(ctx context.Context, id string) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&FileRecord{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if tx.Error != nil {
		return 0, tx.Error
	}
	if tx.RowsAffected == 0 {
		return 0, ErrFileNotFound
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&FileRecord{}).
		Where("id = ?", id).
		Pluck("download_count", &count).Error
	return count, err
}

func (r *repository) ListExpiredBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]*FileRecord, error) {
	var recs []*FileRecord
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", StatusActive, before)
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}
	err := q.Order("id").Limit(limit).Find(&recs).Error
	return recs, err
}

func (r *repository) AppendAccessLog(ctx context.Context, entry *AccessLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
