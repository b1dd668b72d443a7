package reportfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"reportstore/internal/storage"
)

const (
	defaultMaxPresignTTL = time.Hour
	defaultPresignTTL    = time.Hour
	defaultTTLDays       = 30
	defaultPutRetries    = 3
	defaultRetryBackoff  = 500 * time.Millisecond

	// DefaultContentType matches the docx artifacts the report
	// generators hand us when they do not say otherwise.
	DefaultContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reportstore_operations_total",
		Help: "File lifecycle operations by outcome",
	},
	[]string{"operation", "result"},
)

// ServiceConfig carries the resolved tunables the service consumes.
// Zero values fall back to defaults.
type ServiceConfig struct {
	MaxPresignTTL     time.Duration
	DefaultPresignTTL time.Duration
	DefaultTTLDays    int
	PutRetries        int
	RetryBackoff      time.Duration
}

func (c *ServiceConfig) applyDefaults() {
	if c.MaxPresignTTL <= 0 {
		c.MaxPresignTTL = defaultMaxPresignTTL
	}
	if c.DefaultPresignTTL <= 0 {
		c.DefaultPresignTTL = defaultPresignTTL
	}
	if c.DefaultTTLDays == 0 {
		c.DefaultTTLDays = defaultTTLDays
	}
	if c.PutRetries <= 0 {
		c.PutRetries = defaultPutRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
}

// Service owns the upload -> register -> issue-access -> expire/delete
// lifecycle of report files. It is the only layer that decides retry,
// abort or idempotent-success for backend and repository errors.
type Service struct {
	repo    Repository
	backend storage.Backend
	auditor *Auditor
	cfg     ServiceConfig

	now func() time.Time
}

func NewService(repo Repository, backend storage.Backend, auditor *Auditor, cfg ServiceConfig) *Service {
	cfg.applyDefaults()
	return &Service{
		repo:    repo,
		backend: backend,
		auditor: auditor,
		cfg:     cfg,
		now:     time.Now,
	}
}

// UploadInput is one artifact handed over by a report generator.
type UploadInput struct {
	Content      []byte
	OriginalName string
	ContentType  string
	ActorID      string
	// TTLDays nil means the config default. Zero expires the record
	// immediately; negative means no expiry.
	TTLDays  *int
	Metadata JSONMap
}

// Upload writes the blob first and registers metadata only after the
// write commits, so a record never exists without its blob. Transient
// backend failures are retried with bounded exponential backoff;
// permanent ones abort immediately.
//
// The one accepted inconsistency window: the blob write succeeding and
// the metadata insert failing leaves an orphan blob. That is storage
// waste, not a correctness violation, and cmd/reconcile cleans it up.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*FileRecord, error) {
	if len(in.Content) == 0 {
		return nil, ErrEmptyFile
	}
	if in.ContentType == "" {
		in.ContentType = DefaultContentType
	}

	now := s.now()
	id := uuid.New().String()
	key := storageKey(id, in.OriginalName, now)

	if err := s.putWithRetry(ctx, key, in.Content, in.ContentType); err != nil {
		operationsTotal.WithLabelValues("upload", "storage_error").Inc()
		return nil, err
	}

	ttlDays := s.cfg.DefaultTTLDays
	if in.TTLDays != nil {
		ttlDays = *in.TTLDays
	}
	var expiresAt *time.Time
	if ttlDays >= 0 {
		t := now.Add(time.Duration(ttlDays) * 24 * time.Hour)
		expiresAt = &t
	}

	rec := &FileRecord{
		ID:           id,
		OriginalName: in.OriginalName,
		SizeBytes:    int64(len(in.Content)),
		StorageKey:   key,
		BackendType:  s.backend.Type(),
		ContentType:  in.ContentType,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		Status:       StatusActive,
		Metadata:     in.Metadata,
	}
	if in.ActorID != "" {
		rec.CreatedBy = &in.ActorID
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		operationsTotal.WithLabelValues("upload", "metadata_error").Inc()
		log.Printf("orphan_blob key=%s id=%s err=%v", key, id, err)
		return nil, fmt.Errorf("register file record: %w", err)
	}

	operationsTotal.WithLabelValues("upload", "ok").Inc()
	log.Printf("report_uploaded id=%s name=%q size=%d backend=%s", id, in.OriginalName, rec.SizeBytes, rec.BackendType)
	return rec, nil
}

func (s *Service) putWithRetry(ctx context.Context, key string, content []byte, contentType string) error {
	backoff := s.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < s.cfg.PutRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		err := s.backend.Put(ctx, key, bytes.NewReader(content), int64(len(content)), contentType)
		if err == nil {
			return nil
		}
		if !storage.IsTransient(err) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		lastErr = err
		log.Printf("put_retry key=%s attempt=%d err=%v", key, attempt+1, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, lastErr)
}

// AccessGrant is a time-boxed URL plus the record it grants access to.
type AccessGrant struct {
	URL       string
	ExpiresAt time.Time
	Record    *FileRecord
}

// GetAccessURL issues a presigned URL for an active, unexpired record.
// The expiry check here is authoritative; the sweeper only keeps the
// table tidy. Audit logging and the download counter are best-effort
// and never fail the request.
func (s *Service) GetAccessURL(ctx context.Context, id, actorID string, accessType AccessType, ttl time.Duration, sourceIP, userAgent string) (*AccessGrant, error) {
	rec, err := s.getOwned(ctx, id, actorID)
	if err != nil {
		return nil, err
	}

	if rec.Status != StatusActive {
		operationsTotal.WithLabelValues("access", "expired").Inc()
		return nil, ErrFileExpired
	}
	now := s.now()
	if rec.Expired(now) {
		// Flip lazily so readers see the real state before the next
		// sweep. A conflict means someone else already flipped it.
		if err := s.repo.UpdateStatus(ctx, rec.ID, StatusActive, StatusExpired); err != nil &&
			!errors.Is(err, ErrStatusConflict) {
			log.Printf("lazy_expire_failed id=%s err=%v", rec.ID, err)
		}
		operationsTotal.WithLabelValues("access", "expired").Inc()
		return nil, ErrFileExpired
	}

	if ttl <= 0 {
		ttl = s.cfg.DefaultPresignTTL
	}
	if ttl > s.cfg.MaxPresignTTL {
		ttl = s.cfg.MaxPresignTTL
	}

	url, err := s.backend.Presign(ctx, rec.StorageKey, ttl, presignOptions(rec, accessType))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			operationsTotal.WithLabelValues("access", "blob_missing").Inc()
			return nil, ErrFileNotFound
		}
		operationsTotal.WithLabelValues("access", "storage_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	urlExpiry := now.Add(ttl)
	entry := &AccessLogEntry{
		FileID:       rec.ID,
		AccessType:   accessType,
		SourceIP:     sourceIP,
		UserAgent:    userAgent,
		IssuedURL:    url,
		URLExpiresAt: urlExpiry,
		AccessedAt:   now,
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	s.auditor.Record(ctx, entry)

	if accessType == AccessDownload {
		count, err := s.repo.IncrementDownloadCount(ctx, rec.ID)
		if err != nil {
			log.Printf("download_count_failed id=%s err=%v", rec.ID, err)
		} else {
			rec.DownloadCount = count
		}
	}

	operationsTotal.WithLabelValues("access", "ok").Inc()
	return &AccessGrant{URL: url, ExpiresAt: urlExpiry, Record: rec}, nil
}

// GetRecord returns the metadata row, honoring the same ownership
// filter as access issuance.
func (s *Service) GetRecord(ctx context.Context, id, actorID string) (*FileRecord, error) {
	return s.getOwned(ctx, id, actorID)
}

// ListByCreator returns all records uploaded by the given actor.
func (s *Service) ListByCreator(ctx context.Context, actorID string) ([]*FileRecord, error) {
	return s.repo.ListByCreator(ctx, actorID)
}

// Delete flips the record to deleted and then removes the blob. The
// metadata transition is the source of truth: a blob-delete failure is
// logged for reconciliation, not surfaced. Deleting an already-deleted
// record is idempotent success.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	rec, err := s.getOwned(ctx, id, actorID)
	if err != nil {
		return err
	}
	if rec.Status == StatusDeleted {
		operationsTotal.WithLabelValues("delete", "noop").Inc()
		return nil
	}

	if err := s.casDeleted(ctx, rec.ID); err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, rec.StorageKey); err != nil {
		operationsTotal.WithLabelValues("delete", "blob_error").Inc()
		log.Printf("blob_delete_failed id=%s key=%s err=%v", rec.ID, rec.StorageKey, err)
		return nil
	}

	operationsTotal.WithLabelValues("delete", "ok").Inc()
	log.Printf("report_deleted id=%s key=%s", rec.ID, rec.StorageKey)
	return nil
}

// casDeleted walks the permitted transitions into deleted. A conflict
// on every attempt means a concurrent delete won, which is success.
func (s *Service) casDeleted(ctx context.Context, id string) error {
	for _, from := range []Status{StatusActive, StatusExpired} {
		err := s.repo.UpdateStatus(ctx, id, from, StatusDeleted)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStatusConflict) {
			return err
		}
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == StatusDeleted {
		return nil
	}
	return ErrStatusConflict
}

// SweepResult summarizes one sweeper pass.
type SweepResult struct {
	Expired  int
	Skipped  int
	Errors   int
	Duration time.Duration
}

const sweepPageSize = 200

// Sweep pages through TTL-expired active records and CAS-flips them to
// expired. Conflicts mean another replica or an explicit delete got
// there first and are skipped silently, which is what makes redundant
// concurrent sweeps safe without coordination. Sweep never touches
// blobs; physical removal stays an explicit, policy-driven step.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	start := s.now()
	var res SweepResult

	afterID := ""
	for {
		page, err := s.repo.ListExpiredBefore(ctx, now, afterID, sweepPageSize)
		if err != nil {
			res.Duration = s.now().Sub(start)
			return res, fmt.Errorf("list expired records: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			switch err := s.repo.UpdateStatus(ctx, rec.ID, StatusActive, StatusExpired); {
			case err == nil:
				res.Expired++
			case errors.Is(err, ErrStatusConflict), errors.Is(err, ErrFileNotFound):
				res.Skipped++
			default:
				res.Errors++
				log.Printf("sweep_update_failed id=%s err=%v", rec.ID, err)
			}
		}
		afterID = page[len(page)-1].ID
	}

	res.Duration = s.now().Sub(start)
	return res, nil
}

func (s *Service) getOwned(ctx context.Context, id, actorID string) (*FileRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// An owned record is invisible to other actors, same as absent.
	if actorID != "" && rec.CreatedBy != nil && *rec.CreatedBy != actorID {
		return nil, ErrFileNotFound
	}
	return rec, nil
}

func presignOptions(rec *FileRecord, accessType AccessType) storage.PresignOptions {
	if accessType == AccessDownload {
		return storage.PresignOptions{
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", rec.OriginalName),
			ContentType:        rec.ContentType,
		}
	}
	return storage.PresignOptions{
		ContentDisposition: "inline",
		ContentType:        rec.ContentType,
	}
}

// storageKey derives the object path from the generated id, never from
// the caller-supplied name, so user input cannot steer the path. The
// date shard exists only for bucket browsability.
func storageKey(id, originalName string, now time.Time) string {
	return fmt.Sprintf("reports/%s/%s%s", now.Format("20060102"), id, safeExt(originalName))
}

func safeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
