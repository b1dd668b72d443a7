package reportfile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RunOnce(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, new(MockBackend))

	past := time.Now().UTC().Add(-time.Minute)
	seedRecord(t, repo, "id-old", func(r *FileRecord) { r.ExpiresAt = &past })
	seedRecord(t, repo, "id-forever", func(r *FileRecord) {
		r.StorageKey = "reports/20250101/id-forever.docx"
	})

	sweeper := NewSweeper(svc, time.Minute)
	sweeper.RunOnce(context.Background())

	assert.Equal(t, StatusExpired, repo.records["id-old"].Status)
	// Records without a TTL never expire.
	assert.Equal(t, StatusActive, repo.records["id-forever"].Status)
}

func TestSweeper_StartStops(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, new(MockBackend))

	past := time.Now().UTC().Add(-time.Minute)
	seedRecord(t, repo, "id-old", func(r *FileRecord) { r.ExpiresAt = &past })

	sweeper := NewSweeper(svc, 5*time.Millisecond)
	stop := sweeper.Start(context.Background())

	require.Eventually(t, func() bool {
		rec, err := repo.GetByID(context.Background(), "id-old")
		return err == nil && rec.Status == StatusExpired
	}, time.Second, 5*time.Millisecond)

	close(stop)
}

func TestSweeper_StartHonorsContext(t *testing.T) {
	svc := newTestService(newMemRepo(), new(MockBackend))

	ctx, cancel := context.WithCancel(context.Background())
	sweeper := NewSweeper(svc, time.Hour)
	stop := sweeper.Start(ctx)

	cancel()
	// The goroutine exits on ctx.Done; closing stop afterwards must not
	// panic or block.
	time.Sleep(10 * time.Millisecond)
	close(stop)
}
