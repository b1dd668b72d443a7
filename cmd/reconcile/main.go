// reconcile scans object storage for orphan blobs: objects under the
// reports/ prefix with no metadata row. Orphans appear when an upload
// commits its blob but fails to register the record. By default the
// scan only reports; pass -delete to remove what it finds.
package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"reportstore/internal/config"
	"reportstore/internal/database"
	"reportstore/internal/domain/reportfile"
	"reportstore/internal/storage"
)

func main() {
	deleteOrphans := flag.Bool("delete", false, "delete orphan blobs instead of only reporting them")
	prefix := flag.String("prefix", "reports/", "key prefix to scan")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	backend, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal(err)
	}
	repo := reportfile.NewRepository(db)

	keys, err := backend.List(ctx, *prefix)
	if err != nil {
		log.Fatalf("list blobs failed: %v", err)
	}

	var orphans, deleted, failures int
	for _, key := range keys {
		_, err := repo.GetByStorageKey(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, reportfile.ErrFileNotFound) {
			failures++
			log.Printf("lookup_failed key=%s err=%v", key, err)
			continue
		}

		orphans++
		log.Printf("orphan_blob key=%s", key)

		if *deleteOrphans {
			if err := backend.Delete(ctx, key); err != nil {
				failures++
				log.Printf("orphan_delete_failed key=%s err=%v", key, err)
				continue
			}
			deleted++
		}
	}

	log.Printf("reconcile completed: scanned=%d orphans=%d deleted=%d failures=%d",
		len(keys), orphans, deleted, failures)
}
