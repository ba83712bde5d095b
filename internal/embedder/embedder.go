package embedder

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"time"

	"mspro-labs/refscrape/internal/db"
)

// TextEmbedder turns text into a storable vector.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]byte, []float32, error)
}

// Pause between API calls, keeps us inside the free tier (approx 60 RPM).
var Pause = 1 * time.Second

// Run finds all active catalog entries missing embeddings and processes them.
// Individual failures are logged and skipped; the count of stored vectors is returned.
func Run(ctx context.Context, database *sql.DB, client TextEmbedder) (int, error) {
	// 1. Find work to do
	targets, err := db.GetUnembeddedEntries(database)
	if err != nil {
		return 0, err
	}

	if len(targets) == 0 {
		log.Println("All active entries are already embedded.")
		return 0, nil
	}
	log.Printf("Found %d entries to embed...", len(targets))

	ids := make([]int64, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// 2. Process loop
	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		blob, _, err := client.EmbedText(ctx, targets[id])
		if err != nil {
			log.Printf("Error embedding entry %d: %v", id, err)
			if err := wait(ctx); err != nil {
				return count, err
			}
			continue
		}

		if err := db.UpdateEmbedding(database, id, blob); err != nil {
			log.Printf("Error saving embedding for entry %d: %v", id, err)
			continue
		}

		count++
		if err := wait(ctx); err != nil {
			return count, err
		}
	}

	log.Printf("Successfully embedded %d entries.", count)
	return count, nil
}

// wait sleeps for Pause, returning early with the context's error if it is cancelled.
func wait(ctx context.Context) error {
	if Pause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
