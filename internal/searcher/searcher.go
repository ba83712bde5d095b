package searcher

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"

	"mspro-labs/refscrape/internal/ai"
	"mspro-labs/refscrape/internal/db"
	"mspro-labs/refscrape/internal/embedder"
)

// DefaultLimit is how many matches Perform returns when limit <= 0.
const DefaultLimit = 5

// Result holds a single search match.
type Result struct {
	Entry db.EntryVector
	Score float32
}

// Perform executes a semantic search over the active catalog entries.
// client may be nil when the query is already cached.
func Perform(ctx context.Context, database *sql.DB, client embedder.TextEmbedder, queryText string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	// 1. Get Query Vector (Try cache first, then AI)
	queryVector, err := getQueryVector(ctx, database, client, queryText)
	if err != nil {
		return nil, err
	}

	// 2. Load all entry vectors
	entries, err := db.GetEntryVectors(database)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	// 3. Compare and score
	var results []Result
	for _, e := range entries {
		floats, err := ai.BytesToFloats(e.Vector)
		if err != nil {
			continue
		}
		results = append(results, Result{Entry: e, Score: ai.CosineSimilarity(queryVector, floats)})
	}

	// 4. Sort by descending score
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// getQueryVector handles the "cache-aside" logic for query embeddings.
func getQueryVector(ctx context.Context, database *sql.DB, client embedder.TextEmbedder, text string) ([]float32, error) {
	// A. Try Cache
	blob, err := db.GetCachedQuery(database, text)
	if err == nil {
		return ai.BytesToFloats(blob)
	}

	// B. Cache Miss - Use AI
	if client == nil {
		return nil, fmt.Errorf("query %q is not cached and no AI client is available", text)
	}
	log.Printf("Cache miss for '%s'. Calling Gemini...", text)
	blob, floats, err := client.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	// C. Save to Cache (don't fail the search if cache save fails)
	if err := db.SaveCachedQuery(database, text, blob); err != nil {
		log.Printf("Warning: failed to save query to cache: %v", err)
	}

	return floats, nil
}

// IsCached reports whether a query vector is already stored.
func IsCached(database *sql.DB, text string) bool {
	_, err := db.GetCachedQuery(database, text)
	return err == nil
}
