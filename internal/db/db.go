package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import for side-effects only

	"mspro-labs/refscrape/internal/models"
)

const memoryPath = ":memory:"

// Connect opens a connection to the SQLite catalog and ensures the schema exists.
// It automatically applies recommended settings for concurrency (WAL mode).
func Connect(dbPath string) (*sql.DB, error) {
	dsn := dbPath
	if dbPath != memoryPath {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// Use robust connection settings to prevent "database locked" errors
		dsn = fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		// every new connection to :memory: is a fresh, empty database
		db.SetMaxOpenConns(1)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

func createSchema(db *sql.DB) error {
	entryTable := `
	CREATE TABLE IF NOT EXISTS entry (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  source TEXT NOT NULL,
	  entry_key TEXT NOT NULL,
	  entry_value TEXT NOT NULL,
	  position INTEGER NOT NULL DEFAULT 0,
	  first_scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  last_scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  is_active INTEGER DEFAULT 1,
	  embedding BLOB,
	  UNIQUE (source, entry_key)
	);
	CREATE INDEX IF NOT EXISTS idx_entry_source ON entry(source);
	CREATE INDEX IF NOT EXISTS idx_entry_is_active ON entry(is_active);
	`
	if _, err := db.Exec(entryTable); err != nil {
		return err
	}

	// Search History Table (local cache of query embeddings)
	historyTable := `
	CREATE TABLE IF NOT EXISTS search_history (
		query_text TEXT PRIMARY KEY,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(historyTable); err != nil {
		return err
	}

	return nil
}

// MarkSourceInactive sets is_active=0 for every entry of a source.
// This is called before the fresh rows of a scrape are saved.
func MarkSourceInactive(db *sql.DB, source string) error {
	_, err := db.Exec(`UPDATE entry SET is_active = 0 WHERE source = ? AND is_active = 1;`, source)
	if err != nil {
		return fmt.Errorf("failed to mark %s entries as inactive: %w", source, err)
	}
	return nil
}

// SaveEntries performs a batch UPSERT of the mapping into the catalog.
// Saved entries become active; a changed value drops the stale embedding.
func SaveEntries(db *sql.DB, source string, m *models.Mapping) (int64, error) {
	upsertSQL := `
	INSERT INTO entry (
	  source, entry_key, entry_value, position, last_scraped_at, is_active
	) VALUES (
	  ?, ?, ?, ?, CURRENT_TIMESTAMP, 1
	) ON CONFLICT(source, entry_key) DO UPDATE SET
	  embedding = CASE WHEN entry.entry_value = excluded.entry_value THEN entry.embedding ELSE NULL END,
	  entry_value = excluded.entry_value,
	  position = excluded.position,
	  last_scraped_at = CURRENT_TIMESTAMP,
	  is_active = 1;
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var totalAffected int64 = 0
	for _, e := range m.Entries(source) {
		res, err := stmt.ExecContext(ctx, e.Source, e.Key, e.Value, e.Position)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to upsert %s/%s: %w", source, e.Key, err)
		}
		rows, _ := res.RowsAffected()
		totalAffected += rows
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return totalAffected, nil
}

// GetActiveEntries returns active entries in scrape order, optionally limited to one source.
func GetActiveEntries(db *sql.DB, source string) ([]models.Entry, error) {
	query := `SELECT source, entry_key, entry_value, position FROM entry WHERE is_active = 1`
	var args []any
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY source, position`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var e models.Entry
		if err := rows.Scan(&e.Source, &e.Key, &e.Value, &e.Position); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SourceSummary describes the catalog state of one source.
type SourceSummary struct {
	Source        string
	Active        int
	Inactive      int
	LastScrapedAt time.Time
}

// ListSources summarises every source present in the catalog.
func ListSources(db *sql.DB) ([]SourceSummary, error) {
	rows, err := db.Query(`
		SELECT source,
		       SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN is_active = 1 THEN 0 ELSE 1 END),
		       MAX(last_scraped_at)
		FROM entry
		GROUP BY source
		ORDER BY source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceSummary
	for rows.Next() {
		var s SourceSummary
		var last string
		if err := rows.Scan(&s.Source, &s.Active, &s.Inactive, &last); err != nil {
			return nil, err
		}
		s.LastScrapedAt = parseTimestamp(last)
		out = append(out, s)
	}
	return out, rows.Err()
}

// MAX() loses the column type, so the driver hands back sqlite's text form.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- Embedding & Search Helpers ---

// EntryText is the text embedded for a catalog entry.
func EntryText(source, key, value string) string {
	return fmt.Sprintf("Source: %s\nKey: %s\nValue: %s", source, key, value)
}

// GetUnembeddedEntries returns a map of entry id -> text for active entries missing embeddings.
func GetUnembeddedEntries(db *sql.DB) (map[int64]string, error) {
	rows, err := db.Query(`SELECT id, source, entry_key, entry_value FROM entry WHERE is_active = 1 AND embedding IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make(map[int64]string)
	for rows.Next() {
		var id int64
		var source, key, value string
		if err := rows.Scan(&id, &source, &key, &value); err == nil {
			results[id] = EntryText(source, key, value)
		}
	}
	return results, rows.Err()
}

// UpdateEmbedding saves the generated vector blob for an entry.
func UpdateEmbedding(db *sql.DB, id int64, embedding []byte) error {
	_, err := db.Exec("UPDATE entry SET embedding = ? WHERE id = ?", embedding, id)
	return err
}

// EntryVector is an active entry together with its stored embedding.
type EntryVector struct {
	Source string
	Key    string
	Value  string
	Vector []byte
}

// GetEntryVectors returns all active entries that have embeddings.
func GetEntryVectors(db *sql.DB) ([]EntryVector, error) {
	rows, err := db.Query(`SELECT source, entry_key, entry_value, embedding FROM entry WHERE is_active = 1 AND embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []EntryVector
	for rows.Next() {
		var ev EntryVector
		if err := rows.Scan(&ev.Source, &ev.Key, &ev.Value, &ev.Vector); err == nil {
			results = append(results, ev)
		}
	}
	return results, rows.Err()
}

// GetCachedQuery tries to find a previously searched query vector.
func GetCachedQuery(db *sql.DB, text string) ([]byte, error) {
	var blob []byte
	err := db.QueryRow("SELECT embedding FROM search_history WHERE query_text = ?", text).Scan(&blob)
	return blob, err
}

// SaveCachedQuery saves a new query and its vector to the history table.
func SaveCachedQuery(db *sql.DB, text string, blob []byte) error {
	_, err := db.Exec("INSERT OR IGNORE INTO search_history (query_text, embedding) VALUES (?, ?)", text, blob)
	return err
}

// --- History Management for search ---

type HistoryEntry struct {
	QueryText string
	CreatedAt time.Time
}

// ListSearchHistory returns all cached queries, newest first.
func ListSearchHistory(db *sql.DB) ([]HistoryEntry, error) {
	rows, err := db.Query("SELECT query_text, created_at FROM search_history ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.QueryText, &e.CreatedAt); err == nil {
			entries = append(entries, e)
		}
	}
	return entries, rows.Err()
}

// ClearSearchHistory removes a specific query from the cache.
func ClearSearchHistory(db *sql.DB, queryText string) (int64, error) {
	res, err := db.Exec("DELETE FROM search_history WHERE query_text = ?", queryText)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearAllSearchHistory wipes the entire cache.
func ClearAllSearchHistory(db *sql.DB) (int64, error) {
	res, err := db.Exec("DELETE FROM search_history")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
