package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/refscrape/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func mapping(pairs ...string) *models.Mapping {
	m := models.NewMapping()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

func TestSaveEntriesUpsert(t *testing.T) {
	database := openTestDB(t)

	count, err := SaveEntries(database, "currencies", mapping("USD", "US Dollar", "EUR", "Euro"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, UpdateEmbedding(database, 1, []byte{1, 2, 3, 4}))

	// Re-scrape: USD renamed, EUR unchanged, GBP new, order changed.
	require.NoError(t, MarkSourceInactive(database, "currencies"))
	_, err = SaveEntries(database, "currencies", mapping("GBP", "Pound Sterling", "USD", "United States Dollar", "EUR", "Euro"))
	require.NoError(t, err)

	entries, err := GetActiveEntries(database, "currencies")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, models.Entry{Source: "currencies", Key: "GBP", Value: "Pound Sterling", Position: 0}, entries[0])
	assert.Equal(t, "United States Dollar", entries[1].Value)

	// The renamed USD lost its embedding, so it needs embedding again alongside the others.
	pending, err := GetUnembeddedEntries(database)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
	assert.Equal(t, "Source: currencies\nKey: USD\nValue: United States Dollar", pending[1])
}

func TestEmbeddingSurvivesUnchangedValue(t *testing.T) {
	database := openTestDB(t)

	_, err := SaveEntries(database, "countries", mapping("France", "FR"))
	require.NoError(t, err)
	require.NoError(t, UpdateEmbedding(database, 1, []byte{0, 0, 128, 63}))

	require.NoError(t, MarkSourceInactive(database, "countries"))
	_, err = SaveEntries(database, "countries", mapping("France", "FR"))
	require.NoError(t, err)

	vectors, err := GetEntryVectors(database)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, "France", vectors[0].Key)
	assert.Equal(t, []byte{0, 0, 128, 63}, vectors[0].Vector)
}

func TestMarkSourceInactiveIsScoped(t *testing.T) {
	database := openTestDB(t)

	_, err := SaveEntries(database, "currencies", mapping("USD", "US Dollar"))
	require.NoError(t, err)
	_, err = SaveEntries(database, "countries", mapping("France", "FR", "Japan", "JP"))
	require.NoError(t, err)

	require.NoError(t, MarkSourceInactive(database, "countries"))
	_, err = SaveEntries(database, "countries", mapping("Japan", "JP"))
	require.NoError(t, err)

	all, err := GetActiveEntries(database, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "countries", all[0].Source)
	assert.Equal(t, "Japan", all[0].Key)
	assert.Equal(t, "currencies", all[1].Source)

	summaries, err := ListSources(database)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, SourceSummary{Source: "countries", Active: 1, Inactive: 1, LastScrapedAt: summaries[0].LastScrapedAt}, summaries[0])
	assert.False(t, summaries[0].LastScrapedAt.IsZero())
}

func TestSearchHistory(t *testing.T) {
	database := openTestDB(t)

	_, err := GetCachedQuery(database, "yen")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, SaveCachedQuery(database, "yen", []byte{1, 2, 3, 4}))
	require.NoError(t, SaveCachedQuery(database, "euro", []byte{5, 6, 7, 8}))

	blob, err := GetCachedQuery(database, "yen")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, blob)

	history, err := ListSearchHistory(database)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	n, err := ClearSearchHistory(database, "yen")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = ClearAllSearchHistory(database)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestConnectCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local-data", "refdata.db")
	database, err := Connect(path)
	require.NoError(t, err)
	defer database.Close()

	_, err = SaveEntries(database, "countries", mapping("Peru", "PE"))
	require.NoError(t, err)
}
