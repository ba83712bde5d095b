package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mspro-labs/refscrape/internal/config"
	"mspro-labs/refscrape/internal/fetcher"
	"mspro-labs/refscrape/internal/models"
)

var logger = log.New(os.Stderr, "SCRAPER: ", log.LstdFlags|log.Lshortfile)

var (
	ErrTableNotFound     = errors.New("table not found")
	ErrTableBodyNotFound = errors.New("table body not found")
)

// Stats counts what happened to the rows of a table.
type Stats struct {
	Rows       int
	Header     int
	Short      int
	Empty      int
	Duplicates int
}

// Run orchestrates fetching and parsing for one source.
func Run(ctx context.Context, f fetcher.Fetcher, src config.Source) (*models.Mapping, error) {
	logger.Printf("[%s] Fetching %s", src.Name, src.URL)
	html, err := f.Fetch(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTML: %w", err)
	}

	logger.Printf("[%s] Parsing HTML content...", src.Name)
	mapping, err := Parse(html, src.Table, src.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return mapping, nil
}

// Parse locates the configured table in html and extracts its rows.
func Parse(html string, table config.Table, cols config.Columns) (*models.Mapping, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	sel, err := LocateTable(doc, table)
	if err != nil {
		return nil, err
	}

	mapping, stats := ExtractRows(sel, table, cols)
	logger.Printf("Extracted %d entries from %d rows (header %d, short %d, empty %d, duplicate keys %d)",
		mapping.Len(), stats.Rows, stats.Header, stats.Short, stats.Empty, stats.Duplicates)
	return mapping, nil
}

// LocateTable picks one table from the document and, if configured, its body element.
func LocateTable(doc *goquery.Document, table config.Table) (*goquery.Selection, error) {
	idx, err := table.Index()
	if err != nil {
		return nil, err
	}

	all := doc.Find(table.Selector)
	if all.Length() == 0 {
		return nil, fmt.Errorf("%w: no element matches %q", ErrTableNotFound, table.Selector)
	}

	var sel *goquery.Selection
	switch {
	case idx < 0:
		sel = all.Last()
	case idx < all.Length():
		sel = all.Eq(idx)
	default:
		return nil, fmt.Errorf("%w: wanted match %d of %q, page has %d", ErrTableNotFound, idx, table.Selector, all.Length())
	}

	if table.Body == "" {
		return sel, nil
	}
	body := sel.Find(table.Body).First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("%w: no %q inside %q", ErrTableBodyNotFound, table.Body, table.Selector)
	}
	return body, nil
}

// ExtractRows reads key/value cell pairs from the rows of sel.
// Header rows, rows too short to hold both columns and rows with an empty key or value are skipped.
func ExtractRows(sel *goquery.Selection, table config.Table, cols config.Columns) (*models.Mapping, Stats) {
	mapping := models.NewMapping()
	var stats Stats
	need := cols.MinCells()

	sel.Find(table.Row).Each(func(i int, row *goquery.Selection) {
		stats.Rows++
		if i < table.HeaderRows {
			stats.Header++
			return
		}

		cells := row.Find(table.Cell)
		if cells.Length() < need {
			stats.Short++
			return
		}

		key := strings.TrimSpace(cells.Eq(cols.Key).Text())
		value := strings.TrimSpace(cells.Eq(cols.Value).Text())
		if key == "" || value == "" {
			stats.Empty++
			return
		}

		if _, dup := mapping.Get(key); dup {
			stats.Duplicates++
		}
		mapping.Set(key, value)
	})

	return mapping, stats
}
