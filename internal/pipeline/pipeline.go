package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"mspro-labs/refscrape/internal/config"
	"mspro-labs/refscrape/internal/fetcher"
	"mspro-labs/refscrape/internal/models"
	"mspro-labs/refscrape/internal/scraper"
	"mspro-labs/refscrape/internal/writer"
)

var logger = log.New(os.Stderr, "PIPELINE: ", log.LstdFlags|log.Lshortfile)

// Run fetches, extracts and writes one source, then prints its confirmation message to out.
// Nothing is written unless extraction succeeded.
func Run(ctx context.Context, f fetcher.Fetcher, src config.Source, out io.Writer) (*models.Mapping, error) {
	// 1. Fetch + locate + extract
	mapping, err := scraper.Run(ctx, f, src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}
	if mapping.Len() == 0 {
		logger.Printf("[%s] Table held no usable rows, writing an empty object.", src.Name)
	}

	// 2. Write
	if err := writer.WriteJSON(src.Output, mapping, writer.Format{Indent: src.Indent, ASCIIOnly: src.ASCIIOnly}); err != nil {
		return nil, fmt.Errorf("source %s: failed to write output: %w", src.Name, err)
	}
	logger.Printf("[%s] Wrote %d entries to %s", src.Name, mapping.Len(), src.Output)

	// 3. Confirm
	fmt.Fprintln(out, src.Message)
	return mapping, nil
}
