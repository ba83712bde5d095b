package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"mspro-labs/refscrape/internal/config"
)

var logger = log.New(os.Stderr, "FETCHER: ", log.LstdFlags|log.Lshortfile)

// ErrUnexpectedStatus is returned when the server answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// New builds the fetcher named by the source.
func New(src config.Source) (Fetcher, error) {
	switch src.Fetcher {
	case config.FetcherHTTP, "":
		return NewHTTPFetcher(src.Timeout, src.UserAgent), nil
	case config.FetcherBrowser:
		return NewBrowserFetcher(src.Timeout, src.Table.Selector), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", src.Fetcher)
	}
}
