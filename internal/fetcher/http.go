package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/encoding/charmap"
)

// HTTPFetcher performs a single plain GET per page.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher returns a fetcher bounded by timeout that identifies itself with userAgent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	logger.Printf("GET %s", url)
	res, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("%w: %s returned %s", ErrUnexpectedStatus, url, res.Status())
	}
	logger.Printf("Received %d bytes from %s", len(res.Body()), url)

	return decodeBody(res.Body())
}

// decodeBody returns the body as UTF-8, falling back to ISO-8859-1 for legacy pages.
func decodeBody(body []byte) (string, error) {
	if utf8.Valid(body) {
		return string(body), nil
	}
	decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}
	return string(decoded), nil
}
