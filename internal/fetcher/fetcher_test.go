package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/refscrape/internal/config"
)

func TestHTTPFetcherReturnsBody(t *testing.T) {
	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<table><tr><td>USD</td></tr></table>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, "refscrape-test")
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "<table><tr><td>USD</td></tr></table>", body)
	assert.Equal(t, "refscrape-test", gotAgent)
}

func TestHTTPFetcherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(5*time.Second, "").Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestHTTPFetcherTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPFetcher(50*time.Millisecond, "").Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestDecodeBodyLatin1(t *testing.T) {
	// "Côte" in ISO-8859-1
	body, err := decodeBody([]byte{'C', 0xf4, 't', 'e'})
	require.NoError(t, err)
	assert.Equal(t, "Côte", body)

	body, err = decodeBody([]byte("Curaçao"))
	require.NoError(t, err)
	assert.Equal(t, "Curaçao", body)
}

func TestNewPicksImplementation(t *testing.T) {
	f, err := New(config.Source{Fetcher: config.FetcherHTTP, Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = New(config.Source{Fetcher: config.FetcherBrowser, Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &BrowserFetcher{}, f)

	_, err = New(config.Source{Fetcher: "curl"})
	assert.Error(t, err)
}

func TestLoggerWritesToStderr(t *testing.T) {
	assert.True(t, logger.Writer() == os.Stderr, "fetcher diagnostics must go to stderr")
}
