package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/refscrape/internal/config"
	"mspro-labs/refscrape/internal/fetcher"
	"mspro-labs/refscrape/internal/scraper"
)

func serve(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func source(t *testing.T, name, url string) config.Source {
	t.Helper()
	cfg, err := config.LoadSources("")
	require.NoError(t, err)
	src, err := cfg.Lookup(name)
	require.NoError(t, err)
	src.URL = url
	src.Output = filepath.Join(t.TempDir(), src.Output)
	return src
}

func TestRunCurrencies(t *testing.T) {
	srv := serve(t, `<html><body><table>
		<tr><th>Currency Code</th><th>Currency Name</th><th>Country</th></tr>
		<tr><td>USD</td><td>US Dollar</td><td>United States</td></tr>
		<tr><td>EUR</td><td>Euro</td><td>European Union</td></tr>
	</table></body></html>`)
	src := source(t, "currencies", srv.URL)

	var out bytes.Buffer
	m, err := Run(context.Background(), fetcher.NewHTTPFetcher(5*time.Second, ""), src, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	data, err := os.ReadFile(src.Output)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"USD\": \"US Dollar\",\n    \"EUR\": \"Euro\"\n}", string(data))
	assert.Equal(t, "Currency data saved to currencies.json\n", out.String())
}

func TestRunCountries(t *testing.T) {
	srv := serve(t, `<html><body><table>
		<thead><tr><th>Country</th><th>Alpha-2 code</th></tr></thead>
		<tbody>
			<tr><td>United States</td><td>US</td></tr>
			<tr><td>France</td><td>FR</td></tr>
		</tbody>
	</table></body></html>`)
	src := source(t, "countries", srv.URL)

	var out bytes.Buffer
	_, err := Run(context.Background(), fetcher.NewHTTPFetcher(5*time.Second, ""), src, &out)
	require.NoError(t, err)

	data, err := os.ReadFile(src.Output)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"United States\": \"US\",\n  \"France\": \"FR\"\n}", string(data))
	assert.Equal(t, "Done!\n", out.String())
}

func TestRunMissingTableWritesNothing(t *testing.T) {
	srv := serve(t, `<html><body><p>Maintenance</p></body></html>`)
	src := source(t, "currencies", srv.URL)

	var out bytes.Buffer
	_, err := Run(context.Background(), fetcher.NewHTTPFetcher(5*time.Second, ""), src, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scraper.ErrTableNotFound))

	_, statErr := os.Stat(src.Output)
	assert.True(t, os.IsNotExist(statErr), "output file must not exist")
	assert.Empty(t, out.String())
}

func TestRunMissingTableKeepsPreviousOutput(t *testing.T) {
	srv := serve(t, `<html><body><table><tr><td>France</td><td>FR</td></tr></table></body></html>`)
	src := source(t, "countries", srv.URL)

	_, err := Run(context.Background(), fetcher.NewHTTPFetcher(5*time.Second, ""), src, &bytes.Buffer{})
	require.NoError(t, err)
	before, err := os.ReadFile(src.Output)
	require.NoError(t, err)

	broken := serve(t, `<html><body></body></html>`)
	src.URL = broken.URL
	_, err = Run(context.Background(), fetcher.NewHTTPFetcher(5*time.Second, ""), src, &bytes.Buffer{})
	require.Error(t, err)

	after, err := os.ReadFile(src.Output)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRunEmptyTableWritesEmptyObject(t *testing.T) {
	srv := serve(t, `<html><body><table>
		<tr><th>Currency Code</th><th>Currency Name</th></tr>
	</table></body></html>`)
	src := source(t, "currencies", srv.URL)

	var out bytes.Buffer
	m, err := Run(context.Background(), fetcher.NewHTTPFetcher(5*time.Second, ""), src, &out)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())

	data, err := os.ReadFile(src.Output)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, "Currency data saved to currencies.json\n", out.String())
}

func TestRunEscapesNonASCIIByDefault(t *testing.T) {
	srv := serve(t, `<html><body><table><tbody>
		<tr><td>Côte d'Ivoire</td><td>CI</td></tr>
		<tr><td>Åland Islands</td><td>AX</td></tr>
	</tbody></table></body></html>`)
	src := source(t, "countries", srv.URL)

	_, err := Run(context.Background(), fetcher.NewHTTPFetcher(5*time.Second, ""), src, &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(src.Output)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"C\\u00f4te d'Ivoire\": \"CI\",\n  \"\\u00c5land Islands\": \"AX\"\n}", string(data))
}

func TestLoggerWritesToStderr(t *testing.T) {
	assert.True(t, logger.Writer() == os.Stderr, "pipeline diagnostics must go to stderr")
}
