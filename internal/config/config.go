package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownSource = errors.New("unknown source")
	ErrInvalidSource = errors.New("invalid source")
)

const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"

	PositionFirst = "first"
	PositionLast  = "last"

	defaultConfigFile = "config.yaml"
	defaultDBPath     = "./local-data/refdata.db"
	defaultTimeout    = 30 * time.Second
	defaultUserAgent  = "Mozilla/5.0 (compatible; refscrape/1.0)"
)

//go:embed defaults.yaml
var builtinSources []byte

// AppConfig holds infrastructure config from standard env vars
type AppConfig struct {
	DBPath     string
	ConfigPath string // Path to the YAML sources file, empty means built-in sources
}

// SiteConfig is the resolved set of sources.
type SiteConfig struct {
	Sources []Source
}

// Source describes one page and the table to extract from it.
type Source struct {
	Name      string
	URL       string
	Fetcher   string
	Timeout   time.Duration
	UserAgent string
	Table     Table
	Columns   Columns
	Output    string
	Indent    int  // spaces per level, 0 writes compact JSON
	ASCIIOnly bool // escape non-ASCII characters as \uXXXX
	Message   string
}

// Table tells the locator which table to pick and how to walk it.
type Table struct {
	Selector   string
	Position   string // first, last or a zero-based index
	Body       string // optional sub-element holding the rows, e.g. tbody
	Row        string
	Cell       string
	HeaderRows int
}

// Columns are zero-based cell indexes.
type Columns struct {
	Key   int
	Value int
}

// GetAppConfig reads basic infrastructure settings from environment variables.
// A .env file in the working directory is loaded first when present.
func GetAppConfig() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("failed to load .env: %w", err)
	}

	dbPath := os.Getenv("DB_PATH")
	configPath := os.Getenv("CONFIG_PATH")

	if dbPath == "" {
		dbPath = defaultDBPath
	}
	if configPath == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			configPath = defaultConfigFile
		}
	}

	return AppConfig{
		DBPath:     dbPath,
		ConfigPath: configPath,
	}, nil
}

// LoadSources reads the YAML sources file, or the built-in sources when path is empty.
// Fields a source leaves unset are filled from the file's defaults block.
func LoadSources(path string) (*SiteConfig, error) {
	data := builtinSources
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file at '%s': %w", path, err)
		}
	}
	return ParseSources(data)
}

// ParseSources parses and validates a sources document.
func ParseSources(data []byte) (*SiteConfig, error) {
	var doc yamlSiteConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if len(doc.Sources) == 0 {
		return nil, fmt.Errorf("%w: no sources defined", ErrInvalidSource)
	}

	cfg := &SiteConfig{Sources: make([]Source, 0, len(doc.Sources))}
	seen := make(map[string]bool, len(doc.Sources))
	for _, ys := range doc.Sources {
		if err := mergo.Merge(&ys, doc.Defaults); err != nil {
			return nil, fmt.Errorf("failed to apply defaults to source %q: %w", ys.Name, err)
		}
		src := mapSource(ys)
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("%w: duplicate source name %q", ErrInvalidSource, src.Name)
		}
		seen[src.Name] = true
		cfg.Sources = append(cfg.Sources, src)
	}
	return cfg, nil
}

// mapSource resolves a merged YAML source, filling whatever is still unset with built-ins.
func mapSource(ys yamlSource) Source {
	src := Source{
		Name:      ys.Name,
		URL:       ys.URL,
		Fetcher:   ys.Fetcher,
		Timeout:   ys.Timeout,
		UserAgent: ys.UserAgent,
		Table: Table{
			Selector:   ys.Table.Selector,
			Position:   ys.Table.Position,
			Body:       ys.Table.Body,
			Row:        ys.Table.Row,
			Cell:       ys.Table.Cell,
			HeaderRows: intOr(ys.Table.HeaderRows, 0),
		},
		Output:    ys.Output,
		Indent:    intOr(ys.Indent, 2),
		ASCIIOnly: ys.ASCIIOnly != nil && *ys.ASCIIOnly,
		Message:   ys.Message,
	}

	src.Columns.Key = intOr(ys.Columns.Key, 0)
	defaultValue := 1
	if src.Columns.Key == 1 {
		defaultValue = 0
	}
	src.Columns.Value = intOr(ys.Columns.Value, defaultValue)

	if src.Fetcher == "" {
		src.Fetcher = FetcherHTTP
	}
	if src.Timeout == 0 {
		src.Timeout = defaultTimeout
	}
	if src.UserAgent == "" {
		src.UserAgent = defaultUserAgent
	}
	if src.Table.Selector == "" {
		src.Table.Selector = "table"
	}
	if src.Table.Position == "" {
		src.Table.Position = PositionFirst
	}
	if src.Table.Row == "" {
		src.Table.Row = "tr"
	}
	if src.Table.Cell == "" {
		src.Table.Cell = "td"
	}
	if src.Message == "" {
		src.Message = fmt.Sprintf("Data saved to %s", src.Output)
	}
	return src
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

// Validate reports the first problem found in the source definition.
func (s Source) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidSource, s.Name, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: source without a name", ErrInvalidSource)
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("url must be an absolute http(s) URL, got %q", s.URL)
	}
	if s.Fetcher != FetcherHTTP && s.Fetcher != FetcherBrowser {
		return invalid("fetcher must be %q or %q, got %q", FetcherHTTP, FetcherBrowser, s.Fetcher)
	}
	if s.Timeout < 0 {
		return invalid("timeout must not be negative")
	}
	if _, err := s.Table.Index(); err != nil {
		return invalid("%v", err)
	}
	if s.Table.HeaderRows < 0 {
		return invalid("header_rows must not be negative")
	}
	if s.Columns.Key < 0 || s.Columns.Value < 0 {
		return invalid("columns must not be negative")
	}
	if s.Columns.Key == s.Columns.Value {
		return invalid("key and value columns must differ")
	}
	if strings.TrimSpace(s.Output) == "" {
		return invalid("output path is required")
	}
	if s.Indent < 0 {
		return invalid("indent must not be negative")
	}
	return nil
}

// Index resolves Position to a zero-based index; -1 means the last match.
func (t Table) Index() (int, error) {
	switch strings.ToLower(strings.TrimSpace(t.Position)) {
	case PositionFirst, "":
		return 0, nil
	case PositionLast:
		return -1, nil
	}
	n, err := strconv.Atoi(t.Position)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("table position must be first, last or a non-negative index, got %q", t.Position)
	}
	return n, nil
}

// MinCells is the number of cells a row needs to supply both columns.
func (c Columns) MinCells() int {
	return max(c.Key, c.Value) + 1
}

// Lookup finds a source by name.
func (c *SiteConfig) Lookup(name string) (Source, error) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

// Select returns the named sources in the given order, or every source when names is empty.
func (c *SiteConfig) Select(names []string) ([]Source, error) {
	if len(names) == 0 {
		return c.Sources, nil
	}
	out := make([]Source, 0, len(names))
	for _, n := range names {
		s, err := c.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Names lists the configured source names.
func (c *SiteConfig) Names() []string {
	names := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		names = append(names, s.Name)
	}
	return names
}
