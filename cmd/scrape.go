package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"mspro-labs/refscrape/internal/config"
	"mspro-labs/refscrape/internal/db"
	"mspro-labs/refscrape/internal/fetcher"
	"mspro-labs/refscrape/internal/models"
	"mspro-labs/refscrape/internal/pipeline"
)

var (
	withCatalog     bool
	fetcherOverride string
)

// scrapeOptions are the per-run switches shared by the scrape commands.
type scrapeOptions struct {
	Fetcher     string // overrides every source's fetcher when set
	CatalogPath string // SQLite catalog to record rows in, empty skips the catalog
}

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [source...]",
	Short: "Scrape the given sources (all when none are named)",
	Long: `Fetches each source page, extracts its table and overwrites the source's JSON output file.
With --catalog the rows are also recorded in the local SQLite catalog used by list, embed and search.

Examples:
  refscrape scrape
  refscrape scrape currencies
  refscrape scrape countries --fetcher browser
  refscrape scrape --catalog`,
	Run: func(cmd *cobra.Command, args []string) {
		runScrape(args)
	},
}

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "Scrape supported currency codes into currencies.json",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runScrape([]string{"currencies"})
	},
}

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "Scrape country names and alpha-2 codes into countries.json",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runScrape([]string{"countries"})
	},
}

func init() {
	for _, c := range []*cobra.Command{scrapeCmd, currenciesCmd, countriesCmd} {
		c.Flags().BoolVar(&withCatalog, "catalog", false, "also record the rows in the SQLite catalog (DB_PATH)")
		c.Flags().StringVar(&fetcherOverride, "fetcher", "", "override the source fetcher (http or browser)")
		rootCmd.AddCommand(c)
	}
}

func runScrape(names []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 1. Load Config
	appCfg, err := config.GetAppConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	siteCfg, err := config.LoadSources(appCfg.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}
	sources, err := siteCfg.Select(names)
	if err != nil {
		log.Fatalf("%v (known sources: %v)", err, siteCfg.Names())
	}

	opts := scrapeOptions{Fetcher: fetcherOverride}
	if withCatalog {
		opts.CatalogPath = appCfg.DBPath
	}

	// 2. Scrape
	if err := scrapeSources(ctx, sources, opts, os.Stdout); err != nil {
		log.Fatalf("Scraping failed: %v", err)
	}
}

// scrapeSources runs the pipeline for each source in order and stops at the first failure.
// The catalog is opened lazily after the first JSON file is written, and any catalog error
// is logged and disables the catalog for the rest of the run.
func scrapeSources(ctx context.Context, sources []config.Source, opts scrapeOptions, out io.Writer) error {
	var database *sql.DB
	catalogOn := opts.CatalogPath != ""
	defer func() {
		if database != nil {
			database.Close()
		}
	}()

	for _, src := range sources {
		if opts.Fetcher != "" {
			src.Fetcher = opts.Fetcher
			if err := src.Validate(); err != nil {
				return fmt.Errorf("invalid --fetcher: %w", err)
			}
		}

		// a. Fetch, extract, write, confirm
		f, err := fetcher.New(src)
		if err != nil {
			return err
		}
		mapping, err := pipeline.Run(ctx, f, src, out)
		if err != nil {
			return err
		}

		if !catalogOn {
			continue
		}

		// b. Record in the catalog (mark old rows inactive, then upsert)
		if database == nil {
			database, err = db.Connect(opts.CatalogPath)
			if err != nil {
				log.Printf("Warning: catalog disabled, %v", err)
				catalogOn = false
				continue
			}
		}
		if err := recordCatalog(database, src.Name, mapping); err != nil {
			log.Printf("Warning: catalog disabled, %v", err)
			catalogOn = false
		}
	}
	return nil
}

func recordCatalog(database *sql.DB, source string, mapping *models.Mapping) error {
	if err := db.MarkSourceInactive(database, source); err != nil {
		return fmt.Errorf("failed to mark %s inactive: %w", source, err)
	}
	count, err := db.SaveEntries(database, source, mapping)
	if err != nil {
		return fmt.Errorf("failed to save %s entries: %w", source, err)
	}
	log.Printf("Catalog: upserted %d %s entries.", count, source)
	return nil
}
