package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"mspro-labs/refscrape/internal/ai"
	"mspro-labs/refscrape/internal/config"
	"mspro-labs/refscrape/internal/db"
	"mspro-labs/refscrape/internal/embedder"
	"mspro-labs/refscrape/internal/searcher"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Semantic search over scraped entries",
	Long: `Uses AI to find catalog entries that match the meaning of your query.
Run 'refscrape embed' after scraping so entries have vectors.
Examples:
  refscrape search "currency used in Japan"
  refscrape search "island nations in the Caribbean"

History commands:
  refscrape search history
  refscrape search clear "query string"
  refscrape search clear all`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		handleSearch(args)
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", searcher.DefaultLimit, "number of matches to show")
	rootCmd.AddCommand(searchCmd)
}

func handleSearch(args []string) {
	// 1. Setup
	appCfg, err := config.GetAppConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	database, err := db.Connect(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	defer database.Close()

	command := strings.ToLower(args[0])

	// 2. Commands
	if command == "history" && len(args) == 1 {
		entries, err := db.ListSearchHistory(database)
		if err != nil {
			log.Fatalf("Failed to list history: %v", err)
		}
		fmt.Println("Search History (Cached Queries)")
		fmt.Println("-------------------------------")
		if len(entries) == 0 {
			fmt.Println("No history found.")
			return
		}
		for _, e := range entries {
			fmt.Printf("[%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.QueryText)
		}
		return
	}

	if command == "clear" {
		if len(args) < 2 {
			log.Fatal("Usage: refscrape search clear \"query text\" (or 'all')")
		}
		target := strings.TrimSpace(strings.Join(args[1:], " "))
		var affected int64
		var err error

		if strings.EqualFold(target, "all") {
			affected, err = db.ClearAllSearchHistory(database)
		} else {
			affected, err = db.ClearSearchHistory(database, target)
		}

		if err != nil {
			log.Fatalf("Failed to clear history: %v", err)
		}
		fmt.Printf("Done. Removed %d entry(s) from cache.\n", affected)
		return
	}

	// 3. Perform regular search
	query := strings.Join(args, " ")
	ctx := context.Background()

	var client embedder.TextEmbedder
	if !searcher.IsCached(database, query) {
		aiClient, err := ai.NewClient(ctx)
		if err != nil {
			log.Fatalf("Failed to init AI: %v", err)
		}
		defer aiClient.Close()
		client = aiClient
	}

	results, err := searcher.Perform(ctx, database, client, query, searchLimit)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		fmt.Println("No embedded entries yet. Run `refscrape embed` first.")
		return
	}

	fmt.Printf("\nTop matches for: \"%s\"\n\n", query)
	for i, r := range results {
		fmt.Printf("#%d [%.1f%% match] %s: %s (%s)\n", i+1, r.Score*100, r.Entry.Key, r.Entry.Value, r.Entry.Source)
	}
}
