package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mspro-labs/refscrape/internal/config"
	"mspro-labs/refscrape/internal/db"
)

var listCmd = &cobra.Command{
	Use:   "list [source]",
	Short: "Show catalog entries (or a per-source summary with --sources)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		summary, _ := cmd.Flags().GetBool("sources")
		source := ""
		if len(args) == 1 {
			source = args[0]
		}
		runList(source, summary)
	},
}

func init() {
	listCmd.Flags().Bool("sources", false, "summarise sources instead of listing entries")
	rootCmd.AddCommand(listCmd)
}

func runList(source string, summary bool) {
	appCfg, err := config.GetAppConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	database, err := db.Connect(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	defer database.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	if summary {
		sources, err := db.ListSources(database)
		if err != nil {
			log.Fatalf("Failed to list sources: %v", err)
		}
		t.AppendHeader(table.Row{"Source", "Active", "Inactive", "Last scraped"})
		for _, s := range sources {
			t.AppendRow(table.Row{s.Source, s.Active, s.Inactive, s.LastScrapedAt.Format("2006-01-02 15:04")})
		}
		t.Render()
		return
	}

	entries, err := db.GetActiveEntries(database, source)
	if err != nil {
		log.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("No entries found. Run `refscrape scrape --catalog` first.")
		return
	}
	t.AppendHeader(table.Row{"Source", "#", "Key", "Value"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Source, e.Position + 1, e.Key, e.Value})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(entries)})
	t.Render()
}
