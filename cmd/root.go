package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "refscrape",
	Short: "Scrape reference tables (currencies, countries) into JSON files",
	Long: `refscrape fetches reference web pages, extracts one HTML table per page and writes
the rows as a JSON object. Sources come from config.yaml (or CONFIG_PATH); without one the
built-in currencies and countries sources are used.

Every scrape is also recorded in a local SQLite catalog (DB_PATH) that can be listed,
embedded and searched.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
