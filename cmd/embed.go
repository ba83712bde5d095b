package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"mspro-labs/refscrape/internal/ai"
	"mspro-labs/refscrape/internal/config"
	"mspro-labs/refscrape/internal/db"
	"mspro-labs/refscrape/internal/embedder"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate AI embeddings for catalog entries",
	Long:  `Finds active catalog entries that are missing semantic vectors and generates them using the Gemini API (GEMINI_API_KEY).`,
	Run: func(cmd *cobra.Command, args []string) {
		runEmbed()
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed() {
	ctx := context.Background()

	// 1. Config & DB
	appCfg, err := config.GetAppConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	database, err := db.Connect(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	defer database.Close()

	// 2. Initialize AI
	aiClient, err := ai.NewClient(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize AI client: %v", err)
	}
	defer aiClient.Close()

	// 3. Run Shared Embedder Logic
	if _, err := embedder.Run(ctx, database, aiClient); err != nil {
		log.Fatalf("Embedding process failed: %v", err)
	}
}
