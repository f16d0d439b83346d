package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/studybuddy/internal/cli"
	"github.com/cloo-solutions/studybuddy/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "studybuddy",
		Short: "StudyBuddy CLI - ask questions about your PDFs and web pages",
		Long: `StudyBuddy CLI uploads PDFs, scrapes web pages and asks questions about them.

Environment variables:
  STUDYBUDDY_TOKEN     Session token (overrides the saved login)
  STUDYBUDDY_API_URL   API base URL (default: http://localhost:8080)`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.RegisterCmd())
	rootCmd.AddCommand(client.LoginCmd())
	rootCmd.AddCommand(client.LogoutCmd())
	rootCmd.AddCommand(client.StatusCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.ScrapeCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ChunksCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
