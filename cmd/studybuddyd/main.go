package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/studybuddy/internal/cli"
	"github.com/cloo-solutions/studybuddy/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "studybuddyd",
		Short: "StudyBuddy server",
		Long:  "StudyBuddy server for the document and web question-answering API, user administration and the MCP tool server",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.UserCmd())
	rootCmd.AddCommand(admin.MCPCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
