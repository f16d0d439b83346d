package admin

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloo-solutions/studybuddy/internal/config"
	"github.com/cloo-solutions/studybuddy/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func MCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the StudyBuddy tools over MCP stdio",
		Long: `Start an MCP server on stdin/stdout exposing ask_document, ask_web and
ingest_url. Stores live for the lifetime of the process, separate from any
running API server.`,
		RunE: runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	defer initTelemetry(cfg)()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcp.NewServer(mcp.NewHandlers(a.documents, a.web))
	log.Println("studybuddy MCP server starting on stdio...")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
		return nil
	case err := <-serverErr:
		return err
	}
}
