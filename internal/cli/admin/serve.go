package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/api/handlers"
	"github.com/cloo-solutions/studybuddy/internal/config"
	"github.com/cloo-solutions/studybuddy/internal/database"
	"github.com/cloo-solutions/studybuddy/internal/jobs"
	"github.com/cloo-solutions/studybuddy/internal/server"
	"github.com/spf13/cobra"
)

const sessionReapInterval = 10 * time.Minute

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the StudyBuddy API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", "file://migrations", "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	defer initTelemetry(cfg)()

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		source, _ := cmd.Flags().GetString("migrations")
		if _, err := database.Migrate(cfg.DatabaseURL, source); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Println("connected to database")

	reaper := jobs.NewWorker("session-reaper", jobs.NewSessionReaper(a.auth), sessionReapInterval)
	go reaper.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		SessionValidator: a.auth,
		HealthHandler:    handlers.NewHealthHandler(a.pool),
		AuthHandler:      handlers.NewAuthHandler(a.auth).WithSecureCookie(cfg.Environment == "production"),
		DocumentHandler:  handlers.NewDocumentHandler(a.documents, cfg.MaxUploadBytes),
		WebHandler:       handlers.NewWebHandler(a.web),
		DocumentChunks:   handlers.NewChunksHandler(a.documents.Pipeline().Store()),
		WebChunks:        handlers.NewChunksHandler(a.web.Pipeline().Store()),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	reaper.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
