package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloo-solutions/studybuddy/internal/config"
	"github.com/cloo-solutions/studybuddy/internal/database"
	"github.com/cloo-solutions/studybuddy/internal/repository"
	"github.com/cloo-solutions/studybuddy/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long:  "Create and list StudyBuddy user accounts",
	}

	cmd.AddCommand(UserCreateCmd())
	cmd.AddCommand(UserListCmd())

	return cmd
}

func UserCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user account",
		Long:  "Create a user account. The password is read from --password or STUDYBUDDY_NEW_USER_PASSWORD.",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreate,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().String("password", "", "Password for the new account")

	return cmd
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("STUDYBUDDY_NEW_USER_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("password is required (--password or STUDYBUDDY_NEW_USER_PASSWORD)")
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	authSvc := newAuthService(pool)
	user, err := authSvc.Register(ctx, args[0], password)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         user.ID,
			"username":   user.Username,
			"created_at": user.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "User created: %s (%s)\n", user.Username, user.ID)
	}

	return nil
}

func UserListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Long:  "List user accounts, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runUserList(cmd, outputFormat, limit, cursor)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runUserList(cmd *cobra.Command, outputFormat string, limit int, cursor string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	result, err := newAuthService(pool).ListUsers(ctx, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(result.Items))
		for i, u := range result.Items {
			data[i] = map[string]interface{}{
				"id":         u.ID,
				"username":   u.Username,
				"created_at": u.CreatedAt,
			}
		}
		output := map[string]interface{}{
			"items":    data,
			"cursor":   result.NextCursor,
			"has_more": result.HasMore,
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No users found")
		return nil
	}
	fmt.Fprintln(out, "Users:")
	for _, u := range result.Items {
		fmt.Fprintf(out, "  %s: %s (created: %s)\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if result.HasMore && result.NextCursor != "" {
		fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", result.NextCursor)
	}

	return nil
}

func newAuthService(pool *pgxpool.Pool) *service.AuthService {
	return service.NewAuthService(
		repository.NewUserRepository(pool),
		repository.NewSessionRepository(pool),
		&service.DefaultUUIDGenerator{},
		0,
	)
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 2})
}
