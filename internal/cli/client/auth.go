package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginData struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

func LoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and save the session token",
		Long:  "Log in to the StudyBuddy server and store the session token in the user config directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}
			return runLogin(cmd, c, args[0], password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")

	return cmd
}

func RegisterCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}
			return runRegister(cmd, c, args[0], password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")

	return cmd
}

func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}
			return runLogout(cmd, c)
		},
	}
}

// StatusCmd shows which session the CLI would use.
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

type statusOutput struct {
	LoggedIn bool   `json:"logged_in"`
	Source   string `json:"source,omitempty"`
	Username string `json:"username,omitempty"`
	APIURL   string `json:"api_url"`
	Token    string `json:"token,omitempty"`
}

func runStatus(cmd *cobra.Command) error {
	status := statusOutput{APIURL: defaultAPIURL}

	cfg, err := LoadGlobalConfig()
	if err != nil {
		return err
	}
	if cfg != nil {
		status.LoggedIn = cfg.Token != ""
		status.Source = "config"
		status.Username = cfg.Username
		status.Token = maskToken(cfg.Token)
		if cfg.APIURL != "" {
			status.APIURL = cfg.APIURL
		}
	}
	if token := os.Getenv(envToken); token != "" {
		status.LoggedIn = true
		status.Source = "env"
		status.Token = maskToken(token)
	}
	if u := os.Getenv(envAPIURL); u != "" {
		status.APIURL = u
	}

	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), status)
	}

	out := cmd.OutOrStdout()
	if !status.LoggedIn {
		fmt.Fprintf(out, "Not logged in (API: %s)\n", status.APIURL)
		return nil
	}
	fmt.Fprintf(out, "Logged in via %s\n", status.Source)
	if status.Username != "" {
		fmt.Fprintf(out, "  User:  %s\n", status.Username)
	}
	fmt.Fprintf(out, "  API:   %s\n", status.APIURL)
	fmt.Fprintf(out, "  Token: %s\n", status.Token)
	return nil
}

func maskToken(token string) string {
	if len(token) < 12 {
		return "****"
	}
	return token[:7] + "..." + token[len(token)-4:]
}

func runLogin(cmd *cobra.Command, c *APIClient, username, password string) error {
	password, err := promptPassword(cmd, password)
	if err != nil {
		return err
	}

	resp, err := c.Post("/api/login", credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var data loginData
	if err := resp.Decode(&data); err != nil {
		return err
	}
	if !IsValidSessionToken(data.Token) {
		return fmt.Errorf("server returned an invalid session token")
	}

	if err := SaveGlobalConfig(&GlobalConfig{Token: data.Token, APIURL: c.baseURL, Username: username}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (session expires %s)\n", username, data.ExpiresAt)
	return nil
}

func runRegister(cmd *cobra.Command, c *APIClient, username, password string) error {
	password, err := promptPassword(cmd, password)
	if err != nil {
		return err
	}

	resp, err := c.Post("/api/register", credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	var data struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s). Run 'studybuddy login %s' next.\n", username, data.ID, username)
	return nil
}

func runLogout(cmd *cobra.Command, c *APIClient) error {
	if c.token != "" {
		if _, err := c.Post("/logout", nil); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: server logout failed: %v\n", err)
		}
	}

	if err := DeleteGlobalConfig(); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func promptPassword(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	input, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimSpace(input)
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	return password, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
