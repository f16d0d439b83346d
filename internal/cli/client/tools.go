package client

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type uploadData struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	StoreMessage string `json:"store_message"`
	Summary      string `json:"summary"`
	ChunkCount   int    `json:"chunk_count"`
	ArchiveKey   string `json:"archive_key"`
	ArchiveURL   string `json:"archive_url"`
}

type scrapeData struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	StoreMessage string `json:"store_message"`
	Preview      string `json:"preview"`
	ChunkCount   int    `json:"chunk_count"`
}

type answerData struct {
	Answer  string   `json:"answer"`
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
}

type chunkData struct {
	Index    int    `json:"index"`
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

type chunkPage struct {
	Items   []chunkData `json:"items"`
	Total   int         `json:"total"`
	Cursor  string      `json:"cursor"`
	HasMore bool        `json:"has_more"`
}

func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF to the document store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd, true)
			if err != nil {
				return err
			}
			return runUpload(cmd, c, args[0])
		},
	}
}

func ScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape a web page into the web store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd, true)
			if err != nil {
				return err
			}
			return runScrape(cmd, c, args[0])
		},
	}
}

func AskCmd() *cobra.Command {
	var web bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about uploaded documents (or scraped pages with --web)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd, true)
			if err != nil {
				return err
			}
			return runAsk(cmd, c, strings.Join(args, " "), web)
		},
	}

	cmd.Flags().BoolVar(&web, "web", false, "Ask the web store instead of the document store")

	return cmd
}

func ChunksCmd() *cobra.Command {
	var (
		web    bool
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "List stored chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewAPIClientWithCmd(cmd, true)
			if err != nil {
				return err
			}
			return runChunks(cmd, c, web, limit, cursor)
		},
	}

	cmd.Flags().BoolVar(&web, "web", false, "List the web store instead of the document store")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runUpload(cmd *cobra.Command, c *APIClient, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	resp, err := c.PostFile("/document/upload", filepath.Base(path), file)
	if err != nil {
		return err
	}

	var data uploadData
	if err := resp.Decode(&data); err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), data)
	}

	out := cmd.OutOrStdout()
	if data.Status != "success" {
		return fmt.Errorf("upload failed: %s", data.Message)
	}
	fmt.Fprintln(out, data.StoreMessage)
	if data.ArchiveURL != "" {
		fmt.Fprintf(out, "Archived copy: %s\n", data.ArchiveURL)
	}
	if data.Summary != "" {
		fmt.Fprintf(out, "\nSummary:\n%s\n", data.Summary)
	}
	return nil
}

func runScrape(cmd *cobra.Command, c *APIClient, rawURL string) error {
	resp, err := c.Post("/web/scrape", map[string]string{"url": rawURL})
	if err != nil {
		return err
	}

	var data scrapeData
	if err := resp.Decode(&data); err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), data)
	}

	if data.Status != "success" {
		return fmt.Errorf("scrape failed: %s", data.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), data.StoreMessage)
	return nil
}

func runAsk(cmd *cobra.Command, c *APIClient, question string, web bool) error {
	path := "/document/ask"
	if web {
		path = "/web/ask"
	}

	resp, err := c.Post(path, map[string]string{"question": question})
	if err != nil {
		return err
	}

	var data answerData
	if err := resp.Decode(&data); err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), data)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, data.Answer)
	if len(data.Sources) > 0 {
		fmt.Fprintf(out, "\nSources: %s\n", strings.Join(data.Sources, ", "))
	}
	return nil
}

func runChunks(cmd *cobra.Command, c *APIClient, web bool, limit int, cursor string) error {
	path := "/document/chunks"
	if web {
		path = "/web/chunks"
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	resp, err := c.Get(path + "?" + q.Encode())
	if err != nil {
		return err
	}

	var page chunkPage
	if err := resp.Decode(&page); err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(cmd.OutOrStdout(), page)
	}

	out := cmd.OutOrStdout()
	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No chunks stored")
		return nil
	}
	for _, ch := range page.Items {
		fmt.Fprintf(out, "#%d %s [%d]: %s\n", ch.Index, ch.SourceID, ch.Position, preview(ch.Text, 80))
	}
	if page.HasMore {
		fmt.Fprintf(out, "\n%d of %d shown. Use --cursor %s\n", len(page.Items), page.Total, page.Cursor)
	}
	return nil
}

func jsonOutput(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("output")
	return err == nil && v
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
