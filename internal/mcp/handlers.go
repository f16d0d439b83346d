package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

type Asker interface {
	Ask(ctx context.Context, userID, question string) (domain.Answer, error)
}

type Scraper interface {
	Asker
	Scrape(ctx context.Context, url string) (*service.ScrapeResult, error)
}

// Handlers serves tool calls from a single local client, so questions are
// recorded without a user.
type Handlers struct {
	documents Asker
	web       Scraper
}

func NewHandlers(documents Asker, web Scraper) *Handlers {
	return &Handlers{documents: documents, web: web}
}

type answerPayload struct {
	Answer  string   `json:"answer"`
	Status  string   `json:"status"`
	Sources []string `json:"sources,omitempty"`
}

func (h *Handlers) AskDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ask(ctx, h.documents, request)
}

func (h *Handlers) AskWeb(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return ask(ctx, h.web, request)
}

func (h *Handlers) IngestURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil || strings.TrimSpace(url) == "" {
		return mcp.NewToolResultError("url argument is required and must be a string"), nil
	}

	result, err := h.web.Scrape(ctx, strings.TrimSpace(url))
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}
	if result.Status != domain.StatusSuccess {
		return mcp.NewToolResultError(result.Message), nil
	}

	return jsonResult(result)
}

func ask(ctx context.Context, svc Asker, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	answer, err := svc.Ask(ctx, "", question)
	if err != nil {
		return mcp.NewToolResultError(errorText(err)), nil
	}

	payload := answerPayload{Answer: answer.Text, Status: string(answer.Status)}
	seen := map[string]bool{}
	for _, row := range answer.Context {
		if !seen[row.Chunk.SourceID] {
			seen[row.Chunk.SourceID] = true
			payload.Sources = append(payload.Sources, row.Chunk.SourceID)
		}
	}
	return jsonResult(payload)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

func errorText(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
