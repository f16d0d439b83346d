// Package mcp exposes the document and web pipelines as MCP tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "studybuddy"
	ServerVersion = "0.1.0"
)

// NewServer builds an MCP server with every StudyBuddy tool registered.
func NewServer(h *Handlers) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(ServerName, ServerVersion)
	RegisterTools(server, h)
	return server
}

// RegisterTools registers the StudyBuddy tools with server.
func RegisterTools(server *mcpserver.MCPServer, h *Handlers) {
	server.AddTool(mcp.Tool{
		Name:        "ask_document",
		Description: "Answer a question using only the PDF documents uploaded to StudyBuddy.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question about the uploaded documents",
				},
			},
			Required: []string{"question"},
		},
	}, h.AskDocument)

	server.AddTool(mcp.Tool{
		Name:        "ask_web",
		Description: "Answer a question using only the web pages scraped into StudyBuddy.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question about the scraped pages",
				},
			},
			Required: []string{"question"},
		},
	}, h.AskWeb)

	server.AddTool(mcp.Tool{
		Name:        "ingest_url",
		Description: "Scrape the paragraph text of a web page and add it to the web knowledge store.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "http or https URL of the page",
				},
			},
			Required: []string{"url"},
		},
	}, h.IngestURL)
}
