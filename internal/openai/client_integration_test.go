//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrationClient(t *testing.T) *Client {
	t.Helper()
	baseURL := os.Getenv("STUDYBUDDY_LLM_BASE_URL")
	if baseURL == "" {
		t.Skip("STUDYBUDDY_LLM_BASE_URL not set, skipping integration test")
	}
	apiKey := os.Getenv("STUDYBUDDY_LLM_API_KEY")
	if apiKey == "" {
		apiKey = "ollama"
	}
	return NewClientWithConfig(Config{APIKey: apiKey, BaseURL: baseURL})
}

func TestIntegration_EmbedMany_RealAPI(t *testing.T) {
	client := integrationClient(t)

	vectors, err := client.EmbedMany(context.Background(), []string{
		"This is a test document for generating embeddings.",
		"A second chunk of text.",
	})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], domain.DefaultEmbeddingDimensions)
}

func TestIntegration_Generate_RealAPI(t *testing.T) {
	client := integrationClient(t)

	text, err := client.Generate(context.Background(), "Reply with the single word: ready")

	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
