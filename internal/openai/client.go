package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the Ollama tag for all-MiniLM-L6-v2
	DefaultEmbeddingModel = "all-minilm"
	// DefaultChatModel is the local model the answerer prompts
	DefaultChatModel = "mistral"
	// DefaultBaseURL is Ollama's OpenAI-compatible endpoint
	DefaultBaseURL = "http://localhost:11434/v1"
	// DefaultTimeout bounds a single upstream attempt
	DefaultTimeout = 60 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 1
	// DefaultRetryDelay is the backoff base between attempts
	DefaultRetryDelay = 500 * time.Millisecond
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoEmbeddings is returned when the API answers without vectors
	ErrNoEmbeddings = errors.New("no embedding data returned")
	// ErrNoChoices is returned when the API answers without a completion
	ErrNoChoices = errors.New("no completion choices returned")
	// ErrNoAPIKey is returned when no API key is configured
	ErrNoAPIKey = errors.New("STUDYBUDDY_LLM_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for batch embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatAPI defines the interface for single-prompt completions
type ChatAPI interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client wraps an OpenAI-compatible API as the pipelines' embedder and answerer.
type Client struct {
	embeddings EmbeddingAPI
	chat       ChatAPI
	dimensions int
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	sleep      func(context.Context, time.Duration) error
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: openai.EmbeddingModel(embeddingModel),
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the embeddings endpoint and returns vectors in input order
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: requested %d, got %d", ErrNoEmbeddings, len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Complete sends prompt as a single user message and returns the reply as plain text
func (a *OpenAIAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return messageText(resp.Choices[0].Message), nil
}

// messageText flattens a chat message into plain text. Multi-part replies
// keep only their text parts.
func messageText(msg openai.ChatCompletionMessage) string {
	if msg.Content != "" || len(msg.MultiContent) == 0 {
		return msg.Content
	}
	parts := make([]string, 0, len(msg.MultiContent))
	for _, p := range msg.MultiContent {
		if p.Type == openai.ChatMessagePartTypeText && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	ChatModel           string
	EmbeddingDimensions int
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
}

// NewClient creates a new client against the default local endpoint.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey, BaseURL: DefaultBaseURL})
}

// NewClientWithConfig creates a new client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	adapter := NewOpenAIAdapter(cfg)
	return newClient(adapter, adapter, cfg)
}

func newClient(embeddings EmbeddingAPI, chat ChatAPI, cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = domain.DefaultEmbeddingDimensions
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = DefaultMaxRetries
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Client{
		embeddings: embeddings,
		chat:       chat,
		dimensions: dimensions,
		timeout:    timeout,
		maxRetries: retries,
		retryDelay: delay,
		sleep:      Wait,
	}
}

// NewClientFromEnv creates a client from STUDYBUDDY_LLM_API_KEY and STUDYBUDDY_LLM_BASE_URL
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("STUDYBUDDY_LLM_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	baseURL := os.Getenv("STUDYBUDDY_LLM_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return NewClientWithConfig(Config{APIKey: apiKey, BaseURL: baseURL}), nil
}

// Dimension returns the vector width every embedding must have
func (c *Client) Dimension() int {
	return c.dimensions
}

// EmbedMany embeds texts in one request. Every returned vector is checked
// against the configured dimension.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	var vectors [][]float32
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = c.embeddings.CreateEmbeddings(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	for i, v := range vectors {
		if len(v) != c.dimensions {
			return nil, domain.NewDimensionMismatch(c.dimensions, len(v), i)
		}
	}

	return vectors, nil
}

// EmbedOne embeds a single text, typically a query
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		var dm *domain.DimensionMismatchError
		if errors.As(err, &dm) {
			return nil, domain.NewDimensionMismatch(dm.Expected, dm.Actual, -1)
		}
		return nil, err
	}

	return vectors[0], nil
}

// Generate returns the model's plain-text reply to prompt
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}

	var text string
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		text, err = c.chat.Complete(ctx, prompt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	return text, nil
}

// withRetry runs fn with a per-attempt timeout and retries transient failures.
func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return lastErr
			}
		}
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if !isTransient(ctx, err) {
			return lastErr
		}
	}

	return lastErr
}

// isTransient reports whether err is worth one more attempt: timeouts of a
// single attempt, rate limiting, server errors and transport failures.
// Malformed responses are not retried.
func isTransient(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	if errors.Is(err, ErrNoEmbeddings) || errors.Is(err, ErrNoChoices) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError || status == 0
}
