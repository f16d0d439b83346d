package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/telemetry"
)

// Embedder turns text into fixed-width vectors.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Answerer produces a plain-text reply to a prompt.
type Answerer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QueryLogRepository records answered questions.
type QueryLogRepository interface {
	Create(ctx context.Context, entry *domain.QueryLog) error
}

const (
	PipelineDocument = "document"
	PipelineWeb      = "web"
)

// UnavailableMessage is returned in place of an answer when the embedding or
// language model could not be reached.
const UnavailableMessage = "The assistant is unavailable right now. Please try again later."

// PipelineConfig holds the per-tool settings of a RAGPipeline.
type PipelineConfig struct {
	Name     string
	TopK     int
	Chunking ChunkConfig

	EmptyMessage     string
	NoContextMessage string
	NoChunksMessage  string
	// StoredMessage formats the success message from the chunk count and source id.
	StoredMessage func(count int, sourceID string) string
	Prompt        func(context, question string) string
}

// DocumentPipelineConfig returns the settings of the PDF question-answering tool.
func DocumentPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Name:             PipelineDocument,
		TopK:             3,
		Chunking:         DefaultChunkConfig(),
		EmptyMessage:     "No documents are stored yet. Please upload a PDF first.",
		NoContextMessage: "No relevant data found in stored documents.",
		NoChunksMessage:  "No text chunks were created from this document.",
		StoredMessage: func(count int, _ string) string {
			return fmt.Sprintf("Document stored successfully (%d chunks added)", count)
		},
		Prompt: documentPrompt,
	}
}

// WebPipelineConfig returns the settings of the web page question-answering tool.
func WebPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Name:             PipelineWeb,
		TopK:             5,
		Chunking:         DefaultChunkConfig(),
		EmptyMessage:     "No data stored yet. Please scrape a website first.",
		NoContextMessage: "No relevant data found.",
		NoChunksMessage:  "Nothing to store (no chunks created).",
		StoredMessage: func(count int, sourceID string) string {
			return fmt.Sprintf("Stored %d chunks from %s.", count, sourceID)
		},
		Prompt: webPrompt,
	}
}

func documentPrompt(context, question string) string {
	return "Based on the following document context, answer the user's question.\n" +
		"Use ONLY this context. If the answer is not in the context, say you don't know.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Question: " + question + "\n\n" +
		"Answer clearly and concisely:"
}

func webPrompt(context, question string) string {
	return "You are a helpful assistant. Use ONLY the context below to answer the question.\n" +
		"If the answer is not in the context, say you don't know.\n\n" +
		"Context:\n" + context + "\n\n" +
		"Question: " + question + "\n" +
		"Answer:"
}

// VectorIndex is the append-only store a pipeline indexes into and searches.
// *vectorstore.Store satisfies it.
type VectorIndex interface {
	Dimension() int
	Len() int
	Add(chunks []domain.Chunk, vectors []domain.VectorEntry) (domain.StoreReceipt, error)
	Search(query domain.VectorEntry, k int) ([]domain.Neighbor, error)
	Row(index int) (domain.StoreRow, error)
	Page(offset, limit int) []domain.StoreRow
}

// RAGPipeline chunks, embeds and indexes source text, and answers questions
// from the nearest stored chunks. Each pipeline owns its store.
type RAGPipeline struct {
	cfg      PipelineConfig
	store    VectorIndex
	embedder Embedder
	answerer Answerer
	queryLog QueryLogRepository
}

// NewRAGPipeline wires a pipeline. The store and embedder must agree on the
// vector dimension.
func NewRAGPipeline(cfg PipelineConfig, store VectorIndex, embedder Embedder, answerer Answerer) (*RAGPipeline, error) {
	if store == nil || embedder == nil || answerer == nil {
		return nil, domain.ErrMissingRequiredField
	}
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, err
	}
	if cfg.TopK <= 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "top k must be positive")
	}
	if cfg.Prompt == nil || cfg.StoredMessage == nil {
		return nil, domain.ErrMissingRequiredField
	}
	if store.Dimension() != embedder.Dimension() {
		return nil, domain.NewDimensionMismatch(store.Dimension(), embedder.Dimension(), -1)
	}
	return &RAGPipeline{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		answerer: answerer,
	}, nil
}

// WithQueryLog records every answered question to repo.
func (p *RAGPipeline) WithQueryLog(repo QueryLogRepository) *RAGPipeline {
	p.queryLog = repo
	return p
}

func (p *RAGPipeline) Name() string {
	return p.cfg.Name
}

// Store exposes the pipeline's index for read-only listing.
func (p *RAGPipeline) Store() VectorIndex {
	return p.store
}

// Ingest chunks rawText, embeds the chunks and appends them to the store.
// Every failure is reported in the result rather than returned.
func (p *RAGPipeline) Ingest(ctx context.Context, sourceID, rawText string) domain.IngestResult {
	ctx, span := telemetry.StartSpan(ctx, "rag.ingest", telemetry.SpanAttributes{
		Pipeline:  p.cfg.Name,
		SourceID:  sourceID,
		Operation: "ingest",
	})
	defer span.End()

	if strings.TrimSpace(rawText) == "" {
		return ingestFailure(domain.ErrExtractionEmpty.Message)
	}

	chunks, err := chunkSource(sourceID, rawText, p.cfg.Chunking)
	if err != nil {
		span.SetError(err)
		return ingestFailure(err.Error())
	}
	if len(chunks) == 0 {
		return ingestFailure(p.cfg.NoChunksMessage)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedMany(ctx, texts)
	if err != nil {
		var dm *domain.DimensionMismatchError
		if errors.As(err, &dm) {
			return ingestFailure(dimensionMessage(dm))
		}
		p.upstreamFailed(ctx, "embed chunks", err)
		return ingestFailure(UnavailableMessage)
	}

	entries := make([]domain.VectorEntry, len(vectors))
	for i, v := range vectors {
		entries[i] = v
	}

	receipt, err := p.store.Add(chunks, entries)
	if err != nil {
		var dm *domain.DimensionMismatchError
		switch {
		case errors.As(err, &dm):
			return ingestFailure(dimensionMessage(dm))
		case errors.Is(err, domain.ErrStoreFull):
			return ingestFailure("The knowledge store is full; no more content can be added.")
		default:
			span.SetError(err)
			return ingestFailure(err.Error())
		}
	}

	span.SetData("chunks", receipt.Count)
	span.SetData("store_rows", receipt.Total)
	log.Printf("%s pipeline: stored %d chunks from %s (rows %d-%d)",
		p.cfg.Name, receipt.Count, sourceID, receipt.FirstIndex, receipt.Total-1)

	return domain.IngestResult{
		Status:     domain.StatusSuccess,
		Message:    p.cfg.StoredMessage(receipt.Count, sourceID),
		ChunkCount: receipt.Count,
	}
}

// Answer retrieves the nearest chunks for question and asks the model to
// answer from them. Upstream failures come back as an error-status answer;
// the returned error is reserved for invalid input.
func (p *RAGPipeline) Answer(ctx context.Context, question string) (domain.Answer, error) {
	return p.AnswerAs(ctx, "", question)
}

// AnswerAs is Answer with the asking user recorded in the query log.
func (p *RAGPipeline) AnswerAs(ctx context.Context, userID, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, domain.NewDomainError(domain.ErrCodeValidation, "question is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "rag.answer", telemetry.SpanAttributes{
		Pipeline:  p.cfg.Name,
		UserID:    userID,
		Operation: "answer",
	})
	defer span.End()

	start := time.Now()
	entry := &domain.QueryLog{
		Pipeline: p.cfg.Name,
		UserID:   userID,
		Question: question,
	}

	answer := p.answer(ctx, question, entry)
	span.SetData("status", string(answer.Status))
	span.SetData("neighbors", len(entry.Rows))

	entry.Status = answer.Status
	entry.DurationMs = int(time.Since(start).Milliseconds())
	p.recordQuery(ctx, entry)

	return answer, nil
}

func (p *RAGPipeline) answer(ctx context.Context, question string, entry *domain.QueryLog) domain.Answer {
	if p.store.Len() == 0 {
		return domain.Answer{Status: domain.AnswerStatusEmpty, Text: p.cfg.EmptyMessage}
	}

	query, err := p.embedder.EmbedOne(ctx, question)
	if err != nil {
		var dm *domain.DimensionMismatchError
		if errors.As(err, &dm) {
			return domain.Answer{Status: domain.AnswerStatusError, Text: dimensionMessage(dm)}
		}
		p.upstreamFailed(ctx, "embed query", err)
		return domain.Answer{Status: domain.AnswerStatusError, Text: UnavailableMessage}
	}
	entry.Embedding = query

	neighbors, err := p.store.Search(query, p.cfg.TopK)
	if err != nil {
		var dm *domain.DimensionMismatchError
		if errors.As(err, &dm) {
			return domain.Answer{Status: domain.AnswerStatusError, Text: dimensionMessage(dm)}
		}
		telemetry.CaptureError(ctx, err)
		return domain.Answer{Status: domain.AnswerStatusError, Text: err.Error()}
	}

	rows := make([]domain.StoreRow, 0, len(neighbors))
	for _, n := range neighbors {
		row, err := p.store.Row(n.Index)
		if err != nil {
			continue
		}
		rows = append(rows, row)
		entry.Rows = append(entry.Rows, n.Index)
	}

	if len(rows) == 0 {
		return domain.Answer{Status: domain.AnswerStatusNoContext, Text: p.cfg.NoContextMessage}
	}

	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = r.Chunk.Text
	}

	text, err := p.answerer.Generate(ctx, p.cfg.Prompt(strings.Join(parts, "\n\n"), question))
	if err != nil {
		p.upstreamFailed(ctx, "generate answer", err)
		return domain.Answer{Status: domain.AnswerStatusError, Text: UnavailableMessage, Context: rows}
	}

	return domain.Answer{Status: domain.AnswerStatusAnswered, Text: text, Context: rows}
}

// Summarize asks the model for a short summary of text.
func (p *RAGPipeline) Summarize(ctx context.Context, text string) (string, error) {
	const maxSummaryInput = 3000

	runes := []rune(text)
	if len(runes) > maxSummaryInput {
		runes = runes[:maxSummaryInput]
	}

	summary, err := p.answerer.Generate(ctx,
		"Summarize the following document in a concise and clear way:\n\n"+string(runes))
	if err != nil {
		p.upstreamFailed(ctx, "summarize", err)
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamFailure, domain.ErrUpstreamFailure.Message, err)
	}
	return summary, nil
}

func (p *RAGPipeline) upstreamFailed(ctx context.Context, stage string, err error) {
	log.Printf("%s pipeline: %s failed: %v", p.cfg.Name, stage, err)
	telemetry.AddBreadcrumb(ctx, "rag", p.cfg.Name+": "+stage+" failed", map[string]interface{}{
		"pipeline": p.cfg.Name,
		"stage":    stage,
	})
	telemetry.CaptureError(ctx, fmt.Errorf("%s %s: %w", p.cfg.Name, stage, err))
}

func (p *RAGPipeline) recordQuery(ctx context.Context, entry *domain.QueryLog) {
	if p.queryLog == nil {
		return
	}
	if err := p.queryLog.Create(ctx, entry); err != nil {
		log.Printf("%s pipeline: failed to record query: %v", p.cfg.Name, err)
	}
}

func ingestFailure(message string) domain.IngestResult {
	return domain.IngestResult{Status: domain.StatusError, Message: message}
}

func dimensionMessage(dm *domain.DimensionMismatchError) string {
	if dm.Position < 0 {
		return fmt.Sprintf("Query embedding dimension mismatch: expected %d, got %d", dm.Expected, dm.Actual)
	}
	return fmt.Sprintf("Embedding dimension mismatch: expected %d, got %d", dm.Expected, dm.Actual)
}
