package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/studybuddy/internal/domain"
)

// PageExtractor returns the readable text of a web page.
type PageExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

const previewChars = 1000

// ScrapeResult is returned for every scrape attempt that reached the page.
type ScrapeResult struct {
	Status       domain.ResultStatus `json:"status"`
	Message      string              `json:"message,omitempty"`
	StoreMessage string              `json:"store_message,omitempty"`
	Preview      string              `json:"preview,omitempty"`
	ChunkCount   int                 `json:"chunk_count"`
}

// WebService runs the web tool: scrape, index and answer.
type WebService struct {
	pipeline  *RAGPipeline
	extractor PageExtractor
}

func NewWebService(pipeline *RAGPipeline, extractor PageExtractor) *WebService {
	return &WebService{pipeline: pipeline, extractor: extractor}
}

func (s *WebService) Pipeline() *RAGPipeline {
	return s.pipeline
}

// Scrape fetches url and indexes its paragraph text. Malformed URLs are
// returned as validation errors; fetch problems are reported in the result.
func (s *WebService) Scrape(ctx context.Context, url string) (*ScrapeResult, error) {
	if url == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "url is required")
	}

	text, err := s.extractor.Extract(ctx, url)
	if err != nil {
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			if domainErr.Code == domain.ErrCodeValidation {
				return nil, err
			}
			return &ScrapeResult{Status: domain.StatusError, Message: scrapeMessage(domainErr)}, nil
		}
		log.Printf("web: failed to scrape %s: %v", url, err)
		return &ScrapeResult{Status: domain.StatusError, Message: fmt.Sprintf("Error while scraping: %v", err)}, nil
	}

	ingest := s.pipeline.Ingest(ctx, url, text)
	if !ingest.Succeeded() {
		return &ScrapeResult{Status: domain.StatusError, Message: ingest.Message, StoreMessage: ingest.Message}, nil
	}

	return &ScrapeResult{
		Status:       domain.StatusSuccess,
		StoreMessage: ingest.Message,
		Preview:      truncate(text, previewChars),
		ChunkCount:   ingest.ChunkCount,
	}, nil
}

// Ask answers question from the scraped pages.
func (s *WebService) Ask(ctx context.Context, userID, question string) (domain.Answer, error) {
	return s.pipeline.AnswerAs(ctx, userID, question)
}

func scrapeMessage(err *domain.DomainError) string {
	if err.Err != nil {
		return fmt.Sprintf("%s: %v", err.Message, err.Err)
	}
	return err.Message
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
