package service

import (
	"context"
	"errors"
	"log"
	"path"
	"strings"

	"github.com/cloo-solutions/studybuddy/internal/domain"
)

// PDFExtractor returns the plain text of a PDF document.
type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// DocumentArchive stores the original upload.
type DocumentArchive interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

var (
	ErrNoFileUploaded = domain.NewDomainError(domain.ErrCodeValidation, "No file uploaded")
	ErrOnlyPDFAllowed = domain.NewDomainError(domain.ErrCodeValidation, "Only PDF files allowed")
)

const noExtractableText = "PDF contains no extractable text"

// UploadResult is returned for every accepted upload, successful or not.
type UploadResult struct {
	Status       domain.ResultStatus `json:"status"`
	Message      string              `json:"message,omitempty"`
	StoreMessage string              `json:"store_message,omitempty"`
	Summary      string              `json:"summary,omitempty"`
	ChunkCount   int                 `json:"chunk_count"`
	ArchiveKey   string              `json:"archive_key,omitempty"`
	ArchiveURL   string              `json:"archive_url,omitempty"`
}

// DocumentService runs the PDF tool: extract, index, summarize and answer.
type DocumentService struct {
	pipeline   *RAGPipeline
	extractor  PDFExtractor
	archive    DocumentArchive
	archiveKey func(filename string) string
}

func NewDocumentService(pipeline *RAGPipeline, extractor PDFExtractor) *DocumentService {
	return &DocumentService{
		pipeline:  pipeline,
		extractor: extractor,
	}
}

// WithArchive stores every accepted upload under keyFn(filename).
func (s *DocumentService) WithArchive(archive DocumentArchive, keyFn func(filename string) string) *DocumentService {
	s.archive = archive
	s.archiveKey = keyFn
	return s
}

func (s *DocumentService) Pipeline() *RAGPipeline {
	return s.pipeline
}

// Upload indexes the text of a PDF and summarizes its beginning. A summary
// failure leaves the summary empty without failing the upload.
func (s *DocumentService) Upload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if len(data) == 0 || filename == "" || filename == "." || filename == "/" {
		return nil, ErrNoFileUploaded
	}
	if !strings.EqualFold(path.Ext(filename), ".pdf") {
		return nil, ErrOnlyPDFAllowed
	}

	text, err := s.extractor.Extract(ctx, data)
	if err != nil {
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		log.Printf("document: failed to extract %s: %v", filename, err)
		return &UploadResult{Status: domain.StatusError, Message: "Could not read text from this PDF."}, nil
	}
	if strings.TrimSpace(text) == "" {
		return &UploadResult{Status: domain.StatusError, Message: noExtractableText}, nil
	}

	result := &UploadResult{}
	if s.archive != nil {
		key := s.archiveKey(filename)
		if err := s.archive.PutObject(ctx, key, "application/pdf", data); err != nil {
			log.Printf("document: failed to archive %s: %v", filename, err)
		} else {
			result.ArchiveKey = key
			if url, err := s.archive.GenerateDownloadURL(ctx, key); err == nil {
				result.ArchiveURL = url
			}
		}
	}

	ingest := s.pipeline.Ingest(ctx, filename, text)
	result.StoreMessage = ingest.Message
	result.ChunkCount = ingest.ChunkCount
	if !ingest.Succeeded() {
		result.Status = domain.StatusError
		result.Message = ingest.Message
		return result, nil
	}

	result.Status = domain.StatusSuccess
	summary, err := s.pipeline.Summarize(ctx, text)
	if err == nil {
		result.Summary = summary
	}

	return result, nil
}

// Ask answers question from the uploaded documents.
func (s *DocumentService) Ask(ctx context.Context, userID, question string) (domain.Answer, error) {
	return s.pipeline.AnswerAs(ctx, userID, question)
}
