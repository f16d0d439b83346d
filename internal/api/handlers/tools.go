package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cloo-solutions/studybuddy/internal/api"
	"github.com/cloo-solutions/studybuddy/internal/api/middleware"
	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/service"
)

// DefaultMaxUploadBytes bounds a single PDF upload.
const DefaultMaxUploadBytes int64 = 32 << 20

type Asker interface {
	Ask(ctx context.Context, userID, question string) (domain.Answer, error)
}

type DocumentService interface {
	Asker
	Upload(ctx context.Context, filename string, data []byte) (*service.UploadResult, error)
}

type WebService interface {
	Asker
	Scrape(ctx context.Context, url string) (*service.ScrapeResult, error)
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer  string   `json:"answer"`
	Status  string   `json:"status"`
	Sources []string `json:"sources,omitempty"`
}

type ScrapeRequest struct {
	URL string `json:"url"`
}

func answerToResponse(a domain.Answer) AskResponse {
	resp := AskResponse{Answer: a.Text, Status: string(a.Status)}
	seen := make(map[string]bool, len(a.Context))
	for _, row := range a.Context {
		if seen[row.Chunk.SourceID] {
			continue
		}
		seen[row.Chunk.SourceID] = true
		resp.Sources = append(resp.Sources, row.Chunk.SourceID)
	}
	return resp
}

// askHandler serves POST {question} for any pipeline.
func askHandler(svc Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := api.Decode(r, &req); err != nil {
			api.HandleError(w, err)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			api.Error(w, http.StatusBadRequest, "No question provided")
			return
		}

		answer, err := svc.Ask(r.Context(), middleware.GetUserID(r.Context()), req.Question)
		if err != nil {
			api.HandleError(w, err)
			return
		}

		api.Success(w, http.StatusOK, answerToResponse(answer))
	}
}

type DocumentHandler struct {
	svc      DocumentService
	maxBytes int64
}

func NewDocumentHandler(svc DocumentService, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &DocumentHandler{svc: svc, maxBytes: maxBytes}
}

// Upload accepts a multipart form with the PDF in the "file" field.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		api.HandleError(w, service.ErrNoFileUploaded)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.HandleError(w, service.ErrNoFileUploaded)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	result, err := h.svc.Upload(r.Context(), header.Filename, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *DocumentHandler) Ask(w http.ResponseWriter, r *http.Request) {
	askHandler(h.svc)(w, r)
}

type WebHandler struct {
	svc WebService
}

func NewWebHandler(svc WebService) *WebHandler {
	return &WebHandler{svc: svc}
}

func (h *WebHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := api.Decode(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.Scrape(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *WebHandler) Ask(w http.ResponseWriter, r *http.Request) {
	askHandler(h.svc)(w, r)
}
