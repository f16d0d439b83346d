package handlers

import (
	"net/http"
	"strconv"

	"github.com/cloo-solutions/studybuddy/internal/api"
	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/pagination"
)

// RowPager is the read side of a vector store.
type RowPager interface {
	Len() int
	Page(offset, limit int) []domain.StoreRow
}

type ChunksHandler struct {
	store RowPager
}

func NewChunksHandler(store RowPager) *ChunksHandler {
	return &ChunksHandler{store: store}
}

type ChunkResponse struct {
	Index    int    `json:"index"`
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

func (h *ChunksHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, err := pagination.DecodeOffsetCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit := pagination.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	limit = pagination.ClampLimit(limit)

	total := h.store.Len()
	rows := h.store.Page(offset, limit)

	items := make([]ChunkResponse, len(rows))
	for i, row := range rows {
		items[i] = ChunkResponse{
			Index:    row.Index,
			SourceID: row.Chunk.SourceID,
			Position: row.Chunk.Position,
			Text:     row.Chunk.Text,
		}
	}

	resp := pagination.PageResult[ChunkResponse]{Items: items, Total: total}
	if next := offset + len(rows); len(rows) > 0 && next < total {
		resp.HasMore = true
		resp.Cursor = pagination.EncodeOffsetCursor(next)
	}

	api.Success(w, http.StatusOK, resp)
}
