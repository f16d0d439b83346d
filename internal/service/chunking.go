package service

import (
	"strings"

	"github.com/cloo-solutions/studybuddy/internal/domain"
)

// ChunkConfig controls how extracted text is windowed before embedding.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkConfig matches the 500/100 character windows both tools use.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 500,
		Overlap:  100,
	}
}

// Validate reports whether the window parameters can make progress.
func (c ChunkConfig) Validate() error {
	if c.MaxChars <= 0 || c.Overlap < 0 || c.Overlap >= c.MaxChars {
		return domain.ErrInvalidChunkConfig
	}
	return nil
}

// ChunkText splits text into windows of at most maxLen runes where each
// window starts maxLen-overlap runes after the previous one. Whitespace-only
// input yields no windows. Windows are not trimmed, so dropping the first
// overlap runes of every window but the first reconstructs text exactly.
func ChunkText(text string, maxLen, overlap int) ([]string, error) {
	cfg := ChunkConfig{MaxChars: maxLen, Overlap: overlap}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}, nil
	}

	step := maxLen - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

func chunkSource(sourceID, text string, cfg ChunkConfig) ([]domain.Chunk, error) {
	windows, err := ChunkText(text, cfg.MaxChars, cfg.Overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = domain.Chunk{
			SourceID: sourceID,
			Text:     w,
			Position: i,
		}
	}
	return chunks, nil
}
