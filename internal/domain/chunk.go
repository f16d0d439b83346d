package domain

import "fmt"

// DefaultEmbeddingDimensions is the vector width of all-MiniLM-L6-v2, the
// embedding model both pipelines were built around.
const DefaultEmbeddingDimensions = 384

// Chunk is a contiguous window of a source's text.
type Chunk struct {
	SourceID string
	Text     string
	Position int // sequence position within the source
}

// VectorEntry is the embedding of exactly one chunk.
type VectorEntry []float32

// StoreRow pairs a chunk with the row index its vector occupies in the index.
type StoreRow struct {
	Index int
	Chunk Chunk
}

// Neighbor is a single search hit.
type Neighbor struct {
	Index    int
	Distance float32
}

// StoreReceipt describes a committed Add batch.
type StoreReceipt struct {
	FirstIndex int
	Count      int
	Total      int
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c Chunk) error {
	if c.SourceID == "" {
		return fmt.Errorf("chunk SourceID is required")
	}
	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}
	if c.Position < 0 {
		return fmt.Errorf("chunk Position cannot be negative")
	}
	return nil
}
