// Package vectorstore provides an append-only, in-memory L2 similarity index
// paired with the chunk metadata of every stored vector.
package vectorstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cloo-solutions/studybuddy/internal/domain"
)

// Store is a flat (exhaustive) squared-L2 index. Row i of the index always
// corresponds to rows[i]; both grow together under the write lock.
type Store struct {
	mu      sync.RWMutex
	dim     int
	maxRows int
	data    []float32 // row-major, len(data) == len(rows)*dim
	rows    []domain.Chunk
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRows caps the number of rows the store accepts. Zero means unlimited.
func WithMaxRows(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// New creates an empty store for vectors of the given dimension.
func New(dim int, opts ...Option) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector store dimension must be positive, got %d", dim)
	}
	s := &Store{dim: dim}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dimension returns the fixed vector width of the store.
func (s *Store) Dimension() int {
	return s.dim
}

// Len returns the number of committed rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Add appends one vector per chunk. The batch is validated in full before
// anything is appended, so a failed Add leaves the store unchanged.
func (s *Store) Add(chunks []domain.Chunk, vectors []domain.VectorEntry) (domain.StoreReceipt, error) {
	if len(chunks) != len(vectors) {
		return domain.StoreReceipt{}, fmt.Errorf("%w: %d chunks, %d vectors",
			domain.ErrLengthMismatch, len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return domain.StoreReceipt{}, domain.NewDimensionMismatch(s.dim, len(v), i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := len(s.rows)
	if s.maxRows > 0 && first+len(chunks) > s.maxRows {
		return domain.StoreReceipt{}, fmt.Errorf("%w: %d rows stored, %d more requested, limit %d",
			domain.ErrStoreFull, first, len(chunks), s.maxRows)
	}

	data := s.data
	for _, v := range vectors {
		data = append(data, v...)
	}
	s.data = data
	s.rows = append(s.rows, chunks...)

	return domain.StoreReceipt{
		FirstIndex: first,
		Count:      len(chunks),
		Total:      len(s.rows),
	}, nil
}

// Search returns the k nearest rows to query by squared Euclidean distance,
// nearest first, ties broken by lower row index. k is clamped to Len().
func (s *Store) Search(query domain.VectorEntry, k int) ([]domain.Neighbor, error) {
	if len(query) != s.dim {
		return nil, domain.NewDimensionMismatch(s.dim, len(query), -1)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.rows)
	if k <= 0 || n == 0 {
		return []domain.Neighbor{}, nil
	}
	if k > n {
		k = n
	}

	neighbors := make([]domain.Neighbor, n)
	for i := 0; i < n; i++ {
		neighbors[i] = domain.Neighbor{
			Index:    i,
			Distance: squaredL2(query, s.data[i*s.dim:(i+1)*s.dim]),
		}
	}

	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].Distance != neighbors[b].Distance {
			return neighbors[a].Distance < neighbors[b].Distance
		}
		return neighbors[a].Index < neighbors[b].Index
	})

	return neighbors[:k], nil
}

// Row returns the chunk stored at index.
func (s *Store) Row(index int) (domain.StoreRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.rows) {
		return domain.StoreRow{}, domain.ErrRowNotFound
	}
	return domain.StoreRow{Index: index, Chunk: s.rows[index]}, nil
}

// Page returns up to limit rows starting at offset, in insertion order.
func (s *Store) Page(offset, limit int) []domain.StoreRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.rows) || limit <= 0 {
		return []domain.StoreRow{}
	}

	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}

	page := make([]domain.StoreRow, 0, end-offset)
	for i := offset; i < end; i++ {
		page = append(page, domain.StoreRow{Index: i, Chunk: s.rows[i]})
	}
	return page
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
