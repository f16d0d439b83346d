package vectorstore

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunks(source string, n int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{SourceID: source, Text: fmt.Sprintf("%s-%d", source, i), Position: i}
	}
	return out
}

func newStore(t *testing.T, dim int, opts ...Option) *Store {
	t.Helper()
	s, err := New(dim, opts...)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsNonPositiveDimension(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
	_, err = New(-3)
	assert.Error(t, err)
}

func TestStore_AddIncreasesLenAndReturnsReceipt(t *testing.T) {
	s := newStore(t, 2)

	receipt, err := s.Add(chunks("a", 2), []domain.VectorEntry{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, domain.StoreReceipt{FirstIndex: 0, Count: 2, Total: 2}, receipt)

	receipt, err = s.Add(chunks("b", 3), []domain.VectorEntry{{1, 1}, {2, 2}, {3, 3}})
	require.NoError(t, err)
	assert.Equal(t, domain.StoreReceipt{FirstIndex: 2, Count: 3, Total: 5}, receipt)
	assert.Equal(t, 5, s.Len())

	row, err := s.Row(3)
	require.NoError(t, err)
	assert.Equal(t, 3, row.Index)
	assert.Equal(t, "b-1", row.Chunk.Text)
}

func TestStore_AddSelfMatchAtDistanceZero(t *testing.T) {
	s := newStore(t, 3)
	vectors := []domain.VectorEntry{{0.1, 0.2, 0.3}, {5, 5, 5}, {-1, 0, 1}, {0.1, 0.2, 0.3}}
	_, err := s.Add(chunks("doc", 4), vectors)
	require.NoError(t, err)

	for i, v := range vectors {
		hits, err := s.Search(v, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, float32(0), hits[0].Distance)
		if i == 3 {
			// identical to row 0; ties go to the lower row index
			assert.Equal(t, 0, hits[0].Index)
		} else {
			assert.Equal(t, i, hits[0].Index)
		}
	}
}

func TestStore_AddLengthMismatchIsAtomic(t *testing.T) {
	s := newStore(t, 2)
	_, err := s.Add(chunks("seed", 1), []domain.VectorEntry{{9, 9}})
	require.NoError(t, err)

	_, err = s.Add(chunks("doc", 5), []domain.VectorEntry{{1, 0}, {0, 1}, {1, 1}, {0, 0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLengthMismatch)
	assert.Equal(t, 1, s.Len())

	hits, err := s.Search(domain.VectorEntry{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStore_AddChecksEveryVectorDimension(t *testing.T) {
	s := newStore(t, 3)

	_, err := s.Add(chunks("doc", 3), []domain.VectorEntry{{1, 2, 3}, {1, 2, 3}, {1, 2}})
	require.Error(t, err)

	var dm *domain.DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.Equal(t, 2, dm.Position)
	assert.Equal(t, 0, s.Len())
}

func TestStore_SearchOrderingAndTies(t *testing.T) {
	s := newStore(t, 1)
	_, err := s.Add(chunks("x", 5), []domain.VectorEntry{{4}, {1}, {-1}, {2}, {1}})
	require.NoError(t, err)

	hits, err := s.Search(domain.VectorEntry{0}, 5)
	require.NoError(t, err)

	indices := make([]int, len(hits))
	for i, h := range hits {
		indices[i] = h.Index
	}
	// distances: 16, 1, 1, 4, 1
	assert.Equal(t, []int{1, 2, 4, 3, 0}, indices)
	assert.Equal(t, float32(1), hits[0].Distance)
	assert.Equal(t, float32(16), hits[4].Distance)
}

func TestStore_SearchEmptyStore(t *testing.T) {
	s := newStore(t, 2)
	for _, k := range []int{1, 3, 100} {
		hits, err := s.Search(domain.VectorEntry{1, 1}, k)
		require.NoError(t, err)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	}
}

func TestStore_SearchClampsK(t *testing.T) {
	s := newStore(t, 2)
	_, err := s.Add(chunks("a", 3), []domain.VectorEntry{{0, 0}, {1, 1}, {2, 2}})
	require.NoError(t, err)

	q := domain.VectorEntry{0.4, 0.4}
	all, err := s.Search(q, s.Len())
	require.NoError(t, err)
	over, err := s.Search(q, 50)
	require.NoError(t, err)
	assert.Equal(t, all, over)

	none, err := s.Search(q, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_SearchQueryDimensionMismatch(t *testing.T) {
	s := newStore(t, 4)
	_, err := s.Search(domain.VectorEntry{1, 2}, 3)

	var dm *domain.DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, -1, dm.Position)
}

func TestStore_MaxRows(t *testing.T) {
	s := newStore(t, 1, WithMaxRows(3))
	_, err := s.Add(chunks("a", 2), []domain.VectorEntry{{1}, {2}})
	require.NoError(t, err)

	_, err = s.Add(chunks("b", 2), []domain.VectorEntry{{3}, {4}})
	assert.ErrorIs(t, err, domain.ErrStoreFull)
	assert.Equal(t, 2, s.Len())

	_, err = s.Add(chunks("c", 1), []domain.VectorEntry{{5}})
	assert.NoError(t, err)
}

func TestStore_RowAndPage(t *testing.T) {
	s := newStore(t, 1)
	_, err := s.Add(chunks("p", 5), []domain.VectorEntry{{0}, {1}, {2}, {3}, {4}})
	require.NoError(t, err)

	_, err = s.Row(5)
	assert.ErrorIs(t, err, domain.ErrRowNotFound)
	_, err = s.Row(-1)
	assert.ErrorIs(t, err, domain.ErrRowNotFound)

	page := s.Page(1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, 1, page[0].Index)
	assert.Equal(t, "p-2", page[1].Chunk.Text)

	assert.Len(t, s.Page(4, 10), 1)
	assert.Empty(t, s.Page(5, 10))
	assert.Empty(t, s.Page(0, 0))
}

func TestStore_ConcurrentAddKeepsRowsAligned(t *testing.T) {
	s := newStore(t, 2)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				v := float32(w*1000 + i)
				_, err := s.Add(
					[]domain.Chunk{{SourceID: "w", Text: fmt.Sprintf("%v", v)}},
					[]domain.VectorEntry{{v, v}},
				)
				assert.NoError(t, err)
				_, err = s.Search(domain.VectorEntry{v, v}, 3)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 200, s.Len())
	for i := 0; i < s.Len(); i++ {
		row, err := s.Row(i)
		require.NoError(t, err)
		var v float32
		_, err = fmt.Sscanf(row.Chunk.Text, "%v", &v)
		require.NoError(t, err)

		hits, err := s.Search(domain.VectorEntry{v, v}, 1)
		require.NoError(t, err)
		assert.Equal(t, i, hits[0].Index)
	}
}
