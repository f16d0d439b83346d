package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/cloo-solutions/studybuddy/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testDim = 4

// letterEmbedder maps text onto counts of a, b, c and d so that chunks made of
// the same letter land close together.
type letterEmbedder struct {
	dim     int
	err     error
	queryFn func(string) ([]float32, error)
}

func (e *letterEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	for _, r := range strings.ToLower(text) {
		if idx := int(r - 'a'); idx >= 0 && idx < e.dim {
			v[idx]++
		}
	}
	return v
}

func (e *letterEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	if e.queryFn != nil {
		return e.queryFn(text)
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *letterEmbedder) Dimension() int { return e.dim }

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockQueryLogRepository struct {
	mock.Mock
}

func (m *MockQueryLogRepository) Create(ctx context.Context, entry *domain.QueryLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func newTestPipeline(t *testing.T, cfg PipelineConfig, emb Embedder, ans Answerer) *RAGPipeline {
	t.Helper()
	store, err := vectorstore.New(testDim)
	require.NoError(t, err)
	p, err := NewRAGPipeline(cfg, store, emb, ans)
	require.NoError(t, err)
	return p
}

func smallChunks(cfg PipelineConfig) PipelineConfig {
	cfg.Chunking = ChunkConfig{MaxChars: 10, Overlap: 0}
	return cfg
}

func TestRAGPipeline_Ingest_Success(t *testing.T) {
	p := newTestPipeline(t, smallChunks(DocumentPipelineConfig()), &letterEmbedder{dim: testDim}, new(MockAnswerer))

	res := p.Ingest(context.Background(), "notes.pdf", strings.Repeat("a", 25))

	assert.True(t, res.Succeeded())
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, "Document stored successfully (3 chunks added)", res.Message)
	assert.Equal(t, 3, p.Store().Len())
}

func TestRAGPipeline_Ingest_WebMessageNamesSource(t *testing.T) {
	p := newTestPipeline(t, WebPipelineConfig(), &letterEmbedder{dim: testDim}, new(MockAnswerer))

	res := p.Ingest(context.Background(), "https://example.com", "a short page")

	assert.True(t, res.Succeeded())
	assert.Equal(t, "Stored 1 chunks from https://example.com.", res.Message)
}

func TestRAGPipeline_Ingest_EmptyText(t *testing.T) {
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, new(MockAnswerer))

	res := p.Ingest(context.Background(), "blank.pdf", " \n\t ")

	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, domain.ErrExtractionEmpty.Message, res.Message)
	assert.Zero(t, p.Store().Len())
}

func TestRAGPipeline_Ingest_DimensionMismatchLeavesStoreUnchanged(t *testing.T) {
	emb := &letterEmbedder{dim: testDim, err: domain.NewDimensionMismatch(testDim, 3, 0)}
	p := newTestPipeline(t, DocumentPipelineConfig(), emb, new(MockAnswerer))

	res := p.Ingest(context.Background(), "doc.pdf", "some text")

	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, "Embedding dimension mismatch: expected 4, got 3", res.Message)
	assert.Zero(t, p.Store().Len())
}

func TestRAGPipeline_Ingest_UpstreamFailure(t *testing.T) {
	emb := &letterEmbedder{dim: testDim, err: errors.New("connection refused")}
	p := newTestPipeline(t, DocumentPipelineConfig(), emb, new(MockAnswerer))

	res := p.Ingest(context.Background(), "doc.pdf", "some text")

	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, UnavailableMessage, res.Message)
	assert.NotContains(t, res.Message, "connection refused")
}

func TestRAGPipeline_Ingest_StoreFull(t *testing.T) {
	store, err := vectorstore.New(testDim, vectorstore.WithMaxRows(1))
	require.NoError(t, err)
	p, err := NewRAGPipeline(smallChunks(DocumentPipelineConfig()), store, &letterEmbedder{dim: testDim}, new(MockAnswerer))
	require.NoError(t, err)

	res := p.Ingest(context.Background(), "doc.pdf", strings.Repeat("b", 25))

	assert.Equal(t, domain.StatusError, res.Status)
	assert.Zero(t, store.Len())
}

func TestRAGPipeline_Answer_EmptyStore(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, answerer)

	ans, err := p.Answer(context.Background(), "what is this?")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusEmpty, ans.Status)
	assert.Equal(t, "No documents are stored yet. Please upload a PDF first.", ans.Text)
	answerer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

	web := newTestPipeline(t, WebPipelineConfig(), &letterEmbedder{dim: testDim}, answerer)
	ans, err = web.Answer(context.Background(), "what is this?")
	require.NoError(t, err)
	assert.Equal(t, "No data stored yet. Please scrape a website first.", ans.Text)
}

func TestRAGPipeline_Answer_PromptContainsRetrievedContext(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, smallChunks(DocumentPipelineConfig()), &letterEmbedder{dim: testDim}, answerer)

	require.True(t, p.Ingest(context.Background(), "a.pdf", "aaaaaaaaaa").Succeeded())
	require.True(t, p.Ingest(context.Background(), "d.pdf", "dddddddddd").Succeeded())

	answerer.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Context:\naaaaaaaaaa\n\ndddddddddd") &&
			strings.Contains(prompt, "Question: aaa?") &&
			strings.HasPrefix(prompt, "Based on the following document context")
	})).Return("it is about the letter a", nil)

	ans, err := p.Answer(context.Background(), "aaa?")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusAnswered, ans.Status)
	assert.Equal(t, "it is about the letter a", ans.Text)
	require.Len(t, ans.Context, 2)
	assert.Equal(t, "a.pdf", ans.Context[0].Chunk.SourceID)
	answerer.AssertExpectations(t)
}

func TestRAGPipeline_Answer_UsesTopK(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, smallChunks(DocumentPipelineConfig()), &letterEmbedder{dim: testDim}, answerer)

	require.True(t, p.Ingest(context.Background(), "doc.pdf", strings.Repeat("c", 60)).Succeeded())
	answerer.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)

	ans, err := p.Answer(context.Background(), "c")

	require.NoError(t, err)
	assert.Len(t, ans.Context, 3)
}

func TestRAGPipeline_Answer_WebPromptRestrictsToContext(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, WebPipelineConfig(), &letterEmbedder{dim: testDim}, answerer)
	require.True(t, p.Ingest(context.Background(), "https://example.com", "bbb page").Succeeded())

	answerer.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Use ONLY the context below") &&
			strings.Contains(prompt, "say you don't know") &&
			strings.HasSuffix(prompt, "Question: b?\nAnswer:")
	})).Return("b", nil)

	ans, err := p.Answer(context.Background(), "b?")

	require.NoError(t, err)
	assert.Equal(t, "b", ans.Text)
	answerer.AssertExpectations(t)
}

func TestRAGPipeline_Answer_DocumentPromptRestrictsToContext(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, answerer)
	require.True(t, p.Ingest(context.Background(), "notes.pdf", "aaaa bbbb").Succeeded())

	answerer.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Use ONLY this context") &&
			strings.Contains(prompt, "say you don't know") &&
			strings.Contains(prompt, "Context:\naaaa bbbb")
	})).Return("a and b", nil)

	ans, err := p.Answer(context.Background(), "aaaa?")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusAnswered, ans.Status)
	answerer.AssertExpectations(t)
}

// staleIndex reports neighbours past the end of the rows it holds.
type staleIndex struct {
	*vectorstore.Store
}

func (s staleIndex) Search(query domain.VectorEntry, k int) ([]domain.Neighbor, error) {
	return []domain.Neighbor{{Index: s.Len()}, {Index: s.Len() + 7}}, nil
}

func TestRAGPipeline_Answer_DropsOutOfRangeNeighbors(t *testing.T) {
	store, err := vectorstore.New(testDim)
	require.NoError(t, err)
	answerer := new(MockAnswerer)
	p, err := NewRAGPipeline(DocumentPipelineConfig(), staleIndex{store}, &letterEmbedder{dim: testDim}, answerer)
	require.NoError(t, err)
	require.True(t, p.Ingest(context.Background(), "notes.pdf", "aaaa").Succeeded())

	ans, err := p.Answer(context.Background(), "aaaa?")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusNoContext, ans.Status)
	assert.Equal(t, "No relevant data found in stored documents.", ans.Text)
	assert.Empty(t, ans.Context)
	answerer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRAGPipeline_Answer_QueryDimensionMismatch(t *testing.T) {
	emb := &letterEmbedder{dim: testDim, queryFn: func(string) ([]float32, error) {
		return nil, domain.NewDimensionMismatch(testDim, 7, -1)
	}}
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, WebPipelineConfig(), emb, answerer)
	require.True(t, p.Ingest(context.Background(), "https://example.com", "page").Succeeded())

	ans, err := p.Answer(context.Background(), "question")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusError, ans.Status)
	assert.Contains(t, ans.Text, "Query embedding dimension mismatch")
	answerer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRAGPipeline_Answer_UpstreamFailureIsConverted(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, answerer)
	require.True(t, p.Ingest(context.Background(), "doc.pdf", "abc").Succeeded())

	answerer.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("model crashed"))

	ans, err := p.Answer(context.Background(), "abc")

	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusError, ans.Status)
	assert.Equal(t, UnavailableMessage, ans.Text)
}

func TestRAGPipeline_Answer_EmptyQuestion(t *testing.T) {
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, new(MockAnswerer))

	_, err := p.Answer(context.Background(), "   ")

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestRAGPipeline_Answer_RecordsQueryLog(t *testing.T) {
	answerer := new(MockAnswerer)
	repo := new(MockQueryLogRepository)
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, answerer).WithQueryLog(repo)
	require.True(t, p.Ingest(context.Background(), "doc.pdf", "abc").Succeeded())

	answerer.On("Generate", mock.Anything, mock.Anything).Return("answer", nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.QueryLog) bool {
		return e.Pipeline == PipelineDocument &&
			e.UserID == "user-1" &&
			e.Question == "abc" &&
			e.Status == domain.AnswerStatusAnswered &&
			len(e.Embedding) == testDim &&
			len(e.Rows) == 1 && e.Rows[0] == 0
	})).Return(errors.New("database down"))

	ans, err := p.AnswerAs(context.Background(), "user-1", "abc")

	require.NoError(t, err)
	assert.Equal(t, "answer", ans.Text)
	repo.AssertExpectations(t)
}

func TestRAGPipeline_Summarize_TruncatesInput(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, answerer)

	answerer.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		body := strings.TrimPrefix(prompt, "Summarize the following document in a concise and clear way:\n\n")
		return body != prompt && len([]rune(body)) == 3000
	})).Return("short summary", nil)

	summary, err := p.Summarize(context.Background(), strings.Repeat("x", 5000))

	require.NoError(t, err)
	assert.Equal(t, "short summary", summary)
	answerer.AssertExpectations(t)
}

func TestRAGPipeline_Summarize_Failure(t *testing.T) {
	answerer := new(MockAnswerer)
	p := newTestPipeline(t, DocumentPipelineConfig(), &letterEmbedder{dim: testDim}, answerer)
	answerer.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	_, err := p.Summarize(context.Background(), "text")

	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
}

func TestNewRAGPipeline_RejectsDimensionDisagreement(t *testing.T) {
	store, err := vectorstore.New(384)
	require.NoError(t, err)

	_, err = NewRAGPipeline(DocumentPipelineConfig(), store, &letterEmbedder{dim: 4}, new(MockAnswerer))

	var dm *domain.DimensionMismatchError
	assert.ErrorAs(t, err, &dm)
}

func TestNewRAGPipeline_RejectsBadConfig(t *testing.T) {
	store, err := vectorstore.New(testDim)
	require.NoError(t, err)

	cfg := DocumentPipelineConfig()
	cfg.TopK = 0
	_, err = NewRAGPipeline(cfg, store, &letterEmbedder{dim: testDim}, new(MockAnswerer))
	assert.Error(t, err)

	cfg = DocumentPipelineConfig()
	cfg.Chunking.Overlap = cfg.Chunking.MaxChars
	_, err = NewRAGPipeline(cfg, store, &letterEmbedder{dim: testDim}, new(MockAnswerer))
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}
