package service

import (
	"strings"
	"testing"

	"github.com/cloo-solutions/studybuddy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c)
		if i > 0 {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func TestChunkText_Empty(t *testing.T) {
	chunks, err := ChunkText("", 500, 100)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = ChunkText("  \n\t ", 500, 100)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkText_ShortTextIsSingleWindow(t *testing.T) {
	chunks, err := ChunkText("  short text  ", 500, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"  short text  "}, chunks)
}

func TestChunkText_1200CharsGivesThreeWindows(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1200; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	chunks, err := ChunkText(text, 500, 100)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, text[0:500], chunks[0])
	assert.Equal(t, text[400:900], chunks[1])
	assert.Equal(t, text[800:1200], chunks[2])
}

func TestChunkText_WindowProperties(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 57)

	cases := []struct {
		maxLen  int
		overlap int
	}{
		{500, 100},
		{100, 0},
		{64, 63},
		{7, 3},
		{1000, 250},
	}

	for _, tc := range cases {
		chunks, err := ChunkText(text, tc.maxLen, tc.overlap)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		for i, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), tc.maxLen)
			if i > 0 {
				prev := []rune(chunks[i-1])
				cur := []rune(c)
				assert.Equal(t, string(prev[len(prev)-tc.overlap:]), string(cur[:tc.overlap]),
					"windows %d and %d must share %d runes", i-1, i, tc.overlap)
			}
		}
		assert.Equal(t, text, reconstruct(chunks, tc.overlap))
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	text := strings.Repeat("déterministe ", 100)
	a, err := ChunkText(text, 50, 10)
	require.NoError(t, err)
	b, err := ChunkText(text, 50, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChunkText_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("é", 10)
	chunks, err := ChunkText(text, 4, 1)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 4)
	}
	assert.Equal(t, text, reconstruct(chunks, 1))
}

func TestChunkText_InvalidConfig(t *testing.T) {
	_, err := ChunkText("text", 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)

	_, err = ChunkText("text", 10, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)

	_, err = ChunkText("text", 10, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidChunkConfig)
}

func TestChunkSource_TagsSourceAndPosition(t *testing.T) {
	chunks, err := chunkSource("notes.pdf", strings.Repeat("x", 1200), DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, "notes.pdf", c.SourceID)
		assert.Equal(t, i, c.Position)
	}
}
