package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_WindowMath(t *testing.T) {
	// 11 runes, size 4, overlap 2 -> windows start at 0, 2, 4, 6, 8
	chunks, err := Split("abcdefghijk", 4, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	assert.Equal(t, "abcd", chunks[0].Content)
	assert.Equal(t, "cdef", chunks[1].Content)
	assert.Equal(t, "efgh", chunks[2].Content)
	assert.Equal(t, "ghij", chunks[3].Content)
	assert.Equal(t, "ijk", chunks[4].Content, "final window may be shorter than size")
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
	}
}

func TestSplit_NoOverlap(t *testing.T) {
	chunks, err := Split("abcdef", 2, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "abcdef", chunks[0].Content+chunks[1].Content+chunks[2].Content)
}

func TestSplit_TextShorterThanSize(t *testing.T) {
	chunks, err := Split("hi", 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hi", chunks[0].Content)
}

func TestSplit_EmptyInput(t *testing.T) {
	chunks, err := Split("", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_InvalidConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
		{"negative overlap", 10, -1},
		{"zero size", 0, 0},
		{"negative size", -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("some text", tc.size, tc.overlap)
			assert.ErrorIs(t, err, ErrInvalidChunking)
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Python is a high-level, interpreted programming language. ", 40)
	first, err := Split(text, 120, 30)
	require.NoError(t, err)
	second, err := Split(text, 120, 30)
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestSplit_MultibyteRunes(t *testing.T) {
	chunks, err := Split("héllo wörld", 4, 1)
	require.NoError(t, err)
	var rebuilt strings.Builder
	for i, c := range chunks {
		r := []rune(c.Content)
		if i < len(chunks)-1 {
			require.Len(t, r, 4)
			rebuilt.WriteString(string(r[:3]))
		} else {
			rebuilt.WriteString(c.Content)
		}
	}
	assert.Equal(t, "héllo wörld", rebuilt.String())
}
