package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ncanvas/flowengine/internal/domain"
)

func TestSplitFixed_ConcatenationReproducesDocument(t *testing.T) {
	doc := strings.Repeat("abcdefghij", 50) // 500 runes
	chunks := splitFixed(doc, 37)
	assert.Equal(t, doc, strings.Join(chunks, ""))
}

func TestSplitSliding_ConsecutivePairsShareExactOverlap(t *testing.T) {
	doc := strings.Repeat("0123456789", 30) // 300 runes
	chunkSize, overlap := 50, 10
	chunks := splitSliding(doc, chunkSize, overlap)

	if !assert.GreaterOrEqual(t, len(chunks), 2, "expected more than one chunk for a document longer than chunk_size") {
		return
	}

	for i := 0; i < len(chunks)-1; i++ {
		a, b := []rune(chunks[i]), []rune(chunks[i+1])
		tail := string(a[len(a)-overlap:])
		head := string(b[:overlap])
		assert.Equal(t, tail, head, "chunk %d and %d should share exactly overlap runes", i, i+1)
	}
}

func TestSplitSemantic_RespectsChunkSizeUnlessSingleParagraphExceeds(t *testing.T) {
	chunkSize := 20
	paragraphs := []string{
		"short one",
		"short two",
		strings.Repeat("x", 100), // exceeds chunk_size on its own
		"short three",
	}
	doc := strings.Join(paragraphs, "\n\n")

	chunks := splitSemantic(doc, chunkSize)
	for _, c := range chunks {
		if len(c) > chunkSize {
			assert.Equal(t, strings.Repeat("x", 100), c, "only the oversized paragraph may exceed chunk_size")
		}
	}
}

func TestExecuteSplitter_EmptyDocumentYieldsSingleChunk(t *testing.T) {
	result, err := executeSplitter(nil, nil, testNode("s1", domain.KindSplitter), nil)
	assert := assert.New(t)
	assert.NoError(err)
	chunks, ok := result.Extras["chunks"].([]string)
	assert.True(ok)
	assert.Len(chunks, 1)
}
