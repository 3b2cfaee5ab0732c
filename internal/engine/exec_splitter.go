package engine

import (
	"context"
	"strings"

	"github.com/ncanvas/flowengine/internal/domain"
)

func init() {
	register(domain.KindSplitter, executeSplitter)
}

// splitResult is the shape stored in Extras for a splitter node's result
// and read back by reduce's input-gathering.
type splitResult struct {
	Chunks    []string `json:"chunks"`
	NumChunks int      `json:"num_chunks"`
	ChunkSize int      `json:"chunk_size"`
}

func executeSplitter(_ context.Context, _ *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	document := ConcatInputs(inputs)
	strategy := node.ConfigString("strategy", "semantic")
	chunkSize := node.ConfigInt("chunk_size", 2000)

	var chunks []string
	switch strategy {
	case "sliding":
		overlap := node.ConfigInt("overlap", 200)
		chunks = splitSliding(document, chunkSize, overlap)
	case "fixed":
		chunks = splitFixed(document, chunkSize)
	default:
		chunks = splitSemantic(document, chunkSize)
	}

	if len(chunks) == 0 {
		chunks = []string{document}
	}

	return resultFromSplit(splitResult{Chunks: chunks, NumChunks: len(chunks), ChunkSize: chunkSize}), nil
}

// splitSemantic splits on blank-line paragraph boundaries, accumulating
// paragraphs greedily without exceeding chunkSize; a single paragraph
// longer than chunkSize becomes its own oversized chunk.
func splitSemantic(document string, chunkSize int) []string {
	if document == "" {
		return nil
	}
	paragraphs := strings.Split(document, "\n\n")

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+2+len(p) > chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitSliding produces overlapping windows of length chunkSize, stepping
// by chunkSize-overlap runes at a time.
func splitSliding(document string, chunkSize, overlap int) []string {
	if document == "" {
		return nil
	}
	runes := []rune(document)
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}
	if step <= 0 {
		return []string{document}
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitFixed slices document into consecutive non-overlapping pieces of
// length chunkSize; concatenating the result reproduces document exactly.
func splitFixed(document string, chunkSize int) []string {
	if document == "" {
		return nil
	}
	runes := []rune(document)
	if chunkSize <= 0 {
		return []string{document}
	}

	var chunks []string
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func resultFromSplit(sr splitResult) domain.Result {
	return domain.NewTaggedResult("chunks", strings.Join(sr.Chunks, "\n\n"), map[string]any{
		"chunks":     sr.Chunks,
		"num_chunks": sr.NumChunks,
		"chunk_size": sr.ChunkSize,
	})
}
