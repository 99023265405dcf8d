package chunker

import "errors"

// ErrInvalidChunking is returned when the window configuration is unusable.
// Invalid configuration is rejected, never clamped, so that identical
// arguments always produce identical chunk boundaries.
var ErrInvalidChunking = errors.New("chunking requires size > 0 and 0 <= overlap < size")

// Chunk is one overlapping window of a document's text. Position is the
// chunk order within the document, starting at 0.
type Chunk struct {
	Position int
	Content  string
}

// Split cuts text into overlapping rune windows of at most size runes.
// Windows advance by size-overlap; the final window may be shorter. The
// split is deterministic: identical (text, size, overlap) always yields
// byte-for-byte identical chunks, which makes document re-processing
// idempotent. Empty input yields zero chunks.
func Split(text string, size, overlap int) ([]Chunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunking
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []Chunk
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Position: len(chunks),
			Content:  string(runes[i:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
