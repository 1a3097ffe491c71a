package chunker

import (
	"fmt"

	"github.com/ternarybob/scientia/internal/models"
)

// chunkFixed produces consecutive rune windows [i, i+size) stepping by
// size-overlap. The final window is truncated to the remaining text,
// never padded. De-overlapped concatenation of the output reconstructs
// the input exactly.
func chunkFixed(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, &models.ConfigurationError{
			Field:  "chunking.size",
			Reason: fmt.Sprintf("must be positive, got %d", size),
		}
	}
	if overlap < 0 || overlap >= size {
		return nil, &models.ConfigurationError{
			Field:  "chunking.overlap",
			Reason: fmt.Sprintf("must satisfy 0 <= overlap < size, got overlap=%d size=%d", overlap, size),
		}
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}, nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
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
