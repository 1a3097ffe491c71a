// Package extract converts file references into plain text for
// ingestion.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
)

// PlainTextExtractor reads local text files. Binary content is rejected
// rather than silently indexed as garbage.
type PlainTextExtractor struct {
	logger arbor.ILogger
}

func NewPlainTextExtractor(logger arbor.ILogger) *PlainTextExtractor {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &PlainTextExtractor{logger: logger}
}

// Extract reads fileRef and returns its content with source metadata.
func (e *PlainTextExtractor) Extract(ctx context.Context, fileRef string) (string, map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(fileRef)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", fileRef, err)
	}
	if !utf8.Valid(data) {
		return "", nil, fmt.Errorf("%s is not valid UTF-8 text", fileRef)
	}

	metadata := map[string]any{
		"source": fileRef,
		"type":   strings.TrimPrefix(filepath.Ext(fileRef), "."),
	}

	e.logger.Debug().
		Str("file", fileRef).
		Int("bytes", len(data)).
		Msg("Extracted plain text")

	return string(data), metadata, nil
}

var _ interfaces.Extractor = (*PlainTextExtractor)(nil)
