package interfaces

import "context"

// Extractor turns a file reference into plain text plus basic metadata
// (source, type). It is an external collaborator: synchronous and
// fallible. Any non-nil error is a fatal per-document ingestion failure.
type Extractor interface {
	Extract(ctx context.Context, fileRef string) (text string, metadata map[string]any, err error)
}
