package models

import (
	"errors"
	"fmt"
)

// ErrDocumentNotFound is returned by document storage lookups for
// unknown IDs.
var ErrDocumentNotFound = errors.New("document not found")

// ConfigurationError is fatal at startup: dimension mismatch, unknown
// chunk strategy, missing backend endpoint, and the like.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// ExtractionError is fatal for the document it occurred on. In batch
// ingestion it is isolated to that document.
type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for document %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError wraps an embedding provider failure after retries have
// been exhausted.
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// BackendError is a vector backend failure. Adapters surface errors
// unmodified with a Retryable hint where determinable; retries are the
// caller's responsibility, never the adapter's.
type BackendError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("vector backend %s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
