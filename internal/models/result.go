package models

// ScoredID is a ranked entry from a single retrieval branch
// (keyword index or vector backend), before fusion.
type ScoredID struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ScoredPoint is a vector backend query hit with its stored payload.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// RankedResult is one fused search hit. Score is the hybrid fusion score
// normalized into [0,1]; KeywordScore and SemanticScore carry the raw
// per-branch scores for diagnostics.
type RankedResult struct {
	ChunkID       string         `json:"chunk_id"`
	Text          string         `json:"text"`
	Score         float64        `json:"score"`
	KeywordScore  float64        `json:"keyword_score"`
	SemanticScore float64        `json:"semantic_score"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SearchResponse is the Knowledge Base search result. Degraded is set when
// one retrieval branch was unavailable and the response was produced from
// the surviving branch alone.
type SearchResponse struct {
	Query    string         `json:"query"`
	Results  []RankedResult `json:"results"`
	Degraded bool           `json:"degraded"`
	Cached   bool           `json:"cached"`
}

// Ingestion pipeline stages. A document moves through them in order;
// Failed is terminal and reachable from any non-terminal stage.
type IngestStage string

const (
	StageExtracting IngestStage = "extracting"
	StageChunking   IngestStage = "chunking"
	StageEmbedding  IngestStage = "embedding"
	StageIndexing   IngestStage = "indexing"
	StageCommitted  IngestStage = "committed"
	StageFailed     IngestStage = "failed"
)

// IngestResult is the per-document outcome of an ingestion run. In batch
// mode one document's failure never cancels its siblings; the caller
// receives one result per input, in input order.
type IngestResult struct {
	DocumentID  string      `json:"document_id"`
	Version     int         `json:"version"`
	ChunkCount  int         `json:"chunk_count"`
	Stage       IngestStage `json:"stage"`
	FailedStage IngestStage `json:"failed_stage,omitempty"`
	Error       string      `json:"error,omitempty"`
	Err         error       `json:"-"`
}

// OK reports whether the document reached the committed stage.
func (r *IngestResult) OK() bool {
	return r.Stage == StageCommitted
}
