// Package milvus implements the networked vector backend on Milvus.
package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

const (
	fieldID      = "id"
	fieldVector  = "vector"
	fieldPayload = "payload"

	idMaxLength = "512"
)

// VectorStorage stores points in a Milvus collection with an HNSW cosine
// index. The payload rides along as a JSON field so search hits come back
// self-describing.
type VectorStorage struct {
	client     *milvusclient.Client
	collection string
	dimension  int
	logger     arbor.ILogger
}

// NewVectorStorage connects to Milvus and ensures the collection exists,
// is indexed, and is loaded into memory.
func NewVectorStorage(ctx context.Context, cfg *common.VectorConfig, logger arbor.ILogger) (*VectorStorage, error) {
	if cfg.Endpoint == "" {
		return nil, &models.ConfigurationError{Field: "vector.endpoint", Reason: "milvus backend requires an endpoint"}
	}
	if logger == nil {
		logger = common.GetLogger()
	}

	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address: cfg.Endpoint,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Endpoint, err)
	}

	s := &VectorStorage{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		logger:     logger,
	}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("collection", cfg.Collection).
		Int("dimension", cfg.Dimension).
		Msg("Milvus vector backend ready")

	return s, nil
}

func (s *VectorStorage) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: s.collection,
			Description:    "Knowledge chunks with embeddings and metadata payloads",
			Fields: []*entity.Field{
				{
					Name:       fieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{
						"max_length": idMaxLength,
					},
				},
				{
					Name:     fieldPayload,
					DataType: entity.FieldTypeJSON,
				},
				{
					Name:     fieldVector,
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": strconv.Itoa(s.dimension),
					},
				},
			},
		}

		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		indexTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, fieldVector, idx))
		if err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
		if err := indexTask.Await(ctx); err != nil {
			return fmt.Errorf("failed waiting for vector index: %w", err)
		}
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection %s: %w", s.collection, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed waiting for collection load: %w", err)
	}
	return nil
}

// AddPoints upserts points; re-adding an existing ID overwrites it.
func (s *VectorStorage) AddPoints(ctx context.Context, ids []string, vectors [][]float32, payloads []map[string]any) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) || (payloads != nil && len(payloads) != len(ids)) {
		return &models.BackendError{
			Op:  "add_points",
			Err: fmt.Errorf("mismatched lengths: %d ids, %d vectors, %d payloads", len(ids), len(vectors), len(payloads)),
		}
	}

	payloadBytes := make([][]byte, len(ids))
	for i := range ids {
		var payload map[string]any
		if payloads != nil {
			payload = payloads[i]
		}
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return &models.BackendError{Op: "add_points", Err: fmt.Errorf("encoding payload for %s: %w", ids[i], err)}
		}
		payloadBytes[i] = data
	}

	_, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection,
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnJSONBytes(fieldPayload, payloadBytes),
		column.NewColumnFloatVector(fieldVector, s.dimension, vectors),
	))
	if err != nil {
		return &models.BackendError{Op: "add_points", Retryable: true, Err: err}
	}
	return nil
}

// Query searches the collection by cosine similarity. The equality filter
// is translated to a Milvus JSON-field expression.
func (s *VectorStorage) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]models.ScoredPoint, error) {
	opt := milvusclient.NewSearchOption(s.collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(fieldVector).
		WithOutputFields(fieldPayload)
	if expr := filterExpr(filter); expr != "" {
		opt = opt.WithFilter(expr)
	}

	resultSets, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, &models.BackendError{Op: "query", Retryable: true, Err: err}
	}

	var points []models.ScoredPoint
	for _, rs := range resultSets {
		idCol, ok := rs.IDs.(*column.ColumnVarChar)
		if !ok {
			return nil, &models.BackendError{Op: "query", Err: fmt.Errorf("unexpected ID column type %T", rs.IDs)}
		}
		payloadCol := rs.GetColumn(fieldPayload)

		for i, id := range idCol.Data() {
			point := models.ScoredPoint{ID: id}
			if i < len(rs.Scores) {
				point.Score = float64(rs.Scores[i])
			}
			if payloadCol != nil {
				if raw, err := payloadCol.GetAsString(i); err == nil && raw != "" {
					var payload map[string]any
					if err := json.Unmarshal([]byte(raw), &payload); err == nil {
						point.Payload = payload
					}
				}
			}
			points = append(points, point)
		}
	}
	return points, nil
}

// Delete removes points by ID. Unknown IDs delete zero rows without
// error.
func (s *VectorStorage) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithStringIDs(fieldID, ids))
	if err != nil {
		return &models.BackendError{Op: "delete", Retryable: true, Err: err}
	}
	return nil
}

// Stats returns the collection row count.
func (s *VectorStorage) Stats(ctx context.Context) (int64, error) {
	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(s.collection))
	if err != nil {
		return 0, &models.BackendError{Op: "stats", Retryable: true, Err: err}
	}
	count, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, &models.BackendError{Op: "stats", Err: fmt.Errorf("parsing row_count %q: %w", stats["row_count"], err)}
	}
	return count, nil
}

// Close disconnects from Milvus.
func (s *VectorStorage) Close() error {
	return s.client.Close(context.Background())
}

// filterExpr renders an equality filter as a boolean expression over the
// JSON payload field. String values are quoted; everything else is
// rendered with %v.
func filterExpr(filter map[string]any) string {
	if len(filter) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(filter))
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			clauses = append(clauses, fmt.Sprintf(`%s["%s"] == "%s"`, fieldPayload, k, strings.ReplaceAll(val, `"`, `\"`)))
		default:
			clauses = append(clauses, fmt.Sprintf(`%s["%s"] == %v`, fieldPayload, k, val))
		}
	}
	return strings.Join(clauses, " and ")
}

var _ interfaces.VectorStorage = (*VectorStorage)(nil)
