package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

const vectorKeyPrefix = "vec:"

// vectorRecord is the persisted form of a point.
type vectorRecord struct {
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// VectorStorage is the embedded vector backend. Points are persisted as
// JSON under "vec:<id>" keys via raw Badger transactions and mirrored in
// an in-memory map for brute-force cosine scans. Suitable for corpora
// that fit in memory; larger deployments use the networked backend.
type VectorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	mu     sync.RWMutex
	points map[string]vectorRecord
}

// NewVectorStorage opens the vector store and loads all persisted points
// into memory.
func NewVectorStorage(db *BadgerDB, logger arbor.ILogger) (*VectorStorage, error) {
	s := &VectorStorage{
		db:     db,
		logger: logger,
		points: make(map[string]vectorRecord),
	}
	if err := s.loadAll(); err != nil {
		return nil, fmt.Errorf("loading vector index: %w", err)
	}
	logger.Debug().Int("points", len(s.points)).Msg("Vector index loaded")
	return s, nil
}

func (s *VectorStorage) loadAll() error {
	return s.db.Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(vectorKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(vectorKeyPrefix):])
			err := item.Value(func(val []byte) error {
				var rec vectorRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decoding point %s: %w", id, err)
				}
				s.points[id] = rec
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// AddPoints upserts points. Re-adding an existing ID overwrites it.
func (s *VectorStorage) AddPoints(ctx context.Context, ids []string, vectors [][]float32, payloads []map[string]any) error {
	if len(ids) != len(vectors) || (payloads != nil && len(payloads) != len(ids)) {
		return &models.BackendError{
			Op:  "add_points",
			Err: fmt.Errorf("mismatched lengths: %d ids, %d vectors, %d payloads", len(ids), len(vectors), len(payloads)),
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make(map[string]vectorRecord, len(ids))
	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		for i, id := range ids {
			rec := vectorRecord{Vector: vectors[i]}
			if payloads != nil {
				rec.Payload = payloads[i]
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding point %s: %w", id, err)
			}
			if err := txn.Set([]byte(vectorKeyPrefix+id), data); err != nil {
				return err
			}
			records[id] = rec
		}
		return nil
	})
	if err != nil {
		return &models.BackendError{Op: "add_points", Retryable: true, Err: err}
	}

	s.mu.Lock()
	for id, rec := range records {
		s.points[id] = rec
	}
	s.mu.Unlock()
	return nil
}

// Query scans all points and returns the topK by cosine similarity,
// restricted to those whose payload matches every filter entry.
func (s *VectorStorage) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]models.ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.ScoredPoint, 0, len(s.points))
	for id, rec := range s.points {
		if !payloadMatches(rec.Payload, filter) {
			continue
		}
		results = append(results, models.ScoredPoint{
			ID:      id,
			Score:   cosine(vector, rec.Vector),
			Payload: rec.Payload,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes points by ID. Deleting an unknown ID is a no-op.
func (s *VectorStorage) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		for _, id := range ids {
			if err := txn.Delete([]byte(vectorKeyPrefix + id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &models.BackendError{Op: "delete", Retryable: true, Err: err}
	}

	s.mu.Lock()
	for _, id := range ids {
		delete(s.points, id)
	}
	s.mu.Unlock()
	return nil
}

// Stats returns the number of stored points.
func (s *VectorStorage) Stats(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.points)), nil
}

// Close is a no-op; the shared connection is closed by its owner.
func (s *VectorStorage) Close() error {
	return nil
}

func payloadMatches(payload, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ interfaces.VectorStorage = (*VectorStorage)(nil)
