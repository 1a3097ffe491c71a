package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestVectorStorageAddQueryDelete(t *testing.T) {
	db := openTestDB(t)
	storage, err := NewVectorStorage(db, arbor.NewLogger())
	require.NoError(t, err)
	ctx := context.Background()

	ids := []string{"doc_a_0", "doc_a_1", "doc_b_0"}
	vectors := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	payloads := []map[string]any{
		{"documentId": "doc_a", "category": "science"},
		{"documentId": "doc_a", "category": "science"},
		{"documentId": "doc_b", "category": "physics"},
	}
	require.NoError(t, storage.AddPoints(ctx, ids, vectors, payloads))

	count, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	hits, err := storage.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc_a_0", hits[0].ID)
	assert.Equal(t, "doc_a_1", hits[1].ID)
	assert.Equal(t, "science", hits[0].Payload["category"])

	// Equality filter restricts the scan.
	hits, err = storage.Query(ctx, []float32{1, 0, 0}, 10, map[string]any{"category": "physics"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc_b_0", hits[0].ID)

	// Delete is idempotent for unknown IDs.
	require.NoError(t, storage.Delete(ctx, []string{"doc_a_0", "doc_a_1", "doc_never_0"}))
	count, err = storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestVectorStorageUpsertOverwrites(t *testing.T) {
	db := openTestDB(t)
	storage, err := NewVectorStorage(db, arbor.NewLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, storage.AddPoints(ctx,
		[]string{"doc_a_0"}, [][]float32{{1, 0, 0}}, []map[string]any{{"version": 1}}))
	require.NoError(t, storage.AddPoints(ctx,
		[]string{"doc_a_0"}, [][]float32{{0, 1, 0}}, []map[string]any{{"version": 2}}))

	count, err := storage.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	hits, err := storage.Query(ctx, []float32{0, 1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.EqualValues(t, 2, hits[0].Payload["version"])
}

func TestVectorStoragePersistsAcrossReopen(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := NewVectorStorage(db, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, first.AddPoints(ctx,
		[]string{"doc_a_0"}, [][]float32{{1, 0, 0}}, []map[string]any{{"documentId": "doc_a"}}))

	// A fresh handle over the same database reloads the index from disk.
	second, err := NewVectorStorage(db, arbor.NewLogger())
	require.NoError(t, err)

	count, err := second.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	hits, err := second.Query(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc_a_0", hits[0].ID)
}
