package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scientia/internal/models"
)

type flakyProvider struct {
	failures int
	calls    int
	dim      int
	badCount bool
}

func (p *flakyProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("transient upstream error")
	}
	n := len(texts)
	if p.badCount {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, p.dim)
	}
	return out, nil
}

func (p *flakyProvider) Dimension() int                     { return p.dim }
func (p *flakyProvider) IsAvailable(_ context.Context) bool { return true }

func TestEmbedSucceedsFirstAttempt(t *testing.T) {
	provider := &flakyProvider{dim: 4}
	svc := NewService(provider, 1000, 3, nil)

	vectors, err := svc.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, 1, provider.calls)
}

func TestEmbedRetriesTransientFailure(t *testing.T) {
	provider := &flakyProvider{dim: 4, failures: 2}
	svc := NewService(provider, 1000, 3, nil)

	vectors, err := svc.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 3, provider.calls)
}

func TestEmbedExhaustsRetries(t *testing.T) {
	provider := &flakyProvider{dim: 4, failures: 10}
	svc := NewService(provider, 1000, 3, nil)

	_, err := svc.Embed(context.Background(), []string{"a"})
	require.Error(t, err)

	var embErr *models.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 3, embErr.Attempts)
	assert.Equal(t, 3, provider.calls)
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	provider := &flakyProvider{dim: 4, badCount: true}
	svc := NewService(provider, 1000, 3, nil)

	_, err := svc.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)

	var embErr *models.EmbeddingError
	assert.ErrorAs(t, err, &embErr)
}

func TestEmbedEmptyInput(t *testing.T) {
	provider := &flakyProvider{dim: 4}
	svc := NewService(provider, 1000, 3, nil)

	vectors, err := svc.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Equal(t, 0, provider.calls)
}

func TestEmbedHonorsCancellation(t *testing.T) {
	provider := &flakyProvider{dim: 4, failures: 10}
	svc := NewService(provider, 1000, 5, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Embed(ctx, []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
