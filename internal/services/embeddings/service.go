// Package embeddings wraps embedding providers with rate limiting and
// retry behavior.
package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
	"github.com/ternarybob/scientia/internal/models"
)

const retryBaseDelay = 500 * time.Millisecond

// Service decorates an embedding provider with a client-side rate limit
// and bounded retries with exponential backoff. It also enforces the
// one-vector-per-text contract so downstream code never sees a count or
// dimension mismatch.
type Service struct {
	provider   interfaces.EmbeddingProvider
	limiter    *rate.Limiter
	maxRetries int
	logger     arbor.ILogger
}

// NewService wraps provider. rateLimit is requests per second;
// maxRetries is the total attempt count per Embed call.
func NewService(provider interfaces.EmbeddingProvider, rateLimit float64, maxRetries int, logger arbor.ILogger) *Service {
	if rateLimit <= 0 {
		rateLimit = common.DefaultEmbeddingRateLimit
	}
	if maxRetries <= 0 {
		maxRetries = common.DefaultEmbeddingRetries
	}
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		provider:   provider,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Embed calls the provider, retrying transient failures with exponential
// backoff. Context cancellation aborts both the rate limiter wait and
// the backoff sleep. Exhausted retries surface as an EmbeddingError.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		vectors, err := s.provider.Embed(ctx, texts)
		if err == nil {
			if err := s.validate(texts, vectors); err != nil {
				return nil, &models.EmbeddingError{Attempts: attempt, Err: err}
			}
			return vectors, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt < s.maxRetries {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			s.logger.Warn().
				Int("attempt", attempt).
				Str("delay", delay.String()).
				Err(err).
				Msg("Embedding call failed, retrying")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, &models.EmbeddingError{Attempts: s.maxRetries, Err: lastErr}
}

func (s *Service) validate(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	dim := s.provider.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}

// Dimension reports the wrapped provider's output vector size.
func (s *Service) Dimension() int {
	return s.provider.Dimension()
}

// IsAvailable defers to the wrapped provider.
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.provider.IsAvailable(ctx)
}

var _ interfaces.EmbeddingProvider = (*Service)(nil)
