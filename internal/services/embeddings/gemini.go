package embeddings

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/interfaces"
)

// GeminiProvider generates embeddings with the Gemini embedding API.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
	logger    arbor.ILogger
}

// NewGeminiProvider initializes the genai client. The API key comes from
// config (embedding.api_key or the GEMINI_API_KEY environment variable).
func NewGeminiProvider(ctx context.Context, cfg *common.EmbeddingConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set embedding.api_key or GEMINI_API_KEY)")
	}
	if logger == nil {
		logger = common.GetLogger()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = common.DefaultEmbeddingModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = common.DefaultVectorDimension
	}

	logger.Info().
		Str("model", model).
		Int("dimension", dimension).
		Msg("Gemini embedding provider initialized")

	return &GeminiProvider{
		client:    client,
		model:     model,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// Embed generates one vector per input text in a single API call.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	outputDim := int32(p.dimension)
	result, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("embedding count mismatch: requested %d, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) != p.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch at index %d: expected %d", i, p.dimension)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimension reports the configured output dimensionality.
func (p *GeminiProvider) Dimension() int {
	return p.dimension
}

// IsAvailable probes the API with a minimal embedding request.
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.Embed(ctx, []string{"ping"})
	return err == nil
}

var _ interfaces.EmbeddingProvider = (*GeminiProvider)(nil)
