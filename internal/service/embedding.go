package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/minqi/snaplore/internal/logger"
)

// maxEmbeddingRunes caps embedding input. Truncation is deterministic so the
// same record always produces the same vector.
const maxEmbeddingRunes = 8000

// EmbeddingService generates fixed-dimension text embeddings via an
// OpenAI-compatible /embeddings endpoint. It never fails: blank input and
// provider failures both yield the zero-vector sentinel, which searches
// match nothing but storage still accepts.
type EmbeddingService struct {
	client     *resty.Client
	model      string
	endpoint   string
	dimensions int
}

// EmbeddingServiceConfig holds configuration for the embedding service.
type EmbeddingServiceConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *EmbeddingServiceConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(30 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 1536
	}

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		endpoint:   baseURL + "/embeddings",
		dimensions: dimensions,
	}
}

// Dimension returns the configured vector dimension.
func (s *EmbeddingService) Dimension() int {
	return s.dimensions
}

// OpenAI-compatible embeddings request/response structures
type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for one text. Blank input and provider
// failures return the zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) []float32 {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.zeroVector()
	}

	runes := []rune(text)
	if len(runes) > maxEmbeddingRunes {
		text = string(runes[:maxEmbeddingRunes])
	}

	vec, err := s.call(ctx, text)
	if err != nil {
		logger.CtxWarn(ctx, "embedding call failed, storing zero vector: %v", err)
		return s.zeroVector()
	}
	return vec
}

// EmbedQuery generates an embedding for a search query. Same contract as
// Embed.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) []float32 {
	return s.Embed(ctx, query)
}

func (s *EmbeddingService) call(ctx context.Context, text string) ([]float32, error) {
	req := embeddingRequest{
		Model:      s.model,
		Input:      []string{text},
		Dimensions: s.dimensions,
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return nil, fmt.Errorf("embeddings API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embeddings API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, expected %d", len(embedding), s.dimensions)
	}

	return embedding, nil
}

func (s *EmbeddingService) zeroVector() []float32 {
	return make([]float32, s.dimensions)
}

// IsZeroVector reports whether v is the sentinel produced for blank input
// or provider failure.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return len(v) > 0
}
