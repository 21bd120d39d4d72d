// Package embedding turns RFQ text into fixed-dimension vectors via the
// Gemini embedding API. Failures surface as a typed UnavailableError so the
// orchestrator can apply its transient retry policy.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// UnavailableError reports that the embedding service could not serve the
// request. All upstream failures map here; the caller decides retry policy.
type UnavailableError struct {
	Model string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding model %s unavailable: %v", e.Model, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// GeminiEmbedder produces embeddings with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder. An empty model selects DefaultModel.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

// Embed returns the embedding vector for text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &UnavailableError{Model: e.model, Cause: err}
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, &UnavailableError{Model: e.model, Cause: fmt.Errorf("empty embedding in response")}
	}
	return res.Embedding.Values, nil
}

// Model returns the configured embedding model name.
func (e *GeminiEmbedder) Model() string { return e.model }

// Close releases resources held by the client.
func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
