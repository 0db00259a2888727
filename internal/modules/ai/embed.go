package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/docverse/core/internal/models"
	openaiclient "github.com/openai/openai-go/v2"
)

// Embed produces an embedding vector for the given text. Input longer than
// the configured limit is truncated before the provider call so oversized
// passages degrade to a prefix embedding instead of failing.
func (s *Service) Embed(ctx context.Context, text string) (models.Vector, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New("embedding input is empty")
	}

	provider := selectEmbeddingProvider(s.cfg)
	if provider == nil {
		return nil, errors.New("no enabled AI provider supports embeddings")
	}

	trimmed = clipRunes(trimmed, s.rcfg.EmbeddingMaxChars)

	model := strings.TrimSpace(s.cfg.EmbeddingModel)
	if model == "" {
		model = "text-embedding-3-small"
	}

	client := buildOpenAIClient(provider.APIKey, provider.Endpoint)
	resp, err := client.Embeddings.New(ctx, openaiclient.EmbeddingNewParams{
		Input: openaiclient.EmbeddingNewParamsInputUnion{
			OfString: openaiclient.String(trimmed),
		},
		Model: openaiclient.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("empty embedding response")
	}

	raw := resp.Data[0].Embedding
	vec := make(models.Vector, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// clipRunes caps s at max runes; max <= 0 means unbounded.
func clipRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
