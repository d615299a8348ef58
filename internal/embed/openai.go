// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/pdiddy/scamguard/internal/httputil"
	"github.com/pdiddy/scamguard/pkg/types"
)

// DefaultModel is used when the configuration names no embedding model.
const DefaultModel = "text-embedding-3-small"

// OpenAIProvider embeds text through the OpenAI embeddings API or any
// compatible server.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAI constructs a provider from cfg. The API key must already be
// resolved.
func NewOpenAI(cfg types.AIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("embedding API key is not configured (set OPENAI_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httputil.NewClient(cfg.Timeout, cfg.MaxRetries)

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// ModelID returns "openai:" followed by the model name.
func (p *OpenAIProvider) ModelID() string { return "openai:" + p.model }

// Embed requests a single embedding.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("cannot embed empty text")
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("calling embeddings API: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embeddings response missing embedding")
	}
	return resp.Data[0].Embedding, nil
}
