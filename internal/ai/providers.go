package ai

import (
	"context"
	"fmt"
	"time"
)

// EmbeddingProvider binds the client to one embedding model and dimension.
// Every vector it hands out is checked against the configured dimension, so
// a provider/config mismatch surfaces at the call site instead of as
// garbage similarity scores later.
type EmbeddingProvider struct {
	client    *OpenAICompatibleClient
	cfg       EmbeddingConfig
	dimension int
	timeout   time.Duration
}

func NewEmbeddingProvider(client *OpenAICompatibleClient, cfg EmbeddingConfig, dimension int, timeout time.Duration) *EmbeddingProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingProvider{
		client:    client,
		cfg:       cfg,
		dimension: dimension,
		timeout:   timeout,
	}
}

func (p *EmbeddingProvider) Dimension() int {
	return p.dimension
}

func (p *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vecs, err := p.client.EmbedBatch(callCtx, p.cfg, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		if len(v) != p.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), p.dimension)
		}
	}
	return vecs, nil
}

func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerationProvider binds the client to one chat model.
type GenerationProvider struct {
	client  *OpenAICompatibleClient
	cfg     ChatConfig
	timeout time.Duration
}

func NewGenerationProvider(client *OpenAICompatibleClient, cfg ChatConfig, timeout time.Duration) *GenerationProvider {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &GenerationProvider{
		client:  client,
		cfg:     cfg,
		timeout: timeout,
	}
}

func (p *GenerationProvider) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Complete(callCtx, p.cfg, messages)
}
