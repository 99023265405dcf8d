package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadChunking(t *testing.T) {
	cfg := defaultConfig()
	cfg.Chunking.Overlap = cfg.Chunking.Size
	assert.Error(t, cfg.Validate(), "overlap == size must be rejected, not clamped")

	cfg = defaultConfig()
	cfg.Chunking.Size = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Chunking.Overlap = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadDimensionAndTopK(t *testing.T) {
	cfg := defaultConfig()
	cfg.LLM.EmbeddingDimension = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Retrieval.TopK = 0
	assert.Error(t, cfg.Validate())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "256")
	t.Setenv("RETRIEVAL_TOP_K", "7")
	cfg := defaultConfig()
	overrideByEnv(cfg)
	assert.Equal(t, 256, cfg.Chunking.Size)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
}
