package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/model-control-plane/internal/store/model"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	entries, ok := c.ModelsFor(model.CredentialOpenAI)
	assert.True(t, ok)
	assert.NotEmpty(t, entries)
}

func TestEmbeddingLength(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1536, c.EmbeddingLength("text-embedding-3-small"))
	assert.Equal(t, 3072, c.EmbeddingLength("text-embedding-3-large"))
	assert.Equal(t, 384, c.EmbeddingLength("fast-bge-small-en-v1.5"))
	assert.Equal(t, 1024, c.EmbeddingLength("fast-multilingual-e5-large"))

	// unknown models have no embedding length
	assert.Equal(t, 0, c.EmbeddingLength("gpt-4"))
	assert.Equal(t, 0, c.EmbeddingLength("does-not-exist"))
}

func TestDeriveType(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, model.ModelTypeEmbedding, c.DeriveType("text-embedding-ada-002"))
	assert.Equal(t, model.ModelTypeLLM, c.DeriveType("gpt-3.5-turbo"))
	assert.Equal(t, model.ModelTypeLLM, c.DeriveType("totally-unknown"))
}

func TestSupports(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.True(t, c.Supports(model.CredentialOpenAI, "gpt-4"))
	assert.True(t, c.Supports(model.CredentialOllama, "llama2"))
	assert.False(t, c.Supports(model.CredentialOpenAI, "llama2"))

	// providers without an enumerated list fall back to permissive
	assert.True(t, c.Supports(model.CredentialOAuth, "anything-at-all"))
	assert.True(t, c.Supports(model.CredentialHuggingFace, "some-model"))
}

func TestParse_RejectsEmpty(t *testing.T) {
	_, err := parse([]byte("embedding_lengths: {}\n"))
	assert.Error(t, err)

	_, err = parse([]byte("not: [valid"))
	assert.Error(t, err)
}
