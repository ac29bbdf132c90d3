// Package catalog holds the static provider and model lookup tables. The
// tables ship as an embedded YAML data file, are loaded once at process
// start, and are never mutated at runtime.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nulzo/model-control-plane/internal/store/model"
)

//go:embed data/catalog.yaml
var embedded []byte

// Capability describes what a catalog model can do.
type Capability string

const (
	CapabilityEmbedding Capability = "embedding"
	CapabilityLLM       Capability = "llm"
)

// Entry is one allowed model under a provider.
type Entry struct {
	ID           string       `yaml:"id"`
	Capabilities []Capability `yaml:"capabilities"`
}

type catalogFile struct {
	Providers        map[string][]Entry `yaml:"providers"`
	EmbeddingLengths map[string]int     `yaml:"embedding_lengths"`
}

// Catalog is the read-only lookup table set.
type Catalog struct {
	providers        map[string][]Entry
	embeddingLengths map[string]int
}

// Load parses the embedded catalog data.
func Load() (*Catalog, error) {
	return parse(embedded)
}

// LoadFile parses a catalog from an external file, for deployments that
// extend the shipped tables.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Providers) == 0 {
		return nil, fmt.Errorf("catalog has no providers")
	}
	return &Catalog{
		providers:        f.Providers,
		embeddingLengths: f.EmbeddingLengths,
	}, nil
}

// ModelsFor returns the enumerated models for a provider. The second return
// is false when the provider has no catalog entry at all.
func (c *Catalog) ModelsFor(provider model.CredentialType) ([]Entry, bool) {
	entries, ok := c.providers[string(provider)]
	return entries, ok
}

// Supports reports whether the provider may serve modelID. Providers without
// an enumerated catalog are treated as compatible: blocking providers the
// catalog hasn't caught up with is worse than the weaker validation.
func (c *Catalog) Supports(provider model.CredentialType, modelID string) bool {
	entries, ok := c.providers[string(provider)]
	if !ok {
		return true
	}
	for _, e := range entries {
		if e.ID == modelID {
			return true
		}
	}
	return false
}

// EmbeddingLength returns the vector length for modelID, 0 when the model is
// not a known embedding model.
func (c *Catalog) EmbeddingLength(modelID string) int {
	return c.embeddingLengths[modelID]
}

// DeriveType returns embedding iff the catalog knows an embedding length for
// modelID, llm otherwise. Clients never choose this.
func (c *Catalog) DeriveType(modelID string) model.ModelType {
	if c.embeddingLengths[modelID] > 0 {
		return model.ModelTypeEmbedding
	}
	return model.ModelTypeLLM
}
