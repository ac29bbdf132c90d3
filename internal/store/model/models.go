package model

import (
	"time"
)

// CredentialType enumerates the supported provider backends.
type CredentialType string

const (
	CredentialOpenAI      CredentialType = "open_ai"
	CredentialOAuth       CredentialType = "oauth"
	CredentialFastEmbed   CredentialType = "fastembed"
	CredentialHuggingFace CredentialType = "hugging_face"
	CredentialOllama      CredentialType = "ollama"
)

// CredentialTypes lists every valid credential type.
var CredentialTypes = []CredentialType{
	CredentialOpenAI,
	CredentialOAuth,
	CredentialFastEmbed,
	CredentialHuggingFace,
	CredentialOllama,
}

// IsValidCredentialType reports whether t is one of the enumerated provider types.
func IsValidCredentialType(t string) bool {
	for _, ct := range CredentialTypes {
		if string(ct) == t {
			return true
		}
	}
	return false
}

// PlaceholderKey is stored when a provider requires no real auth material
// (e.g. self-hosted ollama). The routing proxy still wants a key present.
const PlaceholderKey = "sk-CHANGEME"

// ModelType is derived from the catalog, never chosen by the client.
type ModelType string

const (
	ModelTypeEmbedding ModelType = "embedding"
	ModelTypeLLM       ModelType = "llm"
)

// Secret is a reusable name/value pair owned by a team. Value is write-once
// at the API boundary: it is never serialized back out through listing or
// get endpoints.
type Secret struct {
	ID          string    `db:"id" json:"_id"`
	OrgID       string    `db:"org_id" json:"orgId"`
	TeamID      string    `db:"team_id" json:"teamId"`
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"-"` // never echoed
	Label       string    `db:"label" json:"label"`
	CreatedDate time.Time `db:"created_date" json:"createdDate"`
}

// SecretUpdate carries partial-update fields for a secret. Key and Label
// overwrite when non-empty; Value only overwrites when non-empty, so a
// label-only edit cannot erase the stored value.
type SecretUpdate struct {
	Key   string
	Value string
	Label string
}

// Credential is a provider credential scoped to a team. Immutable after
// creation: the workflow defines only create and delete.
type Credential struct {
	ID          string         `db:"id" json:"_id"`
	OrgID       string         `db:"org_id" json:"orgId"`
	TeamID      string         `db:"team_id" json:"teamId"`
	Name        string         `db:"name" json:"name"`
	Type        CredentialType `db:"type" json:"type"`
	Key         string         `db:"key" json:"-"` // auth material, never echoed
	APIBase     string         `db:"api_base" json:"api_base,omitempty"`
	EndpointURL string         `db:"endpoint_url" json:"endpointURL,omitempty"`
	CreatedDate time.Time      `db:"created_date" json:"createdDate"`
}

// Model is a logical model registration. Type and EmbeddingLength are
// recomputed server-side from the catalog on every create and update.
type Model struct {
	ID     string `db:"id" json:"_id"`
	OrgID  string `db:"org_id" json:"orgId"`
	TeamID string `db:"team_id" json:"teamId"`
	Name   string `db:"name" json:"name"`

	// Resolved fully-qualified identifier, `{team}/{name}`. Doubles as the
	// deterministic registration key at the routing proxy.
	Model string `db:"model" json:"model"`

	// Provider-side model identifier, e.g. "text-embedding-3-small".
	ProviderModelID string `db:"provider_model_id" json:"providerModelId"`

	Type            ModelType      `db:"type" json:"type"`
	System          CredentialType `db:"system" json:"system"`
	EmbeddingLength int            `db:"embedding_length" json:"embeddingLength"`

	// Weak reference: the model does not own the credential's lifecycle
	// unless OwnsCredential is set.
	CredentialID string `db:"credential_id" json:"credentialId,omitempty"`

	// Set when the workflow synthesized a throwaway credential solely to
	// satisfy the reference; that credential is deleted with the model.
	OwnsCredential bool `db:"owns_credential" json:"ownsCredential"`

	CreatedDate time.Time `db:"created_date" json:"createdDate"`
}

// ModelUpdate carries the recomputed fields applied on edit. OwnsCredential
// is part of the update because an edit can move the model off a synthesized
// placeholder onto a shared credential, and the stale flag would otherwise
// cascade-delete that shared credential later.
type ModelUpdate struct {
	Name            string
	Model           string
	ProviderModelID string
	Type            ModelType
	System          CredentialType
	EmbeddingLength int
	CredentialID    string
	OwnsCredential  bool
}

// Agent is an external collaborator that may weakly reference a model.
// Only the reference-clearing contract is in scope here.
type Agent struct {
	ID      string `db:"id" json:"_id"`
	TeamID  string `db:"team_id" json:"teamId"`
	Name    string `db:"name" json:"name"`
	ModelID string `db:"model_id" json:"modelId,omitempty"`
}
