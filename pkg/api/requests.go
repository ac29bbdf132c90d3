package api

// AddModelRequest registers a logical model for a team. Type and embedding
// length are always derived server-side from the catalog; there are
// deliberately no fields for them here.
type AddModelRequest struct {
	// Display name, also the local half of the composite routing key.
	Name string `json:"name" binding:"required"`

	// Provider-side model identifier (e.g. "text-embedding-3-small", "llama2").
	Model string `json:"model" binding:"required"`

	// Optional reference to a team credential, 24-char hex.
	CredentialID string `json:"credentialId,omitempty" binding:"omitempty,len=24,hexadecimal"`

	// Extra provider parameters forwarded to the routing proxy. Values of the
	// form "secret:<id>" are resolved from the team's secret store at
	// provisioning time.
	LitellmParams map[string]string `json:"litellm_params,omitempty"`
}

type EditModelRequest struct {
	Name          string            `json:"name" binding:"required"`
	Model         string            `json:"model" binding:"required"`
	CredentialID  string            `json:"credentialId,omitempty" binding:"omitempty,len=24,hexadecimal"`
	LitellmParams map[string]string `json:"litellm_params,omitempty"`
}

type AddCredentialRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=open_ai oauth fastembed hugging_face ollama"`

	// Auth material. Key defaults to a placeholder for providers that need
	// none (e.g. self-hosted ollama).
	Key     string `json:"key,omitempty"`
	APIBase string `json:"api_base,omitempty"`
}

type AddSecretRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
	Label string `json:"label,omitempty"`
}

// EditSecretRequest applies partial semantics: key and label overwrite when
// non-empty; an empty value means "keep the stored value".
type EditSecretRequest struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	Label string `json:"label,omitempty"`
}

// MutationResponse mirrors the original form-flow contract: the created id
// plus where the caller should navigate next.
type MutationResponse struct {
	ID       string `json:"_id,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}
