package store

import (
	"context"
	"errors"

	"github.com/nulzo/model-control-plane/internal/store/model"
)

// ErrNotFound is returned when a record does not exist within the caller's
// team. Cross-team lookups return the same error so record existence never
// leaks across tenants.
var ErrNotFound = errors.New("record not found")

// Repository is the main contract for the data layer.
type Repository interface {
	Secrets() SecretRepository
	Credentials() CredentialRepository
	Models() ModelRepository
	Agents() AgentRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type SecretRepository interface {
	// Create persists a new secret. The id must be assigned by the caller.
	Create(ctx context.Context, secret *model.Secret) error
	// Get returns a secret by id within a team, ErrNotFound otherwise.
	Get(ctx context.Context, teamID, id string) (*model.Secret, error)
	// ListByTeam returns all secrets for a team.
	ListByTeam(ctx context.Context, teamID string) ([]model.Secret, error)
	// Update applies partial semantics: key/label overwrite when non-empty,
	// value only when a non-empty replacement is supplied.
	Update(ctx context.Context, teamID, id string, update model.SecretUpdate) error
	// Delete removes a secret within a team.
	Delete(ctx context.Context, teamID, id string) error
}

type CredentialRepository interface {
	Create(ctx context.Context, credential *model.Credential) error
	Get(ctx context.Context, teamID, id string) (*model.Credential, error)
	ListByTeam(ctx context.Context, teamID string) ([]model.Credential, error)
	Delete(ctx context.Context, teamID, id string) error
}

type ModelRepository interface {
	Create(ctx context.Context, m *model.Model) error
	Get(ctx context.Context, teamID, id string) (*model.Model, error)
	ListByTeam(ctx context.Context, teamID string) ([]model.Model, error)
	Update(ctx context.Context, teamID, id string, update model.ModelUpdate) error
	Delete(ctx context.Context, teamID, id string) error
}

type AgentRepository interface {
	// RemoveModelReference clears the model reference on every agent in the
	// team that points at modelID. Called before the model itself is deleted.
	RemoveModelReference(ctx context.Context, teamID, modelID string) error
	// ListByTeam returns all agents for a team.
	ListByTeam(ctx context.Context, teamID string) ([]model.Agent, error)
	// Create persists an agent. Agents are managed elsewhere; this exists
	// for seeding and tests of the reference-clearing contract.
	Create(ctx context.Context, agent *model.Agent) error
}
