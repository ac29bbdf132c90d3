// Package service contains the validation and orchestration workflows that
// tie the secret store, credential registry, model registry and the
// provisioning gateway together.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/store"
	"github.com/nulzo/model-control-plane/internal/store/model"
	"github.com/nulzo/model-control-plane/pkg/api"
)

type SecretService struct {
	repo   store.Repository
	logger *zap.Logger
}

func NewSecretService(repo store.Repository, logger *zap.Logger) *SecretService {
	return &SecretService{repo: repo, logger: logger}
}

// Add stores a new secret. The value is accepted here and never serialized
// back out: list and get responses omit it.
func (s *SecretService) Add(ctx context.Context, orgID, teamID string, req api.AddSecretRequest) (*model.Secret, error) {
	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Key) == "" {
		fieldErrors["key"] = "Key is required"
	}
	if req.Value == "" {
		fieldErrors["value"] = "Value is required"
	}
	if len(fieldErrors) > 0 {
		return nil, api.ValidationError(fieldErrors)
	}

	secret := &model.Secret{
		ID:          model.NewID(),
		OrgID:       orgID,
		TeamID:      teamID,
		Key:         req.Key,
		Value:       req.Value,
		Label:       req.Label,
		CreatedDate: time.Now().UTC(),
	}

	if err := s.repo.Secrets().Create(ctx, secret); err != nil {
		return nil, api.InternalError("Failed to store secret", err)
	}

	// key only; the value never reaches the log stream
	s.logger.Info("Secret created",
		zap.String("team_id", teamID),
		zap.String("key", secret.Key),
	)

	return secret, nil
}

// Edit applies a partial update. An empty value keeps the stored value, so a
// label-only edit cannot erase a secret.
func (s *SecretService) Edit(ctx context.Context, teamID, id string, req api.EditSecretRequest) error {
	if !model.IsValidID(id) {
		return api.ValidationError(map[string]string{"secretId": "Invalid secret id"})
	}

	update := model.SecretUpdate{
		Key:   req.Key,
		Value: req.Value,
		Label: req.Label,
	}

	if err := s.repo.Secrets().Update(ctx, teamID, id, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.NotFoundError("Secret not found")
		}
		return api.InternalError("Failed to update secret", err)
	}
	return nil
}

func (s *SecretService) Get(ctx context.Context, teamID, id string) (*model.Secret, error) {
	if !model.IsValidID(id) {
		return nil, api.ValidationError(map[string]string{"secretId": "Invalid secret id"})
	}
	secret, err := s.repo.Secrets().Get(ctx, teamID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, api.NotFoundError("Secret not found")
		}
		return nil, api.InternalError("Failed to load secret", err)
	}
	return secret, nil
}

func (s *SecretService) ListByTeam(ctx context.Context, teamID string) ([]model.Secret, error) {
	secrets, err := s.repo.Secrets().ListByTeam(ctx, teamID)
	if err != nil {
		return nil, api.InternalError("Failed to list secrets", err)
	}
	return secrets, nil
}

func (s *SecretService) Delete(ctx context.Context, teamID, id string) error {
	if !model.IsValidID(id) {
		return api.ValidationError(map[string]string{"secretId": "Invalid secret id"})
	}
	if err := s.repo.Secrets().Delete(ctx, teamID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.NotFoundError("Secret not found")
		}
		return api.InternalError("Failed to delete secret", err)
	}
	return nil
}

// secretRefPrefix marks a litellm parameter value as a reference to a stored
// secret, resolved team-scoped at provisioning time.
const secretRefPrefix = "secret:"

// resolveSecretRefs substitutes secret references in provider parameters.
// Plaintext flows only toward the routing proxy, never back to the client.
func resolveSecretRefs(ctx context.Context, secrets store.SecretRepository, teamID string, params map[string]string) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}

	resolved := make(map[string]string, len(params))
	for k, v := range params {
		if !strings.HasPrefix(v, secretRefPrefix) {
			resolved[k] = v
			continue
		}

		id := strings.TrimPrefix(v, secretRefPrefix)
		if !model.IsValidID(id) {
			return nil, api.ValidationError(map[string]string{k: "Invalid secret reference"})
		}

		secret, err := secrets.Get(ctx, teamID, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, api.NotFoundError("Referenced secret not found")
			}
			return nil, api.InternalError("Failed to resolve secret reference", err)
		}
		resolved[k] = secret.Value
	}
	return resolved, nil
}
