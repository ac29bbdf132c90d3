package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/catalog"
	"github.com/nulzo/model-control-plane/internal/store"
	"github.com/nulzo/model-control-plane/internal/store/cache"
	"github.com/nulzo/model-control-plane/internal/store/model"
	"github.com/nulzo/model-control-plane/pkg/api"
)

// compatTTL bounds the memoized compatibility decisions. The catalog is
// static for the process lifetime, the TTL just keeps redis tidy.
const compatTTL = time.Hour

type CredentialService struct {
	repo    store.Repository
	catalog *catalog.Catalog
	cache   cache.CacheService
	logger  *zap.Logger
}

func NewCredentialService(repo store.Repository, cat *catalog.Catalog, c cache.CacheService, logger *zap.Logger) *CredentialService {
	return &CredentialService{repo: repo, catalog: cat, cache: c, logger: logger}
}

// Add creates a credential. Credentials are immutable afterwards: the
// workflow defines only create and delete.
func (s *CredentialService) Add(ctx context.Context, orgID, teamID string, req api.AddCredentialRequest) (*model.Credential, error) {
	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fieldErrors["name"] = "Name is required"
	}
	if !model.IsValidCredentialType(req.Type) {
		fieldErrors["type"] = "Type must be a supported provider"
	}
	if len(fieldErrors) > 0 {
		return nil, api.ValidationError(fieldErrors)
	}

	key := req.Key
	if key == "" {
		// self-hosted providers carry no real key; the proxy still wants one
		key = model.PlaceholderKey
	}

	credential := &model.Credential{
		ID:          model.NewID(),
		OrgID:       orgID,
		TeamID:      teamID,
		Name:        req.Name,
		Type:        model.CredentialType(req.Type),
		Key:         key,
		APIBase:     req.APIBase,
		EndpointURL: req.APIBase,
		CreatedDate: time.Now().UTC(),
	}

	if err := s.repo.Credentials().Create(ctx, credential); err != nil {
		return nil, api.InternalError("Failed to store credential", err)
	}

	s.logger.Info("Credential created",
		zap.String("team_id", teamID),
		zap.String("type", string(credential.Type)),
	)

	return credential, nil
}

func (s *CredentialService) Get(ctx context.Context, teamID, id string) (*model.Credential, error) {
	if !model.IsValidID(id) {
		return nil, api.ValidationError(map[string]string{"credentialId": "Invalid credential id"})
	}
	credential, err := s.repo.Credentials().Get(ctx, teamID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, api.NotFoundError("Credential not found")
		}
		return nil, api.InternalError("Failed to load credential", err)
	}
	return credential, nil
}

func (s *CredentialService) ListByTeam(ctx context.Context, teamID string) ([]model.Credential, error) {
	credentials, err := s.repo.Credentials().ListByTeam(ctx, teamID)
	if err != nil {
		return nil, api.InternalError("Failed to list credentials", err)
	}
	return credentials, nil
}

func (s *CredentialService) Delete(ctx context.Context, teamID, id string) error {
	if !model.IsValidID(id) {
		return api.ValidationError(map[string]string{"credentialId": "Invalid credential id"})
	}
	if err := s.repo.Credentials().Delete(ctx, teamID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.NotFoundError("Credential not found")
		}
		return api.InternalError("Failed to delete credential", err)
	}
	return nil
}

// ResolveCompatible loads the credential within the team and verifies its
// provider may serve modelID against the catalog. Providers without a
// catalog entry pass (permissive fallback). The decision is memoized under a
// canonical string key, never under a mutable structure.
func (s *CredentialService) ResolveCompatible(ctx context.Context, teamID, credentialID, modelID string) (*model.Credential, error) {
	credential, err := s.Get(ctx, teamID, credentialID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("compat:%s:%s", credential.Type, modelID)

	var compatible bool
	if err := s.cache.Get(ctx, cacheKey, &compatible); err != nil {
		compatible = s.catalog.Supports(credential.Type, modelID)
		if err := s.cache.Set(ctx, cacheKey, compatible, compatTTL); err != nil {
			s.logger.Warn("Failed to cache compatibility decision", zap.Error(err))
		}
	}

	if !compatible {
		return nil, api.IncompatibleCredentialError(
			fmt.Sprintf("Provider %q does not support model %q", credential.Type, modelID))
	}

	return credential, nil
}
