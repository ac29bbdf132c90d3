package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/catalog"
	"github.com/nulzo/model-control-plane/internal/proxy"
	"github.com/nulzo/model-control-plane/internal/store"
	"github.com/nulzo/model-control-plane/internal/store/model"
	"github.com/nulzo/model-control-plane/pkg/api"
)

// Provisioner is the narrow gateway contract against the routing proxy.
type Provisioner interface {
	RegisterModel(ctx context.Context, params proxy.RegisterModelParams) error
	DeregisterModel(ctx context.Context, modelName string) error
}

type ModelService struct {
	repo        store.Repository
	catalog     *catalog.Catalog
	credentials *CredentialService
	provisioner Provisioner
	logger      *zap.Logger
}

func NewModelService(repo store.Repository, cat *catalog.Catalog, credentials *CredentialService, provisioner Provisioner, logger *zap.Logger) *ModelService {
	return &ModelService{
		repo:        repo,
		catalog:     cat,
		credentials: credentials,
		provisioner: provisioner,
		logger:      logger,
	}
}

// Add runs the model registration workflow: validate, resolve the credential
// and its compatibility, provision at the routing proxy for routed
// providers, then persist. Provisioning failure aborts before any local
// write, so no half-registered model is ever visible.
func (s *ModelService) Add(ctx context.Context, orgID, teamID string, req api.AddModelRequest) (*model.Model, error) {
	if err := validateModelFields(req.Name, req.Model, req.CredentialID); err != nil {
		return nil, err
	}

	var credential *model.Credential
	if req.CredentialID != "" {
		var err error
		credential, err = s.credentials.ResolveCompatible(ctx, teamID, req.CredentialID, req.Model)
		if err != nil {
			return nil, err
		}
	}

	system := model.CredentialFastEmbed
	if credential != nil {
		system = credential.Type
	}

	composite := compositeName(teamID, req.Name)

	if isRouted(system) {
		if err := s.provision(ctx, teamID, composite, req.Model, system, credential, req.LitellmParams); err != nil {
			return nil, err
		}
	}

	credentialID := req.CredentialID
	ownsCredential := false
	if credential == nil && system == model.CredentialFastEmbed {
		// Embedding-only providers need no auth material, but the model still
		// wants a credential reference. Synthesize a throwaway one and mark
		// the ownership explicitly so deletion can clean it up.
		dummy := &model.Credential{
			ID:          model.NewID(),
			OrgID:       orgID,
			TeamID:      teamID,
			Name:        req.Name + " (auto)",
			Type:        model.CredentialFastEmbed,
			Key:         model.PlaceholderKey,
			CreatedDate: time.Now().UTC(),
		}
		if err := s.repo.Credentials().Create(ctx, dummy); err != nil {
			return nil, api.InternalError("Failed to create placeholder credential", err)
		}
		credentialID = dummy.ID
		ownsCredential = true
	}

	m := &model.Model{
		ID:              model.NewID(),
		OrgID:           orgID,
		TeamID:          teamID,
		Name:            req.Name,
		Model:           composite,
		ProviderModelID: req.Model,
		Type:            s.catalog.DeriveType(req.Model),
		System:          system,
		EmbeddingLength: s.catalog.EmbeddingLength(req.Model),
		CredentialID:    credentialID,
		OwnsCredential:  ownsCredential,
		CreatedDate:     time.Now().UTC(),
	}

	if err := s.repo.Models().Create(ctx, m); err != nil {
		return nil, api.InternalError("Failed to store model", err)
	}

	s.logger.Info("Model registered",
		zap.String("team_id", teamID),
		zap.String("model", m.Model),
		zap.String("system", string(m.System)),
		zap.Int("embedding_length", m.EmbeddingLength),
	)

	return m, nil
}

// Edit mirrors Add. The composite name is deterministic, so re-provisioning
// under an unchanged name is a remote upsert; a rename deregisters the old
// entry best-effort to avoid orphaning it.
func (s *ModelService) Edit(ctx context.Context, teamID, id string, req api.EditModelRequest) error {
	if !model.IsValidID(id) {
		return api.ValidationError(map[string]string{"modelId": "Invalid model id"})
	}
	if err := validateModelFields(req.Name, req.Model, req.CredentialID); err != nil {
		return err
	}

	existing, err := s.repo.Models().Get(ctx, teamID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.NotFoundError("Model not found")
		}
		return api.InternalError("Failed to load model", err)
	}

	// An omitted credential keeps an existing user binding rather than
	// silently downgrading the model to the direct-embedding path. The
	// synthesized placeholder is not a user binding: it is carried or
	// replaced below, and never put through the compatibility gate.
	credentialID := req.CredentialID
	if credentialID == "" && !existing.OwnsCredential {
		credentialID = existing.CredentialID
	}

	var credential *model.Credential
	if credentialID != "" {
		credential, err = s.credentials.ResolveCompatible(ctx, teamID, credentialID, req.Model)
		if err != nil {
			return err
		}
	}

	system := model.CredentialFastEmbed
	if credential != nil {
		system = credential.Type
	}

	composite := compositeName(teamID, req.Name)

	if isRouted(system) {
		if err := s.provision(ctx, teamID, composite, req.Model, system, credential, req.LitellmParams); err != nil {
			return err
		}
	}

	if isRouted(existing.System) && existing.Model != composite {
		// the old composite key is now unreachable; drop it at the proxy
		if err := s.provisioner.DeregisterModel(ctx, existing.Model); err != nil {
			s.logger.Warn("Failed to deregister renamed model",
				zap.String("model", existing.Model),
				zap.Error(err),
			)
		}
	}

	ownsCredential := existing.OwnsCredential && credentialID == existing.CredentialID
	if credentialID == "" {
		// Direct-embedding path with no user credential: keep the model's
		// placeholder if it already has one, otherwise synthesize it.
		if existing.OwnsCredential && existing.CredentialID != "" {
			credentialID = existing.CredentialID
		} else {
			dummy := &model.Credential{
				ID:          model.NewID(),
				OrgID:       existing.OrgID,
				TeamID:      teamID,
				Name:        req.Name + " (auto)",
				Type:        model.CredentialFastEmbed,
				Key:         model.PlaceholderKey,
				CreatedDate: time.Now().UTC(),
			}
			if err := s.repo.Credentials().Create(ctx, dummy); err != nil {
				return api.InternalError("Failed to create placeholder credential", err)
			}
			credentialID = dummy.ID
		}
		ownsCredential = true
	}

	if existing.OwnsCredential && existing.CredentialID != "" && credentialID != existing.CredentialID {
		// rebinding off the placeholder orphans it; drop it alongside
		if err := s.repo.Credentials().Delete(ctx, teamID, existing.CredentialID); err != nil {
			s.logger.Warn("Failed to delete replaced placeholder credential",
				zap.String("credential_id", existing.CredentialID),
				zap.Error(err),
			)
		}
	}

	update := model.ModelUpdate{
		Name:            req.Name,
		Model:           composite,
		ProviderModelID: req.Model,
		Type:            s.catalog.DeriveType(req.Model),
		System:          system,
		EmbeddingLength: s.catalog.EmbeddingLength(req.Model),
		CredentialID:    credentialID,
		OwnsCredential:  ownsCredential,
	}

	if err := s.repo.Models().Update(ctx, teamID, id, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.NotFoundError("Model not found")
		}
		return api.InternalError("Failed to update model", err)
	}
	return nil
}

func (s *ModelService) Get(ctx context.Context, teamID, id string) (*model.Model, error) {
	if !model.IsValidID(id) {
		return nil, api.ValidationError(map[string]string{"modelId": "Invalid model id"})
	}
	m, err := s.repo.Models().Get(ctx, teamID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, api.NotFoundError("Model not found")
		}
		return nil, api.InternalError("Failed to load model", err)
	}
	return m, nil
}

func (s *ModelService) ListByTeam(ctx context.Context, teamID string) ([]model.Model, error) {
	models, err := s.repo.Models().ListByTeam(ctx, teamID)
	if err != nil {
		return nil, api.InternalError("Failed to list models", err)
	}
	return models, nil
}

// DeleteStepResult records the outcome of one cleanup step in the delete
// saga.
type DeleteStepResult struct {
	Step  string `json:"step"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DeleteReport aggregates the fan-out outcomes of a model deletion. Cleanup
// failures are reported, not hidden: none of them is reversible from the
// caller's perspective once the record is gone.
type DeleteReport struct {
	ModelID string             `json:"modelId"`
	Steps   []DeleteStepResult `json:"steps"`
}

func (r *DeleteReport) record(step string, err error) {
	result := DeleteStepResult{Step: step, OK: err == nil}
	if err != nil {
		result.Error = err.Error()
	}
	r.Steps = append(r.Steps, result)
}

// Delete removes a model and fans out the cleanup: referencing agents drop
// the reference, routed registrations are removed at the proxy, and an owned
// placeholder credential is deleted alongside. Only a failure to delete the
// model record itself fails the call; the other steps are best-effort and
// land in the report.
func (s *ModelService) Delete(ctx context.Context, teamID, id string) (*DeleteReport, error) {
	if !model.IsValidID(id) {
		return nil, api.ValidationError(map[string]string{"modelId": "Invalid model id"})
	}

	m, err := s.repo.Models().Get(ctx, teamID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, api.NotFoundError("Model not found")
		}
		return nil, api.InternalError("Failed to load model", err)
	}

	report := &DeleteReport{ModelID: id}

	report.record("notify_agents", s.repo.Agents().RemoveModelReference(ctx, teamID, id))

	if isRouted(m.System) {
		report.record("deregister_remote", s.provisioner.DeregisterModel(ctx, m.Model))
	}

	if err := s.repo.Models().Delete(ctx, teamID, id); err != nil {
		report.record("delete_model", err)
		return report, api.InternalError("Failed to delete model", err)
	}
	report.record("delete_model", nil)

	if m.OwnsCredential && m.CredentialID != "" {
		report.record("delete_owned_credential", s.repo.Credentials().Delete(ctx, teamID, m.CredentialID))
	}

	for _, step := range report.Steps {
		if !step.OK {
			s.logger.Warn("Model delete cleanup step failed",
				zap.String("model_id", id),
				zap.String("step", step.Step),
				zap.String("error", step.Error),
			)
		}
	}

	return report, nil
}

// provision resolves secret references and registers the model at the proxy.
func (s *ModelService) provision(ctx context.Context, teamID, composite, providerModelID string, system model.CredentialType, credential *model.Credential, params map[string]string) error {
	extra, err := resolveSecretRefs(ctx, s.repo.Secrets(), teamID, params)
	if err != nil {
		return err
	}

	registration := proxy.RegisterModelParams{
		ModelName: composite,
		Model:     fmt.Sprintf("%s/%s", system, providerModelID),
		Extra:     extra,
	}
	if credential != nil {
		registration.APIKey = credential.Key
		registration.APIBase = credential.APIBase
	}

	if err := s.provisioner.RegisterModel(ctx, registration); err != nil {
		return api.RemoteProvisioningError("Routing proxy rejected the model registration", err)
	}
	return nil
}

// compositeName builds the deterministic registration key shared by the
// local record and the proxy.
func compositeName(teamID, name string) string {
	return teamID + "/" + name
}

// isRouted reports whether the provider is reached through the routing
// proxy. FastEmbed is the direct-embedding path and never leaves the
// cluster.
func isRouted(system model.CredentialType) bool {
	return system != model.CredentialFastEmbed
}

func validateModelFields(name, providerModelID, credentialID string) error {
	fieldErrors := map[string]string{}
	if strings.TrimSpace(name) == "" {
		fieldErrors["name"] = "Name is required"
	}
	if strings.TrimSpace(providerModelID) == "" {
		fieldErrors["model"] = "Model is required"
	}
	if credentialID != "" && !model.IsValidID(credentialID) {
		fieldErrors["credentialId"] = "Invalid credential id"
	}
	if len(fieldErrors) > 0 {
		return api.ValidationError(fieldErrors)
	}
	return nil
}
