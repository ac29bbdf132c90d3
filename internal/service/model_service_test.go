package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/catalog"
	"github.com/nulzo/model-control-plane/internal/proxy"
	"github.com/nulzo/model-control-plane/internal/store"
	"github.com/nulzo/model-control-plane/internal/store/cache"
	"github.com/nulzo/model-control-plane/internal/store/model"
	"github.com/nulzo/model-control-plane/internal/store/sqlite"
	"github.com/nulzo/model-control-plane/pkg/api"
)

type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) RegisterModel(ctx context.Context, params proxy.RegisterModelParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockProvisioner) DeregisterModel(ctx context.Context, modelName string) error {
	args := m.Called(ctx, modelName)
	return args.Error(0)
}

type fixture struct {
	repo        store.Repository
	provisioner *MockProvisioner
	secrets     *SecretService
	credentials *CredentialService
	models      *ModelService
	orgID       string
	teamID      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := sqlite.NewSQLiteStorage(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cat, err := catalog.Load()
	require.NoError(t, err)

	logger := zap.NewNop()
	provisioner := new(MockProvisioner)
	credentials := NewCredentialService(repo, cat, cache.NewNoop(), logger)

	return &fixture{
		repo:        repo,
		provisioner: provisioner,
		secrets:     NewSecretService(repo, logger),
		credentials: credentials,
		models:      NewModelService(repo, cat, credentials, provisioner, logger),
		orgID:       model.NewID(),
		teamID:      model.NewID(),
	}
}

func (f *fixture) addCredential(t *testing.T, credType model.CredentialType, key, apiBase string) *model.Credential {
	t.Helper()
	credential, err := f.credentials.Add(context.Background(), f.orgID, f.teamID, api.AddCredentialRequest{
		Name:    "cred " + string(credType),
		Type:    string(credType),
		Key:     key,
		APIBase: apiBase,
	})
	require.NoError(t, err)
	return credential
}

func TestAddModel_DirectEmbedding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:  "emb1",
		Model: "text-embedding-3-small",
	})
	require.NoError(t, err)

	assert.Equal(t, 1536, m.EmbeddingLength)
	assert.Equal(t, model.ModelTypeEmbedding, m.Type)
	assert.Equal(t, model.CredentialFastEmbed, m.System)
	assert.Equal(t, f.teamID+"/emb1", m.Model)

	// a placeholder credential was synthesized and ownership flagged
	assert.True(t, m.OwnsCredential)
	require.NotEmpty(t, m.CredentialID)
	credential, err := f.repo.Credentials().Get(ctx, f.teamID, m.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, model.CredentialFastEmbed, credential.Type)
	assert.Equal(t, model.PlaceholderKey, credential.Key)

	// the direct-embedding path never touches the routing proxy
	f.provisioner.AssertNotCalled(t, "RegisterModel", mock.Anything, mock.Anything)
}

func TestAddModel_UnknownModelHasNoEmbeddingLength(t *testing.T) {
	f := newFixture(t)

	credential := f.addCredential(t, model.CredentialOllama, "", "http://localhost:11434")
	f.provisioner.On("RegisterModel", mock.Anything, mock.Anything).Return(nil)

	m, err := f.models.Add(context.Background(), f.orgID, f.teamID, api.AddModelRequest{
		Name:         "chat",
		Model:        "llama2",
		CredentialID: credential.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, m.EmbeddingLength)
	assert.Equal(t, model.ModelTypeLLM, m.Type)
	assert.False(t, m.OwnsCredential)
}

func TestAddModel_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.models.Add(context.Background(), f.orgID, f.teamID, api.AddModelRequest{
		Name:  "",
		Model: "",
	})
	require.Error(t, err)

	problem, ok := err.(*api.Problem)
	require.True(t, ok)
	assert.Equal(t, 400, problem.Status)
	fieldErrors := problem.Extensions["errors"].(map[string]string)
	assert.Contains(t, fieldErrors, "name")
	assert.Contains(t, fieldErrors, "model")

	models, err := f.models.ListByTeam(context.Background(), f.teamID)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestAddModel_CrossTeamCredentialFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// credential belongs to another team
	otherTeam := model.NewID()
	otherCredential, err := f.credentials.Add(ctx, f.orgID, otherTeam, api.AddCredentialRequest{
		Name: "theirs", Type: "open_ai", Key: "sk-other",
	})
	require.NoError(t, err)

	_, err = f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "emb1",
		Model:        "text-embedding-3-small",
		CredentialID: otherCredential.ID,
	})
	require.Error(t, err)

	problem := err.(*api.Problem)
	assert.Equal(t, 404, problem.Status)

	// nothing was persisted
	models, err := f.models.ListByTeam(ctx, f.teamID)
	require.NoError(t, err)
	assert.Empty(t, models)
	f.provisioner.AssertNotCalled(t, "RegisterModel", mock.Anything, mock.Anything)
}

func TestAddModel_IncompatibleCredentialFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credential := f.addCredential(t, model.CredentialOpenAI, "sk-live", "")

	_, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "chat",
		Model:        "llama2", // not in the open_ai catalog
		CredentialID: credential.ID,
	})
	require.Error(t, err)

	problem := err.(*api.Problem)
	assert.Equal(t, 400, problem.Status)
	assert.Equal(t, "Incompatible Credential", problem.Title)

	models, err := f.models.ListByTeam(ctx, f.teamID)
	require.NoError(t, err)
	assert.Empty(t, models)
	f.provisioner.AssertNotCalled(t, "RegisterModel", mock.Anything, mock.Anything)
}

func TestAddModel_OllamaForwardsAPIBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credential := f.addCredential(t, model.CredentialOllama, "", "http://localhost:11434")

	f.provisioner.On("RegisterModel", mock.Anything, mock.MatchedBy(func(p proxy.RegisterModelParams) bool {
		return p.Model == "ollama/llama2" &&
			p.APIBase == "http://localhost:11434" &&
			p.ModelName == f.teamID+"/local-llama"
	})).Return(nil)

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "local-llama",
		Model:        "llama2",
		CredentialID: credential.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CredentialOllama, m.System)

	f.provisioner.AssertExpectations(t)
}

func TestAddModel_ProvisioningFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credential := f.addCredential(t, model.CredentialOllama, "", "http://localhost:11434")
	f.provisioner.On("RegisterModel", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "local-llama",
		Model:        "llama2",
		CredentialID: credential.ID,
	})
	require.Error(t, err)

	problem := err.(*api.Problem)
	assert.Equal(t, 502, problem.Status)

	// remote failure means no local write either
	models, err := f.models.ListByTeam(ctx, f.teamID)
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestAddModel_ResolvesSecretRefs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	secret, err := f.secrets.Add(ctx, f.orgID, f.teamID, api.AddSecretRequest{
		Key: "OPENAI_KEY", Value: "sk-plaintext", Label: "prod",
	})
	require.NoError(t, err)

	credential := f.addCredential(t, model.CredentialOpenAI, "sk-live", "")

	f.provisioner.On("RegisterModel", mock.Anything, mock.MatchedBy(func(p proxy.RegisterModelParams) bool {
		return p.Extra["organization_key"] == "sk-plaintext"
	})).Return(nil)

	_, err = f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "chat",
		Model:        "gpt-4",
		CredentialID: credential.ID,
		LitellmParams: map[string]string{
			"organization_key": "secret:" + secret.ID,
		},
	})
	require.NoError(t, err)
	f.provisioner.AssertExpectations(t)
}

func TestAddModel_UnknownSecretRefAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credential := f.addCredential(t, model.CredentialOpenAI, "sk-live", "")

	_, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "chat",
		Model:        "gpt-4",
		CredentialID: credential.ID,
		LitellmParams: map[string]string{
			"organization_key": "secret:" + model.NewID(),
		},
	})
	require.Error(t, err)
	problem := err.(*api.Problem)
	assert.Equal(t, 404, problem.Status)
	f.provisioner.AssertNotCalled(t, "RegisterModel", mock.Anything, mock.Anything)
}

func TestEditModel_RecomputesDerivedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:  "emb1",
		Model: "text-embedding-3-small",
	})
	require.NoError(t, err)

	err = f.models.Edit(ctx, f.teamID, m.ID, api.EditModelRequest{
		Name:  "emb1",
		Model: "text-embedding-3-large",
	})
	require.NoError(t, err)

	got, err := f.models.Get(ctx, f.teamID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 3072, got.EmbeddingLength)
	assert.Equal(t, model.ModelTypeEmbedding, got.Type)
}

func TestEditModel_DirectEmbeddingKeepsPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:  "emb1",
		Model: "text-embedding-3-small",
	})
	require.NoError(t, err)
	require.True(t, m.OwnsCredential)

	// the placeholder is not a user binding, so changing to a model outside
	// the fastembed catalog must not trip the compatibility gate
	err = f.models.Edit(ctx, f.teamID, m.ID, api.EditModelRequest{
		Name:  "emb1",
		Model: "text-embedding-3-large",
	})
	require.NoError(t, err)

	got, err := f.models.Get(ctx, f.teamID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 3072, got.EmbeddingLength)
	assert.True(t, got.OwnsCredential)
	assert.Equal(t, m.CredentialID, got.CredentialID)

	f.provisioner.AssertNotCalled(t, "RegisterModel", mock.Anything, mock.Anything)
}

func TestEditModel_RebindToSharedCredentialDropsPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:  "emb1",
		Model: "text-embedding-3-small",
	})
	require.NoError(t, err)
	require.True(t, m.OwnsCredential)

	shared := f.addCredential(t, model.CredentialOllama, "", "http://localhost:11434")
	f.provisioner.On("RegisterModel", mock.Anything, mock.Anything).Return(nil)

	err = f.models.Edit(ctx, f.teamID, m.ID, api.EditModelRequest{
		Name:         "emb1",
		Model:        "llama2",
		CredentialID: shared.ID,
	})
	require.NoError(t, err)

	got, err := f.models.Get(ctx, f.teamID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.ID, got.CredentialID)
	assert.False(t, got.OwnsCredential)
	assert.Equal(t, model.CredentialOllama, got.System)

	// the replaced placeholder is cleaned up, not orphaned
	_, err = f.repo.Credentials().Get(ctx, f.teamID, m.CredentialID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// deleting the rebound model must leave the shared credential intact
	f.provisioner.On("DeregisterModel", mock.Anything, mock.Anything).Return(nil)
	_, err = f.models.Delete(ctx, f.teamID, m.ID)
	require.NoError(t, err)

	_, err = f.repo.Credentials().Get(ctx, f.teamID, shared.ID)
	assert.NoError(t, err)
}

func TestEditModel_RenameDeregistersOldKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credential := f.addCredential(t, model.CredentialOllama, "", "http://localhost:11434")
	f.provisioner.On("RegisterModel", mock.Anything, mock.Anything).Return(nil)

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "old-name",
		Model:        "llama2",
		CredentialID: credential.ID,
	})
	require.NoError(t, err)

	f.provisioner.On("DeregisterModel", mock.Anything, f.teamID+"/old-name").Return(nil)

	err = f.models.Edit(ctx, f.teamID, m.ID, api.EditModelRequest{
		Name:  "new-name",
		Model: "llama2",
	})
	require.NoError(t, err)

	got, err := f.models.Get(ctx, f.teamID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, f.teamID+"/new-name", got.Model)
	// omitted credential keeps the existing binding
	assert.Equal(t, credential.ID, got.CredentialID)
	assert.Equal(t, model.CredentialOllama, got.System)

	f.provisioner.AssertExpectations(t)
}

func TestDeleteModel_OwnedCredentialCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:  "emb1",
		Model: "fast-bge-small-en",
	})
	require.NoError(t, err)
	require.True(t, m.OwnsCredential)

	report, err := f.models.Delete(ctx, f.teamID, m.ID)
	require.NoError(t, err)

	// the synthesized credential goes down with the model
	_, err = f.repo.Credentials().Get(ctx, f.teamID, m.CredentialID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	steps := map[string]bool{}
	for _, s := range report.Steps {
		steps[s.Step] = s.OK
	}
	assert.True(t, steps["notify_agents"])
	assert.True(t, steps["delete_model"])
	assert.True(t, steps["delete_owned_credential"])
	_, remoteCalled := steps["deregister_remote"]
	assert.False(t, remoteCalled, "direct-embedding models have no remote registration")
}

func TestDeleteModel_SharedCredentialIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credential := f.addCredential(t, model.CredentialOllama, "", "http://localhost:11434")
	f.provisioner.On("RegisterModel", mock.Anything, mock.Anything).Return(nil)
	f.provisioner.On("DeregisterModel", mock.Anything, mock.Anything).Return(nil)

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "chat",
		Model:        "llama2",
		CredentialID: credential.ID,
	})
	require.NoError(t, err)

	_, err = f.models.Delete(ctx, f.teamID, m.ID)
	require.NoError(t, err)

	// the shared credential survives
	_, err = f.repo.Credentials().Get(ctx, f.teamID, credential.ID)
	assert.NoError(t, err)

	f.provisioner.AssertCalled(t, "DeregisterModel", mock.Anything, f.teamID+"/chat")
}

func TestDeleteModel_ClearsAgentReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:  "emb1",
		Model: "fast-bge-base-en",
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.Agents().Create(ctx, &model.Agent{
		ID: model.NewID(), TeamID: f.teamID, Name: "researcher", ModelID: m.ID,
	}))

	_, err = f.models.Delete(ctx, f.teamID, m.ID)
	require.NoError(t, err)

	agents, err := f.repo.Agents().ListByTeam(ctx, f.teamID)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Empty(t, agents[0].ModelID)
}

func TestDeleteModel_RemoteFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	credential := f.addCredential(t, model.CredentialOllama, "", "http://localhost:11434")
	f.provisioner.On("RegisterModel", mock.Anything, mock.Anything).Return(nil)
	f.provisioner.On("DeregisterModel", mock.Anything, mock.Anything).Return(assert.AnError)

	m, err := f.models.Add(ctx, f.orgID, f.teamID, api.AddModelRequest{
		Name:         "chat",
		Model:        "llama2",
		CredentialID: credential.ID,
	})
	require.NoError(t, err)

	report, err := f.models.Delete(ctx, f.teamID, m.ID)
	require.NoError(t, err, "remote cleanup failure must not fail the delete")

	var remote *DeleteStepResult
	for i := range report.Steps {
		if report.Steps[i].Step == "deregister_remote" {
			remote = &report.Steps[i]
		}
	}
	require.NotNil(t, remote)
	assert.False(t, remote.OK)

	// the local record is gone regardless
	_, err = f.models.Get(ctx, f.teamID, m.ID)
	require.Error(t, err)
}

func TestDeleteModel_AbsentModel(t *testing.T) {
	f := newFixture(t)

	_, err := f.models.Delete(context.Background(), f.teamID, model.NewID())
	require.Error(t, err)
	problem := err.(*api.Problem)
	assert.Equal(t, 404, problem.Status)

	_, err = f.models.Delete(context.Background(), f.teamID, "not-a-valid-id")
	require.Error(t, err)
	problem = err.(*api.Problem)
	assert.Equal(t, 400, problem.Status)
}
