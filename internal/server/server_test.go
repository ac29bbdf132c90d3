package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/catalog"
	"github.com/nulzo/model-control-plane/internal/config"
	"github.com/nulzo/model-control-plane/internal/proxy"
	"github.com/nulzo/model-control-plane/internal/service"
	"github.com/nulzo/model-control-plane/internal/store/cache"
	"github.com/nulzo/model-control-plane/internal/store/sqlite"
)

const testKey = "sk-test-key"

type stubProvisioner struct {
	registered   []proxy.RegisterModelParams
	deregistered []string
}

func (s *stubProvisioner) RegisterModel(ctx context.Context, params proxy.RegisterModelParams) error {
	s.registered = append(s.registered, params)
	return nil
}

func (s *stubProvisioner) DeregisterModel(ctx context.Context, modelName string) error {
	s.deregistered = append(s.deregistered, modelName)
	return nil
}

func newTestServer(t *testing.T) (*Server, *stubProvisioner) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()

	repo, err := sqlite.NewSQLiteStorage(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cat, err := catalog.Load()
	require.NoError(t, err)

	provisioner := &stubProvisioner{}

	secrets := service.NewSecretService(repo, logger)
	credentials := service.NewCredentialService(repo, cat, cache.NewNoop(), logger)
	models := service.NewModelService(repo, cat, credentials, provisioner, logger)

	cfg := &config.Config{}
	cfg.Server.APIKeys = []string{testKey}
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000

	return New(cfg, logger, models, credentials, secrets), provisioner
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("X-CSRF-Token", "test-token")
	req.Header.Set("X-Org-ID", "org-1")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/teams/team-1/models", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMutationsRequireAntiForgeryToken(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/teams/team-1/secrets",
		bytes.NewBufferString(`{"key": "K", "value": "v"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testKey)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSecretLifecycleNeverEchoesValue(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/v1/teams/team-1/secrets", map[string]string{
		"key":   "OPENAI_API_KEY",
		"value": "sk-super-secret",
		"label": "prod key",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-super-secret")

	created := decode(t, w)
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/team-1/secrets", created["redirect"])

	w = doRequest(t, srv, http.MethodGet, "/v1/teams/team-1/secrets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "OPENAI_API_KEY")
	assert.NotContains(t, w.Body.String(), "sk-super-secret")

	w = doRequest(t, srv, http.MethodPut, "/v1/teams/team-1/secrets/"+id, map[string]string{
		"label": "rotated label",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodDelete, "/v1/teams/team-1/secrets/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddModelValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/v1/teams/team-1/models", map[string]string{
		"model": "text-embedding-3-small",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode(t, w)
	fields, ok := resp["errors"].(map[string]any)
	require.True(t, ok, "expected field error map, got %s", w.Body.String())
	assert.Contains(t, fields, "name")
}

func TestAddCredentialRejectsUnknownType(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/v1/teams/team-1/credentials", map[string]string{
		"name": "Bad",
		"type": "azure",
		"key":  "sk-x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelRegistrationFlow(t *testing.T) {
	srv, provisioner := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/v1/teams/team-1/credentials", map[string]string{
		"name": "OpenAI",
		"type": "open_ai",
		"key":  "sk-live-123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	credID, _ := decode(t, w)["_id"].(string)
	require.NotEmpty(t, credID)

	w = doRequest(t, srv, http.MethodPost, "/v1/teams/team-1/models", map[string]string{
		"name":         "embedder",
		"model":        "text-embedding-3-small",
		"credentialId": credID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	modelID, _ := decode(t, w)["_id"].(string)
	require.NotEmpty(t, modelID)

	require.Len(t, provisioner.registered, 1)
	assert.Equal(t, "team-1/embedder", provisioner.registered[0].ModelName)
	assert.Equal(t, "open_ai/text-embedding-3-small", provisioner.registered[0].Model)

	w = doRequest(t, srv, http.MethodGet, "/v1/teams/team-1/models/"+modelID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"embeddingLength":1536`)
	assert.NotContains(t, w.Body.String(), "sk-live-123")

	// other teams cannot see it
	w = doRequest(t, srv, http.MethodGet, "/v1/teams/team-2/models/"+modelID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, http.MethodDelete, "/v1/teams/team-1/models/"+modelID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, provisioner.deregistered, "team-1/embedder")
}

func TestDeleteAbsentModelReturnsProblem(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodDelete, "/v1/teams/team-1/models/aaaaaaaaaaaaaaaaaaaaaaaa", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	resp := decode(t, w)
	assert.Equal(t, float64(http.StatusNotFound), resp["status"])
}
