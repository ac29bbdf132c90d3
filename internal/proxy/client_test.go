package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedCall struct {
	Path string
	Auth string
	Body map[string]interface{}
}

// fakeProxy mimics the routing proxy's registration endpoints with upsert
// semantics keyed on model_name.
type fakeProxy struct {
	mu       sync.Mutex
	calls    []recordedCall
	registry map[string]map[string]interface{}
	failures int
}

func newFakeProxy() *fakeProxy {
	return &fakeProxy{registry: make(map[string]map[string]interface{})}
}

func (f *fakeProxy) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/model/new", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.failures > 0 {
			f.failures--
			http.Error(w, `{"error":"temporarily unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.calls = append(f.calls, recordedCall{
			Path: r.URL.Path,
			Auth: r.Header.Get("Authorization"),
			Body: body,
		})

		name, _ := body["model_name"].(string)
		f.registry[name] = body
		_ = json.NewEncoder(w).Encode(map[string]string{"model_name": name})
	})
	mux.HandleFunc("/model/delete", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		id, _ := body["id"].(string)
		if _, ok := f.registry[id]; !ok {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		delete(f.registry, id)
		_ = json.NewEncoder(w).Encode(map[string]string{"deleted": id})
	})
	return mux
}

func TestRegisterModel_SendsLitellmBody(t *testing.T) {
	fake := newFakeProxy()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "sk-master", 5*time.Second, zap.NewNop())

	err := client.RegisterModel(context.Background(), RegisterModelParams{
		ModelName: "team1/llama",
		Model:     "ollama/llama2",
		APIBase:   "http://localhost:11434",
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "Bearer sk-master", call.Auth)
	assert.Equal(t, "team1/llama", call.Body["model_name"])

	params, ok := call.Body["litellm_params"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ollama/llama2", params["model"])
	assert.Equal(t, "http://localhost:11434", params["api_base"])
	_, hasKey := params["api_key"]
	assert.False(t, hasKey, "no api_key should be sent when none is set")
}

func TestRegisterModel_IdempotentByName(t *testing.T) {
	fake := newFakeProxy()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "sk-master", 5*time.Second, zap.NewNop())

	params := RegisterModelParams{
		ModelName: "team1/emb",
		Model:     "open_ai/text-embedding-3-small",
		APIKey:    "sk-live",
	}
	require.NoError(t, client.RegisterModel(context.Background(), params))
	require.NoError(t, client.RegisterModel(context.Background(), params))

	// same key registered twice is a single remote entry
	assert.Len(t, fake.registry, 1)
}

func TestRegisterModel_RetriesTransientFailures(t *testing.T) {
	fake := newFakeProxy()
	fake.failures = 1
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "sk-master", 5*time.Second, zap.NewNop(),
		WithRetries(2, time.Millisecond))

	err := client.RegisterModel(context.Background(), RegisterModelParams{
		ModelName: "team1/llama",
		Model:     "ollama/llama2",
	})
	require.NoError(t, err)
	assert.Len(t, fake.registry, 1)
}

func TestRegisterModel_DoesNotRetryClientErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, `{"error":"bad params"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk-master", 5*time.Second, zap.NewNop(),
		WithRetries(3, time.Millisecond))

	err := client.RegisterModel(context.Background(), RegisterModelParams{
		ModelName: "team1/bad",
		Model:     "nope",
	})
	require.Error(t, err)
	assert.Equal(t, 1, hits)
}

func TestDeregisterModel_RemovesEntry(t *testing.T) {
	fake := newFakeProxy()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewClient(srv.URL, "sk-master", 5*time.Second, zap.NewNop())

	require.NoError(t, client.RegisterModel(context.Background(), RegisterModelParams{
		ModelName: "team1/llama",
		Model:     "ollama/llama2",
	}))
	require.NoError(t, client.DeregisterModel(context.Background(), "team1/llama"))
	assert.Empty(t, fake.registry)
}
