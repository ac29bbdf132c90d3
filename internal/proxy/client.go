// Package proxy bridges model registrations into the external LiteLLM-style
// routing proxy.
package proxy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/httpclient"
)

// RegisterModelParams describes one remote model registration. ModelName is
// the deterministic composite key: registering the same name twice is an
// upsert at the proxy, never a duplicate.
type RegisterModelParams struct {
	// Composite routing key, `{team}/{name}`.
	ModelName string

	// Upstream target, `{provider}/{providerModelID}` (e.g. "ollama/llama2").
	Model string

	APIKey  string
	APIBase string

	// Extra provider parameters, already secret-resolved by the caller.
	Extra map[string]string
}

type registerRequest struct {
	ModelName     string                 `json:"model_name"`
	LitellmParams map[string]interface{} `json:"litellm_params"`
}

type deregisterRequest struct {
	ID string `json:"id"`
}

// Client talks to the routing proxy with bearer auth, a bounded timeout and
// a small retry budget for transient failures.
type Client struct {
	baseURL   string
	masterKey string
	http      httpclient.HTTPClient
	retries   int
	backoff   time.Duration
	logger    *zap.Logger
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(hc httpclient.HTTPClient) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets the retry budget for transient failures.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

func NewClient(baseURL, masterKey string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		masterKey: masterKey,
		http:      &http.Client{Timeout: timeout},
		retries:   2,
		backoff:   250 * time.Millisecond,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterModel upserts a model registration at the proxy.
func (c *Client) RegisterModel(ctx context.Context, params RegisterModelParams) error {
	litellmParams := map[string]interface{}{
		"model": params.Model,
	}
	if params.APIKey != "" {
		litellmParams["api_key"] = params.APIKey
	}
	if params.APIBase != "" {
		litellmParams["api_base"] = params.APIBase
	}
	for k, v := range params.Extra {
		litellmParams[k] = v
	}

	body := registerRequest{
		ModelName:     params.ModelName,
		LitellmParams: litellmParams,
	}

	err := c.send(ctx, "/model/new", body)
	if err != nil {
		c.logger.Error("Remote model registration failed",
			zap.String("model_name", params.ModelName),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("Registered model with routing proxy",
		zap.String("model_name", params.ModelName),
		zap.String("model", params.Model),
	)
	return nil
}

// DeregisterModel removes a registration by its composite key. The proxy
// treats unknown ids as an error; callers running cleanup sagas decide
// whether that matters.
func (c *Client) DeregisterModel(ctx context.Context, modelName string) error {
	err := c.send(ctx, "/model/delete", deregisterRequest{ID: modelName})
	if err != nil {
		c.logger.Warn("Remote model deregistration failed",
			zap.String("model_name", modelName),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, path string, body interface{}) error {
	headers := map[string]string{
		"Authorization": "Bearer " + c.masterKey,
	}

	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		err = httpclient.SendRequest(ctx, c.http, http.MethodPost, c.baseURL+path, headers, body, nil)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
	}
	return err
}

// isRetryable treats network failures and 5xx as transient; a 4xx from the
// proxy will not improve on retry.
func isRetryable(err error) bool {
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode >= 500
	}
	return true
}
