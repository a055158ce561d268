package proofclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Layr-Labs/inclusion-proof-go/pkg/merkle"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/persistence"
	"github.com/Layr-Labs/inclusion-proof-go/pkg/types"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// ClientConfig holds the configuration for the proof API client
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client // Optional, defaults to a client with a 30s timeout
	Retry      *RetryConfig // Optional, defaults to DefaultRetryConfig
	Logger     *zap.Logger
}

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("proof server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a proof server started with the serve command
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *zap.Logger
}

// NewClient creates a new proof API client
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if u, err := url.Parse(config.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", config.BaseURL)
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retry := DefaultRetryConfig
	if config.Retry != nil {
		retry = *config.Retry
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffMultiple < 1 {
		retry.BackoffMultiple = 1
	}

	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		httpClient:  httpClient,
		retryConfig: retry,
		logger:      config.Logger,
	}, nil
}

// Health fetches the server status
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	var resp types.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProveLeaves proves targets in leaves. The returned documents are in target order.
func (c *Client) ProveLeaves(ctx context.Context, leaves, targets []merkle.Hash, pad bool) ([]*types.ProofDocument, error) {
	var resp types.ProveLeafResponse
	req := &types.ProveLeafRequest{Leaves: leaves, Targets: targets, Pad: pad}
	if err := c.do(ctx, http.MethodPost, "/prove/leaf", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Proofs) != len(targets) {
		return nil, fmt.Errorf("expected %d proofs, server returned %d", len(targets), len(resp.Proofs))
	}
	return resp.Proofs, nil
}

// ProveLeafAtIndex proves the leaf at index in leaves
func (c *Client) ProveLeafAtIndex(ctx context.Context, leaves []merkle.Hash, index int, pad bool) (*types.ProofDocument, error) {
	var resp types.ProveLeafResponse
	req := &types.ProveLeafRequest{Leaves: leaves, Index: &index, Pad: pad}
	if err := c.do(ctx, http.MethodPost, "/prove/leaf", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Proofs) != 1 {
		return nil, fmt.Errorf("expected 1 proof, server returned %d", len(resp.Proofs))
	}
	return resp.Proofs[0], nil
}

// ProveTransaction proves a transaction in a block known to the server's block source.
// Both block and txid are display-order hex; block may also be a height.
func (c *Client) ProveTransaction(ctx context.Context, block, txid string) (*types.ProofDocument, error) {
	var doc types.ProofDocument
	if err := c.do(ctx, http.MethodPost, "/prove/tx", &types.ProveTxRequest{Block: block, TxID: txid}, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Verify checks proof for (root, leaf). A nil proof verifies the proof the server has stored.
func (c *Client) Verify(ctx context.Context, root, leaf merkle.Hash, proof merkle.Proof) (*types.VerifyDocument, error) {
	var doc types.VerifyDocument
	req := &types.VerifyRequest{Root: root, Leaf: leaf, Steps: proof}
	if err := c.do(ctx, http.MethodPost, "/verify", req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListProofs returns the proofs the server has stored under root
func (c *Client) ListProofs(ctx context.Context, root merkle.Hash) ([]*persistence.ProofRecord, error) {
	var records []*persistence.ProofRecord
	if err := c.do(ctx, http.MethodGet, "/proofs?root="+root.Hex(), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// do sends a request, retrying connection failures and 502/503/504 answers with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	attempts := 0
	operation := func() error {
		attempts++
		retry, err := c.attempt(ctx, method, path, payload, out)
		if err != nil && !retry {
			return backoff.Permanent(err)
		}
		if err != nil {
			c.logger.Sugar().Debugw("Proof server request failed",
				"path", path,
				"attempt", attempts,
				"error", err,
			)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil && attempts == c.retryConfig.MaxAttempts && ctx.Err() == nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || isRetryableStatus(apiErr.StatusCode) {
			return fmt.Errorf("request to %s failed after %d attempts: %w", path, attempts, err)
		}
	}
	return err
}

func (c *Client) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryConfig.InitialBackoff
	bo.MaxInterval = c.retryConfig.MaxBackoff
	bo.Multiplier = c.retryConfig.BackoffMultiple
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return backoff.WithMaxRetries(bo, uint64(c.retryConfig.MaxAttempts-1))
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, out interface{}) (bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp types.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return isRetryableStatus(resp.StatusCode), apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}
