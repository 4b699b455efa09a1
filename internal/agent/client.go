// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent adapts the model runtime behind an event-stream boundary.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jeranaias/agentchat-tui/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the runtime client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeInterrupted
)

// Sentinel errors for easy checking.
var (
	ErrRuntimeNotRunning = &ClientError{Type: ErrTypeNotRunning, Message: "model runtime is not running"}
	ErrTimeout           = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound     = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found in runtime"}
	ErrStreamInterrupted = &ClientError{Type: ErrTypeInterrupted, Message: "stream ended before completion"}
	ErrInvalidResponse   = &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid response from runtime"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the runtime client.
type ClientConfig struct {
	// BaseURL is the runtime API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for a whole streaming turn (default: 120s)
	Timeout time.Duration

	// ConnectTimeout bounds the health check (default: 5s)
	ConnectTimeout time.Duration

	// MaxRetries for connection establishment (default: 3)
	MaxRetries int

	// RetryDelay between retries (default: 1s)
	RetryDelay time.Duration
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:11434",
		Timeout:        120 * time.Second,
		ConnectTimeout: 5 * time.Second,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client speaks the runtime chat protocol over HTTP.
//
// The Client is thread-safe for concurrent use. Per-model endpoint overrides
// are handled by WithBaseURL, which copies rather than mutates.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new runtime client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultClientConfig())
}

// NewClientWithConfig creates a new runtime client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 1 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// WithBaseURL returns a copy of the client pointed at a different endpoint.
// The copy shares nothing mutable with the original, so a catalog entry's
// endpoint override never races with turns running against the default.
func (c *Client) WithBaseURL(url string) *Client {
	if url == "" || url == c.config.BaseURL {
		return c
	}
	cfg := *c.config
	cfg.BaseURL = url
	return &Client{
		config: &cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// BaseURL returns the endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Ping verifies that the runtime is reachable.
// Bounded by ConnectTimeout so a down runtime fails fast.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrRuntimeNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from runtime: " + resp.Status,
		}
	}

	return nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatOptions carries per-turn sampling parameters.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChunkCallback is called for each chunk received during streaming.
type ChunkCallback func(chunk Chunk)

// ChatStream sends a streaming chat request and calls the callback for each
// chunk, synchronously, in arrival order. Returns when the stream ends or
// the context is cancelled. A stream that ends without a final done chunk
// is reported as ErrStreamInterrupted.
func (c *Client) ChatStream(ctx context.Context, modelName string, history []model.Message, tools []ToolDefinition, opts ChatOptions, callback ChunkCallback) error {
	reqBody := chatRequest{
		Model:    modelName,
		Messages: toWireMessages(history),
		Stream:   true,
		Tools:    toWireTools(tools),
		Options:  toWireOptions(opts),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// Use a client without timeout for streaming (timeout is handled via context)
	// SECURITY: TLS not required for the default endpoint - the runtime listens on
	// localhost over HTTP; remote endpoints may use https URLs in the catalog
	streamClient := &http.Client{}

	resp, err := c.connectStream(ctx, streamClient, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrModelNotFound
	}

	if resp.StatusCode != http.StatusOK {
		// Try to read the runtime's error message
		var rtErr runtimeError
		if err := json.NewDecoder(resp.Body).Decode(&rtErr); err == nil && rtErr.Error != "" {
			return &ClientError{
				Type:    ErrTypeInvalidResponse,
				Message: rtErr.Error,
			}
		}
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "chat request failed: " + resp.Status,
		}
	}

	return c.readStream(ctx, resp.Body, callback)
}

// connectStream establishes the streaming request, retrying transient
// connection failures. The request body is rebuilt per attempt because a
// failed Do may have consumed it.
func (c *Client) connectStream(ctx context.Context, streamClient *http.Client, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := streamClient.Do(req)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ErrTimeout
		}
		if attempt >= c.config.MaxRetries {
			return nil, ErrRuntimeNotRunning
		}

		select {
		case <-time.After(c.config.RetryDelay):
		case <-ctx.Done():
			return nil, ErrTimeout
		}
	}
}

// readStream consumes newline-delimited JSON chunks until the done chunk
// arrives, the body ends, or the context is cancelled.
func (c *Client) readStream(ctx context.Context, body io.Reader, callback ChunkCallback) error {
	reader := bufio.NewReader(body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			chunk, err := readChunk(reader)
			if err != nil {
				if err == io.EOF {
					// Body ended without a done chunk
					return ErrStreamInterrupted
				}
				return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
			}

			if chunk != nil {
				callback(*chunk)
				if chunk.Done {
					return nil
				}
			}
		}
	}
}
