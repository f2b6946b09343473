// Package llm provides a minimal chat-completions client used for
// answer generation and AI-assisted query classification.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abrahaamv/ifinallywill-sub004/internal/errors"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is the result of a model call.
type Completion struct {
	Text    string
	ModelID string
	Usage   Usage
}

// Client executes chat completions against a model.
type Client interface {
	Complete(ctx context.Context, modelID string, messages []Message) (*Completion, error)
}

// HTTPConfig configures the chat-completions client.
type HTTPConfig struct {
	Endpoint string // base URL of the model gateway
	APIKey   string
	Timeout  time.Duration
}

// HTTPClient talks to an OpenAI-style chat completions endpoint.
type HTTPClient struct {
	client *http.Client
	config HTTPConfig
}

var _ Client = (*HTTPClient)(nil)

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// NewHTTPClient creates a chat-completions client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ValidationError("model endpoint is required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}, nil
}

// Complete sends one chat completion request to modelID.
func (c *HTTPClient) Complete(ctx context.Context, modelID string, messages []Message) (*Completion, error) {
	if modelID == "" {
		return nil, errors.ValidationError("model ID is required", nil)
	}
	if len(messages) == 0 {
		return nil, errors.ValidationError("at least one message is required", nil)
	}

	body, err := json.Marshal(chatRequest{Model: modelID, Messages: messages})
	if err != nil {
		return nil, errors.New(errors.ErrCodeModelCallFailed, "failed to marshal request", err)
	}

	url := strings.TrimRight(c.config.Endpoint, "/") + "/v1/chat/completions"
	timeoutCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.ErrCodeModelCallFailed, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeModelCallFailed, fmt.Sprintf("model call to %s failed", modelID), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errors.New(errors.ErrCodeModelCallFailed,
			fmt.Sprintf("model %s returned status %d: %s", modelID, resp.StatusCode, string(respBody)), nil)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(errors.ErrCodeModelCallFailed, "failed to decode response", err)
	}
	if len(result.Choices) == 0 {
		return nil, errors.New(errors.ErrCodeModelCallFailed, fmt.Sprintf("model %s returned no choices", modelID), nil)
	}

	return &Completion{
		Text:    result.Choices[0].Message.Content,
		ModelID: modelID,
		Usage:   result.Usage,
	}, nil
}
