package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	chatEndpoint   = "/chat/completions"
	defaultTimeout = 2 * time.Minute
	maxErrorBody   = 2048
)

// Prompt is a single-turn request to the model.
type Prompt struct {
	System string
	User   string
}

// Generator turns a prompt into raw model text.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// ClientConfig configures an OpenAI-compatible endpoint.
type ClientConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
	// JSONMode asks the server to constrain output with the schedule
	// schema. Leave it off for models that need to reason in prose before
	// the final code block.
	JSONMode bool
}

// OpenAIClient speaks the chat completions API.
type OpenAIClient struct {
	cfg    ClientConfig
	client *http.Client
}

func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *jsonSchemaSpec `json:"json_schema,omitempty"`
}

type jsonSchemaSpec struct {
	Name   string `json:"name"`
	Schema any    `json:"schema"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends one chat completion request and returns the first
// choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (string, error) {
	req := chatCompletionRequest{Model: c.cfg.Model}
	if p.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: p.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: p.User})
	if c.cfg.JSONMode {
		req.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaSpec{Name: "daily_schedule", Schema: Schema()},
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+chatEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}
	return out.Choices[0].Message.Content, nil
}
