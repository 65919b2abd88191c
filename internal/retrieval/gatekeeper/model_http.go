package gatekeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/docketbench/internal/core/domain"
)

// ModelConfig holds settings for the chat-completion model endpoint.
type ModelConfig struct {
	Endpoint  string        `yaml:"endpoint"` // OpenAI-compatible /chat/completions URL
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// HTTPModel calls an OpenAI-compatible chat-completion endpoint.
// Temperature is pinned to zero and output capped at MaxTokens so the same
// candidate always yields the same verdict.
type HTTPModel struct {
	cfg        ModelConfig
	httpClient *http.Client
}

// NewHTTPModel creates a chat-completion model client.
func NewHTTPModel(cfg ModelConfig) *HTTPModel {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 150
	}
	return &HTTPModel{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name returns the configured model identifier.
func (m *HTTPModel) Name() string { return m.cfg.Model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one chat completion request.
func (m *HTTPModel) Complete(ctx context.Context, system, user string) (string, int, error) {
	body, err := json.Marshal(chatRequest{
		Model: m.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
		MaxTokens:   m.cfg.MaxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("model call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", 0, domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if len(cr.Choices) == 0 {
		return "", 0, fmt.Errorf("%w: empty choices", domain.ErrValidation)
	}
	return cr.Choices[0].Message.Content, cr.Usage.TotalTokens, nil
}
