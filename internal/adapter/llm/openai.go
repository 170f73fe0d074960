package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// Config configures an OpenAI-compatible chat completions endpoint.
type Config struct {
	BaseURL    string
	APIKey     string
	AuthHeader string // "authorization" sends a Bearer token, "api-key" sends the raw key
	Model      string
	Timeout    time.Duration
}

// Client is an OpenAI-compatible chat completions client. It works with
// OpenAI, DeepSeek, Azure AI model inference and Ollama.
type Client struct {
	baseURL    string
	apiKey     string
	authHeader string
	model      string
	client     *http.Client
	stats      Stats
}

// Stats tracks usage since process start.
type Stats struct {
	Calls    atomic.Int64
	Failures atomic.Int64
}

// ChatMessage represents a message in the chat format
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request format for chat completions
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatResponse is the response format from chat completions
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base URL is not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is not set")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	header := strings.ToLower(cfg.AuthHeader)
	if header == "" {
		header = "authorization"
	}
	if header != "authorization" && header != "api-key" {
		return nil, fmt.Errorf("unsupported auth header %q", cfg.AuthHeader)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		authHeader: header,
		model:      cfg.Model,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Chat sends a chat completion request
func (c *Client) Chat(ctx context.Context, req port.ChatRequest) (string, error) {
	c.stats.Calls.Add(1)
	out, err := c.chat(ctx, req)
	if err != nil {
		c.stats.Failures.Add(1)
		return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	return out, nil
}

func (c *Client) chat(ctx context.Context, req port.ChatRequest) (string, error) {
	var messages []ChatMessage
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.User})

	jsonData, err := json.Marshal(ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		if c.authHeader == "api-key" {
			httpReq.Header.Set("api-key", c.apiKey)
		} else {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return StripReasoning(chatResp.Choices[0].Message.Content), nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think> blocks emitted by reasoning models.
func StripReasoning(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// ModelName returns the name of the model.
func (c *Client) ModelName() string {
	return c.model
}

// Usage returns the number of calls and failed calls so far.
func (c *Client) Usage() (calls, failures int64) {
	return c.stats.Calls.Load(), c.stats.Failures.Load()
}
