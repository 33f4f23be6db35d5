package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// OpenAICompleter talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Ollama, llama.cpp, vLLM).
type OpenAICompleter struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOpenAICompleter creates a completer for baseURL, e.g. http://localhost:11434/v1.
func NewOpenAICompleter(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *OpenAICompleter {
	if apiKey == "" {
		// Local servers ignore the key but some reject a missing header.
		apiKey = "dummy"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAICompleter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "openai: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "openai: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "openai: request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "openai: read response")
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", eris.Wrapf(err, "openai: decode response (status %d)", resp.StatusCode)
	}
	if chat.Error != nil {
		return "", eris.Errorf("openai: api error: %s (type: %s)", chat.Error.Message, chat.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("openai: unexpected status %d", resp.StatusCode)
	}
	if len(chat.Choices) == 0 {
		return "", eris.New("openai: response has no choices")
	}

	return chat.Choices[0].Message.Content, nil
}
