// Package client holds thin HTTP/subprocess adapters that let the
// core (translate, quality, pipeline) reach external engines through
// small local interfaces (translate.ChatClient, quality.ChatClient,
// audio.TempoAdjuster) without importing net/http themselves.
// Generalized from celalettindemir-make-singer-backend's GroqClient
// and SunoClient request/response/logging shape.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redubline/api/internal/classify"
)

// LLMClient is a chat-completion client pointed at any OpenAI-chat-
// compatible endpoint (Groq, Gemini's OpenAI-compat surface, a local
// vLLM/Ollama server). One instance serves both translate.ChatClient
// and quality.ChatClient, since both just need (system, user) -> text.
type LLMClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

// LLMConfig configures one LLMClient instance.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// NewLLMClient builds a client against an OpenAI-chat-compatible base URL.
func NewLLMClient(cfg LLMConfig) *LLMClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second // spec.md §5: 120s deadline for LLM generation
	}
	return &LLMClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends a system/user chat completion request and
// returns the first choice's content. Failures are classified so
// translate/quality's retry and fallback policy can act on them
// without inspecting HTTP internals.
func (c *LLMClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   2048,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("llm client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify.New(classify.KindTransientRemote, "llm_client.ChatCompletion", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify.New(classify.KindTransientRemote, "llm_client.ChatCompletion", err)
	}

	if err := classifyStatus("llm_client.ChatCompletion", resp.StatusCode, respBody); err != nil {
		return "", err
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", classify.New(classify.KindMalformedResponse, "llm_client.ChatCompletion", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", classify.New(classify.KindMalformedResponse, "llm_client.ChatCompletion", fmt.Errorf("no choices in response"))
	}
	return chatResp.Choices[0].Message.Content, nil
}

// IsConfigured reports whether an API key is present.
func (c *LLMClient) IsConfigured() bool {
	return c.apiKey != ""
}

// classifyStatus maps an HTTP status to the classify.Kind the pipeline
// needs: 429/documented quota responses advance the fallback chain
// immediately, 5xx are transient and eligible for backoff, everything
// else in the 4xx range is treated as malformed/unusable input.
func classifyStatus(op string, status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return classify.New(classify.KindQuotaRemote, op, fmt.Errorf("quota exceeded: %s", truncate(body)))
	case status >= 500:
		return classify.New(classify.KindTransientRemote, op, fmt.Errorf("status %d: %s", status, truncate(body)))
	default:
		return classify.New(classify.KindMalformedResponse, op, fmt.Errorf("status %d: %s", status, truncate(body)))
	}
}

func truncate(b []byte) string {
	const max = 500
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
