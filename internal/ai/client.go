// Package ai talks to an OpenAI-compatible provider for embeddings and chat
// completions, and runs the note pipeline built on top of them: embedding
// indexing, semantic matching, note cleanup and the Sage Q&A assistant.
//
// Every provider failure degrades: embedding failure falls back to substring
// search, cleanup returns the note unchanged, chat surfaces an inline error.
// Nothing is retried except the single schema-refresh-and-retry path for
// embedding inserts.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Defaults for the hosted provider.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultEmbedModel = "text-embedding-ada-002"
	DefaultChatModel  = "gpt-4-1106-preview"
)

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is a thin HTTP client for the completion/embedding API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different provider endpoint. An empty
// url keeps the default.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithTimeout overrides the HTTP timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithModels overrides the embedding and chat models.
func WithModels(embedModel, chatModel string) ClientOption {
	return func(c *Client) {
		if embedModel != "" {
			c.embedModel = embedModel
		}
		if chatModel != "" {
			c.chatModel = chatModel
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a provider client. Returns nil when apiKey is empty; AI
// features are simply disabled without one.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	if apiKey == "" {
		return nil
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		embedModel: DefaultEmbedModel,
		chatModel:  DefaultChatModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embeddingResponse
	err := c.post(ctx, "/embeddings", embeddingRequest{
		Model: c.embedModel,
		Input: text,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Chat sends the message list and returns the assistant's reply.
// Single request/response, no retry.
func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (*Message, error) {
	var resp chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat response contained no choices")
	}
	return &resp.Choices[0].Message, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
