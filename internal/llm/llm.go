// Package llm wraps the chat-completion API used by the palm and chat pipelines.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/aurapalm/aura/internal/config"
	"github.com/aurapalm/aura/internal/metrics"
)

// Roles accepted in Message.Role.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrEmptyCompletion is returned when the API answers without any choice.
var ErrEmptyCompletion = errors.New("completion returned no choices")

type Message struct {
	Role    string
	Content string
}

// Request is one completion call. Purpose only labels metrics.
type Request struct {
	Purpose     string
	Messages    []Message
	MaxTokens   int
	Temperature float32
	JSONMode    bool
}

// Completer is the seam the pipelines depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Client implements Completer against an OpenAI-compatible endpoint.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(cfg config.OpenAIConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	ccr := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	purpose := req.Purpose
	if purpose == "" {
		purpose = "unknown"
	}
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, ccr)
	metrics.CompletionDuration.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
