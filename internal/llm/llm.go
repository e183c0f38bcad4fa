// Package llm wraps a single OpenAI-compatible chat completion call. It knows
// nothing about evaluation semantics: it sends a system prompt plus a
// transcript and hands back raw text. It never fabricates a reply; synthetic
// scores belong to explicit fallback paths in higher layers.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/model"
)

// maxResponseBytes is the ceiling on a model reply. Anything bigger is
// treated as provider misbehavior rather than passed downstream.
const maxResponseBytes = 64 * 1024

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New creates a new LLM client. timeout bounds each completion call.
func New(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		timeout: timeout,
	}
}

// Complete sends the system prompt and transcript to the model and returns the
// raw reply text. Provider errors, timeouts, and oversized replies all wrap
// apperr.ErrProviderUnavailable.
func (c *Client) Complete(ctx context.Context, systemPrompt string, transcript []model.SessionMessage, maxTokens int, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatMsgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, m := range transcript {
		role := openai.ChatMessageRoleUser
		if m.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: chatMsgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", apperr.ErrProviderUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", apperr.ErrProviderUnavailable)
	}

	raw := resp.Choices[0].Message.Content
	if len(raw) > maxResponseBytes {
		return "", fmt.Errorf("%w: response too large (%d bytes)", apperr.ErrProviderUnavailable, len(raw))
	}
	slog.Debug("LLM response", "bytes", len(raw))
	return raw, nil
}

// Ping verifies the endpoint is reachable and the configured model answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: ping: %v", apperr.ErrProviderUnavailable, err)
	}
	return nil
}
