package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// ChatClient implements Provider against an OpenAI-compatible chat
// completions endpoint.
type ChatClient struct {
	client *openai.Client
	logger *logrus.Logger
}

// NewChatClient creates a chat completions client rooted at baseURL.
func NewChatClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *ChatClient {
	if logger == nil {
		logger = logrus.New()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &ChatClient{client: openai.NewClientWithConfig(cfg), logger: logger}
}

// Name implements Provider.
func (c *ChatClient) Name() string {
	return string(EngineChat)
}

// Complete sends req as a chat completion and returns the response encoded
// as JSON, so extraction treats it like any other provider body.
func (c *ChatClient) Complete(ctx context.Context, req Request) ([]byte, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Input))
	for _, m := range req.Input {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	c.logger.WithFields(logrus.Fields{
		"model":       req.Model,
		"temperature": req.Temperature,
		"segments":    len(messages),
	}).Debug("Calling chat completions API")

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    messages,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.WithFields(logrus.Fields{
				"status_code": apiErr.HTTPStatusCode,
				"response":    apiErr.Message,
			}).Error("Chat completion returned non-OK status")
			return nil, &UpstreamError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		c.logger.WithError(err).Error("Chat completion request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"choices":     len(resp.Choices),
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Debug("Chat completion finished")

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return body, nil
}

// CheckHealth lists the available models to confirm the key is accepted.
func (c *ChatClient) CheckHealth(ctx context.Context) error {
	c.logger.Debug("Checking chat completions API health")

	if _, err := c.client.ListModels(ctx); err != nil {
		c.logger.WithError(err).Error("Health check request failed")
		return fmt.Errorf("health check failed: %w", err)
	}

	c.logger.Debug("Chat completions API health check passed")
	return nil
}
