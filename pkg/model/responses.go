package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ResponsesClient implements Provider against the OpenAI Responses API.
type ResponsesClient struct {
	client *resty.Client
	logger *logrus.Logger
}

// NewResponsesClient creates a client for the Responses API rooted at baseURL.
func NewResponsesClient(baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *ResponsesClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logrus.New()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &ResponsesClient{client: client, logger: logger}
}

// Name implements Provider.
func (c *ResponsesClient) Name() string {
	return string(EngineResponses)
}

// Complete posts req to /responses and returns the raw response body.
func (c *ResponsesClient) Complete(ctx context.Context, req Request) ([]byte, error) {
	c.logger.WithFields(logrus.Fields{
		"model":       req.Model,
		"temperature": req.Temperature,
		"segments":    len(req.Input),
	}).Debug("Calling responses API")

	startTime := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/responses")
	if err != nil {
		c.logger.WithError(err).Error("Responses request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	duration := time.Since(startTime)
	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode(),
		"duration_ms": duration.Milliseconds(),
	}).Debug("Responses request completed")

	if resp.IsError() {
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode(),
			"response":    resp.String(),
		}).Error("Responses request returned non-OK status")
		return nil, &UpstreamError{Status: resp.StatusCode(), Body: resp.String()}
	}

	return resp.Body(), nil
}

// CheckHealth lists the available models to confirm the key is accepted.
func (c *ResponsesClient) CheckHealth(ctx context.Context) error {
	c.logger.Debug("Checking responses API health")

	resp, err := c.client.R().SetContext(ctx).Get("/models")
	if err != nil {
		c.logger.WithError(err).Error("Health check request failed")
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.IsError() {
		c.logger.WithField("status_code", resp.StatusCode()).Error("Health check returned non-OK status")
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	c.logger.Debug("Responses API health check passed")
	return nil
}
