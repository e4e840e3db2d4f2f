// Package client calls the AI task gateway over HTTP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/babel/pkg/aitask"
)

// DefaultTimeout bounds each gateway call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrInvalidResponse is returned when a 2xx body cannot be decoded into
	// the expected result, or a required field is missing.
	ErrInvalidResponse = errors.New("AI endpoint returned an unexpected response")
	// ErrNoSmartReplies is returned when every suggestion was blank.
	ErrNoSmartReplies = errors.New("no smart replies available")
)

// StatusError is a non-2xx response without a readable error message.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("AI endpoint failed with status code %d", e.Status)
}

// ServerError is a non-2xx response that carried an {"error": ...} body.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Client sends task envelopes to the gateway. Calls are never retried.
type Client struct {
	http     *resty.Client
	endpoint string
	logger   *logrus.Logger
}

// New creates a client for the gateway at endpoint.
func New(endpoint string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		endpoint: endpoint,
		logger:   logger,
	}
}

// EndpointFromTokenURL derives the gateway URL from the chat token URL by
// replacing its last two path segments with "ai", so
// https://host/api/stream/token becomes https://host/api/ai.
func EndpointFromTokenURL(tokenURL string) (string, error) {
	u, err := url.Parse(tokenURL)
	if err != nil {
		return "", fmt.Errorf("parse token url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("token url %q is not absolute", tokenURL)
	}
	base := path.Dir(path.Dir(strings.TrimSuffix(u.Path, "/")))
	u.Path = path.Join(base, "ai")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Translate translates text into target. sourceHint and messageID may be empty.
func (c *Client) Translate(ctx context.Context, text, sourceHint, target, messageID string) (aitask.TranslateResult, error) {
	var resp struct {
		Translation       *string `json:"translation"`
		DetectedLanguage  *string `json:"detectedLanguage"`
		DetectedLanguage2 *string `json:"detected_language"`
		Quality           *string `json:"quality"`
	}
	err := c.perform(ctx, aitask.TaskTranslate, aitask.TranslatePayload{
		Text:      text,
		Target:    target,
		Source:    sourceHint,
		MessageID: messageID,
	}, &resp)
	if err != nil {
		return aitask.TranslateResult{}, err
	}
	if resp.Translation == nil {
		return aitask.TranslateResult{}, ErrInvalidResponse
	}

	result := aitask.TranslateResult{Translation: *resp.Translation}
	switch {
	case resp.DetectedLanguage != nil:
		result.DetectedLanguage = *resp.DetectedLanguage
	case resp.DetectedLanguage2 != nil:
		result.DetectedLanguage = *resp.DetectedLanguage2
	}
	if resp.Quality != nil {
		result.Quality = aitask.Quality(*resp.Quality)
	}
	return result, nil
}

// Explain explains slang, idioms and cultural context of text in target.
func (c *Client) Explain(ctx context.Context, text, target string) (aitask.ExplainResult, error) {
	var resp struct {
		Explanation *string `json:"explanation"`
		Tips        *string `json:"tips"`
	}
	if err := c.perform(ctx, aitask.TaskExplain, aitask.ExplainPayload{Text: text, Target: target}, &resp); err != nil {
		return aitask.ExplainResult{}, err
	}
	if resp.Explanation == nil {
		return aitask.ExplainResult{}, ErrInvalidResponse
	}
	return aitask.ExplainResult{Explanation: *resp.Explanation, Tips: nonBlank(resp.Tips)}, nil
}

// Rewrite rewrites text in the given style.
func (c *Client) Rewrite(ctx context.Context, text, target string, style aitask.ToneStyle) (aitask.ToneResult, error) {
	var resp struct {
		Rewritten *string `json:"rewritten"`
		Notes     *string `json:"notes"`
	}
	err := c.perform(ctx, aitask.TaskTone, aitask.TonePayload{Text: text, Target: target, Style: style}, &resp)
	if err != nil {
		return aitask.ToneResult{}, err
	}
	if resp.Rewritten == nil {
		return aitask.ToneResult{}, ErrInvalidResponse
	}
	return aitask.ToneResult{Rewritten: *resp.Rewritten, Notes: nonBlank(resp.Notes)}, nil
}

// SmartReplies suggests replies to the conversation in history. On success
// the result holds at least one non-blank suggestion.
func (c *Client) SmartReplies(ctx context.Context, history []aitask.ReplyContextMessage, target string) (aitask.SmartRepliesResult, error) {
	var resp struct {
		Suggestions *[]string `json:"suggestions"`
	}
	err := c.perform(ctx, aitask.TaskSmartReplies, aitask.SmartRepliesPayload{Messages: history, Target: target}, &resp)
	if err != nil {
		return aitask.SmartRepliesResult{}, err
	}
	if resp.Suggestions == nil {
		return aitask.SmartRepliesResult{}, ErrInvalidResponse
	}

	var suggestions []string
	for _, s := range *resp.Suggestions {
		if strings.TrimSpace(s) != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) == 0 {
		return aitask.SmartRepliesResult{}, ErrNoSmartReplies
	}
	return aitask.SmartRepliesResult{Suggestions: suggestions}, nil
}

// perform posts the envelope and decodes a 2xx body into out.
func (c *Client) perform(ctx context.Context, task aitask.Task, payload, out any) error {
	startTime := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(aitask.Request{Task: task, Payload: payload}).
		Post(c.endpoint)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"task":     task,
			"endpoint": c.endpoint,
		}).Error("AI request failed")
		return fmt.Errorf("request failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"task":        task,
		"status_code": resp.StatusCode(),
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Debug("AI request completed")

	if !resp.IsSuccess() {
		var body struct {
			Error *string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &body) == nil && body.Error != nil {
			return &ServerError{Status: resp.StatusCode(), Message: *body.Error}
		}
		return &StatusError{Status: resp.StatusCode()}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		c.logger.WithError(err).WithField("task", task).Warn("Failed to decode AI response")
		return ErrInvalidResponse
	}
	return nil
}

func nonBlank(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return ""
	}
	return *s
}
