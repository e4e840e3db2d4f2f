package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineType selects the provider API used to reach the model.
type EngineType string

const (
	// EngineResponses calls the OpenAI Responses API.
	EngineResponses EngineType = "responses"
	// EngineChat calls an OpenAI-compatible chat completions API.
	EngineChat EngineType = "chat"
)

const (
	// DefaultModel is used when no model name is configured.
	DefaultModel = "gpt-4o-mini"
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("model provider is not configured")

// Config holds configuration for creating a Provider.
type Config struct {
	// Engine specifies which provider API to use. Defaults to EngineResponses.
	Engine EngineType
	// APIKey authenticates against the provider. Required.
	APIKey string
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string
	// Timeout bounds each provider call. Zero leaves it to the transport.
	Timeout time.Duration
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// NewProvider creates a Provider for the configured engine.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Engine == "" {
		cfg.Engine = EngineResponses
	}

	cfg.Logger.WithFields(logrus.Fields{
		"engine":   cfg.Engine,
		"base_url": cfg.BaseURL,
		"timeout":  cfg.Timeout,
	}).Info("Creating model provider")

	switch cfg.Engine {
	case EngineResponses:
		return NewResponsesClient(cfg.BaseURL, strings.TrimSpace(cfg.APIKey), cfg.Timeout, cfg.Logger), nil
	case EngineChat:
		return NewChatClient(cfg.BaseURL, strings.TrimSpace(cfg.APIKey), cfg.Timeout, cfg.Logger), nil
	default:
		cfg.Logger.WithField("engine", cfg.Engine).Error("Unknown model engine")
		return nil, fmt.Errorf("unknown model engine: %s", cfg.Engine)
	}
}

// ParseEngineType parses a string into an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "responses":
		return EngineResponses, nil
	case "chat":
		return EngineChat, nil
	default:
		return "", fmt.Errorf("unknown engine type: %s (supported: responses, chat)", s)
	}
}
