// Package main runs the AI task gateway as an AWS Lambda function behind
// API Gateway.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/babel/pkg/aitask"
	"github.com/dasmlab/babel/pkg/config"
	"github.com/dasmlab/babel/pkg/gateway"
	"github.com/dasmlab/babel/pkg/model"
	"github.com/dasmlab/babel/pkg/server"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(os.Getenv("BABEL_CONFIG"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	var provider model.Provider
	providerCfg, err := cfg.ProviderConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse model engine type")
	}
	providerCfg.Logger = logger
	provider, err = model.NewProvider(providerCfg)
	if err != nil && !errors.Is(err, model.ErrNotConfigured) {
		logger.WithError(err).Fatal("Failed to create model provider")
	}

	h := &handler{
		tasks: gateway.New(gateway.Options{
			Provider: provider,
			Model:    cfg.Model.Name,
			Limits:   cfg.Limits(),
			Logger:   logger,
		}),
		logger: logger,
	}
	lambda.Start(h.handleRequest)
}

type handler struct {
	tasks  server.TaskServer
	logger *logrus.Logger
}

func (h *handler) handleRequest(ctx context.Context, event json.RawMessage) (any, error) {
	// Warmup detection comes before any other processing
	if warmup, ok := IsWarmupEvent(event); ok {
		return HandleWarmup(ctx, warmup, h.logger)
	}

	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, err
	}
	return h.handleProxy(ctx, req), nil
}

// handleProxy serves one API Gateway request with the same contract as the
// HTTP server.
func (h *handler) handleProxy(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	headers := map[string]string{"Content-Type": "application/json"}
	if id := req.RequestContext.RequestID; id != "" {
		headers[server.RequestIDHeader] = id
		ctx = gateway.WithRequestID(ctx, id)
	}

	if req.HTTPMethod != http.MethodPost {
		headers["Allow"] = http.MethodPost
		return h.respond(http.StatusMethodNotAllowed, aitask.ErrorResponse{Error: "Method Not Allowed"}, headers)
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			h.logger.WithError(err).Warn("Failed to decode base64 body")
			return h.respond(http.StatusBadRequest, aitask.ErrorResponse{Error: "Invalid request body"}, headers)
		}
		body = decoded
	}

	status, resp := h.tasks.Serve(ctx, body)
	return h.respond(status, resp, headers)
}

func (h *handler) respond(status int, v any, headers map[string]string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
		status = http.StatusInternalServerError
		body = []byte(`{"error":"AI request failed"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}
