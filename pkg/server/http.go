package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/babel/pkg/aitask"
	"github.com/dasmlab/babel/pkg/gateway"
)

const (
	// TaskPath is where AI task envelopes are posted.
	TaskPath = "/api/ai"
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// TaskServer handles a raw task envelope and returns the status and body to
// send back.
type TaskServer interface {
	Serve(ctx context.Context, body []byte) (int, any)
}

// HTTPServer exposes the AI task gateway plus health and metrics endpoints.
type HTTPServer struct {
	tasks  TaskServer
	logger *logrus.Logger
	port   int
	srv    *http.Server
}

// NewHTTPServer creates a new HTTP server for the task gateway.
func NewHTTPServer(tasks TaskServer, logger *logrus.Logger, port int) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}
	s := &HTTPServer{
		tasks:  tasks,
		logger: logger,
		port:   port,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routing mux.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// AI task endpoint (POST /api/ai)
	mux.HandleFunc(TaskPath, s.handleTask)

	// Health check endpoint
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port": s.port,
	}).Info("Starting HTTP server for AI tasks")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleTask runs one AI task envelope through the gateway.
func (s *HTTPServer) handleTask(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set(RequestIDHeader, requestID)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		s.writeJSON(w, http.StatusMethodNotAllowed, aitask.ErrorResponse{Error: "Method Not Allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.WithError(err).WithField("request_id", requestID).Warn("Failed to read request body")
		s.writeJSON(w, http.StatusBadRequest, aitask.ErrorResponse{Error: "Invalid request body"})
		return
	}

	ctx := gateway.WithRequestID(r.Context(), requestID)
	status, resp := s.tasks.Serve(ctx, body)
	s.writeJSON(w, status, resp)
}

// handleHealth provides a health check endpoint.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
