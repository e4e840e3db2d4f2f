package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/babel/pkg/aitask"
	"github.com/dasmlab/babel/pkg/gateway"
	"github.com/dasmlab/babel/pkg/model"
)

type stubProvider struct {
	body string
}

func (p *stubProvider) Complete(context.Context, model.Request) ([]byte, error) {
	return []byte(p.body), nil
}

func (p *stubProvider) CheckHealth(context.Context) error { return nil }

func (p *stubProvider) Name() string { return "stub" }

type recordingTasks struct {
	requestID string
	body      string
}

func (r *recordingTasks) Serve(ctx context.Context, body []byte) (int, any) {
	r.requestID = gateway.RequestIDFrom(ctx)
	r.body = string(body)
	return http.StatusOK, map[string]string{"ok": "yes"}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestTaskEndpoint(t *testing.T) {
	gw := gateway.New(gateway.Options{
		Provider: &stubProvider{body: `{"output_text": "{\"translation\": \"Hello\", \"detected_language\": \"es\"}"}`},
		Logger:   quietLogger(),
	})
	srv := httptest.NewServer(NewHTTPServer(gw, quietLogger(), 0).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+TaskPath, "application/json",
		strings.NewReader(`{"task": "translate", "payload": {"text": "Hola", "target": "en"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var result aitask.TranslateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Hello", result.Translation)
	assert.Equal(t, "es", result.DetectedLanguage)
}

func TestTaskEndpointErrors(t *testing.T) {
	gw := gateway.New(gateway.Options{
		Provider: &stubProvider{body: `{"output_text": "not json"}`},
		Logger:   quietLogger(),
	})
	srv := httptest.NewServer(NewHTTPServer(gw, quietLogger(), 0).Handler())
	defer srv.Close()

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"unsupported task", `{"task": "poem"}`, http.StatusBadRequest, "Missing or unsupported task"},
		{"validation", `{"task": "translate", "payload": {"text": "", "target": "en"}}`, http.StatusBadRequest, "text is required"},
		{"invalid model json", `{"task": "translate", "payload": {"text": "Hola", "target": "en"}}`, http.StatusBadGateway, "AI returned invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+TaskPath, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body aitask.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestTaskEndpointRejectsNonPost(t *testing.T) {
	srv := httptest.NewServer(NewHTTPServer(&recordingTasks{}, quietLogger(), 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + TaskPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestTaskEndpointPropagatesRequestID(t *testing.T) {
	tasks := &recordingTasks{}
	srv := httptest.NewServer(NewHTTPServer(tasks, quietLogger(), 0).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+TaskPath, strings.NewReader(`{"task":"explain"}`))
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "req-42", tasks.requestID)
	assert.Equal(t, `{"task":"explain"}`, tasks.body)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(NewHTTPServer(&recordingTasks{}, quietLogger(), 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}
