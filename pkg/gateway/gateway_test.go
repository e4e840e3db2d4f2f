package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dasmlab/babel/pkg/aitask"
	"github.com/dasmlab/babel/pkg/model"
)

// fakeProvider answers every call with a fixed body or error and records the
// requests it saw.
type fakeProvider struct {
	mu       sync.Mutex
	body     string
	err      error
	requests []model.Request
}

func (f *fakeProvider) Complete(_ context.Context, req model.Request) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func (f *fakeProvider) CheckHealth(context.Context) error { return nil }

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) lastRequest(t *testing.T) model.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// outputText wraps model text the way the Responses API does.
func outputText(text string) string {
	body, _ := json.Marshal(map[string]string{"output_text": text})
	return string(body)
}

func newTestGateway(p model.Provider) *Gateway {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(Options{Provider: p, Logger: logger})
}

func envelope(t *testing.T, task string, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"task": task, "payload": payload})
	require.NoError(t, err)
	return body
}

func serve(t *testing.T, g *Gateway, task string, payload any) (int, any) {
	t.Helper()
	return g.Serve(context.Background(), envelope(t, task, payload))
}

func errorMessage(t *testing.T, body any) string {
	t.Helper()
	resp, ok := body.(aitask.ErrorResponse)
	require.True(t, ok, "expected error response, got %T", body)
	return resp.Error
}

func TestTranslateStripsFence(t *testing.T) {
	p := &fakeProvider{body: outputText("```json\n{\"translation\": \"Hello\", \"detected_language\": \"es\", \"quality\": \"Excellent\"}\n```")}
	g := newTestGateway(p)

	status, body := serve(t, g, "translate", map[string]any{"text": "Hola", "target": "en"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, &aitask.TranslateResult{
		Translation:      "Hello",
		DetectedLanguage: "es",
		Quality:          aitask.QualityExcellent,
	}, body)

	req := p.lastRequest(t)
	assert.Equal(t, model.DefaultModel, req.Model)
	assert.InDelta(t, 0.2, req.Temperature, 0.0001)
	require.Len(t, req.Input, 2)
	assert.Equal(t, model.RoleSystem, req.Input[0].Role)
	assert.True(t, strings.HasSuffix(req.Input[0].Content, "Respond with a single JSON object only."))

	user := gjson.Parse(req.Input[1].Content)
	assert.Equal(t, "Hola", user.Get("text").String())
	assert.Equal(t, "en", user.Get("target_language").String())
	assert.Equal(t, "auto", user.Get("source_language").String())
}

func TestTranslateTextValidation(t *testing.T) {
	p := &fakeProvider{body: outputText(`{"translation": "x"}`)}
	g := newTestGateway(p)

	tests := []struct {
		name    string
		payload map[string]any
		message string
	}{
		{"too long", map[string]any{"text": strings.Repeat("a", 1501), "target": "en"}, "text exceeds max length of 1500 characters"},
		{"empty", map[string]any{"text": "", "target": "en"}, "text is required"},
		{"whitespace", map[string]any{"text": "  \n ", "target": "en"}, "text is required"},
		{"missing", map[string]any{"target": "en"}, "text must be a string"},
		{"not a string", map[string]any{"text": 42, "target": "en"}, "text must be a string"},
		{"missing target", map[string]any{"text": "Hola"}, "target must be a string"},
		{"blank target", map[string]any{"text": "Hola", "target": " "}, "target is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serve(t, g, "translate", tt.payload)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.message, errorMessage(t, body))
		})
	}
	assert.Zero(t, p.calls())
}

func TestTranslateLengthCountsCharacters(t *testing.T) {
	p := &fakeProvider{body: outputText(`{"translation": "ok"}`)}
	g := newTestGateway(p)

	status, _ := serve(t, g, "translate", map[string]any{"text": strings.Repeat("é", 1500), "target": "en"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = serve(t, g, "translate", map[string]any{"text": "  " + strings.Repeat("a", 1500) + "  ", "target": "en"})
	assert.Equal(t, http.StatusOK, status)
}

func TestTranslateNormalizesLanguages(t *testing.T) {
	p := &fakeProvider{body: outputText(`{"translation": "Hello", "quality": "perfect"}`)}
	g := newTestGateway(p)

	longTarget := "EN-" + strings.Repeat("X", 40)
	status, body := serve(t, g, "translate", map[string]any{"text": "Hola", "target": longTarget, "source": "ES-MX"})
	require.Equal(t, http.StatusOK, status)

	result := body.(*aitask.TranslateResult)
	assert.Equal(t, "es-mx", result.DetectedLanguage, "falls back to the request source")
	assert.Empty(t, result.Quality, "unknown quality labels are dropped")

	user := gjson.Parse(p.lastRequest(t).Input[1].Content)
	target := user.Get("target_language").String()
	assert.Len(t, target, 32)
	assert.Equal(t, strings.ToLower(longTarget[:32]), target)
	assert.Equal(t, "es-mx", user.Get("source_language").String())
}

func TestTranslateRejectsBlankModelTranslation(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`{"translation": "   "}`)})

	status, body := serve(t, g, "translate", map[string]any{"text": "Hola", "target": "en"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "translation is required", errorMessage(t, body))
}

func TestTranslateRejectsNonObjectModelOutput(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`["Hello"]`)})

	status, body := serve(t, g, "translate", map[string]any{"text": "Hola", "target": "en"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "translation must be a string", errorMessage(t, body))
}

func TestInvalidJSONDistinctFromEmpty(t *testing.T) {
	payload := map[string]any{"text": "Hola", "target": "en"}

	g := newTestGateway(&fakeProvider{body: outputText("Sure, the translation is Hello")})
	status, body := serve(t, g, "translate", payload)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "AI returned invalid JSON", errorMessage(t, body))

	g = newTestGateway(&fakeProvider{body: `{"output": []}`})
	status, body = serve(t, g, "translate", payload)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "AI returned empty response", errorMessage(t, body))

	_, err := g.Handle(context.Background(), aitask.TaskTranslate, envelopePayload(t, payload))
	assert.ErrorIs(t, err, ErrEmptyUpstream)
	assert.False(t, errors.Is(err, ErrInvalidUpstreamJSON))
}

func envelopePayload(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func TestExplain(t *testing.T) {
	p := &fakeProvider{body: outputText(`{"explanation": " A casual greeting. ", "tips": "  "}`)}
	g := newTestGateway(p)

	status, body := serve(t, g, "explain", map[string]any{"text": "Qué onda", "target": "EN"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, &aitask.ExplainResult{Explanation: "A casual greeting."}, body)

	req := p.lastRequest(t)
	assert.InDelta(t, 0.3, req.Temperature, 0.0001)
	assert.Equal(t, "en", gjson.Get(req.Input[1].Content, "target_language").String())
}

func TestExplainRequiresExplanation(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`{"tips": "be polite"}`)})

	status, body := serve(t, g, "explain", map[string]any{"text": "Qué onda", "target": "en"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "explanation must be a string", errorMessage(t, body))
}

func TestTone(t *testing.T) {
	p := &fakeProvider{body: outputText(`{"rewritten": "Good evening, sir.", "notes": " More formal. "}`)}
	g := newTestGateway(p)

	status, body := serve(t, g, "tone", map[string]any{"text": "hey dude", "target": "en", "style": "FORMAL"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, &aitask.ToneResult{Rewritten: "Good evening, sir.", Notes: "More formal."}, body)

	req := p.lastRequest(t)
	assert.InDelta(t, 0.4, req.Temperature, 0.0001)
	assert.Equal(t, "formal", gjson.Get(req.Input[1].Content, "tone").String())
}

func TestToneStyleValidation(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`{"rewritten": "x"}`)})

	status, body := serve(t, g, "tone", map[string]any{"text": "hey", "target": "en", "style": "sarcastic"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "style must be one of formal, neutral, or casual", errorMessage(t, body))

	status, body = serve(t, g, "tone", map[string]any{"text": "hey", "target": "en"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "style must be a string", errorMessage(t, body))
}

func TestSmartRepliesFiltersBlankSuggestions(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`{"suggestions": ["", " ", "ok"]}`)})

	status, body := serve(t, g, "smart_replies", map[string]any{
		"messages": []map[string]any{{"role": "other", "text": "Are you coming?"}},
		"target":   "en",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, &aitask.SmartRepliesResult{Suggestions: []string{"ok"}}, body)
}

func TestSmartRepliesNoSuggestions(t *testing.T) {
	payload := map[string]any{
		"messages": []map[string]any{{"role": "other", "text": "Are you coming?"}},
		"target":   "en",
	}

	for _, modelOut := range []string{`{"suggestions": []}`, `{"suggestions": [" ", 3]}`, `{}`} {
		g := newTestGateway(&fakeProvider{body: outputText(modelOut)})
		status, body := serve(t, g, "smart_replies", payload)
		assert.Equal(t, http.StatusBadGateway, status, modelOut)
		assert.Equal(t, "No suggestions produced", errorMessage(t, body))
	}
}

func TestSmartRepliesCapsSuggestions(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`{"suggestions": [" a ", "b", "", "c", "d"]}`)})

	status, body := serve(t, g, "smart_replies", map[string]any{
		"messages": []map[string]any{{"role": "other", "text": "Hi"}},
		"target":   "en",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"a", "b", "c"}, body.(*aitask.SmartRepliesResult).Suggestions)
}

func TestSmartRepliesHistory(t *testing.T) {
	p := &fakeProvider{body: outputText(`{"suggestions": ["Sure!"]}`)}
	g := newTestGateway(p)

	messages := []any{
		map[string]any{"role": "other", "text": "m1"},
		"not an object",
		map[string]any{"role": "system", "text": "dropped"},
		map[string]any{"role": "user", "text": "   "},
		map[string]any{"role": "user", "text": "m2"},
		map[string]any{"role": "other", "text": "m3"},
		map[string]any{"role": "user", "text": "m4", "lang": "EN"},
		map[string]any{"role": "other", "text": "m5"},
		map[string]any{"role": "user", "text": "m6"},
		map[string]any{"role": "other", "text": " m7 ", "language": "FR"},
	}

	status, _ := serve(t, g, "smart_replies", map[string]any{"messages": messages, "target": "en"})
	require.Equal(t, http.StatusOK, status)

	user := gjson.Parse(p.lastRequest(t).Input[1].Content)
	history := user.Get("history").Array()
	require.Len(t, history, 6)
	assert.Equal(t, "m2", history[0].Get("text").String())
	assert.Equal(t, "en", history[2].Get("language").String())
	assert.False(t, history[1].Get("language").Exists())

	latest := user.Get("latest_message")
	assert.Equal(t, "other", latest.Get("speaker").String())
	assert.Equal(t, "m7", latest.Get("text").String())
	assert.Equal(t, "fr", latest.Get("language").String())
}

func TestSmartRepliesMessageValidation(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`{"suggestions": ["x"]}`)})

	status, body := serve(t, g, "smart_replies", map[string]any{"messages": "hi", "target": "en"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "messages must be an array", errorMessage(t, body))

	status, body = serve(t, g, "smart_replies", map[string]any{
		"messages": []any{map[string]any{"role": "other", "text": ""}, 7},
		"target":   "en",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "messages array cannot be empty", errorMessage(t, body))
}

func TestEnvelopeErrors(t *testing.T) {
	p := &fakeProvider{body: outputText(`{"translation": "x"}`)}
	g := newTestGateway(p)

	bodies := []string{
		`{"task": "summarize", "payload": {}}`,
		`{"payload": {"text": "Hola", "target": "en"}}`,
		`{"task": 7}`,
		`not json`,
		`null`,
	}
	for _, body := range bodies {
		status, resp := g.Serve(context.Background(), []byte(body))
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, "Missing or unsupported task", errorMessage(t, resp))
	}
	assert.Zero(t, p.calls())
}

func TestNonObjectPayload(t *testing.T) {
	g := newTestGateway(&fakeProvider{body: outputText(`{"translation": "x"}`)})

	status, body := g.Serve(context.Background(), []byte(`{"task": "translate", "payload": "Hola"}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "text must be a string", errorMessage(t, body))
}

func TestNotConfigured(t *testing.T) {
	g := newTestGateway(nil)

	status, body := serve(t, g, "translate", map[string]any{"text": "Hola", "target": "en"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "OPENAI_API_KEY is not configured", errorMessage(t, body))

	_, err := g.Handle(context.Background(), aitask.TaskExplain, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestProviderFailure(t *testing.T) {
	g := newTestGateway(&fakeProvider{err: &model.UpstreamError{Status: 429, Body: "rate limited"}})

	status, body := serve(t, g, "explain", map[string]any{"text": "hi", "target": "en"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "AI request failed", errorMessage(t, body))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusBadGateway, StatusOf(ErrNoSuggestions))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	assert.Equal(t, http.StatusBadRequest, StatusOf(badRequest("text is required")))
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFrom(ctx))
	assert.Empty(t, RequestIDFrom(context.Background()))
}
