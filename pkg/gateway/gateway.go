// Package gateway turns {task, payload} envelopes into model calls and
// validates what the model sends back before it reaches a client.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/dasmlab/babel/pkg/aitask"
	"github.com/dasmlab/babel/pkg/model"
)

type requestIDKey struct{}

// WithRequestID returns a context that carries id for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Options configures a Gateway.
type Options struct {
	// Provider sends prompts to the model. Nil means not configured and every
	// request fails with ErrNotConfigured.
	Provider model.Provider
	// Model is the model name. Defaults to model.DefaultModel.
	Model string
	// Limits bounds request and response sizes. Zero fields use DefaultLimits.
	Limits Limits
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// Gateway validates AI task requests, calls the model and validates its
// output. It keeps no per-request state and is safe for concurrent use.
type Gateway struct {
	provider model.Provider
	model    string
	limits   Limits
	logger   *logrus.Logger
	metrics  *MetricsCollector
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = model.DefaultModel
	}
	engine := ""
	if opts.Provider != nil {
		engine = opts.Provider.Name()
	}
	return &Gateway{
		provider: opts.Provider,
		model:    strings.TrimSpace(opts.Model),
		limits:   opts.Limits.withDefaults(),
		logger:   opts.Logger,
		metrics:  NewMetricsCollector(engine),
	}
}

// Serve handles a raw request body and returns the HTTP status and the value
// to encode as the response: a task result on 200, aitask.ErrorResponse
// otherwise.
func (g *Gateway) Serve(ctx context.Context, body []byte) (int, any) {
	startTime := time.Now()
	taskLabel := ""

	result, err := func() (any, error) {
		if g.provider == nil {
			return nil, ErrNotConfigured
		}
		var env aitask.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, ErrUnsupportedTask
		}
		name, _ := env.Task.(string)
		task, err := aitask.ParseTask(name)
		if err != nil {
			return nil, ErrUnsupportedTask
		}
		taskLabel = string(task)
		return g.Handle(ctx, task, env.Payload)
	}()

	status := StatusOf(err)
	g.metrics.RecordRequest(taskLabel, status, time.Since(startTime), len(body))

	entry := g.logger.WithFields(logrus.Fields{
		"request_id":  RequestIDFrom(ctx),
		"task":        taskLabel,
		"status":      status,
		"duration_ms": time.Since(startTime).Milliseconds(),
	})
	if err != nil {
		gwErr := AsError(err)
		if status >= http.StatusInternalServerError {
			entry.WithError(err).Error("AI task failed")
		} else {
			entry.WithField("reason", gwErr.Message).Info("AI task rejected")
		}
		return status, aitask.ErrorResponse{Error: gwErr.Message}
	}

	entry.Info("AI task completed")
	return status, result
}

// Handle runs one task against payload. Errors are *Error values or wrap
// one; anything else maps to ErrRequestFailed.
func (g *Gateway) Handle(ctx context.Context, task aitask.Task, payload json.RawMessage) (any, error) {
	if g.provider == nil {
		return nil, ErrNotConfigured
	}

	// A missing or non-object payload reads as an object with no fields.
	p := gjson.ParseBytes(payload)
	if !p.IsObject() {
		p = gjson.Parse("{}")
	}

	switch task {
	case aitask.TaskTranslate:
		return g.translate(ctx, p)
	case aitask.TaskExplain:
		return g.explain(ctx, p)
	case aitask.TaskTone:
		return g.tone(ctx, p)
	case aitask.TaskSmartReplies:
		return g.smartReplies(ctx, p)
	default:
		return nil, ErrUnsupportedTask
	}
}

func (g *Gateway) translate(ctx context.Context, p gjson.Result) (*aitask.TranslateResult, error) {
	text, verr := g.limits.text("text", p.Get("text"))
	if verr != nil {
		return nil, verr
	}
	target, verr := g.limits.language("target", p.Get("target"))
	if verr != nil {
		return nil, verr
	}
	source := g.limits.optionalLanguage(p.Get("source"))

	sourceLanguage := source
	if sourceLanguage == "" {
		sourceLanguage = "auto"
	}
	out, err := g.complete(ctx, aitask.TaskTranslate, translateInput{
		Text:           text,
		TargetLanguage: target,
		SourceLanguage: sourceLanguage,
	})
	if err != nil {
		return nil, err
	}

	translation, verr := g.limits.text("translation", out.Get("translation"))
	if verr != nil {
		return nil, badUpstream(verr)
	}
	result := &aitask.TranslateResult{
		Translation:      translation,
		DetectedLanguage: source,
	}
	if detected := optionalText(out.Get("detected_language")); detected != "" {
		result.DetectedLanguage = detected
	}
	if quality, ok := aitask.ParseQuality(optionalText(out.Get("quality"))); ok {
		result.Quality = quality
	}
	return result, nil
}

func (g *Gateway) explain(ctx context.Context, p gjson.Result) (*aitask.ExplainResult, error) {
	text, verr := g.limits.text("text", p.Get("text"))
	if verr != nil {
		return nil, verr
	}
	target, verr := g.limits.language("target", p.Get("target"))
	if verr != nil {
		return nil, verr
	}

	out, err := g.complete(ctx, aitask.TaskExplain, explainInput{Text: text, TargetLanguage: target})
	if err != nil {
		return nil, err
	}

	explanation, verr := g.limits.text("explanation", out.Get("explanation"))
	if verr != nil {
		return nil, badUpstream(verr)
	}
	return &aitask.ExplainResult{
		Explanation: explanation,
		Tips:        optionalText(out.Get("tips")),
	}, nil
}

func (g *Gateway) tone(ctx context.Context, p gjson.Result) (*aitask.ToneResult, error) {
	text, verr := g.limits.text("text", p.Get("text"))
	if verr != nil {
		return nil, verr
	}
	target, verr := g.limits.language("target", p.Get("target"))
	if verr != nil {
		return nil, verr
	}
	style, verr := toneStyle(p.Get("style"))
	if verr != nil {
		return nil, verr
	}

	out, err := g.complete(ctx, aitask.TaskTone, toneInput{Text: text, TargetLanguage: target, Tone: style})
	if err != nil {
		return nil, err
	}

	rewritten, verr := g.limits.text("rewritten", out.Get("rewritten"))
	if verr != nil {
		return nil, badUpstream(verr)
	}
	return &aitask.ToneResult{
		Rewritten: rewritten,
		Notes:     optionalText(out.Get("notes")),
	}, nil
}

func (g *Gateway) smartReplies(ctx context.Context, p gjson.Result) (*aitask.SmartRepliesResult, error) {
	history, verr := g.limits.history(p.Get("messages"))
	if verr != nil {
		return nil, verr
	}
	target, verr := g.limits.language("target", p.Get("target"))
	if verr != nil {
		return nil, verr
	}

	out, err := g.complete(ctx, aitask.TaskSmartReplies, newSmartRepliesInput(target, history))
	if err != nil {
		return nil, err
	}

	suggestions := make([]string, 0, g.limits.MaxSuggestions)
	for _, item := range out.Get("suggestions").Array() {
		if len(suggestions) == g.limits.MaxSuggestions {
			break
		}
		if s := optionalText(item); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) == 0 {
		return nil, ErrNoSuggestions
	}
	return &aitask.SmartRepliesResult{Suggestions: suggestions}, nil
}

// complete sends the task prompt with input as the user segment and parses
// the model's JSON answer.
func (g *Gateway) complete(ctx context.Context, task aitask.Task, input any) (gjson.Result, error) {
	segment, err := json.Marshal(input)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode prompt: %w", err)
	}

	req := model.Request{
		Model:       g.model,
		Temperature: temperatures[task],
		Input: []model.Message{
			{Role: model.RoleSystem, Content: systemPrompt(task)},
			{Role: model.RoleUser, Content: string(segment)},
		},
	}

	startTime := time.Now()
	body, err := g.provider.Complete(ctx, req)
	g.metrics.RecordUpstreamCall(time.Since(startTime), err == nil)
	if err != nil {
		if errors.Is(err, model.ErrNotConfigured) {
			return gjson.Result{}, ErrNotConfigured
		}
		return gjson.Result{}, fmt.Errorf("model call: %w", err)
	}

	text, err := ExtractText(body)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"request_id": RequestIDFrom(ctx),
			"task":       task,
			"body_bytes": len(body),
		}).Warn("No usable text in model response")
		return gjson.Result{}, err
	}

	out, err := parseObject(text)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"request_id": RequestIDFrom(ctx),
			"task":       task,
			"text":       text,
		}).Warn("Failed to parse model JSON")
		return gjson.Result{}, err
	}
	return out, nil
}
