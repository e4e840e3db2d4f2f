// Package aitask defines the wire contract shared by the AI gateway and its
// clients: the {task, payload} envelope, the per-task payloads and results,
// and the error body returned on non-2xx responses.
package aitask

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Task names one AI operation. The set is closed.
type Task string

const (
	TaskTranslate    Task = "translate"
	TaskExplain      Task = "explain"
	TaskTone         Task = "tone"
	TaskSmartReplies Task = "smart_replies"
)

// ParseTask parses a wire task name. Matching is exact.
func ParseTask(s string) (Task, error) {
	switch t := Task(s); t {
	case TaskTranslate, TaskExplain, TaskTone, TaskSmartReplies:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported task: %q", s)
	}
}

// Request is the envelope a client sends to the gateway.
type Request struct {
	Task    Task `json:"task"`
	Payload any  `json:"payload"`
}

// Envelope is the envelope as the gateway receives it. Task is left untyped
// so a non-string task is reported as unsupported instead of a decode error.
type Envelope struct {
	Task    any             `json:"task"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorResponse is the body of every non-2xx gateway response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToneStyle is the register a tone rewrite targets.
type ToneStyle string

const (
	ToneFormal  ToneStyle = "formal"
	ToneNeutral ToneStyle = "neutral"
	ToneCasual  ToneStyle = "casual"
)

// ParseToneStyle parses a style case-insensitively.
func ParseToneStyle(s string) (ToneStyle, error) {
	switch style := ToneStyle(strings.ToLower(strings.TrimSpace(s))); style {
	case ToneFormal, ToneNeutral, ToneCasual:
		return style, nil
	default:
		return "", fmt.Errorf("style must be one of formal, neutral, or casual")
	}
}

// Quality is the model's self-assessed translation quality.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
)

// ParseQuality returns the quality label for s, or false if s is not one.
func ParseQuality(s string) (Quality, bool) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityExcellent, QualityGood, QualityFair:
		return q, true
	default:
		return "", false
	}
}

// Role identifies who wrote a message in smart reply context.
type Role string

const (
	RoleUser  Role = "user"
	RoleOther Role = "other"
)

// ReplyContextMessage is one chat message given to the model as context for
// reply suggestions. It is never persisted.
type ReplyContextMessage struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// TranslatePayload is the payload of a translate request.
type TranslatePayload struct {
	Text      string `json:"text"`
	Target    string `json:"target"`
	Source    string `json:"source,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// ExplainPayload is the payload of an explain request.
type ExplainPayload struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// TonePayload is the payload of a tone request.
type TonePayload struct {
	Text   string    `json:"text"`
	Target string    `json:"target"`
	Style  ToneStyle `json:"style"`
}

// SmartRepliesPayload is the payload of a smart_replies request.
type SmartRepliesPayload struct {
	Messages []ReplyContextMessage `json:"messages"`
	Target   string                `json:"target"`
}

// TranslateResult is the result of a translate request.
type TranslateResult struct {
	Translation      string  `json:"translation"`
	DetectedLanguage string  `json:"detectedLanguage,omitempty"`
	Quality          Quality `json:"quality,omitempty"`
}

// ExplainResult is the result of an explain request.
type ExplainResult struct {
	Explanation string `json:"explanation"`
	Tips        string `json:"tips,omitempty"`
}

// ToneResult is the result of a tone request.
type ToneResult struct {
	Rewritten string `json:"rewritten"`
	Notes     string `json:"notes,omitempty"`
}

// SmartRepliesResult is the result of a smart_replies request.
type SmartRepliesResult struct {
	Suggestions []string `json:"suggestions"`
}
