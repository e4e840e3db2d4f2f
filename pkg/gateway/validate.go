package gateway

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/dasmlab/babel/pkg/aitask"
)

// Limits bounds request and response sizes.
type Limits struct {
	MaxTextLength     int
	MaxLanguageLength int
	MaxHistory        int
	MaxSuggestions    int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxTextLength:     1500,
		MaxLanguageLength: 32,
		MaxHistory:        6,
		MaxSuggestions:    3,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxTextLength <= 0 {
		l.MaxTextLength = d.MaxTextLength
	}
	if l.MaxLanguageLength <= 0 {
		l.MaxLanguageLength = d.MaxLanguageLength
	}
	if l.MaxHistory <= 0 {
		l.MaxHistory = d.MaxHistory
	}
	if l.MaxSuggestions <= 0 {
		l.MaxSuggestions = d.MaxSuggestions
	}
	return l
}

// historyEntry is a validated smart reply context message.
type historyEntry struct {
	Role     aitask.Role
	Text     string
	Language string
}

func (l Limits) text(field string, v gjson.Result) (string, *Error) {
	if v.Type != gjson.String {
		return "", badRequest("%s must be a string", field)
	}
	trimmed := strings.TrimSpace(v.Str)
	if trimmed == "" {
		return "", badRequest("%s is required", field)
	}
	if utf8.RuneCountInString(trimmed) > l.MaxTextLength {
		return "", badRequest("%s exceeds max length of %d characters", field, l.MaxTextLength)
	}
	return trimmed, nil
}

func (l Limits) language(field string, v gjson.Result) (string, *Error) {
	if v.Type != gjson.String {
		return "", badRequest("%s must be a string", field)
	}
	trimmed := strings.TrimSpace(v.Str)
	if trimmed == "" {
		return "", badRequest("%s is required", field)
	}
	return l.truncateLanguage(trimmed), nil
}

// optionalLanguage normalizes v when it is a non-blank string.
func (l Limits) optionalLanguage(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	trimmed := strings.TrimSpace(v.Str)
	if trimmed == "" {
		return ""
	}
	return l.truncateLanguage(trimmed)
}

func (l Limits) truncateLanguage(tag string) string {
	if utf8.RuneCountInString(tag) > l.MaxLanguageLength {
		tag = string([]rune(tag)[:l.MaxLanguageLength])
	}
	return strings.ToLower(tag)
}

func toneStyle(v gjson.Result) (aitask.ToneStyle, *Error) {
	if v.Type != gjson.String {
		return "", badRequest("style must be a string")
	}
	style, err := aitask.ParseToneStyle(v.Str)
	if err != nil {
		return "", badRequest("%s", err.Error())
	}
	return style, nil
}

// history keeps well-formed entries, most recent last, and drops the rest.
// Both "lang" and "language" are accepted for the entry language.
func (l Limits) history(v gjson.Result) ([]historyEntry, *Error) {
	if !v.IsArray() {
		return nil, badRequest("messages must be an array")
	}

	var entries []historyEntry
	for _, item := range v.Array() {
		if !item.IsObject() {
			continue
		}
		role := aitask.Role(item.Get("role").String())
		if item.Get("role").Type != gjson.String || (role != aitask.RoleUser && role != aitask.RoleOther) {
			continue
		}
		text := item.Get("text")
		if text.Type != gjson.String || strings.TrimSpace(text.Str) == "" {
			continue
		}
		lang := item.Get("lang")
		if lang.Type != gjson.String {
			lang = item.Get("language")
		}
		entries = append(entries, historyEntry{
			Role:     role,
			Text:     strings.TrimSpace(text.Str),
			Language: l.optionalLanguage(lang),
		})
	}

	if len(entries) > l.MaxHistory {
		entries = entries[len(entries)-l.MaxHistory:]
	}
	if len(entries) == 0 {
		return nil, badRequest("messages array cannot be empty")
	}
	return entries, nil
}

// optionalText trims v and reports blank or non-string values as absent.
func optionalText(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}
