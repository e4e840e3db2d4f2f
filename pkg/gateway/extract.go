package gateway

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("(?i)\\s*```$")
)

// ExtractText pulls the model's text out of a provider response body.
// Recognized shapes, in order:
//   - {"output_text": "..."}
//   - {"output": [{"content": [{"type": "output_text", "text": "..." | {"value": "..."}}]}]}
//   - {"data": [{"content": [{"text": ...}]}]}
//   - {"choices": [{"message": {"content": "..."}}]}
//
// Markdown code fences around the text are removed.
func ExtractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrEmptyUpstream
	}
	root := gjson.ParseBytes(body)

	if v := root.Get("output_text"); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
		return CleanJSONText(v.Str), nil
	}

	if output := root.Get("output"); output.IsArray() {
		var parts []string
		for _, item := range output.Array() {
			for _, content := range item.Get("content").Array() {
				if content.Get("type").String() != "output_text" {
					continue
				}
				text := content.Get("text")
				if !text.Exists() || text.Type == gjson.Null {
					continue
				}
				parts = append(parts, contentText(text))
			}
		}
		if joined := strings.Join(parts, "\n"); strings.TrimSpace(joined) != "" {
			return CleanJSONText(joined), nil
		}
	}

	if v := root.Get("data.0.content.0.text"); present(v) {
		return CleanJSONText(contentText(v)), nil
	}

	if v := root.Get("choices.0.message.content"); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
		return CleanJSONText(v.Str), nil
	}

	return "", ErrEmptyUpstream
}

// CleanJSONText trims text and strips a surrounding ``` or ```json fence.
func CleanJSONText(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = fenceOpen.ReplaceAllString(trimmed, "")
	trimmed = fenceClose.ReplaceAllString(trimmed, "")
	return strings.TrimSpace(trimmed)
}

// contentText reads a content text that is either a string or {"value": string}.
func contentText(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	if value := v.Get("value"); v.IsObject() && value.Type == gjson.String {
		return value.Str
	}
	return v.String()
}

func present(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return v.Exists()
	}
}

// parseObject parses cleaned model text as JSON.
func parseObject(text string) (gjson.Result, error) {
	if !gjson.Valid(text) {
		return gjson.Result{}, ErrInvalidUpstreamJSON
	}
	return gjson.Parse(text), nil
}
