// Package language decides whether a chat message needs translating by
// identifying its language and comparing BCP 47 tags.
package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
	"github.com/sirupsen/logrus"
)

// Detector identifies the dominant language of a text.
// Implementations return a lowercase tag and true, or false when no language
// could be determined.
type Detector interface {
	Detect(text string) (string, bool)
}

// LinguaDetector implements Detector on top of the lingua language models.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector restricted to the given languages.
// With no languages it loads every model lingua ships, lazily.
func NewLinguaDetector(languages ...lingua.Language) *LinguaDetector {
	builder := lingua.NewLanguageDetectorBuilder()
	var detector lingua.LanguageDetector
	if len(languages) >= 2 {
		detector = builder.FromLanguages(languages...).Build()
	} else {
		detector = builder.FromAllLanguages().Build()
	}
	return &LinguaDetector{detector: detector}
}

// Detect returns the ISO 639-1 code of the dominant language of text.
func (d *LinguaDetector) Detect(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	lang, ok := d.detector.DetectLanguageOf(trimmed)
	if !ok {
		return "", false
	}
	code := strings.ToLower(lang.IsoCode639_1().String())
	if code == "" {
		return "", false
	}
	return code, true
}

// Matcher combines language detection with tag matching.
type Matcher struct {
	detector Detector
	logger   *logrus.Logger
}

// NewMatcher creates a Matcher. A nil detector disables detection: Detect
// always reports no language, so callers fall back to translating.
func NewMatcher(detector Detector, logger *logrus.Logger) *Matcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Matcher{detector: detector, logger: logger}
}

// Detect returns the dominant language of text, or false for blank text.
func (m *Matcher) Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" || m.detector == nil {
		return "", false
	}
	code, ok := m.detector.Detect(text)
	if !ok {
		m.logger.WithField("text_length", len(text)).Debug("Language detection found no dominant language")
		return "", false
	}
	return strings.ToLower(code), true
}

// ShouldTranslate reports whether text in source needs translating into
// target. An unknown source always translates.
func ShouldTranslate(source, target string) bool {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return true
	}
	return !LanguagesMatch(source, target)
}

// LanguagesMatch reports whether a and b name the same language. Tags are
// compared case-insensitively, then by base subtag, so "en-US" matches
// "en-GB" and "en". An empty tag never matches.
func LanguagesMatch(a, b string) bool {
	left := strings.ToLower(strings.TrimSpace(a))
	right := strings.ToLower(strings.TrimSpace(b))
	if left == "" || right == "" {
		return false
	}
	if left == right {
		return true
	}
	return BaseCode(left) == BaseCode(right)
}

// BaseCode returns the lowercase primary subtag of a language tag.
// Examples:
//   - "en-US" -> "en"
//   - "zh-Hant-TW" -> "zh"
//   - "FR" -> "fr"
func BaseCode(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.Index(tag, "-"); idx >= 0 {
		return tag[:idx]
	}
	return tag
}
