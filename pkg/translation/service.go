package translation

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/babel/pkg/aitask"
	"github.com/dasmlab/babel/pkg/language"
)

// Message is the part of a chat message the translation layer looks at.
type Message struct {
	ID             string
	Text           string
	AuthorID       string
	AuthorLanguage string
}

// Service applies the chat translation policy on top of a Coordinator: it
// skips the current user's own messages and messages already in the
// reader's language.
type Service struct {
	coordinator   *Coordinator
	matcher       *language.Matcher
	currentUserID string
	logger        *logrus.Logger
}

// NewService creates a Service for the user currentUserID.
func NewService(coordinator *Coordinator, matcher *language.Matcher, currentUserID string, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	if matcher == nil {
		matcher = language.NewMatcher(nil, logger)
	}
	return &Service{
		coordinator:   coordinator,
		matcher:       matcher,
		currentUserID: currentUserID,
		logger:        logger,
	}
}

// SourceLanguage returns the author's language when known, otherwise the
// detected language of the text.
func (s *Service) SourceLanguage(msg Message) (string, bool) {
	if lang := strings.TrimSpace(msg.AuthorLanguage); lang != "" {
		return strings.ToLower(lang), true
	}
	return s.matcher.Detect(msg.Text)
}

// NeedsTranslation reports whether msg should be translated into target.
func (s *Service) NeedsTranslation(msg Message, target string) bool {
	if msg.AuthorID == s.currentUserID || strings.TrimSpace(msg.Text) == "" {
		return false
	}
	source, _ := s.SourceLanguage(msg)
	return language.ShouldTranslate(source, target)
}

// Request asks the coordinator for a translation of msg into target when
// the policy calls for one. It reports whether a translation was requested.
func (s *Service) Request(msg Message, target string) bool {
	if !s.NeedsTranslation(msg, target) {
		return false
	}
	source, _ := s.SourceLanguage(msg)
	outcome := s.coordinator.Ensure(CacheKey{MessageID: msg.ID, TargetLanguage: target}, msg.Text, source, target)

	s.logger.WithFields(logrus.Fields{
		"message_id":      msg.ID,
		"source_language": source,
		"target_language": target,
		"outcome":         outcome.String(),
	}).Debug("Requested message translation")
	return true
}

// ReplyTarget returns the language to reply in: the most recent language
// used by someone else that differs from preferred. It reports false when
// the conversation gives no such language.
func (s *Service) ReplyTarget(messages []Message, preferred string) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.AuthorID == s.currentUserID || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		if lang := strings.ToLower(strings.TrimSpace(msg.AuthorLanguage)); lang != "" && !language.LanguagesMatch(lang, preferred) {
			return lang, true
		}
		if detected, ok := s.matcher.Detect(msg.Text); ok && !language.LanguagesMatch(detected, preferred) {
			return detected, true
		}
	}
	return "", false
}

// ReplyContext builds smart reply context from the last n non-blank
// messages, oldest first.
func (s *Service) ReplyContext(messages []Message, n int) []aitask.ReplyContextMessage {
	return BuildReplyContext(messages, s.currentUserID, n, s.matcher)
}

// BuildReplyContext converts the last n non-blank messages into smart reply
// context, oldest first. Languages come from author metadata, or from
// matcher when it is not nil.
func BuildReplyContext(messages []Message, currentUserID string, n int, matcher *language.Matcher) []aitask.ReplyContextMessage {
	if n <= 0 {
		return nil
	}

	var picked []Message
	for i := len(messages) - 1; i >= 0 && len(picked) < n; i-- {
		if strings.TrimSpace(messages[i].Text) != "" {
			picked = append(picked, messages[i])
		}
	}

	out := make([]aitask.ReplyContextMessage, 0, len(picked))
	for i := len(picked) - 1; i >= 0; i-- {
		msg := picked[i]
		role := aitask.RoleOther
		if msg.AuthorID == currentUserID {
			role = aitask.RoleUser
		}
		lang := strings.ToLower(strings.TrimSpace(msg.AuthorLanguage))
		if lang == "" && matcher != nil {
			lang, _ = matcher.Detect(msg.Text)
		}
		out = append(out, aitask.ReplyContextMessage{Role: role, Text: msg.Text, Language: lang})
	}
	return out
}
