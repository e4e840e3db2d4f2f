// Package translation caches per-message translations on the client and
// makes sure concurrent requests for the same translation share one fetch.
package translation

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/babel/pkg/aitask"
)

// DefaultTTL is how long a cached translation stays valid.
const DefaultTTL = 2 * time.Hour

// CacheKey identifies one translation: a message in a target language.
type CacheKey struct {
	MessageID      string
	TargetLanguage string
}

// Entry is a cached translation.
type Entry struct {
	Translation      string
	DetectedLanguage string
	Quality          aitask.Quality
	FetchedAt        time.Time
}

// DisplayMode selects which text of a message is shown.
type DisplayMode string

const (
	DisplayTranslated DisplayMode = "translated"
	DisplayOriginal   DisplayMode = "original"
)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the entry lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds cached translations and per-message display modes and
// publishes every change on its Bus.
type Store struct {
	mu      sync.Mutex
	entries map[CacheKey]Entry
	modes   map[string]DisplayMode

	ttl    time.Duration
	now    func() time.Time
	bus    *Bus
	logger *logrus.Logger
}

// NewStore creates a Store publishing on bus. A nil bus gets a private one.
func NewStore(bus *Bus, logger *logrus.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	if bus == nil {
		bus = NewBus(DefaultSubscriberBuffer, logger)
	}
	s := &Store{
		entries: make(map[CacheKey]Entry),
		modes:   make(map[string]DisplayMode),
		ttl:     DefaultTTL,
		now:     time.Now,
		bus:     bus,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// TTL returns the entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Subscribe registers for events about key.
func (s *Store) Subscribe(key CacheKey) (<-chan Event, func()) {
	return s.bus.Subscribe(key)
}

// SubscribeDisplayMode registers for display mode changes of one message.
func (s *Store) SubscribeDisplayMode(messageID string) (<-chan DisplayModeChanged, func()) {
	return s.bus.SubscribeDisplayMode(messageID)
}

// Get returns the entry for key if it is no older than the TTL. Expired
// entries are removed.
func (s *Store) Get(key CacheKey) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return Entry{}, false
	}
	if s.now().Sub(entry.FetchedAt) > s.ttl {
		delete(s.entries, key)
		cacheLookupsTotal.WithLabelValues("expired").Inc()
		s.logger.WithFields(logrus.Fields{
			"message_id":      key.MessageID,
			"target_language": key.TargetLanguage,
			"age":             s.now().Sub(entry.FetchedAt).String(),
		}).Debug("Evicted expired translation")
		return Entry{}, false
	}
	cacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry, true
}

// Put stores entry for key, replacing any previous one, and publishes
// EntryUpdated.
func (s *Store) Put(key CacheKey, entry Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	s.bus.Publish(EntryUpdated{Key: key, Entry: entry})
}

// MarkFailed publishes EntryFailed for key. The cache is left untouched.
func (s *Store) MarkFailed(key CacheKey, err error) {
	s.bus.Publish(EntryFailed{Key: key, Err: err})
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// DisplayMode returns the display mode of a message. Messages default to
// DisplayTranslated.
func (s *Store) DisplayMode(messageID string) DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayModeLocked(messageID)
}

func (s *Store) displayModeLocked(messageID string) DisplayMode {
	if mode, ok := s.modes[messageID]; ok {
		return mode
	}
	return DisplayTranslated
}

// SetDisplayMode sets the display mode of a message and publishes
// DisplayModeChanged when it changed.
func (s *Store) SetDisplayMode(messageID string, mode DisplayMode) {
	s.mu.Lock()
	changed := s.displayModeLocked(messageID) != mode
	s.modes[messageID] = mode
	s.mu.Unlock()

	if changed {
		s.bus.PublishDisplayMode(DisplayModeChanged{MessageID: messageID, Mode: mode})
	}
}

// ToggleDisplayMode flips the display mode of a message and returns the new
// mode.
func (s *Store) ToggleDisplayMode(messageID string) DisplayMode {
	s.mu.Lock()
	mode := DisplayOriginal
	if s.displayModeLocked(messageID) == DisplayOriginal {
		mode = DisplayTranslated
	}
	s.modes[messageID] = mode
	s.mu.Unlock()

	s.bus.PublishDisplayMode(DisplayModeChanged{MessageID: messageID, Mode: mode})
	return mode
}
