package translation

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultSubscriberBuffer is the channel capacity of each subscription.
const DefaultSubscriberBuffer = 16

// Event is published for a single cache key: EntryUpdated or EntryFailed.
type Event interface {
	cacheKey() CacheKey
}

// EntryUpdated reports a translation that is available for Key, either
// freshly fetched or re-published from the cache.
type EntryUpdated struct {
	Key   CacheKey
	Entry Entry
}

func (e EntryUpdated) cacheKey() CacheKey { return e.Key }

// EntryFailed reports a failed fetch for Key. Nothing was cached.
type EntryFailed struct {
	Key CacheKey
	Err error
}

func (e EntryFailed) cacheKey() CacheKey { return e.Key }

// DisplayModeChanged reports a new display mode for a message.
type DisplayModeChanged struct {
	MessageID string
	Mode      DisplayMode
}

// topic fans events out to the subscribers of one key. Sends never block:
// a full subscriber misses the event.
type topic[K comparable, E any] struct {
	mu   sync.RWMutex
	subs map[K]map[chan E]struct{}
}

func newTopic[K comparable, E any]() *topic[K, E] {
	return &topic[K, E]{subs: make(map[K]map[chan E]struct{})}
}

func (t *topic[K, E]) subscribe(key K, buffer int) (<-chan E, func()) {
	ch := make(chan E, buffer)

	t.mu.Lock()
	if t.subs[key] == nil {
		t.subs[key] = make(map[chan E]struct{})
	}
	t.subs[key][ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs[key], ch)
			if len(t.subs[key]) == 0 {
				delete(t.subs, key)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// publish returns the number of subscribers that received ev and the number
// that were full.
func (t *topic[K, E]) publish(key K, ev E) (delivered, dropped int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for ch := range t.subs[key] {
		select {
		case ch <- ev:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

// Bus delivers cache events to subscribers of the matching key only.
type Bus struct {
	entries *topic[CacheKey, Event]
	modes   *topic[string, DisplayModeChanged]
	buffer  int
	logger  *logrus.Logger
}

// NewBus creates a bus. A buffer below 1 uses DefaultSubscriberBuffer.
func NewBus(buffer int, logger *logrus.Logger) *Bus {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		entries: newTopic[CacheKey, Event](),
		modes:   newTopic[string, DisplayModeChanged](),
		buffer:  buffer,
		logger:  logger,
	}
}

// Subscribe registers for events about key. The returned cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(key CacheKey) (<-chan Event, func()) {
	return b.entries.subscribe(key, b.buffer)
}

// SubscribeDisplayMode registers for display mode changes of one message.
func (b *Bus) SubscribeDisplayMode(messageID string) (<-chan DisplayModeChanged, func()) {
	return b.modes.subscribe(messageID, b.buffer)
}

// Publish delivers ev to the subscribers of its key.
func (b *Bus) Publish(ev Event) {
	key := ev.cacheKey()
	_, dropped := b.entries.publish(key, ev)
	if dropped > 0 {
		eventsDroppedTotal.WithLabelValues("entry").Add(float64(dropped))
		b.logger.WithFields(logrus.Fields{
			"message_id":      key.MessageID,
			"target_language": key.TargetLanguage,
			"dropped":         dropped,
		}).Warn("Subscriber buffer full, dropped translation event")
	}
}

// PublishDisplayMode delivers ev to the subscribers of its message.
func (b *Bus) PublishDisplayMode(ev DisplayModeChanged) {
	_, dropped := b.modes.publish(ev.MessageID, ev)
	if dropped > 0 {
		eventsDroppedTotal.WithLabelValues("display_mode").Add(float64(dropped))
		b.logger.WithFields(logrus.Fields{
			"message_id": ev.MessageID,
			"dropped":    dropped,
		}).Warn("Subscriber buffer full, dropped display mode event")
	}
}
