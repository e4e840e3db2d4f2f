package translation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/babel/pkg/aitask"
)

// Translator fetches one translation from the AI gateway.
type Translator interface {
	Translate(ctx context.Context, text, sourceHint, target, messageID string) (aitask.TranslateResult, error)
}

// EnsureOutcome reports what Ensure did.
type EnsureOutcome int

const (
	// Cached means a valid entry existed and was re-published.
	Cached EnsureOutcome = iota
	// Joined means a fetch for the key was already in flight.
	Joined
	// Started means a new fetch was started.
	Started
)

func (o EnsureOutcome) String() string {
	switch o {
	case Cached:
		return "cached"
	case Joined:
		return "joined"
	case Started:
		return "started"
	default:
		return "unknown"
	}
}

// Coordinator admits at most one fetch per cache key at a time. Results go
// to the Store, which publishes them to every subscriber of the key.
type Coordinator struct {
	mu       sync.Mutex
	inFlight map[CacheKey]struct{}

	store      *Store
	translator Translator
	logger     *logrus.Logger
	wg         sync.WaitGroup
}

// NewCoordinator creates a Coordinator that caches into store.
func NewCoordinator(store *Store, translator Translator, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Coordinator{
		inFlight:   make(map[CacheKey]struct{}),
		store:      store,
		translator: translator,
		logger:     logger,
	}
}

// Ensure makes sure a translation for key is, or will be, published.
// It never blocks on the network: fetches run in their own goroutine.
func (c *Coordinator) Ensure(key CacheKey, text, sourceHint, target string) EnsureOutcome {
	c.mu.Lock()

	if entry, ok := c.store.Get(key); ok {
		c.mu.Unlock()
		ensureCallsTotal.WithLabelValues(Cached.String()).Inc()
		c.store.Put(key, entry)
		return Cached
	}

	if _, ok := c.inFlight[key]; ok {
		c.mu.Unlock()
		ensureCallsTotal.WithLabelValues(Joined.String()).Inc()
		return Joined
	}

	c.inFlight[key] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	ensureCallsTotal.WithLabelValues(Started.String()).Inc()
	inFlightFetches.Inc()
	go c.fetch(key, text, sourceHint, target)
	return Started
}

// Await subscribes to key, calls Ensure and waits for the first outcome.
func (c *Coordinator) Await(ctx context.Context, key CacheKey, text, sourceHint, target string) (Entry, error) {
	events, cancel := c.store.Subscribe(key)
	defer cancel()

	c.Ensure(key, text, sourceHint, target)

	select {
	case ev := <-events:
		switch e := ev.(type) {
		case EntryUpdated:
			return e.Entry, nil
		case EntryFailed:
			return Entry{}, e.Err
		}
		return Entry{}, fmt.Errorf("unexpected event %T", ev)
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// InFlight reports whether a fetch for key is running.
func (c *Coordinator) InFlight(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[key]
	return ok
}

// Wait blocks until every fetch started so far has settled.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// fetch runs one translation to completion. The outcome is published and
// the in-flight marker cleared under the coordinator lock, so a concurrent
// Ensure either joins before publication or sees the settled state.
func (c *Coordinator) fetch(key CacheKey, text, sourceHint, target string) {
	defer c.wg.Done()
	defer inFlightFetches.Dec()

	logger := c.logger.WithFields(logrus.Fields{
		"message_id":      key.MessageID,
		"target_language": key.TargetLanguage,
	})
	logger.Debug("Fetching translation")

	startTime := time.Now()
	result, err := c.translator.Translate(context.Background(), text, sourceHint, target, key.MessageID)
	duration := time.Since(startTime)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		fetchesTotal.WithLabelValues("error").Inc()
		fetchDuration.WithLabelValues("error").Observe(duration.Seconds())
		logger.WithError(err).Warn("Translation fetch failed")
		c.store.MarkFailed(key, err)
	} else {
		fetchesTotal.WithLabelValues("success").Inc()
		fetchDuration.WithLabelValues("success").Observe(duration.Seconds())
		logger.WithField("duration_ms", duration.Milliseconds()).Debug("Translation fetched")
		c.store.Put(key, Entry{
			Translation:      result.Translation,
			DetectedLanguage: result.DetectedLanguage,
			Quality:          result.Quality,
			FetchedAt:        c.store.Now(),
		})
	}

	delete(c.inFlight, key)
}
