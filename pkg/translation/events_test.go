package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversByKey(t *testing.T) {
	bus := NewBus(4, quietLogger())
	en := CacheKey{MessageID: "m1", TargetLanguage: "en"}
	de := CacheKey{MessageID: "m1", TargetLanguage: "de"}

	enEvents, cancelEN := bus.Subscribe(en)
	defer cancelEN()
	deEvents, cancelDE := bus.Subscribe(de)
	defer cancelDE()

	bus.Publish(EntryUpdated{Key: en, Entry: Entry{Translation: "Hello"}})

	require.Len(t, enEvents, 1)
	assert.Empty(t, deEvents)
	assert.Equal(t, "Hello", (<-enEvents).(EntryUpdated).Entry.Translation)
}

func TestBusFanOut(t *testing.T) {
	bus := NewBus(4, quietLogger())
	key := CacheKey{MessageID: "m1", TargetLanguage: "en"}

	a, cancelA := bus.Subscribe(key)
	defer cancelA()
	b, cancelB := bus.Subscribe(key)
	defer cancelB()

	bus.Publish(EntryFailed{Key: key})
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}

func TestBusCancel(t *testing.T) {
	bus := NewBus(4, quietLogger())
	key := CacheKey{MessageID: "m1", TargetLanguage: "en"}

	events, cancel := bus.Subscribe(key)
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)

	assert.NotPanics(t, func() {
		bus.Publish(EntryUpdated{Key: key})
	})
}

func TestBusNeverBlocksPublisher(t *testing.T) {
	bus := NewBus(1, quietLogger())
	key := CacheKey{MessageID: "m1", TargetLanguage: "en"}

	events, cancel := bus.Subscribe(key)
	defer cancel()

	bus.Publish(EntryUpdated{Key: key, Entry: Entry{Translation: "first"}})
	bus.Publish(EntryUpdated{Key: key, Entry: Entry{Translation: "second"}})

	require.Len(t, events, 1)
	assert.Equal(t, "first", (<-events).(EntryUpdated).Entry.Translation)
}

func TestBusDisplayModes(t *testing.T) {
	bus := NewBus(0, quietLogger())

	m1, cancel1 := bus.SubscribeDisplayMode("m1")
	defer cancel1()
	m2, cancel2 := bus.SubscribeDisplayMode("m2")
	defer cancel2()

	bus.PublishDisplayMode(DisplayModeChanged{MessageID: "m2", Mode: DisplayOriginal})

	assert.Empty(t, m1)
	require.Len(t, m2, 1)
	assert.Equal(t, DisplayOriginal, (<-m2).Mode)
}
