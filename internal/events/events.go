// Package events is the in-process domain event bus. Publish never
// blocks: each subscriber owns a buffered channel and a slow consumer
// drops events rather than stalling the indexing pipeline.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types as reported by Type().
const (
	TypeIndexingStarted   = "indexing_started"
	TypeIndexingProgress  = "indexing_progress"
	TypeIndexingCompleted = "indexing_completed"
	TypeConfigReloaded    = "config_reloaded"
)

// Event is any domain event carried by the bus.
type Event interface {
	Type() string
}

// IndexingStarted fires when an index operation opens.
type IndexingStarted struct {
	OperationID string `json:"operation_id"`
	Collection  string `json:"collection"`
	TotalFiles  int    `json:"total_files"`
}

func (IndexingStarted) Type() string { return TypeIndexingStarted }

// IndexingProgress fires as files complete.
type IndexingProgress struct {
	OperationID    string `json:"operation_id"`
	ProcessedFiles int    `json:"processed_files"`
	CurrentFile    string `json:"current_file"`
}

func (IndexingProgress) Type() string { return TypeIndexingProgress }

// IndexingCompleted fires once per finished operation, cancelled or not.
type IndexingCompleted struct {
	OperationID string `json:"operation_id"`
	Collection  string `json:"collection"`
	Indexed     int    `json:"indexed"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	DurationMS  int64  `json:"duration_ms"`
}

func (IndexingCompleted) Type() string { return TypeIndexingCompleted }

// ConfigReloaded fires when a config section is re-read at runtime.
type ConfigReloaded struct {
	Section   string    `json:"section"`
	Timestamp time.Time `json:"timestamp"`
}

func (ConfigReloaded) Type() string { return TypeConfigReloaded }

const subscriberBuffer = 128

type subscriber struct {
	ch    chan Event
	types map[string]bool // nil means all
}

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*subscriber)}
}

// Subscribe registers a consumer for the given event types (all types
// when none are given). The returned cancel func closes the channel.
func (b *Bus) Subscribe(types ...string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if len(types) > 0 {
		sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber without
// blocking. A full subscriber buffer drops the event for that
// subscriber only.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.types != nil && !sub.types[e.Type()] {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}
