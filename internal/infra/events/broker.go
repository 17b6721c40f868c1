// Package events fans registry events out to sinks and subscribers.
package events

import (
	"sync"

	"github.com/runoshun/git-delegate/internal/domain"
)

// Sink receives every published event synchronously.
type Sink interface {
	Write(ev domain.Event) error
}

// subscriberBuffer is the channel capacity of each subscriber.
const subscriberBuffer = 256

// Broker implements domain.EventPublisher.
// Sinks are called in publish order; subscribers get buffered channels and
// miss events when their buffer is full.
// Fields are ordered to minimize memory padding.
type Broker struct {
	logger domain.Logger
	sinks  []Sink
	subs   map[int]chan domain.Event
	nextID int
	mu     sync.Mutex
}

// NewBroker creates a broker writing to sinks.
func NewBroker(logger domain.Logger, sinks ...Sink) *Broker {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	return &Broker{
		logger: logger,
		sinks:  sinks,
		subs:   make(map[int]chan domain.Event),
	}
}

// Ensure Broker implements domain.EventPublisher interface.
var _ domain.EventPublisher = (*Broker)(nil)

// Publish delivers ev to every sink and subscriber.
func (b *Broker) Publish(ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.sinks {
		if err := s.Write(ev); err != nil {
			b.logger.Warn(ev.TaskID, "events", "write event: "+err.Error())
		}
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug(ev.TaskID, "events", "subscriber buffer full, event dropped")
		}
	}
}

// Subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel.
func (b *Broker) Subscribe() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan domain.Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
