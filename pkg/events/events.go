package events

import (
	"sync"
	"time"
)

// EventType represents the type of event published by a collection or a
// store during its lifecycle.
type EventType string

const (
	// EventInsert is published after a document is durably stored by
	// WriteOperations.Insert/InsertBatch.
	EventInsert EventType = "collection.insert"
	// EventUpdate is published after a matching document is merged and
	// restored by WriteOperations.Update/UpdateById.
	EventUpdate EventType = "collection.update"
	// EventRemove is published after a document is deleted by
	// WriteOperations.Remove/RemoveDocument.
	EventRemove EventType = "collection.remove"
	// EventClosing is published during a Store's pre-close hook, carrying
	// the active storage configuration.
	EventClosing EventType = "store.closing"
)

// Event represents a collection or store lifecycle event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// subscription pairs a subscriber channel with the event types it wants.
// An empty types set means "everything" — a collection-insert audit log and
// a store-closing shutdown hook would otherwise each wade through events the
// other only cares about.
type subscription struct {
	ch    Subscriber
	types map[EventType]bool
}

func (s *subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	return s.types[t]
}

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]*subscription
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]*subscription),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel. With no
// types given, the subscriber receives every event (collection and store
// lifecycle alike); passing one or more types restricts delivery to those
// — e.g. a replicator subscribes to EventInsert/EventUpdate/EventRemove
// only, never EventClosing.
func (b *Broker) Subscribe(types ...EventType) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	filter := make(map[EventType]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}
	b.subscribers[sub] = &subscription{ch: sub, types: filter}
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
