/*
Package events provides an in-memory event broker for Nitrite's collection
and store lifecycle notifications.

It implements a lightweight event bus broadcasting insert/update/remove and
store-closing events to interested subscribers over buffered channels.
Publish waits only while the broker's 100-event channel is full; a
subscriber whose own buffer is full misses the event, so a slow or absent
subscriber never stalls the fan-out.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Per-subscriber type filter               │          │
	│  │  - Publish waits for buffer room            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Collection Events:                         │          │
	│  │    - collection.insert                      │          │
	│  │    - collection.update                      │          │
	│  │    - collection.remove                      │          │
	│  │                                              │          │
	│  │  Store Events:                              │          │
	│  │    - store.closing                          │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  Replicator: Ships writes to a peer store    │          │
	│  │  Audit log: Records document mutations       │          │
	│  │  Metrics: Counts events for dashboards       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Buffered publish channel (100 events); Publish waits while it is full
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (collection.insert, store.closing, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. WriteOperations calls broker.Publish(event) after a durable write
 2. Event added to main event channel (waits while it is full; gives up if the broker stops)
 3. Broadcast loop receives event
 4. Event sent to all subscriber channels
 5. Subscribers receive event asynchronously
 6. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe()
 2. New buffered channel created
 3. Channel registered in subscriber map
 4. Subscriber channel returned
 5. Subscriber receives events via channel
 6. Subscriber processes events in own goroutine

Unsubscribe Flow:
 1. Subscriber calls broker.Unsubscribe(channel)
 2. Channel removed from subscriber map
 3. Channel closed
 4. Subscriber stops receiving events

# Usage

Creating and Starting a Broker:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to Events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Subscribing to a subset of event types (a replicator that never wants to
see a store-closing notification, for instance):

	writes := broker.Subscribe(events.EventInsert, events.EventUpdate, events.EventRemove)
	defer broker.Unsubscribe(writes)

Publishing Events:

	event := &events.Event{
		Type:    events.EventInsert,
		Message: "document inserted",
		Metadata: map[string]string{
			"collection": "users",
			"id":         id.String(),
		},
	}
	broker.Publish(event)

# Event Types Catalog

EventInsert:
  - Published when: WriteOperations.Insert/InsertBatch durably stores a
    document
  - Subscribers: Replicator, audit log, metrics

EventUpdate:
  - Published when: WriteOperations.Update/UpdateById merges and restores
    a matching document
  - Subscribers: Replicator, audit log, metrics

EventRemove:
  - Published when: WriteOperations.Remove/RemoveDocument deletes a
    document
  - Subscribers: Replicator, audit log, metrics

EventClosing:
  - Published when: a Store's pre-close hook runs, carrying the active
    storage configuration
  - Subscribers: Anything that needs to flush before shutdown

# Design Patterns

Buffered Publish:
  - Publish sends to a buffered channel (100 events)
  - Returns at once while the channel has room, otherwise waits for room
  - The event is dropped at Publish only when the broker is stopping
  - Subscribers with full buffers miss the event (see Fan-Out Pattern)

Fan-Out Pattern:
  - Single event broadcast to all subscribers
  - Each subscriber gets own channel
  - Independent processing rates
  - Full buffers skip to prevent blocking

Fire-and-Forget:
  - No acknowledgment from subscribers
  - No retry on delivery failure
  - Suitable for replication/auditing, not a substitute for a durable write

# Limitations

  - In-memory only (no persistence)
  - No event replay or history
  - No guaranteed delivery (best effort)
  - Type filtering happens at Subscribe time only; a subscriber cannot
    change its filter later without unsubscribing and resubscribing

# Best Practices

Do:
  - Always defer broker.Unsubscribe(sub)
  - Process events asynchronously in a goroutine
  - Pass the event types you actually care about to Subscribe instead of
    filtering every event by hand once it arrives
  - Start the broker before publishing events

Don't:
  - Block in a subscriber's event loop
  - Publish events before broker.Start()
  - Forget to unsubscribe (leaks the subscriber channel)
  - Rely on event delivery for a write's own durability guarantee
*/
package events
