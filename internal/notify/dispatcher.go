// Package notify decouples state transitions from their side effects.
// Transition functions return a list of intents; the dispatcher executes
// them asynchronously. Доставка best-effort: збій нотифікації ніколи не
// відкочує вже збережений стан.
package notify

import (
	"log"

	"pairline/backend/internal/models"
)

// Intent kinds.
const (
	KindSystemMessage = "system_message"
	KindRoomOpened    = "room_opened"
	KindRoomClosed    = "room_closed"
	KindChatMessage   = "message"
)

// Intent is one pending side effect produced by a state transition.
type Intent struct {
	Kind       string
	Recipient  string // user ID; порожній — broadcast події кімнати
	ProposalID string
	RoomID     string
	Body       string
}

// Sender delivers an intent over one transport (Redis event bus, Telegram).
type Sender interface {
	Send(intent Intent) error
}

// Dispatcher fans intents out to all configured senders from a single
// goroutine. The queue is buffered; if it overflows the intent is dropped
// with a log line rather than blocking a request handler.
type Dispatcher struct {
	queue   chan Intent
	senders []Sender
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(senders ...Sender) *Dispatcher {
	return &Dispatcher{
		queue:   make(chan Intent, 256),
		senders: senders,
	}
}

// Enqueue hands intents to the dispatcher without blocking the caller.
func (d *Dispatcher) Enqueue(intents ...Intent) {
	for _, in := range intents {
		select {
		case d.queue <- in:
		default:
			log.Printf("WARNING: Notification queue full, dropping intent %s for %s", in.Kind, in.Recipient)
		}
	}
}

// Run запускає основну Goroutine диспетчера.
func (d *Dispatcher) Run() {
	log.Println("Notification dispatcher started.")
	for intent := range d.queue {
		for _, s := range d.senders {
			if err := s.Send(intent); err != nil {
				log.Printf("ERROR: Failed to deliver %s notification for proposal=%s room=%s: %v",
					intent.Kind, intent.ProposalID, intent.RoomID, err)
			}
		}
	}
}

// Stop closes the queue; pending intents are still drained by Run.
func (d *Dispatcher) Stop() {
	close(d.queue)
}

// EventPublisher is the slice of the storage layer the Redis sender needs.
type EventPublisher interface {
	PublishEvent(ev models.Event) error
}

// RedisSender publishes intents to the Redis event bus for pollers and
// ops tooling.
type RedisSender struct {
	Store EventPublisher
}

// Send publishes one intent as an Event.
func (r *RedisSender) Send(intent Intent) error {
	return r.Store.PublishEvent(models.Event{
		Kind:       intent.Kind,
		ProposalID: intent.ProposalID,
		RoomID:     intent.RoomID,
		Recipient:  intent.Recipient,
		SenderID:   "system",
		Content:    intent.Body,
	})
}
