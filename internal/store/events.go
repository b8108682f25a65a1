package store

import (
	"time"

	"github.com/umar/agency-chat/internal/models"
)

type EventKind string

const (
	EventChatCreated    EventKind = "chat.created"
	EventMessageSent    EventKind = "message.sent"
	EventChatRead       EventKind = "chat.read"
	EventBookingUpdated EventKind = "booking.updated"
)

// Event describes a completed mutation. Chat is a snapshot taken right after
// the change. Message is set for message.sent and booking.updated. Reader and
// ReadAt, the stamp given to the newly read messages, are set for chat.read.
type Event struct {
	Kind    EventKind
	Chat    models.Chat
	Message *models.Message
	Reader  models.SenderType
	ReadAt  time.Time
}

type Listener func(Event)

// Subscribe registers l for every later mutation. Listeners are called
// synchronously, outside the store lock, in registration order.
func (s *Store) Subscribe(l Listener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

func (s *Store) emit(e Event) {
	s.lmu.RLock()
	ls := make([]Listener, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.RUnlock()

	for _, l := range ls {
		l(e)
	}
}
