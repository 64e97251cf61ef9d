package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session identifies the signed-in user for one request. It is passed
// explicitly to every service that acts on the user's behalf.
type Session struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	TokenVersion int       `json:"-"`
}

type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// SessionEvent is delivered to subscribers after a session change.
type SessionEvent struct {
	Type    EventType
	Session Session
	At      time.Time
}

// broadcaster fans session events out to subscribers synchronously.
type broadcaster struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(SessionEvent)
}

func newBroadcaster() *broadcaster {
	return &broadcaster{handlers: make(map[int]func(SessionEvent))}
}

func (b *broadcaster) subscribe(fn func(SessionEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) publish(ev SessionEvent) {
	b.mu.RLock()
	handlers := make([]func(SessionEvent), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
