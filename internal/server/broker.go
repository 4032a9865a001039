package server

import (
	"encoding/json"
	"sync"

	"github.com/questlab/player/internal/player"
)

// Event is the payload pushed to live subscribers of a session.
type Event struct {
	Type    string           `json:"type"`
	Session *player.Snapshot `json:"session,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Broker is an in-process pub/sub of session snapshots, keyed by session ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel of JSON-encoded events for one session.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(sessionID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(sessionID string, ev Event) {
	data, _ := json.Marshal(ev)
	b.mu.RLock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.RUnlock()
}

// Subscribers reports how many listeners a session has.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// sessionFeed publishes every snapshot of one session as a "state" event.
type sessionFeed struct {
	broker *Broker
	id     string
}

func (f sessionFeed) Observe(s player.Snapshot) {
	f.broker.Publish(f.id, Event{Type: "state", Session: &s})
}
