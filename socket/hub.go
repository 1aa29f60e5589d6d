// Package socket is the change notifier: per-record fan-out of committed
// writes to live subscribers, plus the WebSocket transport and presence
// tracking that sit on top of it.
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"collabdocs/pkg/logger"
)

const (
	CreateType         = "CREATE"
	UpdateType         = "UPDATE"
	DeleteType         = "DELETE"  // moved to trash
	RestoreType        = "RESTORE" // recovered from trash
	PurgeType          = "PURGE"   // permanently removed
	ShareType          = "SHARE"   // grant created/changed/revoked
	SnapshotType       = "SNAPSHOT"
	PresenceUpdateType = "PRESENCE_UPDATE"
)

// Event is one committed change. Record carries the full post-commit
// state; Version lets clients drop echoes of their own writes.
type Event struct {
	Type     string          `json:"type"`
	RecordID string          `json:"record_id"`
	Actor    string          `json:"actor"`
	Version  int             `json:"version"`
	Record   json.RawMessage `json:"record,omitempty"`
}

// UserStatus is one live participant on a document.
type UserStatus struct {
	Username string    `json:"username"`
	LastSeen time.Time `json:"last_seen"`
}

const subscriptionBuffer = 256

// Subscription receives, in commit order, every event published for one
// record id. Drain C promptly: a full buffer drops events rather than
// stalling writers.
type Subscription struct {
	RecordID string
	C        chan Event

	hub  *Hub
	once sync.Once
}

// Unsubscribe removes the subscription from the hub. Safe to call more
// than once; C is left open so concurrent deliveries never panic.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub routes events to current subscribers of each record id. Publishing
// is fire-and-forget: a slow subscriber loses events, the writer never
// waits.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]map[*Subscription]bool
	presence map[string]map[string]UserStatus
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Subscription]bool),
		presence: make(map[string]map[string]UserStatus),
	}
}

// Subscribe registers interest in a record id and returns the
// unsubscribe capability. Multiple subscribers per id are fine.
func (h *Hub) Subscribe(recordID string) *Subscription {
	sub := &Subscription{
		RecordID: recordID,
		C:        make(chan Event, subscriptionBuffer),
		hub:      h,
	}
	h.mu.Lock()
	if h.rooms[recordID] == nil {
		h.rooms[recordID] = make(map[*Subscription]bool)
	}
	h.rooms[recordID][sub] = true
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sub.RecordID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.RecordID)
		}
	}
}

// Publish delivers the event to every current subscriber of its record,
// the originator of the write included. Deliveries happen outside the
// lock; a subscriber with a full buffer is skipped.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.rooms[e.RecordID]))
	for sub := range h.rooms[e.RecordID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.C <- e:
		default:
			logger.Sugar.Warnf("Subscriber on record %s is lagging, dropping %s event", e.RecordID, e.Type)
		}
	}
}

// Join records a participant on a document and broadcasts the new
// presence set to the room.
func (h *Hub) Join(recordID, username string) {
	h.mu.Lock()
	if h.presence[recordID] == nil {
		h.presence[recordID] = make(map[string]UserStatus)
	}
	h.presence[recordID][username] = UserStatus{Username: username, LastSeen: time.Now()}
	h.mu.Unlock()

	h.broadcastPresence(recordID)
}

// Leave drops a participant and tells the remaining room members.
func (h *Hub) Leave(recordID, username string) {
	h.mu.Lock()
	if room, ok := h.presence[recordID]; ok {
		delete(room, username)
		if len(room) == 0 {
			delete(h.presence, recordID)
		}
	}
	h.mu.Unlock()

	h.broadcastPresence(recordID)
}

// Presence returns the current participants on a document.
func (h *Hub) Presence(recordID string) []UserStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]UserStatus, 0, len(h.presence[recordID]))
	for _, status := range h.presence[recordID] {
		out = append(out, status)
	}
	return out
}

func (h *Hub) broadcastPresence(recordID string) {
	payload, err := json.Marshal(h.Presence(recordID))
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	h.Publish(Event{Type: PresenceUpdateType, RecordID: recordID, Record: payload})
}
