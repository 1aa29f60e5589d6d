package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdocs/internal/document/model"
	"collabdocs/internal/shared"
)

// Helper to read events from a WebSocket connection with a timeout, so
// tests never hang on a missing message.
func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	var event Event
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	require.NoError(t, json.Unmarshal(p, &event), "Failed to unmarshal Event JSON")
	return event
}

// stubDocs hands out one fixed document to anyone, standing in for the
// access-checked facade.
type stubDocs struct {
	doc *model.Document
}

func (s stubDocs) GetDocument(_ context.Context, _ model.Identity, docID string) (*model.Document, error) {
	if s.doc == nil || s.doc.ID != docID {
		return nil, shared.ErrNotFound
	}
	return s.doc, nil
}

func TestSubscribePublishOrder(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("d1")
	defer sub.Unsubscribe()

	for v := 1; v <= 3; v++ {
		hub.Publish(Event{Type: UpdateType, RecordID: "d1", Version: v})
	}
	// Events arrive in the order they were published.
	for v := 1; v <= 3; v++ {
		event := <-sub.C
		assert.Equal(t, v, event.Version)
	}
}

func TestPublishReachesEverySubscriberIncludingActor(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("d1")
	b := hub.Subscribe("d1")
	other := hub.Subscribe("d2")
	defer a.Unsubscribe()
	defer b.Unsubscribe()
	defer other.Unsubscribe()

	hub.Publish(Event{Type: UpdateType, RecordID: "d1", Actor: "alice", Version: 2})

	// No self-echo suppression: the actor's own subscription gets the
	// commit too; clients dedup on version.
	assert.Len(t, a.C, 1)
	assert.Len(t, b.C, 1)
	assert.Empty(t, other.C, "events are scoped by record id")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("d1")
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	hub.Publish(Event{Type: UpdateType, RecordID: "d1", Version: 2})
	assert.Empty(t, sub.C)
}

func TestLaggingSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("d1")
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Well past the buffer size; overflow is dropped, not blocking.
		for v := 0; v < subscriptionBuffer+50; v++ {
			hub.Publish(Event{Type: UpdateType, RecordID: "d1", Version: v})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a lagging subscriber")
	}
	assert.Len(t, sub.C, subscriptionBuffer)
}

func TestHubIntegration(t *testing.T) {
	hub := NewHub()
	doc := &model.Document{
		ID: "test-doc-1", Title: "T", Content: "Hello World",
		Owner: "user1", OwnerEmail: "user1@x.com", Version: 1,
	}
	docs := stubDocs{doc: doc}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The auth middleware is exercised elsewhere; tests pass the
		// identity in the query string.
		username := r.URL.Query().Get("user")
		ServeWs(hub, docs, w, r, model.Identity{Username: username, Email: username + "@x.com"})
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// Client 1 joins and immediately receives the committed snapshot.
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?docId=test-doc-1&user=user1", nil)
	require.NoError(t, err, "Client 1 failed to connect")
	defer conn1.Close()

	snapshot := readEvent(t, conn1)
	assert.Equal(t, SnapshotType, snapshot.Type)
	assert.Equal(t, "test-doc-1", snapshot.RecordID)
	assert.Equal(t, 1, snapshot.Version)
	var got model.Document
	require.NoError(t, json.Unmarshal(snapshot.Record, &got))
	assert.Equal(t, "Hello World", got.Content)

	// Then its own presence broadcast.
	presence := readEvent(t, conn1)
	assert.Equal(t, PresenceUpdateType, presence.Type)

	// Client 2 joins the same document.
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws?docId=test-doc-1&user=user2", nil)
	require.NoError(t, err, "Client 2 failed to connect")
	defer conn2.Close()

	_ = readEvent(t, conn2) // client 2's snapshot

	// Client 1 sees the enlarged presence set.
	presence = readEvent(t, conn1)
	assert.Equal(t, PresenceUpdateType, presence.Type)
	var statuses []UserStatus
	require.NoError(t, json.Unmarshal(presence.Record, &statuses))
	require.Len(t, statuses, 2, "Should be two users in the room")
	names := []string{statuses[0].Username, statuses[1].Username}
	assert.Contains(t, names, "user1")
	assert.Contains(t, names, "user2")
	_ = readEvent(t, conn2) // client 2's copy of the same broadcast

	// A committed write fans out to both clients.
	record, _ := json.Marshal(doc)
	hub.Publish(Event{Type: UpdateType, RecordID: "test-doc-1", Actor: "user1", Version: 2, Record: record})

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		event := readEvent(t, conn)
		assert.Equal(t, UpdateType, event.Type, fmt.Sprintf("client %d", i+1))
		assert.Equal(t, "user1", event.Actor)
		assert.Equal(t, 2, event.Version)
	}
}

func TestHubIntegrationRejectsUnknownDocument(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, stubDocs{}, w, r, model.Identity{Username: "user1", Email: "user1@x.com"})
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws?docId=missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
