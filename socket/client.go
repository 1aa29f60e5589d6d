package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the separately hosted frontend
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DocumentReader is the read operation the socket layer needs: an
// access-checked fetch. The API facade satisfies it.
type DocumentReader interface {
	GetDocument(ctx context.Context, id model.Identity, docID string) (*model.Document, error)
}

// Client is one WebSocket connection subscribed to a single document.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	DocID    string
	Identity model.Identity

	sub  *Subscription
	done chan struct{}
}

// ServeWs upgrades the connection, verifies the identity can read the
// document, sends a snapshot of its current state and starts streaming
// committed changes. The connection is rejected before any subscription
// is made if the access check fails.
func ServeWs(hub *Hub, docs DocumentReader, w http.ResponseWriter, r *http.Request, id model.Identity) {
	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	doc, err := docs.GetDocument(r.Context(), id, docID)
	if err != nil {
		logger.Sugar.Warnf("Connection rejected for %s on doc %s: %v", id.Username, docID, err)
		http.Error(w, "Document not accessible", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	// Snapshot first, so the editor starts from the committed state and
	// can compare incoming event versions against it.
	snapshot, _ := json.Marshal(doc)
	initial := Event{Type: SnapshotType, RecordID: docID, Version: doc.Version, Record: snapshot}
	if err := conn.WriteJSON(initial); err != nil {
		conn.Close()
		return
	}

	client := &Client{
		Hub:      hub,
		Conn:     conn,
		DocID:    docID,
		Identity: id,
		sub:      hub.Subscribe(docID),
		done:     make(chan struct{}),
	}

	hub.Join(docID, id.Username)

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection until it drops. Edits travel over the
// REST API, not the socket, so inbound frames are only connection
// keepalive; anything else is ignored.
func (c *Client) readPump() {
	defer func() {
		c.sub.Unsubscribe()
		c.Hub.Leave(c.DocID, c.Identity.Username)
		c.Conn.Close()
		close(c.done)
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second) // keepalive ping
	defer ticker.Stop()

	for {
		select {
		case event := <-c.sub.C:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling event for %s: %v", c.Identity.Username, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // connection is dead
			}
		case <-c.done:
			return
		}
	}
}
