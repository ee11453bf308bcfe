package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const watchHandshakeTimeout = 10 * time.Second

// EventType names one kind of collection change.
type EventType string

// Event types emitted by the gateway.
const (
	EventCreated EventType = "item.created"
	EventUpdated EventType = "item.updated"
	EventDeleted EventType = "item.deleted"
)

// Event is one change notification from the gateway. Deleted events carry
// only the item id.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	ItemID    string    `json:"item_id"`
	Item      *Item     `json:"item,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WatchHandlers routes events to per-type callbacks. Nil handlers are
// skipped. OnAll, when set, receives every event after the typed handler.
type WatchHandlers struct {
	OnCreate func(Event)
	OnUpdate func(Event)
	OnDelete func(Event)
	OnAll    func(Event)
}

// Watch dials the watch stream and dispatches events to handlers until the
// context is cancelled or the server closes the stream. A context
// cancellation returns ctx.Err(); a clean server close returns nil. There
// is no automatic reconnection.
func (c *Client) Watch(ctx context.Context, handlers WatchHandlers) error {
	if c == nil {
		return fmt.Errorf("client: client is nil")
	}

	wsURL, err := c.watchURL()
	if err != nil {
		return err
	}

	dialer := &websocket.Dialer{HandshakeTimeout: watchHandshakeTimeout}
	header := http.Header{}
	if c.authToken != "" {
		header.Set("Authorization", "Bearer "+c.authToken)
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return fmt.Errorf("client: dial watch stream: %s: %w", resp.Status, err)
		}
		return fmt.Errorf("client: dial watch stream: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context ends so the read loop unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("client: read watch stream: %w", err)
		}
		handlers.dispatch(event)
	}
}

func (h WatchHandlers) dispatch(event Event) {
	switch event.Type {
	case EventCreated:
		if h.OnCreate != nil {
			h.OnCreate(event)
		}
	case EventUpdated:
		if h.OnUpdate != nil {
			h.OnUpdate(event)
		}
	case EventDeleted:
		if h.OnDelete != nil {
			h.OnDelete(event)
		}
	}
	if h.OnAll != nil {
		h.OnAll(event)
	}
}

func (c *Client) watchURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("client: parse base URL: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + c.collectionPath() + "/watch"
	return parsed.String(), nil
}
