package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	maxMsgSize  = 64 * 1024
	sendBacklog = 256
)

// Identity is who is on the other end of a connection. It is fixed at
// connect time: CanEdit comes from the edit token, if one was presented.
type Identity struct {
	SceneID     string
	ClientID    string
	EditorID    string
	DisplayName string
	CanEdit     bool
}

// stamp overwrites the routing fields of an inbound message so a client
// cannot speak for another editor or scene.
func (id Identity) stamp(msg *Message) {
	msg.SceneID = id.SceneID
	msg.ClientID = id.ClientID
	msg.EditorID = id.EditorID
}

// Client is one websocket connection joined to a scene room.
type Client struct {
	Identity

	hub  *Hub
	conn *websocket.Conn

	mu      sync.Mutex
	send    chan []byte
	closed  bool
	dropped int
}

func NewClient(hub *Hub, conn *websocket.Conn, id Identity) *Client {
	return &Client{
		Identity: id,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBacklog),
	}
}

// ReadPump feeds inbound messages to the hub until the connection ends,
// then leaves the room.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	for {
		msg, err := c.readMessage(ctx)
		if errors.Is(err, errMalformed) {
			slog.Warn("invalid message", "error", err, "editor", c.EditorID)
			continue
		}
		if err != nil {
			if s := websocket.CloseStatus(err); s != websocket.StatusNormalClosure && s != websocket.StatusGoingAway {
				slog.Debug("read error", "error", err, "editor", c.EditorID)
			}
			return
		}
		c.hub.handleMessage(c, msg)
	}
}

var errMalformed = errors.New("malformed message")

func (c *Client) readMessage(ctx context.Context) (*Message, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, errMalformed
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(errMalformed, err)
	}
	c.stamp(&msg)
	return &msg, nil
}

// WritePump drains the send queue and keeps the connection alive with
// pings. It returns when the queue is closed by the hub or a write fails.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, data); err != nil {
				slog.Debug("write error", "error", err, "editor", c.EditorID)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Send queues msg for the write pump. Messages to a closed client are
// discarded; a full queue drops the message, and the client resyncs from
// the next doc.sync it asks for.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "type", msg.Type, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.dropped++
		slog.Warn("client send queue full, dropping message",
			"editor", c.EditorID, "type", msg.Type, "dropped", c.dropped)
	}
}

// close ends the write pump once queued messages are flushed.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
