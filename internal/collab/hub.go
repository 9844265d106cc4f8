package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/ops"
	"github.com/isocanvas/isocanvas/internal/persist"
	"github.com/isocanvas/isocanvas/internal/store"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

type Room struct {
	sceneID  string
	clients  map[string]*Client // clientID -> client
	presence *presenceTable
	session  *Session
}

func NewRoom(sceneID string, session *Session) *Room {
	return &Room{
		sceneID:  sceneID,
		clients:  make(map[string]*Client),
		presence: newPresenceTable(),
		session:  session,
	}
}

// Hub owns one Room per scene with connected clients. A room's session is
// loaded from the repository when its first client joins and saved when the
// last one leaves, on every autosave tick and on Stop.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sceneID -> room
	unregister chan *Client

	repo     persist.Repository
	opts     store.Options
	autosave time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub backed by repo. opts supplies the viewport and
// default style of session stores; autosave <= 0 disables periodic saves.
func NewHub(repo persist.Repository, opts store.Options, autosave time.Duration) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		unregister: make(chan *Client),
		repo:       repo,
		opts:       opts,
		autosave:   autosave,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes departures and autosaves until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)

	var tick <-chan time.Time
	if h.autosave > 0 {
		ticker := time.NewTicker(h.autosave)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case client := <-h.unregister:
			h.removeClient(client)
		case <-tick:
			h.Flush(context.Background())
		case <-h.stop:
			h.Flush(context.Background())
			return
		}
	}
}

// Stop saves every unsaved session and ends Run. Run must be running.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

// Register loads the client's scene if needed and joins the client to its
// room. The client receives a welcome, the current document and the
// presence state.
func (h *Hub) Register(ctx context.Context, client *Client) error {
	client.Send(newMessage(TypeWelcome, WelcomePayload{
		ClientID: client.ClientID,
		EditorID: client.EditorID,
		CanEdit:  client.CanEdit,
	}))

	var room *Room
	for joined := false; !joined; {
		var err error
		if room, err = h.openRoom(ctx, client.SceneID); err != nil {
			return err
		}
		// Joining under the session lock keeps the doc sync ahead of every
		// broadcast the client will see.
		room.session.Sync(func(doc *document.Document, seq int64) {
			h.mu.Lock()
			if h.rooms[client.SceneID] == room {
				room.clients[client.ClientID] = client
				joined = true
			}
			h.mu.Unlock()
			if joined {
				client.Send(docSyncMessage(doc, seq))
			}
		})
	}
	client.Send(room.presence.stateMessage())

	joinMsg := newMessage(TypePresenceJoin, PresenceJoinPayload{
		EditorID:    client.EditorID,
		DisplayName: client.DisplayName,
	})
	joinMsg.EditorID = client.EditorID
	h.broadcastToRoom(client.SceneID, joinMsg, client.ClientID)

	slog.Info("client joined", "editor", client.EditorID, "scene", client.SceneID, "canEdit", client.CanEdit)
	return nil
}

// openRoom returns the live room of sceneID, loading it from the repository
// without holding the hub lock.
func (h *Hub) openRoom(ctx context.Context, sceneID string) (*Room, error) {
	if room := h.room(sceneID); room != nil {
		return room, nil
	}
	session, err := h.load(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sceneID]; ok {
		return room, nil
	}
	room := NewRoom(sceneID, session)
	h.rooms[sceneID] = room
	return room, nil
}

// Unregister hands the client to Run for removal.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) load(ctx context.Context, sceneID string) (*Session, error) {
	info, err := h.repo.GetScene(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	doc, _, err := h.repo.LatestRevision(ctx, sceneID)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		doc = &document.Document{
			Version: document.FormatVersion,
			Scene:   document.Scene{ID: info.ID, Name: info.Name},
		}
	case err != nil:
		return nil, err
	}
	session, err := NewSession(doc, h.opts)
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", sceneID, err)
	}
	return session, nil
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		client.close()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.remove(client.EditorID)
	empty := len(room.clients) == 0
	h.mu.Unlock()

	if empty {
		h.closeRoom(room)
	}

	leaveMsg := newMessage(TypePresenceLeave, PresenceLeavePayload{EditorID: client.EditorID})
	leaveMsg.EditorID = client.EditorID
	h.broadcastToRoom(client.SceneID, leaveMsg, "")

	slog.Info("client left", "editor", client.EditorID, "scene", client.SceneID)
}

// closeRoom saves an empty room and drops it. The save runs without the hub
// lock; a client joining meanwhile keeps the room open.
func (h *Hub) closeRoom(room *Room) {
	for {
		err := h.save(context.Background(), room)
		if err != nil {
			slog.Error("save scene on close", "scene", room.sceneID, "error", err)
		}
		unsaved := room.session.Unsaved()

		h.mu.Lock()
		if h.rooms[room.sceneID] != room || len(room.clients) > 0 {
			h.mu.Unlock()
			return
		}
		if err == nil && unsaved {
			// Changed again while saving.
			h.mu.Unlock()
			continue
		}
		delete(h.rooms, room.sceneID)
		h.mu.Unlock()
		return
	}
}

// Flush saves a revision for every room with unsaved changes.
func (h *Hub) Flush(ctx context.Context) {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		if err := h.save(ctx, r); err != nil {
			slog.Error("autosave scene", "scene", r.sceneID, "error", err)
		}
	}
}

func (h *Hub) save(ctx context.Context, room *Room) error {
	if !room.session.Unsaved() {
		return nil
	}
	doc, seq := room.session.Document()
	rev, err := h.repo.SaveRevision(ctx, room.sceneID, doc)
	if err != nil {
		return err
	}
	room.session.MarkSaved(seq)
	slog.Info("scene saved", "scene", room.sceneID, "version", rev.Version, "seq", seq)
	return nil
}

// Document returns the live document of an open scene, or the latest saved
// revision otherwise.
func (h *Hub) Document(ctx context.Context, sceneID string) (*document.Document, error) {
	h.mu.RLock()
	room, ok := h.rooms[sceneID]
	h.mu.RUnlock()
	if ok {
		doc, _ := room.session.Document()
		return doc, nil
	}
	doc, _, err := h.repo.LatestRevision(ctx, sceneID)
	return doc, err
}

// Replace loads doc into an open scene and resyncs its clients. It reports
// false when the scene has no live room.
func (h *Hub) Replace(sceneID string, doc *document.Document) (bool, error) {
	h.mu.RLock()
	room, ok := h.rooms[sceneID]
	h.mu.RUnlock()
	if !ok {
		return false, nil
	}
	_, err := room.session.Replace(doc, func(live *document.Document, seq int64) {
		room.presence.forget("")
		h.broadcastToRoom(sceneID, docSyncMessage(live, seq), "")
	})
	if err != nil {
		return true, err
	}
	return true, nil
}

// Close drops an open scene without saving, used when the scene is deleted.
func (h *Hub) Close(sceneID string) {
	h.mu.Lock()
	room, ok := h.rooms[sceneID]
	if ok {
		delete(h.rooms, sceneID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	msg := newMessage(TypeError, ErrorPayload{Message: "scene deleted"})
	for _, c := range room.clients {
		c.Send(msg)
		c.close()
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(sender, msg)
	case TypeDocRequest:
		if room := h.room(sender.SceneID); room != nil {
			room.session.Sync(func(doc *document.Document, seq int64) {
				sender.Send(docSyncMessage(doc, seq))
			})
		}
	default:
		slog.Warn("unknown message type", "type", msg.Type, "editor", sender.EditorID)
	}
}

func (h *Hub) room(sceneID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sceneID]
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	room := h.room(sender.SceneID)
	if room == nil {
		return
	}

	if err := room.presence.set(sender.EditorID, presence); err != nil {
		slog.Debug("presence rejected", "editor", sender.EditorID, "error", err)
		return
	}

	outMsg := newMessage(TypePresenceUpdate, presence)
	outMsg.EditorID = sender.EditorID
	h.broadcastToRoom(sender.SceneID, outMsg, sender.ClientID)
}

func (h *Hub) handleOpSubmit(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		sender.Send(newMessage(TypeOpNack, OperationNackPayload{
			Code:   "invalid_input",
			Reason: "invalid operation payload: " + err.Error(),
		}))
		return
	}
	op := submit.Operation
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}
	if op.Type == ops.ObjectCreate {
		// A client may propose the id of its local draft; anything else
		// gets a server id. Creation times without a client value are the
		// server's.
		if op.ObjectID != "" && typeid.Validate(op.ObjectID, typeid.PrefixObject) != nil {
			op.ObjectID = ""
		}
		if op.ObjectID != "" && op.Timestamp <= 0 {
			op.Timestamp = GetServerTimestamp()
		}
	}

	room := h.room(sender.SceneID)
	if room == nil {
		return
	}

	var err error
	if sender.CanEdit {
		_, err = room.session.Commit(&op, func(seq int64) {
			h.publish(room, sender, op, seq)
		})
	} else {
		err = ErrReadOnly
	}
	if err != nil {
		slog.Debug("operation rejected", "op", op.Type, "id", op.ID, "editor", sender.EditorID, "error", err)
		sender.Send(newMessage(TypeOpNack, OperationNackPayload{
			OperationID: op.ID,
			Code:        nackCode(err),
			Reason:      err.Error(),
		}))
	}
}

// publish acks op to its sender and broadcasts it to the rest of the room.
// It runs under the session lock, so messages leave in seq order.
func (h *Hub) publish(room *Room, sender *Client, op ops.Operation, seq int64) {
	switch op.Type {
	case ops.ObjectDelete:
		room.presence.forget(op.ObjectID)
	case ops.SceneClear:
		room.presence.forget("")
	}

	ack := newMessage(TypeOpAck, OperationAckPayload{
		OperationID:     op.ID,
		ObjectID:        op.ObjectID,
		ServerSeq:       seq,
		ServerTimestamp: GetServerTimestamp(),
	})
	ack.Seq = seq
	sender.Send(ack)

	out := newMessage(TypeOpBroadcast, OperationBroadcastPayload{
		Operation: op,
		EditorID:  sender.EditorID,
		ServerSeq: seq,
	})
	out.Seq = seq
	out.EditorID = sender.EditorID
	h.broadcastToRoom(room.sceneID, out, sender.ClientID)
}

func (h *Hub) broadcastToRoom(sceneID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[sceneID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func newMessage(typ string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "type", typ, "error", err)
	}
	return &Message{Type: typ, Payload: data}
}

func docSyncMessage(doc *document.Document, seq int64) *Message {
	msg := newMessage(TypeDocSync, DocSyncPayload{Document: doc, ServerSeq: seq})
	msg.Seq = seq
	return msg
}
