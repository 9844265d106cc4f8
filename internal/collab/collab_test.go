package collab

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/ops"
	"github.com/isocanvas/isocanvas/internal/persist"
	"github.com/isocanvas/isocanvas/internal/store"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

var testStyle = geometry.Style{StrokeColor: 0xffffff, StrokeWidth: 1, StrokeAlpha: 1}

func storeOptions(t *testing.T) store.Options {
	t.Helper()
	vp, err := coords.NewViewport(10, 400, 300)
	require.NoError(t, err)
	return store.Options{Viewport: vp, DefaultStyle: testStyle}
}

func emptyDoc(sceneID string) *document.Document {
	return &document.Document{Version: document.FormatVersion, Scene: document.Scene{ID: sceneID, Name: "test"}}
}

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(emptyDoc("scene_test"), storeOptions(t))
	require.NoError(t, err)
	return s
}

func pts(xy ...float64) []coords.Pixeloid {
	out := make([]coords.Pixeloid, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, coords.P(xy[i], xy[i+1]))
	}
	return out
}

func styleSettings() *geometry.StyleSettings {
	ss := testStyle.Settings()
	return &ss
}

func TestSessionAppliesOperations(t *testing.T) {
	s := newSession(t)

	create := &ops.Operation{ID: "op1", Type: ops.ObjectCreate, Kind: geometry.KindRectangle, Vertices: pts(0, 0, 4, 2), Style: styleSettings()}
	seq, err := s.Apply(create)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	require.NotEmpty(t, create.ObjectID)
	id := create.ObjectID

	_, err = s.Apply(&ops.Operation{Type: ops.ObjectMove, ObjectID: id, Delta: &coords.Delta{X: 1, Y: 1}})
	require.NoError(t, err)
	doc, _ := s.Document()
	assert.Equal(t, pts(1, 1, 5, 3), doc.Objects[0].Vertices)

	_, err = s.Apply(&ops.Operation{Type: ops.ObjectResize, ObjectID: id, Anchors: &store.Anchors{A: coords.P(0, 0), B: coords.P(6, 6)}})
	require.NoError(t, err)

	_, err = s.Apply(&ops.Operation{Type: ops.ObjectVertices, ObjectID: id, Vertices: pts(2, 2, 8, 4)})
	require.NoError(t, err)
	doc, _ = s.Document()
	assert.Equal(t, pts(2, 2, 8, 4), doc.Objects[0].Vertices)

	fill := testStyle
	fill.FillEnabled, fill.FillColor, fill.FillAlpha = true, 0xff0000, 0.5
	fs := fill.Settings()
	_, err = s.Apply(&ops.Operation{Type: ops.ObjectStyle, ObjectID: id, Style: &fs})
	require.NoError(t, err)

	hidden := false
	_, err = s.Apply(&ops.Operation{Type: ops.ObjectVisibility, ObjectID: id, Visible: &hidden})
	require.NoError(t, err)
	doc, seq = s.Document()
	assert.Equal(t, int64(6), seq)
	assert.False(t, *doc.Objects[0].Visible)
	assert.True(t, *doc.Objects[0].Style.FillEnabled)

	_, err = s.Apply(&ops.Operation{Type: ops.ObjectDelete, ObjectID: id})
	require.NoError(t, err)
	doc, _ = s.Document()
	assert.Empty(t, doc.Objects)
}

func TestSessionRejectsBadOperations(t *testing.T) {
	s := newSession(t)
	incomplete := &geometry.StyleSettings{StrokeColor: styleSettings().StrokeColor}

	tests := []struct {
		name string
		op   ops.Operation
		code string
	}{
		{"create without style", ops.Operation{Type: ops.ObjectCreate, Kind: geometry.KindPoint, Vertices: pts(1, 1)}, "invalid_input"},
		{"create with incomplete style", ops.Operation{Type: ops.ObjectCreate, Kind: geometry.KindPoint, Vertices: pts(1, 1), Style: incomplete}, "invalid_input"},
		{"degenerate rectangle", ops.Operation{Type: ops.ObjectCreate, Kind: geometry.KindRectangle, Vertices: pts(1, 1, 1, 5), Style: styleSettings()}, "invalid_input"},
		{"rotated diamond", ops.Operation{Type: ops.ObjectCreate, Kind: geometry.KindDiamond, Vertices: pts(5, 2.5, 10, 5, 5, 7.5, 0, 5), Style: styleSettings()}, "precondition_violation"},
		{"move unknown object", ops.Operation{Type: ops.ObjectMove, ObjectID: "obj_missing", Delta: &coords.Delta{X: 1}}, "not_found"},
		{"move without delta", ops.Operation{Type: ops.ObjectMove, ObjectID: "obj_missing"}, "invalid_input"},
		{"visibility without value", ops.Operation{Type: ops.ObjectVisibility, ObjectID: "obj_missing"}, "invalid_input"},
		{"unknown type", ops.Operation{Type: "object.rotate"}, "unknown_operation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := tt.op
			_, err := s.Apply(&op)
			require.Error(t, err)
			assert.Equal(t, tt.code, nackCode(err))
		})
	}

	doc, seq := s.Document()
	assert.Empty(t, doc.Objects)
	assert.Zero(t, seq)
	assert.False(t, s.Unsaved())
}

func TestSessionUnsavedTracking(t *testing.T) {
	s := newSession(t)
	assert.False(t, s.Unsaved())

	_, err := s.Apply(&ops.Operation{Type: ops.ObjectCreate, Kind: geometry.KindPoint, Vertices: pts(1, 1), Style: styleSettings()})
	require.NoError(t, err)
	assert.True(t, s.Unsaved())

	_, seq := s.Document()
	_, err = s.Apply(&ops.Operation{Type: ops.SceneClear})
	require.NoError(t, err)

	s.MarkSaved(seq)
	assert.True(t, s.Unsaved(), "a later operation keeps the session unsaved")

	_, seq = s.Document()
	s.MarkSaved(seq)
	assert.False(t, s.Unsaved())
}

// --- hub ---

func newHub(t *testing.T) (*Hub, persist.Repository, string) {
	t.Helper()
	ctx := context.Background()
	repo, err := persist.OpenSQLite(ctx, filepath.Join(t.TempDir(), "scenes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	sceneID := "scene_hub"
	_, err = repo.CreateScene(ctx, sceneID, "hub test")
	require.NoError(t, err)

	h := NewHub(repo, storeOptions(t), 0)
	go h.Run()
	t.Cleanup(h.Stop)
	return h, repo, sceneID
}

func join(t *testing.T, h *Hub, sceneID, editor string, canEdit bool) *Client {
	t.Helper()
	c := NewClient(h, nil, Identity{
		SceneID:     sceneID,
		ClientID:    "client-" + editor,
		EditorID:    editor,
		DisplayName: editor,
		CanEdit:     canEdit,
	})
	require.NoError(t, h.Register(context.Background(), c))
	return c
}

// next reads messages from c until one of type typ arrives.
func next(t *testing.T, c *Client, typ string) *Message {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case data := <-c.send:
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg.Type == typ {
				return &msg
			}
		case <-timeout:
			t.Fatalf("no %s message", typ)
			return nil
		}
	}
}

func submit(t *testing.T, h *Hub, c *Client, op ops.Operation) {
	t.Helper()
	payload, err := json.Marshal(OperationSubmitPayload{Operation: op})
	require.NoError(t, err)
	h.handleMessage(c, &Message{Type: TypeOpSubmit, Payload: payload})
}

func TestHubJoinSendsWelcomeAndDocument(t *testing.T) {
	h, _, sceneID := newHub(t)
	a := join(t, h, sceneID, "alice", true)

	var welcome WelcomePayload
	require.NoError(t, json.Unmarshal(next(t, a, TypeWelcome).Payload, &welcome))
	assert.True(t, welcome.CanEdit)
	assert.Equal(t, "alice", welcome.EditorID)

	var sync DocSyncPayload
	require.NoError(t, json.Unmarshal(next(t, a, TypeDocSync).Payload, &sync))
	assert.Equal(t, sceneID, sync.Document.Scene.ID)
	assert.Empty(t, sync.Document.Objects)

	b := join(t, h, sceneID, "bob", false)
	var joined PresenceJoinPayload
	require.NoError(t, json.Unmarshal(next(t, a, TypePresenceJoin).Payload, &joined))
	assert.Equal(t, "bob", joined.EditorID)
	next(t, b, TypeDocSync)
}

func TestHubRegisterUnknownScene(t *testing.T) {
	h, _, _ := newHub(t)
	c := NewClient(h, nil, Identity{SceneID: "scene_missing", ClientID: "client-eve", EditorID: "eve", CanEdit: true})
	assert.ErrorIs(t, h.Register(context.Background(), c), persist.ErrNotFound)
}

func TestHubOperationAckAndBroadcast(t *testing.T) {
	h, _, sceneID := newHub(t)
	a := join(t, h, sceneID, "alice", true)
	b := join(t, h, sceneID, "bob", true)

	submit(t, h, a, ops.Operation{ID: "op_1", Type: ops.ObjectCreate, Kind: geometry.KindCircle, Vertices: pts(5, 5, 7, 5), Style: styleSettings()})

	var ack OperationAckPayload
	require.NoError(t, json.Unmarshal(next(t, a, TypeOpAck).Payload, &ack))
	assert.Equal(t, "op_1", ack.OperationID)
	assert.Equal(t, int64(1), ack.ServerSeq)
	require.NotEmpty(t, ack.ObjectID)

	var bc OperationBroadcastPayload
	require.NoError(t, json.Unmarshal(next(t, b, TypeOpBroadcast).Payload, &bc))
	assert.Equal(t, ack.ObjectID, bc.Operation.ObjectID)
	assert.Equal(t, "alice", bc.EditorID)

	doc, err := h.Document(context.Background(), sceneID)
	require.NoError(t, err)
	require.Len(t, doc.Objects, 1)
	assert.Equal(t, geometry.KindCircle, doc.Objects[0].Kind)
}

func TestHubNacksReadOnlyAndInvalid(t *testing.T) {
	h, _, sceneID := newHub(t)
	viewer := join(t, h, sceneID, "viewer", false)
	editor := join(t, h, sceneID, "editor", true)

	submit(t, h, viewer, ops.Operation{ID: "op_ro", Type: ops.SceneClear})
	var nack OperationNackPayload
	require.NoError(t, json.Unmarshal(next(t, viewer, TypeOpNack).Payload, &nack))
	assert.Equal(t, "read_only", nack.Code)

	submit(t, h, editor, ops.Operation{ID: "op_bad", Type: ops.ObjectDelete, ObjectID: "obj_missing"})
	require.NoError(t, json.Unmarshal(next(t, editor, TypeOpNack).Payload, &nack))
	assert.Equal(t, "op_bad", nack.OperationID)
	assert.Equal(t, "not_found", nack.Code)
}

func TestHubPresenceRelayed(t *testing.T) {
	h, _, sceneID := newHub(t)
	a := join(t, h, sceneID, "alice", true)
	b := join(t, h, sceneID, "bob", true)

	cursor := coords.P(3.5, 4)
	payload, err := json.Marshal(PresencePayload{Cursor: &cursor, SelectedID: "obj_x"})
	require.NoError(t, err)
	h.handleMessage(a, &Message{Type: TypePresenceUpdate, Payload: payload})

	var p PresencePayload
	require.NoError(t, json.Unmarshal(next(t, b, TypePresenceUpdate).Payload, &p))
	assert.Equal(t, cursor, *p.Cursor)
	assert.Equal(t, "alice", p.DisplayName)

	room := h.room(sceneID)
	require.NotNil(t, room)
	room.presence.forget("obj_x")
	assert.Empty(t, room.presence.snapshot()["alice"].SelectedID)
	assert.Equal(t, cursor, *room.presence.snapshot()["alice"].Cursor)
}

func TestPresenceTable(t *testing.T) {
	pt := newPresenceTable()
	bad := coords.P(math.NaN(), 0)
	assert.ErrorIs(t, pt.set("alice", PresencePayload{Cursor: &bad}), errBadCursor)

	require.NoError(t, pt.set("alice", PresencePayload{SelectedID: "obj_a"}))
	require.NoError(t, pt.set("bob", PresencePayload{SelectedID: "obj_b"}))
	pt.forget("obj_a")
	snap := pt.snapshot()
	assert.Empty(t, snap["alice"].SelectedID)
	assert.Equal(t, "obj_b", snap["bob"].SelectedID)

	pt.forget("")
	assert.Empty(t, pt.snapshot()["bob"].SelectedID)

	pt.remove("bob")
	assert.Len(t, pt.snapshot(), 1)

	var state PresenceStatePayload
	require.NoError(t, json.Unmarshal(pt.stateMessage().Payload, &state))
	assert.Contains(t, state.Presences, "alice")
}

func TestHubSavesWhenLastClientLeaves(t *testing.T) {
	h, repo, sceneID := newHub(t)
	a := join(t, h, sceneID, "alice", true)

	submit(t, h, a, ops.Operation{ID: "op_1", Type: ops.ObjectCreate, Kind: geometry.KindPoint, Vertices: pts(2, 2), Style: styleSettings()})
	next(t, a, TypeOpAck)

	h.Unregister(a)
	require.Eventually(t, func() bool { return h.room(sceneID) == nil }, time.Second, 10*time.Millisecond)

	doc, rev, err := repo.LatestRevision(context.Background(), sceneID)
	require.NoError(t, err)
	assert.Equal(t, 1, rev.Version)
	require.Len(t, doc.Objects, 1)

	// Reopening loads the saved revision.
	b := join(t, h, sceneID, "bob", true)
	var sync DocSyncPayload
	require.NoError(t, json.Unmarshal(next(t, b, TypeDocSync).Payload, &sync))
	assert.Len(t, sync.Document.Objects, 1)
}

func TestHubReplaceResyncsClients(t *testing.T) {
	h, _, sceneID := newHub(t)
	a := join(t, h, sceneID, "alice", true)
	next(t, a, TypeDocSync)

	live, err := h.Replace(sceneID, document.NewSampleDocument(sceneID))
	require.NoError(t, err)
	assert.True(t, live)

	var sync DocSyncPayload
	require.NoError(t, json.Unmarshal(next(t, a, TypeDocSync).Payload, &sync))
	assert.NotEmpty(t, sync.Document.Objects)

	live, err = h.Replace("scene_other", emptyDoc("scene_other"))
	require.NoError(t, err)
	assert.False(t, live)
}

func TestIdentityStampOverridesRouting(t *testing.T) {
	id := Identity{SceneID: "scene_a", ClientID: "c1", EditorID: "alice"}
	msg := &Message{Type: TypePresenceUpdate, SceneID: "scene_b", ClientID: "c9", EditorID: "mallory"}
	id.stamp(msg)
	assert.Equal(t, "scene_a", msg.SceneID)
	assert.Equal(t, "c1", msg.ClientID)
	assert.Equal(t, "alice", msg.EditorID)
	assert.Equal(t, TypePresenceUpdate, msg.Type)
}

func TestHubBroadcastsInSeqOrder(t *testing.T) {
	h, _, sceneID := newHub(t)
	a := join(t, h, sceneID, "alice", true)
	b := join(t, h, sceneID, "bob", true)
	watcher := join(t, h, sceneID, "watcher", false)

	submit(t, h, a, ops.Operation{ID: "op_seed", Type: ops.ObjectCreate, Kind: geometry.KindPoint, Vertices: pts(1, 1), Style: styleSettings()})
	var ack OperationAckPayload
	require.NoError(t, json.Unmarshal(next(t, a, TypeOpAck).Payload, &ack))
	next(t, watcher, TypeOpBroadcast)

	const perEditor = 40
	var wg sync.WaitGroup
	for _, c := range []*Client{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perEditor {
				payload, _ := json.Marshal(OperationSubmitPayload{Operation: ops.Operation{
					Type: ops.ObjectMove, ObjectID: ack.ObjectID, Delta: &coords.Delta{X: 1},
				}})
				h.handleMessage(c, &Message{Type: TypeOpSubmit, Payload: payload})
			}
		}()
	}

	last := ack.ServerSeq
	for range 2 * perEditor {
		msg := next(t, watcher, TypeOpBroadcast)
		assert.Greater(t, msg.Seq, last, "broadcast seq went backwards")
		last = msg.Seq
	}
	wg.Wait()
	assert.Equal(t, ack.ServerSeq+2*perEditor, last)
}

func TestHubKeepsProposedObjectID(t *testing.T) {
	h, _, sceneID := newHub(t)
	a := join(t, h, sceneID, "alice", true)
	b := join(t, h, sceneID, "bob", true)

	local := typeid.NewObjectID()
	submit(t, h, a, ops.Operation{ID: "op_1", Type: ops.ObjectCreate, ObjectID: local, Kind: geometry.KindPoint, Vertices: pts(1, 1), Style: styleSettings()})
	var ack OperationAckPayload
	require.NoError(t, json.Unmarshal(next(t, a, TypeOpAck).Payload, &ack))
	assert.Equal(t, local, ack.ObjectID)

	var bc OperationBroadcastPayload
	require.NoError(t, json.Unmarshal(next(t, b, TypeOpBroadcast).Payload, &bc))
	assert.Equal(t, local, bc.Operation.ObjectID)
	assert.Positive(t, bc.Operation.Timestamp, "server stamps creates that carry no time")

	submit(t, h, a, ops.Operation{ID: "op_2", Type: ops.ObjectCreate, ObjectID: "not-an-object", Kind: geometry.KindPoint, Vertices: pts(2, 2), Style: styleSettings()})
	require.NoError(t, json.Unmarshal(next(t, a, TypeOpAck).Payload, &ack))
	assert.NotEqual(t, "not-an-object", ack.ObjectID)

	submit(t, h, a, ops.Operation{ID: "op_3", Type: ops.ObjectCreate, ObjectID: local, Timestamp: 1, Kind: geometry.KindPoint, Vertices: pts(3, 3), Style: styleSettings()})
	var nack OperationNackPayload
	require.NoError(t, json.Unmarshal(next(t, a, TypeOpNack).Payload, &nack))
	assert.Equal(t, "invalid_input", nack.Code)
}

func TestHubRegisterDoesNotHoldLockDuringLoad(t *testing.T) {
	_, repo, sceneID := newHub(t)
	slow := &slowRepository{Repository: repo, gate: make(chan struct{}), entered: make(chan struct{})}
	h := NewHub(slow, storeOptions(t), 0)

	done := make(chan error, 1)
	go func() {
		c := NewClient(h, nil, Identity{SceneID: sceneID, ClientID: "client-slow", EditorID: "slow", CanEdit: true})
		done <- h.Register(context.Background(), c)
	}()
	<-slow.entered

	// Another scene's lookups and broadcasts proceed while the load blocks.
	finished := make(chan struct{})
	go func() {
		_ = h.room("scene_other")
		h.broadcastToRoom("scene_other", newMessage(TypeError, ErrorPayload{Message: "x"}), "")
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("hub lock held during repository load")
	}

	close(slow.gate)
	require.NoError(t, <-done)
	assert.NotNil(t, h.room(sceneID))
}

// slowRepository blocks GetScene until gate closes.
type slowRepository struct {
	persist.Repository
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (r *slowRepository) GetScene(ctx context.Context, id string) (*persist.SceneInfo, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.gate
	return r.Repository.GetScene(ctx, id)
}
