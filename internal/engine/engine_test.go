package engine

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/ops"
	"github.com/isocanvas/isocanvas/internal/render"
	"github.com/isocanvas/isocanvas/internal/store"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultOptions(400, 300))
	require.NoError(t, err)
	return e
}

func commands(t *testing.T, frame string) []render.DrawCommand {
	t.Helper()
	var cmds []render.DrawCommand
	require.NoError(t, json.Unmarshal([]byte(frame), &cmds))
	return cmds
}

// geometryPaths counts the paths drawn inside the geometry layer.
func geometryPaths(cmds []render.DrawCommand) int {
	n, inside := 0, false
	for _, c := range cmds {
		switch c.Op {
		case "beginLayer":
			inside = c.Layer == "geometry"
		case "endLayer":
			inside = false
		case "path":
			if inside {
				n++
			}
		}
	}
	return n
}

func TestSampleRenders(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.LoadSampleDocument("scene_sample"))

	frame, err := e.Render()
	require.NoError(t, err)
	cmds := commands(t, frame)
	require.NotEmpty(t, cmds)
	assert.Equal(t, "clear", cmds[0].Op)

	var doc document.Document
	require.NoError(t, json.Unmarshal([]byte(e.GetDocument()), &doc))
	assert.Equal(t, "scene_sample", doc.Scene.ID)
	assert.Equal(t, len(doc.Objects), e.Store().Len())
}

func TestTickRerendersOnlyWhenDirty(t *testing.T) {
	e := newEngine(t)
	assert.True(t, e.IsDirty())

	first, err := e.Tick()
	require.NoError(t, err)
	assert.False(t, e.IsDirty())

	again, err := e.Tick()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = e.KeyDown("ArrowRight", false)
	require.NoError(t, err)
	assert.True(t, e.IsDirty(), "pan marks the frame dirty")

	_, err = e.Tick()
	require.NoError(t, err)
	require.NoError(t, e.SetLayerEnabled("pixelate", true))
	assert.True(t, e.IsDirty(), "layer toggle marks the frame dirty")
}

func TestDrawWithPointer(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.SetDrawingMode("rectangle"))

	require.NoError(t, e.PointerDown(20, 20, 0))
	require.NoError(t, e.PointerMove(65, 45))

	frame, err := e.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, geometryPaths(commands(t, frame)), "create preview is drawn before commit")

	id, err := e.PointerUp(65, 45, 0)
	require.NoError(t, err)
	o, err := e.Store().Object(id)
	require.NoError(t, err)
	assert.Equal(t, []coords.Pixeloid{{X: 2, Y: 2}, {X: 6, Y: 4}}, o.Vertices)

	assert.Equal(t, id, e.HitTest(40, 30))
	assert.Empty(t, e.HitTest(300, 250))

	require.NoError(t, e.SetDrawingMode("none"))
	assert.ErrorIs(t, e.SetDrawingMode("hexagon"), geometry.ErrInvalidInput)
}

func TestEditPreviewAndCommit(t *testing.T) {
	e := newEngine(t)
	id, err := e.Store().CreateObject(geometry.KindLine, []coords.Pixeloid{{X: 1, Y: 1}, {X: 5, Y: 1}}, e.Store().DefaultStyle())
	require.NoError(t, err)

	require.NoError(t, e.BeginEdit(id))
	assert.ErrorIs(t, e.PreviewEdit(`{"style":{"strokeColor":"#ff0000"}}`), geometry.ErrInvalidInput, "partial styles are rejected")
	require.NoError(t, e.PreviewEdit(`{"style":{"strokeColor":"#ff0000","strokeWidth":3,"strokeAlpha":1,"fillEnabled":false}}`))

	o, _ := e.Store().Object(id)
	assert.NotEqual(t, geometry.Color(0xff0000), o.Style.StrokeColor, "target untouched until commit")

	got, err := e.CommitEdit()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	o, _ = e.Store().Object(id)
	assert.Equal(t, geometry.Color(0xff0000), o.Style.StrokeColor)
	assert.Equal(t, 3.0, o.Style.StrokeWidth)
}

func TestApplyOperation(t *testing.T) {
	e := newEngine(t)
	err := e.ApplyOperation(`{"id":"op_1","type":"object.create","objectId":"obj_remote","timestamp":1767225600000,"kind":"point","vertices":[{"x":3,"y":3}],"style":{"strokeColor":"#ffffff","strokeWidth":1,"strokeAlpha":1,"fillEnabled":false}}`)
	require.NoError(t, err)
	_, err = e.Store().Object("obj_remote")
	require.NoError(t, err)

	err = e.ApplyOperation(`{"type":"object.delete","objectId":"obj_nope"}`)
	assert.Equal(t, "not_found", ErrorCode(err))
	assert.Equal(t, "invalid_input", ErrorCode(e.ApplyOperation(`{`)))
}

func TestQueriesAreJSON(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Resize(640, 480))

	var vp coords.Viewport
	require.NoError(t, json.Unmarshal([]byte(e.GetViewport()), &vp))
	assert.Equal(t, 640, vp.Width)

	var layers map[string]bool
	require.NoError(t, json.Unmarshal([]byte(e.GetLayers()), &layers))
	assert.True(t, layers["geometry"])
	assert.False(t, layers["pixelate"])

	var p coords.Pixeloid
	require.NoError(t, json.Unmarshal([]byte(e.WorldPoint(25, 37)), &p))
	assert.Equal(t, coords.P(2, 3), p)

	var sel store.Selection
	require.NoError(t, json.Unmarshal([]byte(e.GetSelection()), &sel))
	assert.Empty(t, sel.ID)

	assert.Error(t, e.SetLayerEnabled("shadows", true))
	assert.ErrorIs(t, e.Resize(0, 10), store.ErrInvalidInput)
	assert.Equal(t, "invalid_document", ErrorCode(e.LoadDocument(`{"version":99,"scene":{},"objects":[]}`)))
}

func replicate(t *testing.T, to *Engine, sent []ops.Operation) {
	t.Helper()
	for _, op := range sent {
		data, err := json.Marshal(op)
		require.NoError(t, err)
		require.NoError(t, to.ApplyOperation(string(data)), "replaying %s", op.Type)
	}
}

func TestLocalEditsReachSecondReplica(t *testing.T) {
	a, b := newEngine(t), newEngine(t)
	var sent, echoed []ops.Operation
	a.OnOperation(func(op ops.Operation) { sent = append(sent, op) })
	b.OnOperation(func(op ops.Operation) { echoed = append(echoed, op) })

	require.NoError(t, a.SetDrawingMode("rectangle"))
	require.NoError(t, a.PointerDown(20, 20, 0))
	require.NoError(t, a.PointerMove(65, 45))
	id, err := a.PointerUp(65, 45, 0)
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, ops.ObjectCreate, sent[0].Type)
	assert.Equal(t, id, sent[0].ObjectID)
	assert.NotEmpty(t, sent[0].ID)
	assert.Positive(t, sent[0].Timestamp)

	require.NoError(t, a.Store().MoveObject(id, coords.Delta{X: 3, Y: 1}))
	require.NoError(t, a.SetVisible(id, false))
	replicate(t, b, sent)
	assert.Empty(t, echoed, "replayed operations are not re-submitted")
	assert.Equal(t, a.Document().Objects, b.Document().Objects)

	sent = nil
	require.NoError(t, a.Store().RemoveObject(id))
	require.Len(t, sent, 1)
	assert.Equal(t, ops.ObjectDelete, sent[0].Type)
	replicate(t, b, sent)
	assert.Zero(t, b.Store().Len())
}

func TestAcknowledgeRekeysCreate(t *testing.T) {
	e := newEngine(t)
	var sent []ops.Operation
	e.OnOperation(func(op ops.Operation) { sent = append(sent, op) })

	local, err := e.Store().CreateObject(geometry.KindPoint, []coords.Pixeloid{{X: 1, Y: 1}}, e.Store().DefaultStyle())
	require.NoError(t, err)
	require.NoError(t, e.Select(local))
	require.Len(t, sent, 1)

	ack := fmt.Sprintf(`{"operationId":%q,"objectId":"obj_server","serverSeq":1}`, sent[0].ID)
	require.NoError(t, e.AcknowledgeOperation(ack))
	assert.Len(t, sent, 1, "re-keying is not an edit")

	_, err = e.Store().Object(local)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = e.Store().Object("obj_server")
	require.NoError(t, err)
	assert.Equal(t, "obj_server", e.Store().Selection().ID)

	require.NoError(t, e.AcknowledgeOperation(ack), "a second ack is ignored")
}

func TestRejectedCreateIsDropped(t *testing.T) {
	e := newEngine(t)
	var sent []ops.Operation
	e.OnOperation(func(op ops.Operation) { sent = append(sent, op) })

	_, err := e.Store().CreateObject(geometry.KindPoint, []coords.Pixeloid{{X: 1, Y: 1}}, e.Store().DefaultStyle())
	require.NoError(t, err)
	require.Len(t, sent, 1)

	require.NoError(t, e.RejectOperation(fmt.Sprintf(`{"operationId":%q,"code":"read_only"}`, sent[0].ID)))
	assert.Zero(t, e.Store().Len())
	assert.Len(t, sent, 1)
}
