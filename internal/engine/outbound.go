package engine

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/ops"
	"github.com/isocanvas/isocanvas/internal/store"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

// OnOperation registers fn to receive an operation for every local object
// edit, ready to submit to the server. Remote operations and document loads
// are never echoed back. A nil fn stops delivery.
func (e *Engine) OnOperation(fn func(ops.Operation)) {
	e.onOp = fn
}

// replay runs fn with outbound operations suppressed.
func (e *Engine) replay(fn func() error) error {
	e.replaying = true
	defer func() { e.replaying = false }()
	return fn()
}

// observe keeps the known object states current and turns local object
// changes into operations.
func (e *Engine) observe(c store.Change) {
	e.dirty = true

	var out []ops.Operation
	switch c.Kind {
	case store.ChangeObjectCreated:
		obj, err := e.store.Object(c.ObjectID)
		if err != nil {
			return
		}
		e.known[obj.ID] = obj
		settings := obj.Style.Settings()
		out = append(out, ops.Operation{
			Type:      ops.ObjectCreate,
			ObjectID:  obj.ID,
			Timestamp: obj.CreatedAt.UnixMilli(),
			Kind:      obj.Kind,
			Vertices:  slices.Clone(obj.Vertices),
			Style:     &settings,
		})
		if !obj.Visible {
			hidden := false
			out = append(out, ops.Operation{Type: ops.ObjectVisibility, ObjectID: obj.ID, Visible: &hidden})
		}
	case store.ChangeObjectUpdated:
		obj, err := e.store.Object(c.ObjectID)
		if err != nil {
			return
		}
		prev := e.known[obj.ID]
		e.known[obj.ID] = obj
		if prev == nil {
			return
		}
		if !slices.Equal(prev.Vertices, obj.Vertices) {
			out = append(out, ops.Operation{Type: ops.ObjectVertices, ObjectID: obj.ID, Vertices: slices.Clone(obj.Vertices)})
		}
		if prev.Style != obj.Style {
			settings := obj.Style.Settings()
			out = append(out, ops.Operation{Type: ops.ObjectStyle, ObjectID: obj.ID, Style: &settings})
		}
		if prev.Visible != obj.Visible {
			visible := obj.Visible
			out = append(out, ops.Operation{Type: ops.ObjectVisibility, ObjectID: obj.ID, Visible: &visible})
		}
	case store.ChangeObjectRemoved:
		delete(e.known, c.ObjectID)
		out = append(out, ops.Operation{Type: ops.ObjectDelete, ObjectID: c.ObjectID})
	case store.ChangeObjectsCleared:
		clear(e.known)
		out = append(out, ops.Operation{Type: ops.SceneClear})
	default:
		return
	}

	if e.replaying || e.onOp == nil {
		return
	}
	for _, op := range out {
		e.clientSeq++
		op.ID = typeid.NewOpID()
		op.ClientSeq = e.clientSeq
		if op.Type == ops.ObjectCreate {
			e.pending[op.ID] = op.ObjectID
		}
		e.onOp(op)
	}
}

// operationReply is the subset of op.ack and op.nack payloads the engine
// needs.
type operationReply struct {
	OperationID string `json:"operationId"`
	ObjectID    string `json:"objectId,omitempty"`
	Code        string `json:"code,omitempty"`
}

// AcknowledgeOperation settles a submitted operation from its op.ack
// payload. When the server filed a created object under a different id the
// local object is re-keyed to match.
func (e *Engine) AcknowledgeOperation(jsonData string) error {
	var ack operationReply
	if err := json.Unmarshal([]byte(jsonData), &ack); err != nil {
		return fmt.Errorf("%w: %v", geometry.ErrInvalidInput, err)
	}
	local, ok := e.pending[ack.OperationID]
	if !ok {
		return nil
	}
	delete(e.pending, ack.OperationID)
	if ack.ObjectID == "" || ack.ObjectID == local {
		return nil
	}
	return e.replay(func() error { return e.rekey(local, ack.ObjectID) })
}

// RejectOperation handles an op.nack payload. A rejected create drops the
// local object, since no other replica will ever hold it.
func (e *Engine) RejectOperation(jsonData string) error {
	var nack operationReply
	if err := json.Unmarshal([]byte(jsonData), &nack); err != nil {
		return fmt.Errorf("%w: %v", geometry.ErrInvalidInput, err)
	}
	local, ok := e.pending[nack.OperationID]
	if !ok {
		return nil
	}
	delete(e.pending, nack.OperationID)
	e.logger.Warn("create rejected", "object", local, "code", nack.Code)
	return e.replay(func() error { return e.store.RemoveObject(local) })
}

func (e *Engine) rekey(from, to string) error {
	obj, err := e.store.Object(from)
	if err != nil {
		return err
	}
	selected := e.store.Selection().ID == from
	if err := e.store.RemoveObject(from); err != nil {
		return err
	}
	err = e.store.ImportObject(store.ObjectSpec{
		ID:        to,
		Kind:      obj.Kind,
		CreatedAt: obj.CreatedAt,
		Visible:   obj.Visible,
		Vertices:  obj.Vertices,
		Style:     obj.Style,
	})
	if err != nil {
		return err
	}
	e.logger.Debug("object re-keyed", "from", from, "to", to)
	if selected {
		return e.store.Select(to)
	}
	return nil
}
