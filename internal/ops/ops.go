// Package ops defines the scene operations exchanged between editors and
// applies them to a store. The server session and the browser engine run
// the same Apply, so a broadcast operation lands identically everywhere.
package ops

import (
	"errors"
	"fmt"
	"time"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/store"
)

var ErrUnknownOperation = errors.New("unknown operation type")

// Operation types. Each maps onto one store action.
const (
	ObjectCreate     = "object.create"
	ObjectMove       = "object.move"
	ObjectResize     = "object.resize"
	ObjectVertices   = "object.vertices"
	ObjectStyle      = "object.style"
	ObjectVisibility = "object.visibility"
	ObjectDelete     = "object.delete"
	SceneClear       = "scene.clear"
)

// Operation is a scene mutation. Only the fields its Type needs are set.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`
	ObjectID  string `json:"objectId,omitempty"`

	// For object.create (Kind, Vertices, Style) and object.vertices (Vertices)
	Kind     geometry.Kind     `json:"kind,omitempty"`
	Vertices []coords.Pixeloid `json:"vertices,omitempty"`

	// For object.move
	Delta *coords.Delta `json:"delta,omitempty"`

	// For object.resize
	Anchors *store.Anchors `json:"anchors,omitempty"`

	// For object.create / object.style
	Style *geometry.StyleSettings `json:"style,omitempty"`

	// For object.visibility
	Visible *bool `json:"visible,omitempty"`
}

// Apply runs op against s. For object.create without an ObjectID the store
// assigns one and op.ObjectID and op.Timestamp are set from the new object;
// with an ObjectID (a broadcast replayed on another replica) the object is
// imported under that id and creation time, which must be set.
func Apply(s *store.Store, op *Operation) error {
	switch op.Type {
	case ObjectCreate:
		style, err := resolveStyle(op.Style)
		if err != nil {
			return err
		}
		if op.ObjectID != "" {
			if op.Timestamp <= 0 {
				return fmt.Errorf("%w: create of %s has no timestamp", store.ErrInvalidInput, op.ObjectID)
			}
			return s.ImportObject(store.ObjectSpec{
				ID:        op.ObjectID,
				Kind:      op.Kind,
				CreatedAt: time.UnixMilli(op.Timestamp).UTC(),
				Visible:   true,
				Vertices:  op.Vertices,
				Style:     style,
			})
		}
		id, err := s.CreateObject(op.Kind, op.Vertices, style)
		if err != nil {
			return err
		}
		obj, err := s.Object(id)
		if err != nil {
			return err
		}
		op.ObjectID = id
		op.Timestamp = obj.CreatedAt.UnixMilli()
		return nil
	case ObjectMove:
		if op.Delta == nil {
			return fmt.Errorf("%w: move needs a delta", store.ErrInvalidInput)
		}
		return s.MoveObject(op.ObjectID, *op.Delta)
	case ObjectResize:
		if op.Anchors == nil {
			return fmt.Errorf("%w: resize needs anchors", store.ErrInvalidInput)
		}
		return s.ResizeObject(op.ObjectID, op.Anchors.A, op.Anchors.B)
	case ObjectVertices:
		return s.SetVertices(op.ObjectID, op.Vertices)
	case ObjectStyle:
		style, err := resolveStyle(op.Style)
		if err != nil {
			return err
		}
		return s.UpdateStyle(op.ObjectID, style)
	case ObjectVisibility:
		if op.Visible == nil {
			return fmt.Errorf("%w: visibility needs a value", store.ErrInvalidInput)
		}
		return s.SetVisible(op.ObjectID, *op.Visible)
	case ObjectDelete:
		return s.RemoveObject(op.ObjectID)
	case SceneClear:
		s.ClearAll()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op.Type)
	}
}

func resolveStyle(ss *geometry.StyleSettings) (geometry.Style, error) {
	if ss == nil {
		return geometry.Style{}, fmt.Errorf("%w: style is required", store.ErrInvalidInput)
	}
	return ss.Resolve()
}

// Code classifies an Apply error for clients.
func Code(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrPreconditionViolation):
		return "precondition_violation"
	case errors.Is(err, store.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnknownOperation):
		return "unknown_operation"
	default:
		return "internal"
	}
}
