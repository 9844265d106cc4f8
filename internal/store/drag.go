package store

import (
	"slices"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

// Drag is the state captured once when a drag starts. Every intermediate
// position is Original moved by (pointer - StartPointer); nothing is
// accumulated between updates.
type Drag struct {
	Active        bool              `json:"isDragging"`
	ObjectID      string            `json:"draggedObjectId,omitempty"`
	StartPointer  coords.Pixeloid   `json:"dragStartPosition"`
	VertexOffsets []coords.Delta    `json:"vertexOffsets,omitempty"`
	Original      []coords.Pixeloid `json:"originalVertices,omitempty"`
}

// Drag returns a copy of the drag state.
func (s *Store) Drag() Drag {
	d := s.drag
	d.VertexOffsets = slices.Clone(s.drag.VertexOffsets)
	d.Original = slices.Clone(s.drag.Original)
	return d
}

// StartDrag begins moving an object. It opens a move preview on the object
// and records the pointer and per-vertex offsets.
func (s *Store) StartDrag(id string, pointer coords.Pixeloid) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := s.StartPreview(OpMove, id); err != nil {
		return err
	}
	offsets := make([]coords.Delta, len(o.Vertices))
	for i, v := range o.Vertices {
		offsets[i] = v.Sub(pointer)
	}
	s.drag = Drag{
		Active:        true,
		ObjectID:      id,
		StartPointer:  pointer,
		VertexOffsets: offsets,
		Original:      slices.Clone(o.Vertices),
	}
	return nil
}

// UpdateDrag positions the preview at Original + (pointer - StartPointer).
// It does nothing when no drag is active.
func (s *Store) UpdateDrag(pointer coords.Pixeloid) error {
	if !s.drag.Active {
		return nil
	}
	vs := geometry.MoveVertices(s.drag.Original, pointer.Sub(s.drag.StartPointer))
	return s.UpdatePreview(PreviewInput{Vertices: vs})
}

// CommitDrag writes the dragged position into the store.
func (s *Store) CommitDrag() (string, error) {
	if !s.drag.Active {
		return "", nil
	}
	return s.CommitPreview()
}

// CancelDrag drops the drag; the object keeps its original vertices.
func (s *Store) CancelDrag() {
	if !s.drag.Active {
		return
	}
	s.CancelPreview()
}
