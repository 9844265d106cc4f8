package store

import (
	"fmt"
	"slices"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

// PreviewOp is the interaction a preview belongs to.
type PreviewOp uint8

const (
	OpCreate PreviewOp = iota + 1
	OpEdit
	OpMove
)

func (op PreviewOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpEdit:
		return "edit"
	case OpMove:
		return "move"
	default:
		return "none"
	}
}

func (op PreviewOp) MarshalText() ([]byte, error) { return []byte(op.String()), nil }

// Preview is the read-only view of the preview machine. Object is the draft;
// it is nil while a create preview has not yet received valid geometry.
type Preview struct {
	Active   bool      `json:"isActive"`
	Op       PreviewOp `json:"op,omitempty"`
	TargetID string    `json:"editingObjectId,omitempty"`
	Object   *Object   `json:"previewObject,omitempty"`
}

type previewState struct {
	active   bool
	op       PreviewOp
	targetID string
	draft    *Object
	original Object
}

// Anchors are the two pixeloid points a shape is dragged out between.
type Anchors struct {
	A coords.Pixeloid `json:"a"`
	B coords.Pixeloid `json:"b"`
}

// PreviewInput updates the draft. Exactly one of Anchors and Vertices may be
// set; Style may accompany either or come alone. Kind is required when
// creating and must match the target's kind when editing.
type PreviewInput struct {
	Kind     geometry.Kind     `json:"kind,omitempty"`
	Anchors  *Anchors          `json:"anchors,omitempty"`
	Vertices []coords.Pixeloid `json:"vertices,omitempty"`
	Style    *geometry.Style   `json:"style,omitempty"`
}

// Preview returns a copy of the preview state.
func (s *Store) Preview() Preview {
	if !s.preview.active {
		return Preview{}
	}
	return Preview{
		Active:   true,
		Op:       s.preview.op,
		TargetID: s.preview.targetID,
		Object:   s.preview.draft.Clone(),
	}
}

// StartPreview enters the editing state. With a target id the object is
// snapshotted as the rollback point and copied into the draft; without one
// the draft starts empty. An already active preview is cancelled first.
func (s *Store) StartPreview(op PreviewOp, targetID string) error {
	switch op {
	case OpCreate:
		if targetID != "" {
			return fmt.Errorf("%w: create preview takes no target", ErrInvalidInput)
		}
	case OpEdit, OpMove:
		if _, err := s.lookup(targetID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: preview op %d", ErrInvalidInput, op)
	}

	if s.preview.active {
		s.CancelPreview()
	}

	st := previewState{active: true, op: op, targetID: targetID}
	if targetID != "" {
		target := s.byID[targetID]
		st.original = *target
		st.draft = target.Clone()
	}
	s.preview = st
	s.notify(ChangePreview, targetID)
	return nil
}

// UpdatePreview recomputes the draft through the same geometry functions a
// direct store write uses. It is a no-op while no preview is active. On error
// the draft keeps its previous value.
func (s *Store) UpdatePreview(in PreviewInput) error {
	if !s.preview.active {
		return nil
	}
	if in.Anchors != nil && in.Vertices != nil {
		return fmt.Errorf("%w: anchors and vertices are mutually exclusive", ErrInvalidInput)
	}
	if in.Anchors == nil && in.Vertices == nil && in.Style == nil {
		return fmt.Errorf("%w: empty preview input", ErrInvalidInput)
	}

	kind, err := s.previewKind(in.Kind)
	if err != nil {
		return err
	}

	next := s.preview.draft.Clone()
	if next == nil {
		if in.Anchors == nil && in.Vertices == nil {
			return fmt.Errorf("%w: new object needs geometry before style", ErrInvalidInput)
		}
		next = &Object{Kind: kind, Visible: true, Style: s.defaultStyle}
	}

	var vs []coords.Pixeloid
	switch {
	case in.Anchors != nil:
		vs, err = geometry.GenerateVertices(kind, in.Anchors.A, in.Anchors.B)
		if err != nil {
			return err
		}
	case in.Vertices != nil:
		vs = slices.Clone(in.Vertices)
	}
	if vs != nil {
		vs = geometry.Canonical(kind, vs)
		props, bounds, err := geometry.Validate(kind, vs)
		if err != nil {
			return err
		}
		next.Vertices, next.Properties, next.Bounds = vs, props, bounds
	}

	if in.Style != nil {
		if err := in.Style.Validate(); err != nil {
			return err
		}
		next.Style = *in.Style
	}

	s.preview.draft = next
	s.notify(ChangePreview, s.preview.targetID)
	return nil
}

func (s *Store) previewKind(requested geometry.Kind) (geometry.Kind, error) {
	if s.preview.targetID != "" {
		kind := s.preview.original.Kind
		if requested != 0 && requested != kind {
			return 0, fmt.Errorf("%w: cannot change %s into %s", ErrInvalidInput, kind, requested)
		}
		return kind, nil
	}
	if s.preview.draft != nil {
		if requested != 0 && requested != s.preview.draft.Kind {
			return 0, fmt.Errorf("%w: cannot change %s into %s", ErrInvalidInput, s.preview.draft.Kind, requested)
		}
		return s.preview.draft.Kind, nil
	}
	if !requested.Valid() {
		return 0, fmt.Errorf("%w: shape kind is required", ErrInvalidInput)
	}
	return requested, nil
}

// CommitPreview writes the draft into the store exactly as it is and returns
// the affected object id. Editing replaces the target's vertices, style and
// derived fields; creating appends a new object. Any failure discards the
// preview without touching committed state. Without an active preview it
// does nothing.
func (s *Store) CommitPreview() (string, error) {
	if !s.preview.active {
		return "", nil
	}
	st := s.preview
	s.resetPreview()

	if st.draft == nil {
		s.notify(ChangePreview, "")
		return "", fmt.Errorf("%w: nothing to commit", ErrInvalidInput)
	}

	if st.targetID == "" {
		obj := st.draft.Clone()
		obj.ID = s.newID()
		obj.CreatedAt = s.now()
		obj.Visible = true
		s.notify(ChangePreview, "")
		s.insert(obj)
		return obj.ID, nil
	}

	target, ok := s.byID[st.targetID]
	if !ok {
		s.notify(ChangePreview, st.targetID)
		return "", fmt.Errorf("%w: %s", ErrNotFound, st.targetID)
	}
	target.Vertices = slices.Clone(st.draft.Vertices)
	target.Properties = st.draft.Properties
	target.Bounds = st.draft.Bounds
	target.Style = st.draft.Style
	s.notify(ChangePreview, st.targetID)
	s.touched(target)
	return target.ID, nil
}

// CancelPreview discards the draft. The target object was never modified
// while the preview was active, so nothing needs restoring.
func (s *Store) CancelPreview() {
	if !s.preview.active {
		return
	}
	target := s.preview.targetID
	s.resetPreview()
	s.notify(ChangePreview, target)
}

// PreviewOriginal returns the rollback snapshot taken when an edit preview
// started.
func (s *Store) PreviewOriginal() (*Object, bool) {
	if !s.preview.active || s.preview.targetID == "" {
		return nil, false
	}
	o := s.preview.original
	return o.Clone(), true
}

func (s *Store) resetPreview() {
	s.preview = previewState{}
	s.drag = Drag{}
	if s.drawing.Active {
		s.drawing.Active = false
		s.drawing.Start = coords.Pixeloid{}
		s.notify(ChangeDrawing, "")
	}
}
