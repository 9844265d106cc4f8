package store

import (
	"fmt"
	"slices"
	"time"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

// ObjectSpec carries the canonical fields of an object restored from
// persistence or received from a remote client. Derived fields are absent on
// purpose: they are recomputed on import.
type ObjectSpec struct {
	ID        string
	Kind      geometry.Kind
	CreatedAt time.Time
	Visible   bool
	Vertices  []coords.Pixeloid
	Style     geometry.Style
}

// CreateObject validates the vertices and style and appends a new visible
// object with a fresh id.
func (s *Store) CreateObject(kind geometry.Kind, vertices []coords.Pixeloid, style geometry.Style) (string, error) {
	obj, err := s.build(kind, vertices, style)
	if err != nil {
		return "", err
	}
	obj.ID = s.newID()
	obj.CreatedAt = s.now()
	obj.Visible = true
	s.insert(obj)
	return obj.ID, nil
}

// ImportObject restores an object with its original id and creation time.
func (s *Store) ImportObject(spec ObjectSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("%w: object id is required", ErrInvalidInput)
	}
	if spec.CreatedAt.IsZero() {
		return fmt.Errorf("%w: object %s has no creation time", ErrInvalidInput, spec.ID)
	}
	if _, exists := s.byID[spec.ID]; exists {
		return fmt.Errorf("%w: object %s already exists", ErrInvalidInput, spec.ID)
	}
	obj, err := s.build(spec.Kind, spec.Vertices, spec.Style)
	if err != nil {
		return fmt.Errorf("object %s: %w", spec.ID, err)
	}
	obj.ID = spec.ID
	obj.CreatedAt = spec.CreatedAt
	obj.Visible = spec.Visible
	s.insert(obj)
	return nil
}

func (s *Store) build(kind geometry.Kind, vertices []coords.Pixeloid, style geometry.Style) (*Object, error) {
	vertices = geometry.Canonical(kind, vertices)
	props, bounds, err := geometry.Validate(kind, vertices)
	if err != nil {
		return nil, err
	}
	if err := style.Validate(); err != nil {
		return nil, err
	}
	return &Object{
		Kind:       kind,
		Vertices:   vertices,
		Style:      style,
		Properties: props,
		Bounds:     bounds,
	}, nil
}

func (s *Store) insert(obj *Object) {
	s.objects = append(s.objects, obj)
	s.byID[obj.ID] = obj
	s.notify(ChangeObjectCreated, obj.ID)
}

// RemoveObject deletes an object. Selection, drag and preview referring to it
// are cleared.
func (s *Store) RemoveObject(id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	if s.preview.active && s.preview.targetID == id {
		s.CancelPreview()
	}
	delete(s.byID, id)
	s.objects = slices.DeleteFunc(s.objects, func(o *Object) bool { return o.ID == id })
	if s.selection.ID == id {
		s.selection = Selection{}
		s.notify(ChangeSelection, "")
	}
	s.notify(ChangeObjectRemoved, id)
	return nil
}

// ClearAll removes every object and all state that referred to one.
func (s *Store) ClearAll() {
	if s.preview.active && s.preview.targetID != "" {
		s.CancelPreview()
	}
	s.objects = nil
	s.byID = make(map[string]*Object)
	if s.selection.ID != "" {
		s.selection = Selection{}
		s.notify(ChangeSelection, "")
	}
	s.notify(ChangeObjectsCleared, "")
}

// MoveObject translates an object's vertices by d.
func (s *Store) MoveObject(id string, d coords.Delta) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.replaceVertices(o, geometry.MoveVertices(o.Vertices, d))
}

// ResizeObject regenerates an object's vertices from two new anchors.
func (s *Store) ResizeObject(id string, a, b coords.Pixeloid) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	vs, err := geometry.GenerateVertices(o.Kind, a, b)
	if err != nil {
		return err
	}
	return s.replaceVertices(o, vs)
}

// SetVertices replaces an object's vertices after validating them for its kind.
func (s *Store) SetVertices(id string, vs []coords.Pixeloid) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.replaceVertices(o, vs)
}

func (s *Store) replaceVertices(o *Object, vs []coords.Pixeloid) error {
	vs = geometry.Canonical(o.Kind, vs)
	props, bounds, err := geometry.Validate(o.Kind, vs)
	if err != nil {
		return err
	}
	o.Vertices = vs
	o.Properties = props
	o.Bounds = bounds
	s.touched(o)
	return nil
}

// UpdateStyle replaces an object's style.
func (s *Store) UpdateStyle(id string, style geometry.Style) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := style.Validate(); err != nil {
		return err
	}
	o.Style = style
	s.touched(o)
	return nil
}

// SetVisible shows or hides an object. Hidden objects are not drawn or hit.
func (s *Store) SetVisible(id string, visible bool) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	o.Visible = visible
	s.touched(o)
	return nil
}

func (s *Store) touched(o *Object) {
	if s.selection.ID == o.ID {
		s.selection.Bounds = o.Bounds
	}
	s.notify(ChangeObjectUpdated, o.ID)
}

// Select makes id the single selected object.
func (s *Store) Select(id string) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.selection = Selection{ID: o.ID, Bounds: o.Bounds}
	s.notify(ChangeSelection, o.ID)
	return nil
}

// ClearSelection deselects.
func (s *Store) ClearSelection() {
	if s.selection.ID == "" {
		return
	}
	s.selection = Selection{}
	s.notify(ChangeSelection, "")
}

// HitTest returns the topmost visible object containing p.
func (s *Store) HitTest(p coords.Pixeloid, tol float64) (string, bool) {
	for i := len(s.objects) - 1; i >= 0; i-- {
		o := s.objects[i]
		if !o.Visible {
			continue
		}
		if !o.Bounds.Expand(tol).Contains(p) {
			continue
		}
		if geometry.Contains(o.Properties, p, tol) {
			return o.ID, true
		}
	}
	return "", false
}

// SetDefaultStyle sets the style applied to new drawings.
func (s *Store) SetDefaultStyle(style geometry.Style) error {
	if err := style.Validate(); err != nil {
		return err
	}
	s.defaultStyle = style
	s.notify(ChangeDefaultStyle, "")
	return nil
}
