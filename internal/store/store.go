// Package store holds the single authoritative table of drawable objects and
// the transient editing state around it: selection, preview, drag, drawing,
// navigation, default style and clipboard.
//
// State changes only through the Store's action methods. Every action either
// validates and applies completely or returns an error and leaves the state
// untouched. Reads return copies.
package store

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

var (
	// ErrNotFound is returned for actions on an object id the store does not hold.
	ErrNotFound = errors.New("object not found")

	ErrInvalidInput          = geometry.ErrInvalidInput
	ErrPreconditionViolation = geometry.ErrPreconditionViolation
)

// Object is a drawable shape. Vertices, Kind, Style, Visible, ID and
// CreatedAt are canonical; Properties and Bounds are recomputed from the
// vertices on every change.
type Object struct {
	ID         string              `json:"id"`
	Kind       geometry.Kind       `json:"kind"`
	CreatedAt  time.Time           `json:"createdAt"`
	Visible    bool                `json:"visible"`
	Vertices   []coords.Pixeloid   `json:"vertices"`
	Style      geometry.Style      `json:"style"`
	Properties geometry.Properties `json:"properties"`
	Bounds     geometry.Bounds     `json:"bounds"`
}

// Clone returns a copy that shares nothing with o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	c.Vertices = slices.Clone(o.Vertices)
	return &c
}

// Selection is the selected object id ("" for none) and its cached bounds.
type Selection struct {
	ID     string          `json:"selectedId,omitempty"`
	Bounds geometry.Bounds `json:"bounds"`
}

// ChangeKind names what an action changed.
type ChangeKind string

const (
	ChangeObjectCreated  ChangeKind = "object.created"
	ChangeObjectUpdated  ChangeKind = "object.updated"
	ChangeObjectRemoved  ChangeKind = "object.removed"
	ChangeObjectsCleared ChangeKind = "objects.cleared"
	ChangeSelection      ChangeKind = "selection"
	ChangePreview        ChangeKind = "preview"
	ChangeDrawing        ChangeKind = "drawing"
	ChangeNavigation     ChangeKind = "navigation"
	ChangeDefaultStyle   ChangeKind = "style.default"
	ChangeClipboard      ChangeKind = "clipboard"
)

// Change is published to subscribers after an action succeeds.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	ObjectID string     `json:"objectId,omitempty"`
}

// Options configure a new Store.
type Options struct {
	Viewport     coords.Viewport
	DefaultStyle geometry.Style

	// NewID generates object ids. Defaults to typeid.NewObjectID.
	NewID func() string
	// Now stamps creation times. Defaults to time.Now.
	Now func() time.Time
}

type listener struct {
	id int
	fn func(Change)
}

// Store is not safe for concurrent use; callers that share one across
// goroutines serialize access themselves.
type Store struct {
	objects []*Object
	byID    map[string]*Object

	selection Selection
	preview   previewState
	drag      Drag
	drawing   Drawing
	nav       coords.Viewport

	defaultStyle geometry.Style
	clipboard    *ClipboardEntry

	listeners    []listener
	nextListener int

	newID func() string
	now   func() time.Time
}

// New validates the options and returns an empty store.
func New(opts Options) (*Store, error) {
	if err := opts.Viewport.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := opts.DefaultStyle.Validate(); err != nil {
		return nil, fmt.Errorf("default style: %w", err)
	}
	s := &Store{
		byID:         make(map[string]*Object),
		nav:          opts.Viewport,
		defaultStyle: opts.DefaultStyle,
		newID:        opts.NewID,
		now:          opts.Now,
	}
	if s.newID == nil {
		s.newID = typeid.NewObjectID
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Subscribe registers fn to run after every successful action. The returned
// function removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	id := s.nextListener
	s.nextListener++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}

func (s *Store) notify(kind ChangeKind, objectID string) {
	c := Change{Kind: kind, ObjectID: objectID}
	for _, l := range slices.Clone(s.listeners) {
		l.fn(c)
	}
}

// Snapshot is a read-only copy of the whole store.
type Snapshot struct {
	Objects      []*Object       `json:"objects"`
	Selection    Selection       `json:"selection"`
	Preview      Preview         `json:"preview"`
	Drag         Drag            `json:"drag"`
	Drawing      Drawing         `json:"drawing"`
	Viewport     coords.Viewport `json:"viewport"`
	DefaultStyle geometry.Style  `json:"defaultStyle"`
	HasClipboard bool            `json:"hasClipboard"`
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Objects:      s.Objects(),
		Selection:    s.selection,
		Preview:      s.Preview(),
		Drag:         s.Drag(),
		Drawing:      s.drawing,
		Viewport:     s.nav,
		DefaultStyle: s.defaultStyle,
		HasClipboard: s.clipboard != nil,
	}
}

// Objects returns copies of all objects in drawing order (back to front).
func (s *Store) Objects() []*Object {
	out := make([]*Object, len(s.objects))
	for i, o := range s.objects {
		out[i] = o.Clone()
	}
	return out
}

// Object returns a copy of one object.
func (s *Store) Object(id string) (*Object, error) {
	o, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

// Len returns the number of stored objects.
func (s *Store) Len() int { return len(s.objects) }

// Selection returns the current selection.
func (s *Store) Selection() Selection { return s.selection }

// Viewport returns the navigation state.
func (s *Store) Viewport() coords.Viewport { return s.nav }

// DefaultStyle returns the style new drawings start with.
func (s *Store) DefaultStyle() geometry.Style { return s.defaultStyle }

func (s *Store) lookup(id string) (*Object, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty object id", ErrInvalidInput)
	}
	o, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return o, nil
}
