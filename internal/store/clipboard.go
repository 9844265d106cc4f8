package store

import (
	"fmt"
	"slices"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

// ClipboardEntry is one copied object: its canonical fields plus the extent
// used to place a paste.
type ClipboardEntry struct {
	Kind     geometry.Kind     `json:"kind"`
	Vertices []coords.Pixeloid `json:"vertices"`
	Style    geometry.Style    `json:"style"`
	Extent   geometry.Bounds   `json:"extent"`
}

// Clipboard returns a copy of the clipboard slot.
func (s *Store) Clipboard() (ClipboardEntry, bool) {
	if s.clipboard == nil {
		return ClipboardEntry{}, false
	}
	c := *s.clipboard
	c.Vertices = slices.Clone(c.Vertices)
	return c, true
}

// Copy places one object's kind, vertices and style in the clipboard.
func (s *Store) Copy(id string) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.clipboard = &ClipboardEntry{
		Kind:     o.Kind,
		Vertices: slices.Clone(o.Vertices),
		Style:    o.Style,
		Extent:   o.Bounds,
	}
	s.notify(ChangeClipboard, id)
	return nil
}

// Paste creates a new object from the clipboard with the top-left of its
// extent at target. It goes through CreateObject validation.
func (s *Store) Paste(target coords.Pixeloid) (string, error) {
	if s.clipboard == nil {
		return "", fmt.Errorf("%w: clipboard is empty", ErrInvalidInput)
	}
	c := s.clipboard
	d := target.Sub(c.Extent.Min())
	return s.CreateObject(c.Kind, geometry.MoveVertices(c.Vertices, d), c.Style)
}
