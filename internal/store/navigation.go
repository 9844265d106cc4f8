package store

import (
	"fmt"
	"math"

	"github.com/isocanvas/isocanvas/internal/coords"
)

// UpdateNavigationOffset moves the vertex-to-pixeloid offset by d. Callers
// pass a fresh per-tick delta, never an accumulated offset.
func (s *Store) UpdateNavigationOffset(d coords.Delta) error {
	if math.IsNaN(d.X) || math.IsNaN(d.Y) || math.IsInf(d.X, 0) || math.IsInf(d.Y, 0) {
		return fmt.Errorf("%w: offset delta %v", ErrInvalidInput, d)
	}
	s.nav.Offset = s.nav.Offset.Translate(d)
	s.notify(ChangeNavigation, "")
	return nil
}

// SetScale zooms to scale, keeping the world point under anchor fixed on
// screen.
func (s *Store) SetScale(scale int, anchor coords.Screen) error {
	next, err := s.nav.ZoomAt(scale, anchor)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.nav = next
	s.notify(ChangeNavigation, "")
	return nil
}

// SetWindowSize records new window dimensions. The offset is kept, so the
// top-left world position stays put.
func (s *Store) SetWindowSize(width, height int) error {
	next := s.nav
	next.Width, next.Height = width, height
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.nav = next
	s.notify(ChangeNavigation, "")
	return nil
}
