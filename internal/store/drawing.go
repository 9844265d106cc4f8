package store

import (
	"fmt"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

// Drawing is the draw-tool state. Mode 0 means no tool; it persists across
// completed drawings until changed or cancelled explicitly.
type Drawing struct {
	Mode   geometry.Kind   `json:"mode,omitempty"`
	Active bool            `json:"isDrawing"`
	Start  coords.Pixeloid `json:"startPoint"`
}

// Drawing returns the draw-tool state.
func (s *Store) Drawing() Drawing { return s.drawing }

// SetDrawingMode selects a draw tool, or none with 0. A drawing in progress
// is cancelled.
func (s *Store) SetDrawingMode(mode geometry.Kind) error {
	if mode != 0 && !mode.Valid() {
		return fmt.Errorf("%w: drawing mode %s", ErrInvalidInput, mode)
	}
	s.CancelDrawing()
	s.drawing.Mode = mode
	s.notify(ChangeDrawing, "")
	return nil
}

// StartDrawing fixes the start point and opens a create preview.
func (s *Store) StartDrawing(start coords.Pixeloid) error {
	if s.drawing.Mode == 0 {
		return fmt.Errorf("%w: no drawing mode selected", ErrInvalidInput)
	}
	if err := s.StartPreview(OpCreate, ""); err != nil {
		return err
	}
	s.drawing.Active = true
	s.drawing.Start = start
	s.notify(ChangeDrawing, "")

	// Points are complete at pointer-down; other kinds stay empty until
	// the pointer moves far enough to form a valid shape.
	if s.drawing.Mode == geometry.KindPoint {
		return s.UpdateDrawing(start)
	}
	return nil
}

// UpdateDrawing feeds the live second anchor into the preview. Too-small
// intermediate shapes return ErrInvalidInput and leave the last valid preview
// in place.
func (s *Store) UpdateDrawing(current coords.Pixeloid) error {
	if !s.drawing.Active {
		return nil
	}
	return s.UpdatePreview(PreviewInput{
		Kind:    s.drawing.Mode,
		Anchors: &Anchors{A: s.drawing.Start, B: current},
	})
}

// FinishDrawing validates the final anchor pair and commits it. If the shape
// is degenerate nothing is stored and the preview is discarded. The mode is
// kept either way.
func (s *Store) FinishDrawing(end coords.Pixeloid) (string, error) {
	if !s.drawing.Active {
		return "", nil
	}
	if err := s.UpdateDrawing(end); err != nil {
		s.CancelDrawing()
		return "", err
	}
	return s.CommitPreview()
}

// CancelDrawing abandons a drawing in progress.
func (s *Store) CancelDrawing() {
	if !s.drawing.Active {
		return
	}
	s.CancelPreview()
}
