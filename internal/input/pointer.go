package input

import (
	"errors"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/store"
)

// PointerDown starts a drag on the selected object, starts drawing when a
// mode is active, or updates the selection.
func (c *Controller) PointerDown(pos coords.Screen, b Button) error {
	c.pointer = pos
	if b != ButtonLeft {
		return nil
	}
	p := c.worldPoint(pos)
	hit, ok := c.store.HitTest(p, c.settings.HitTolerance)
	sel := c.store.Selection().ID

	switch {
	case ok && hit == sel:
		if err := c.store.StartDrag(hit, p); err != nil {
			return c.abort("drag", err)
		}
		return nil
	case c.store.Drawing().Mode != 0:
		if err := c.store.StartDrawing(p); err != nil {
			return c.abort("draw", err)
		}
		return nil
	case ok:
		return c.store.Select(hit)
	default:
		c.store.ClearSelection()
		return nil
	}
}

// PointerMove feeds the live pointer into an active drag or drawing. Drawing
// shapes too small to be valid are skipped; the last valid preview stays.
func (c *Controller) PointerMove(pos coords.Screen) error {
	c.pointer = pos
	p := c.worldPoint(pos)
	switch {
	case c.store.Drag().Active:
		if err := c.store.UpdateDrag(p); err != nil {
			c.store.CancelDrag()
			return c.abort("drag", err)
		}
	case c.store.Drawing().Active:
		err := c.store.UpdateDrawing(p)
		if errors.Is(err, store.ErrInvalidInput) {
			return nil
		}
		if err != nil {
			c.store.CancelDrawing()
			return c.abort("draw", err)
		}
	}
	return nil
}

// PointerUp commits an active drag or drawing. It returns the id of the
// object written, or "".
func (c *Controller) PointerUp(pos coords.Screen, b Button) (string, error) {
	c.pointer = pos
	if b != ButtonLeft {
		return "", nil
	}
	p := c.worldPoint(pos)
	switch {
	case c.store.Drag().Active:
		if err := c.store.UpdateDrag(p); err != nil {
			c.store.CancelDrag()
			return "", c.abort("drag", err)
		}
		id, err := c.store.CommitDrag()
		if err != nil {
			return "", c.abort("drag", err)
		}
		return id, nil
	case c.store.Drawing().Active:
		id, err := c.store.FinishDrawing(p)
		if err != nil {
			return "", c.abort("draw", err)
		}
		c.logger.Debug("object drawn", "id", id, "mode", c.store.Drawing().Mode)
		return id, nil
	}
	return "", nil
}

// Wheel zooms one step around the pointer. Negative dy zooms in.
func (c *Controller) Wheel(pos coords.Screen, dy float64) error {
	c.pointer = pos
	if dy == 0 {
		return nil
	}
	vp := c.store.Viewport()
	scale := vp.Scale
	if dy < 0 {
		scale++
	} else {
		scale--
	}
	scale = min(max(scale, c.settings.MinScale), c.settings.MaxScale)
	if scale == vp.Scale {
		return nil
	}
	return c.store.SetScale(scale, pos)
}

// Resize records a new window size.
func (c *Controller) Resize(width, height int) error {
	return c.store.SetWindowSize(width, height)
}
