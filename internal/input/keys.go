package input

import (
	"fmt"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

// Direction is a pan direction.
type Direction uint8

const (
	PanLeft Direction = iota + 1
	PanRight
	PanUp
	PanDown
)

var panKeys = map[Key]Direction{
	KeyLeft: PanLeft, KeyA: PanLeft,
	KeyRight: PanRight, KeyD: PanRight,
	KeyUp: PanUp, KeyW: PanUp,
	KeyDown: PanDown, KeyS: PanDown,
}

// Pan moves the navigation offset by one fixed step. Each call computes a
// fresh delta from the step size.
func (c *Controller) Pan(dir Direction) error {
	step := c.settings.PanStep
	var d coords.Delta
	switch dir {
	case PanLeft:
		d.X = -step
	case PanRight:
		d.X = step
	case PanUp:
		d.Y = -step
	case PanDown:
		d.Y = step
	default:
		return fmt.Errorf("%w: pan direction %d", geometry.ErrInvalidInput, dir)
	}
	return c.store.UpdateNavigationOffset(d)
}

// KeyDown handles one key press. It returns the id of an object created by
// paste, or "".
func (c *Controller) KeyDown(ev KeyEvent) (string, error) {
	if ev.Ctrl {
		switch ev.Key {
		case KeyC:
			return "", c.copySelection()
		case KeyV:
			return c.paste()
		}
		return "", nil
	}

	if dir, ok := panKeys[ev.Key]; ok {
		return "", c.Pan(dir)
	}
	if mode, ok := modeKeys[ev.Key]; ok {
		return "", c.SetMode(mode)
	}

	switch ev.Key {
	case KeyEscape:
		c.Escape()
	case KeyDelete, KeyBackspace:
		return "", c.deleteSelection()
	}
	return "", nil
}

// Escape cancels the most specific activity: drag, then drawing, then any
// other preview, then the drawing mode, then the selection.
func (c *Controller) Escape() {
	switch {
	case c.store.Drag().Active:
		c.store.CancelDrag()
		c.logger.Debug("interaction aborted", "interaction", "drag", "reason", "escape")
	case c.store.Drawing().Active:
		c.store.CancelDrawing()
		c.logger.Debug("interaction aborted", "interaction", "draw", "reason", "escape")
	case c.store.Preview().Active:
		c.store.CancelPreview()
	case c.store.Drawing().Mode != 0:
		if err := c.store.SetDrawingMode(0); err != nil {
			c.logger.Warn("clear drawing mode", "err", err)
		}
	default:
		c.store.ClearSelection()
	}
}

// SetMode selects a drawing tool; 0 selects none.
func (c *Controller) SetMode(mode geometry.Kind) error {
	return c.store.SetDrawingMode(mode)
}

func (c *Controller) deleteSelection() error {
	id := c.store.Selection().ID
	if id == "" {
		return nil
	}
	return c.store.RemoveObject(id)
}

func (c *Controller) copySelection() error {
	id := c.store.Selection().ID
	if id == "" {
		return nil
	}
	return c.store.Copy(id)
}

// paste places the clipboard at the last pointer position and selects it.
func (c *Controller) paste() (string, error) {
	if _, ok := c.store.Clipboard(); !ok {
		return "", nil
	}
	id, err := c.store.Paste(c.worldPoint(c.pointer))
	if err != nil {
		return "", c.abort("paste", err)
	}
	return id, c.store.Select(id)
}
