// Package input translates pointer, key and wheel events into store actions.
//
// All coordinate math goes through the viewport conversions in coords; the
// controller keeps no parallel position state beyond the last pointer
// location used as a paste target.
package input

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/store"
)

// Settings tune the controller. They come from config.Canvas.
type Settings struct {
	PanStep      float64
	MinScale     int
	MaxScale     int
	HitTolerance float64
	// SnapToGrid floors every world point to its grid cell before use, on
	// every path: drawing, dragging, hit testing and paste.
	SnapToGrid bool
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	switch {
	case !(s.PanStep > 0) || math.IsInf(s.PanStep, 0):
		return fmt.Errorf("%w: pan step %v", geometry.ErrInvalidInput, s.PanStep)
	case s.MinScale < 1 || s.MaxScale < s.MinScale:
		return fmt.Errorf("%w: scale range [%d, %d]", geometry.ErrInvalidInput, s.MinScale, s.MaxScale)
	case s.HitTolerance < 0:
		return fmt.Errorf("%w: hit tolerance %v", geometry.ErrInvalidInput, s.HitTolerance)
	}
	return nil
}

// Button is a pointer button.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// Key names the keys the controller reacts to.
type Key string

const (
	KeyEscape    Key = "Escape"
	KeyLeft      Key = "ArrowLeft"
	KeyRight     Key = "ArrowRight"
	KeyUp        Key = "ArrowUp"
	KeyDown      Key = "ArrowDown"
	KeyW         Key = "w"
	KeyA         Key = "a"
	KeyS         Key = "s"
	KeyD         Key = "d"
	KeyDelete    Key = "Delete"
	KeyBackspace Key = "Backspace"
	KeyC         Key = "c"
	KeyV         Key = "v"
	Key0         Key = "0"
	Key1         Key = "1"
	Key2         Key = "2"
	Key3         Key = "3"
	Key4         Key = "4"
	Key5         Key = "5"
)

// KeyEvent is one key press. Ctrl is also set for the platform command key.
type KeyEvent struct {
	Key  Key  `json:"key"`
	Ctrl bool `json:"ctrl"`
}

var modeKeys = map[Key]geometry.Kind{
	Key0: 0,
	Key1: geometry.KindPoint,
	Key2: geometry.KindLine,
	Key3: geometry.KindCircle,
	Key4: geometry.KindRectangle,
	Key5: geometry.KindDiamond,
}

// Controller drives one store from raw input. It is not safe for concurrent
// use; events arrive on the UI loop.
type Controller struct {
	store    *store.Store
	settings Settings
	logger   *slog.Logger
	pointer  coords.Screen
}

// NewController binds a controller to s. A nil logger discards output.
func NewController(s *store.Store, settings Settings, logger *slog.Logger) (*Controller, error) {
	if s == nil {
		return nil, errors.New("input: nil store")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{store: s, settings: settings, logger: logger}, nil
}

// Settings returns the controller settings.
func (c *Controller) Settings() Settings { return c.settings }

// worldPoint is the only screen-to-world conversion the controller uses.
func (c *Controller) worldPoint(p coords.Screen) coords.Pixeloid {
	w := c.store.Viewport().ToPixeloid(p)
	if c.settings.SnapToGrid {
		w = coords.Snap(w)
	}
	return w
}

// WorldPoint exposes the controller's conversion for hover readouts.
func (c *Controller) WorldPoint(p coords.Screen) coords.Pixeloid {
	return c.worldPoint(p)
}

// abort logs an interaction that ended without a commit and returns err.
func (c *Controller) abort(what string, err error) error {
	c.logger.Debug("interaction aborted", "interaction", what, "err", err)
	return err
}
