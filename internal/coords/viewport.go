package coords

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidViewport is returned when a scale or window size is out of range.
var ErrInvalidViewport = errors.New("invalid viewport")

// Viewport is the navigation state: zoom scale, navigation offset and window
// size. It has no camera field; CameraCenter derives one from the offset.
type Viewport struct {
	Scale  int    `json:"scale"`
	Offset Offset `json:"offset"`
	Width  int    `json:"windowWidth"`
	Height int    `json:"windowHeight"`
}

// NewViewport validates and builds a viewport at offset (0,0).
func NewViewport(scale, width, height int) (Viewport, error) {
	vp := Viewport{Scale: scale, Width: width, Height: height}
	if err := vp.Validate(); err != nil {
		return Viewport{}, err
	}
	return vp, nil
}

// Validate reports whether the viewport can be used for conversions.
func (v Viewport) Validate() error {
	if v.Scale < 1 {
		return fmt.Errorf("%w: scale %d < 1", ErrInvalidViewport, v.Scale)
	}
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: window %dx%d", ErrInvalidViewport, v.Width, v.Height)
	}
	return nil
}

// ToPixeloid converts a screen position to world space.
func (v Viewport) ToPixeloid(s Screen) Pixeloid {
	return ScreenToPixeloid(s, v.Scale, v.Offset)
}

// ToScreen converts a world position to screen space.
func (v Viewport) ToScreen(p Pixeloid) Screen {
	return PixeloidToScreen(p, v.Scale, v.Offset)
}

// ToVertex converts a world position to vertex space.
func (v Viewport) ToVertex(p Pixeloid) Vertex {
	return PixeloidToVertex(p, v.Offset)
}

// MeshBounds returns the fixed vertex-space extent of the draw surface:
// (0,0) to (width/scale, height/scale). Panning never changes it.
func (v Viewport) MeshBounds() (Vertex, Vertex) {
	return Vertex{}, ScreenToVertex(Screen{X: float64(v.Width), Y: float64(v.Height)}, v.Scale)
}

// CameraCenter is the world position at the center of the window. It is
// always recomputed from the offset.
func (v Viewport) CameraCenter() Pixeloid {
	return v.ToPixeloid(Screen{X: float64(v.Width) / 2, Y: float64(v.Height) / 2})
}

// GridOrigin is the screen position of the first integer world grid line at
// or after the window's top-left corner. Grid drawing and pixelation both
// align to it.
func (v Viewport) GridOrigin() Screen {
	first := Pixeloid{X: math.Ceil(v.Offset.X), Y: math.Ceil(v.Offset.Y)}
	return v.ToScreen(first)
}

// Aligned returns v with its offset rounded to the nearest multiple of
// 1/Scale, so every integer world position lands on a whole device pixel.
func (v Viewport) Aligned() Viewport {
	if v.Scale < 1 {
		return v
	}
	s := float64(v.Scale)
	v.Offset = Offset{X: math.Round(v.Offset.X*s) / s, Y: math.Round(v.Offset.Y*s) / s}
	return v
}

// ZoomAt returns a viewport with the new scale whose offset keeps the world
// position under anchor fixed on screen, to within half a device pixel. The
// result is Aligned.
func (v Viewport) ZoomAt(scale int, anchor Screen) (Viewport, error) {
	if scale < 1 {
		return v, fmt.Errorf("%w: scale %d < 1", ErrInvalidViewport, scale)
	}
	world := v.ToPixeloid(anchor)
	next := v
	next.Scale = scale
	vtx := ScreenToVertex(anchor, scale)
	next.Offset = Offset{X: world.X - vtx.X, Y: world.Y - vtx.Y}
	return next.Aligned(), nil
}
