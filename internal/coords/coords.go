// Package coords converts between the three coordinate spaces of the canvas.
//
// Pixeloid space is the canonical world space: every stored vertex lives there.
// Vertex space is Pixeloid space minus the navigation offset and is what the
// draw surface is built in. Screen space is Vertex space multiplied by the
// integer zoom scale.
//
// Each space has its own type, so a Screen value cannot be passed where a
// Pixeloid is expected without going through one of the conversion functions.
package coords

import "math"

// Screen is a position in device pixels, origin at the top-left of the window.
type Screen struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vertex is a position on the screen-anchored draw surface, in world units.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pixeloid is a position in world space.
type Pixeloid struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset is the vertex-to-pixeloid translation: the world position of the
// draw surface origin. Panning changes only this value.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Delta is a displacement in world units.
type Delta struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// P is shorthand for a Pixeloid literal.
func P(x, y float64) Pixeloid { return Pixeloid{X: x, Y: y} }

// ScreenToVertex divides a screen position by the zoom scale.
func ScreenToVertex(s Screen, scale int) Vertex {
	f := float64(scale)
	return Vertex{X: s.X / f, Y: s.Y / f}
}

// VertexToScreen multiplies a vertex position by the zoom scale.
func VertexToScreen(v Vertex, scale int) Screen {
	f := float64(scale)
	return Screen{X: v.X * f, Y: v.Y * f}
}

// VertexToPixeloid adds the navigation offset.
func VertexToPixeloid(v Vertex, off Offset) Pixeloid {
	return Pixeloid{X: v.X + off.X, Y: v.Y + off.Y}
}

// PixeloidToVertex subtracts the navigation offset.
func PixeloidToVertex(p Pixeloid, off Offset) Vertex {
	return Vertex{X: p.X - off.X, Y: p.Y - off.Y}
}

// ScreenToPixeloid is ScreenToVertex followed by VertexToPixeloid.
func ScreenToPixeloid(s Screen, scale int, off Offset) Pixeloid {
	return VertexToPixeloid(ScreenToVertex(s, scale), off)
}

// PixeloidToScreen is PixeloidToVertex followed by VertexToScreen.
func PixeloidToScreen(p Pixeloid, scale int, off Offset) Screen {
	return VertexToScreen(PixeloidToVertex(p, off), scale)
}

// Snap floors a world position onto the integer pixeloid grid. It is the
// only rounding step in the package; every path that snaps (pointer input,
// grid drawing, pixelation alignment) goes through it.
func Snap(p Pixeloid) Pixeloid {
	return Pixeloid{X: math.Floor(p.X), Y: math.Floor(p.Y)}
}

// Add translates p by d.
func (p Pixeloid) Add(d Delta) Pixeloid {
	return Pixeloid{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns the displacement from q to p.
func (p Pixeloid) Sub(q Pixeloid) Delta {
	return Delta{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the euclidean distance between p and q.
func (p Pixeloid) Distance(q Pixeloid) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Add sums two displacements.
func (d Delta) Add(o Delta) Delta {
	return Delta{X: d.X + o.X, Y: d.Y + o.Y}
}

// Scale multiplies a displacement by n.
func (d Delta) Scale(n float64) Delta {
	return Delta{X: d.X * n, Y: d.Y * n}
}

// Translate moves the offset by a displacement.
func (o Offset) Translate(d Delta) Offset {
	return Offset{X: o.X + d.X, Y: o.Y + d.Y}
}
