package geometry

import (
	"math"

	"github.com/isocanvas/isocanvas/internal/coords"
)

// Bounds is an axis-aligned box in pixeloid space.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// DeriveBounds is the min/max over a vertex list.
func DeriveBounds(vs []coords.Pixeloid) Bounds {
	if len(vs) == 0 {
		return Bounds{}
	}
	b := Bounds{MinX: vs[0].X, MinY: vs[0].Y, MaxX: vs[0].X, MaxY: vs[0].Y}
	for _, v := range vs[1:] {
		b.MinX = math.Min(b.MinX, v.X)
		b.MinY = math.Min(b.MinY, v.Y)
		b.MaxX = math.Max(b.MaxX, v.X)
		b.MaxY = math.Max(b.MaxY, v.Y)
	}
	return b
}

// Extent is the box covering the drawn shape. It equals DeriveBounds for
// every kind except circle, whose two vertices (center, radius point) do not
// span the drawn disc.
func Extent(p Properties, vs []coords.Pixeloid) Bounds {
	if p.Kind == KindCircle {
		return Bounds{
			MinX: p.Center.X - p.Radius,
			MinY: p.Center.Y - p.Radius,
			MaxX: p.Center.X + p.Radius,
			MaxY: p.Center.Y + p.Radius,
		}
	}
	return DeriveBounds(vs)
}

func (b Bounds) Width() float64  { return b.MaxX - b.MinX }
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Center returns the middle of the box.
func (b Bounds) Center() coords.Pixeloid {
	return coords.Pixeloid{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Min returns the top-left corner.
func (b Bounds) Min() coords.Pixeloid {
	return coords.Pixeloid{X: b.MinX, Y: b.MinY}
}

// Contains checks if a point is inside the box (edges included).
func (b Bounds) Contains(p coords.Pixeloid) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Expand grows the box by d on every side.
func (b Bounds) Expand(d float64) Bounds {
	return Bounds{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// Union returns the smallest box containing both.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}
