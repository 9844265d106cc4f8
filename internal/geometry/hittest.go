package geometry

import (
	"math"

	"github.com/isocanvas/isocanvas/internal/coords"
)

// Contains reports whether p hits the shape described by props, allowing tol
// pixeloids of slack. Filled and unfilled shapes hit the same way.
func Contains(props Properties, p coords.Pixeloid, tol float64) bool {
	switch props.Kind {
	case KindPoint:
		return props.Center.Distance(p) <= tol
	case KindLine:
		return segmentDistance(props.Start, props.End, p) <= tol
	case KindCircle:
		return props.Center.Distance(p) <= props.Radius+tol
	case KindRectangle:
		hw, hh := props.Width/2+tol, props.Height/2+tol
		return math.Abs(p.X-props.Center.X) <= hw && math.Abs(p.Y-props.Center.Y) <= hh
	case KindDiamond:
		hw, hh := props.Width/2+tol, props.Height/2+tol
		return math.Abs(p.X-props.Center.X)/hw+math.Abs(p.Y-props.Center.Y)/hh <= 1
	default:
		return false
	}
}

func segmentDistance(a, b, p coords.Pixeloid) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a.Distance(p)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Distance(coords.Pixeloid{X: a.X + t*dx, Y: a.Y + t*dy})
}
