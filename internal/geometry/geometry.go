// Package geometry is the only place shape vertices are generated from user
// anchors and the only place display properties are derived from vertices.
//
// Derivation runs strictly forward: vertices -> properties. Nothing in this
// package reads a previously derived value back.
package geometry

import (
	"fmt"
	"math"
	"slices"

	"github.com/isocanvas/isocanvas/internal/coords"
)

// Minimum shape sizes, in pixeloids. Anything smaller is rejected.
const (
	MinLineLength     = 1.0
	MinRectangleSide  = 1.0
	MinCircleRadius   = 0.5
	MinDiamondWidth   = 2.0
	orderTolerance    = 1e-9
	isometricDivisor  = 2.0
	diamondQuarterDiv = 4.0
)

// Properties are the display values derived from a vertex list. Which fields
// are meaningful depends on Kind:
//
//	point:     Center
//	line:      Start, End, Center (midpoint), Length, Angle (radians)
//	circle:    Center, Radius, Width/Height (diameter)
//	rectangle: Center, Width, Height
//	diamond:   Center, Width, Height (always Width/2)
type Properties struct {
	Kind   Kind            `json:"kind"`
	Center coords.Pixeloid `json:"center"`
	Width  float64         `json:"width,omitempty"`
	Height float64         `json:"height,omitempty"`
	Radius float64         `json:"radius,omitempty"`
	Start  coords.Pixeloid `json:"start,omitempty"`
	End    coords.Pixeloid `json:"end,omitempty"`
	Length float64         `json:"length,omitempty"`
	Angle  float64         `json:"angle,omitempty"`
}

// GenerateVertices turns two pixeloid anchors (first click, current point)
// into the canonical vertex list for kind and validates the result's size.
//
//	point:     [a]
//	line:      [a, b]
//	rectangle: [topLeft, bottomRight]
//	circle:    [center=a, radiusPoint] with the radius point on the horizontal
//	           through a at distance |b-a|
//	diamond:   [west, north, east, south], width |b.x-a.x|, height width/2,
//	           centered vertically on a.y
func GenerateVertices(kind Kind, a, b coords.Pixeloid) ([]coords.Pixeloid, error) {
	if !finitePoint(a) || !finitePoint(b) {
		return nil, fmt.Errorf("%w: non-finite anchor %v %v", ErrInvalidInput, a, b)
	}

	var vs []coords.Pixeloid
	switch kind {
	case KindPoint:
		vs = []coords.Pixeloid{a}
	case KindLine:
		vs = []coords.Pixeloid{a, b}
	case KindRectangle:
		vs = []coords.Pixeloid{
			{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
			{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
		}
	case KindCircle:
		r := a.Distance(b)
		vs = []coords.Pixeloid{a, {X: a.X + r, Y: a.Y}}
	case KindDiamond:
		w := math.Abs(b.X - a.X)
		west := math.Min(a.X, b.X)
		cx := west + w/2
		q := w / diamondQuarterDiv
		vs = []coords.Pixeloid{
			{X: west, Y: a.Y},
			{X: cx, Y: a.Y - q},
			{X: west + w, Y: a.Y},
			{X: cx, Y: a.Y + q},
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, kind)
	}

	props, err := DeriveProperties(kind, vs)
	if err != nil {
		return nil, err
	}
	if err := CheckSize(props); err != nil {
		return nil, err
	}
	return vs, nil
}

// DeriveProperties computes display properties from vertices alone. The
// vertex count must match the kind; diamond vertices must be in
// west, north, east, south order.
func DeriveProperties(kind Kind, vs []coords.Pixeloid) (Properties, error) {
	if !kind.Valid() {
		return Properties{}, fmt.Errorf("%w: %s", ErrInvalidInput, kind)
	}
	if len(vs) != kind.VertexCount() {
		return Properties{}, fmt.Errorf("%w: %s needs %d vertices, got %d",
			ErrInvalidInput, kind, kind.VertexCount(), len(vs))
	}
	for _, v := range vs {
		if !finitePoint(v) {
			return Properties{}, fmt.Errorf("%w: non-finite vertex %v", ErrInvalidInput, v)
		}
	}

	p := Properties{Kind: kind}
	switch kind {
	case KindPoint:
		p.Center = vs[0]
	case KindLine:
		p.Start, p.End = vs[0], vs[1]
		p.Center = coords.Pixeloid{X: (vs[0].X + vs[1].X) / 2, Y: (vs[0].Y + vs[1].Y) / 2}
		p.Length = vs[0].Distance(vs[1])
		p.Angle = math.Atan2(vs[1].Y-vs[0].Y, vs[1].X-vs[0].X)
	case KindCircle:
		p.Center = vs[0]
		p.Radius = vs[0].Distance(vs[1])
		p.Width, p.Height = 2*p.Radius, 2*p.Radius
	case KindRectangle:
		b := DeriveBounds(vs)
		p.Width, p.Height = b.Width(), b.Height()
		p.Center = b.Center()
	case KindDiamond:
		if err := checkDiamondOrder(vs); err != nil {
			return Properties{}, err
		}
		west, east := vs[0], vs[2]
		p.Width = east.X - west.X
		p.Height = p.Width / isometricDivisor
		p.Center = coords.Pixeloid{X: (west.X + east.X) / 2, Y: west.Y}
	}
	return p, nil
}

// checkDiamondOrder enforces [west, north, east, south] and the fixed
// height = width/2 ratio.
func checkDiamondOrder(vs []coords.Pixeloid) error {
	west, north, east, south := vs[0], vs[1], vs[2], vs[3]
	if !(west.X < east.X) {
		return fmt.Errorf("%w: diamond west.x %v must be < east.x %v", ErrPreconditionViolation, west.X, east.X)
	}
	if !(north.Y < south.Y) {
		return fmt.Errorf("%w: diamond north.y %v must be < south.y %v", ErrPreconditionViolation, north.Y, south.Y)
	}
	w := east.X - west.X
	tol := orderTolerance * math.Max(1, w)
	cx := (west.X + east.X) / 2
	cy := (north.Y + south.Y) / 2
	switch {
	case math.Abs(west.Y-east.Y) > tol:
		return fmt.Errorf("%w: diamond west and east are not level", ErrPreconditionViolation)
	case math.Abs(north.X-cx) > tol || math.Abs(south.X-cx) > tol:
		return fmt.Errorf("%w: diamond north and south are not centered", ErrPreconditionViolation)
	case math.Abs(west.Y-cy) > tol:
		return fmt.Errorf("%w: diamond west/east are not centered vertically", ErrPreconditionViolation)
	case math.Abs((south.Y-north.Y)-w/isometricDivisor) > tol:
		return fmt.Errorf("%w: diamond height must be width/2", ErrPreconditionViolation)
	}
	return nil
}

// CheckSize rejects shapes below the minimum visible size.
func CheckSize(p Properties) error {
	switch p.Kind {
	case KindPoint:
		return nil
	case KindLine:
		if p.Length < MinLineLength {
			return fmt.Errorf("%w: line length %v < %v", ErrInvalidInput, p.Length, MinLineLength)
		}
	case KindRectangle:
		if p.Width < MinRectangleSide || p.Height < MinRectangleSide {
			return fmt.Errorf("%w: rectangle %vx%v below %v", ErrInvalidInput, p.Width, p.Height, MinRectangleSide)
		}
	case KindCircle:
		if p.Radius < MinCircleRadius {
			return fmt.Errorf("%w: circle radius %v < %v", ErrInvalidInput, p.Radius, MinCircleRadius)
		}
	case KindDiamond:
		if p.Width < MinDiamondWidth {
			return fmt.Errorf("%w: diamond width %v < %v", ErrInvalidInput, p.Width, MinDiamondWidth)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidInput, p.Kind)
	}
	return nil
}

// Validate derives properties and checks size in one step. It is what every
// store write runs before touching state.
func Validate(kind Kind, vs []coords.Pixeloid) (Properties, Bounds, error) {
	p, err := DeriveProperties(kind, vs)
	if err != nil {
		return Properties{}, Bounds{}, err
	}
	if err := CheckSize(p); err != nil {
		return Properties{}, Bounds{}, err
	}
	return p, Extent(p, vs), nil
}

// Canonical returns a copy of vs in stored order. Rectangles become
// [top-left, bottom-right] whichever corners they were given as; other kinds
// keep their order.
func Canonical(kind Kind, vs []coords.Pixeloid) []coords.Pixeloid {
	if kind == KindRectangle && len(vs) == 2 {
		return []coords.Pixeloid{
			{X: math.Min(vs[0].X, vs[1].X), Y: math.Min(vs[0].Y, vs[1].Y)},
			{X: math.Max(vs[0].X, vs[1].X), Y: math.Max(vs[0].Y, vs[1].Y)},
		}
	}
	return slices.Clone(vs)
}

// MoveVertices returns a copy of vs translated by d. Drag and programmatic
// moves both use it.
func MoveVertices(vs []coords.Pixeloid, d coords.Delta) []coords.Pixeloid {
	out := make([]coords.Pixeloid, len(vs))
	for i, v := range vs {
		out[i] = v.Add(d)
	}
	return out
}

// Outline returns the polygon corners of a rectangle or diamond in drawing
// order. Other kinds have no polygon outline.
func Outline(p Properties, vs []coords.Pixeloid) []coords.Pixeloid {
	switch p.Kind {
	case KindRectangle:
		b := DeriveBounds(vs)
		return []coords.Pixeloid{
			{X: b.MinX, Y: b.MinY},
			{X: b.MaxX, Y: b.MinY},
			{X: b.MaxX, Y: b.MaxY},
			{X: b.MinX, Y: b.MaxY},
		}
	case KindDiamond:
		out := make([]coords.Pixeloid, len(vs))
		copy(out, vs)
		return out
	default:
		return nil
	}
}

func finitePoint(p coords.Pixeloid) bool {
	return finite(p.X) && finite(p.Y)
}
