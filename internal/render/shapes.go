package render

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/store"
)

// SegmentOp is one path instruction, named like its Canvas2D counterpart.
type SegmentOp byte

const (
	SegMove  SegmentOp = 'M'
	SegLine  SegmentOp = 'L'
	SegArc   SegmentOp = 'A' // full circle at X,Y with radius R
	SegClose SegmentOp = 'Z'
)

// Segment is a screen-space path instruction.
type Segment struct {
	Op   SegmentOp
	X, Y float64
	R    float64
}

// MarshalJSON encodes the segment as ["M", x, y], ["A", x, y, r] or ["Z"].
func (s Segment) MarshalJSON() ([]byte, error) {
	op := string(rune(s.Op))
	switch s.Op {
	case SegMove, SegLine:
		return json.Marshal([]any{op, s.X, s.Y})
	case SegArc:
		return json.Marshal([]any{op, s.X, s.Y, s.R})
	case SegClose:
		return json.Marshal([]any{op})
	default:
		return nil, fmt.Errorf("unknown path op %q", s.Op)
	}
}

// UnmarshalJSON decodes the array form written by MarshalJSON.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty path segment")
	}
	var op string
	if err := json.Unmarshal(raw[0], &op); err != nil {
		return err
	}
	if len(op) != 1 {
		return fmt.Errorf("unknown path op %q", op)
	}
	nums := make([]float64, len(raw)-1)
	for i, r := range raw[1:] {
		if err := json.Unmarshal(r, &nums[i]); err != nil {
			return err
		}
	}
	seg := Segment{Op: SegmentOp(op[0])}
	switch seg.Op {
	case SegMove, SegLine:
		if len(nums) != 2 {
			return fmt.Errorf("path op %q takes 2 values, got %d", op, len(nums))
		}
		seg.X, seg.Y = nums[0], nums[1]
	case SegArc:
		if len(nums) != 3 {
			return fmt.Errorf("path op %q takes 3 values, got %d", op, len(nums))
		}
		seg.X, seg.Y, seg.R = nums[0], nums[1], nums[2]
	case SegClose:
		if len(nums) != 0 {
			return fmt.Errorf("path op %q takes no values", op)
		}
	default:
		return fmt.Errorf("unknown path op %q", op)
	}
	*s = seg
	return nil
}

// Shape is a drawable primitive already converted to screen space.
type Shape struct {
	ObjectID string
	Kind     geometry.Kind
	Path     []Segment
	Style    geometry.Style
}

// projector is the one place object coordinates are converted for drawing.
type projector struct {
	vp coords.Viewport
}

func (pr projector) point(p coords.Pixeloid) (float64, float64) {
	s := pr.vp.ToScreen(p)
	return s.X, s.Y
}

func (pr projector) length(d float64) float64 {
	return d * float64(pr.vp.Scale)
}

// shapeFor builds the screen-space path for an object from its vertices and
// derived properties. A missing or invalid style is an error.
func shapeFor(pr projector, o *store.Object) (Shape, error) {
	if err := o.Style.Validate(); err != nil {
		return Shape{}, fmt.Errorf("%w: object %s: %w", ErrInvalidStyle, o.ID, err)
	}
	sh := Shape{ObjectID: o.ID, Kind: o.Kind, Style: o.Style}

	switch o.Kind {
	case geometry.KindPoint:
		x, y := pr.point(o.Vertices[0])
		r := math.Max(pr.length(0.5), o.Style.StrokeWidth)
		sh.Path = []Segment{{Op: SegArc, X: x, Y: y, R: r}}
		sh.Style.FillEnabled = true
		sh.Style.FillColor = o.Style.StrokeColor
		sh.Style.FillAlpha = o.Style.StrokeAlpha
	case geometry.KindLine:
		x0, y0 := pr.point(o.Vertices[0])
		x1, y1 := pr.point(o.Vertices[1])
		sh.Path = []Segment{{Op: SegMove, X: x0, Y: y0}, {Op: SegLine, X: x1, Y: y1}}
	case geometry.KindCircle:
		x, y := pr.point(o.Properties.Center)
		sh.Path = []Segment{{Op: SegArc, X: x, Y: y, R: pr.length(o.Properties.Radius)}}
	case geometry.KindRectangle, geometry.KindDiamond:
		corners := geometry.Outline(o.Properties, o.Vertices)
		sh.Path = polygon(pr, corners)
	default:
		return Shape{}, fmt.Errorf("%w: object %s has kind %s", geometry.ErrInvalidInput, o.ID, o.Kind)
	}
	return sh, nil
}

func polygon(pr projector, pts []coords.Pixeloid) []Segment {
	path := make([]Segment, 0, len(pts)+1)
	for i, p := range pts {
		x, y := pr.point(p)
		op := SegLine
		if i == 0 {
			op = SegMove
		}
		path = append(path, Segment{Op: op, X: x, Y: y})
	}
	return append(path, Segment{Op: SegClose})
}
