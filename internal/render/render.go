// Package render turns a store snapshot into layered draw output.
//
// Each layer (grid, geometry, selection, pixelate) is built independently from
// the same snapshot and handed to a Target as its own list of screen-space
// shapes plus an optional post-process effect. Targets decide how to draw:
// RasterTarget rasterizes with gg, CommandTarget emits JSON draw commands for
// a browser canvas.
package render

import (
	"errors"
	"fmt"
	"math"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/store"
)

// ErrInvalidStyle is returned when an object to be drawn has an incomplete or
// out-of-range style. It also matches geometry.ErrInvalidInput.
var ErrInvalidStyle = errors.New("invalid style")

// Layer identifies one independently toggleable render layer.
type Layer uint8

const (
	LayerGrid Layer = iota + 1
	LayerGeometry
	LayerSelection
	LayerPixelate
)

// Layers lists every layer in compositing order.
var Layers = []Layer{LayerGrid, LayerGeometry, LayerSelection, LayerPixelate}

func (l Layer) String() string {
	switch l {
	case LayerGrid:
		return "grid"
	case LayerGeometry:
		return "geometry"
	case LayerSelection:
		return "selection"
	case LayerPixelate:
		return "pixelate"
	default:
		return fmt.Sprintf("layer(%d)", uint8(l))
	}
}

func (l Layer) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// ParseLayer parses a layer name.
func ParseLayer(s string) (Layer, error) {
	for _, l := range Layers {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown layer %q", geometry.ErrInvalidInput, s)
}

// EffectKind names a post-process effect applied to a whole layer.
type EffectKind string

const (
	EffectOutline  EffectKind = "outline"
	EffectPixelate EffectKind = "pixelate"
)

// Effect describes a layer post-process. Outline uses Color and Width;
// Pixelate uses BlockSize and Origin.
type Effect struct {
	Kind      EffectKind     `json:"kind"`
	Color     geometry.Color `json:"color,omitempty"`
	Width     int            `json:"width,omitempty"`
	BlockSize int            `json:"blockSize,omitempty"`
	Origin    coords.Screen  `json:"origin"`
}

// LayerOutput is one layer's shapes in painter's order and its effect.
type LayerOutput struct {
	Layer  Layer
	Shapes []Shape
	Effect *Effect
}

// Theme holds the colors the pipeline adds on its own.
type Theme struct {
	Background   geometry.Color
	Grid         geometry.Style
	OutlineColor geometry.Color
	OutlineWidth int
	// GridMinScale hides grid lines below this zoom.
	GridMinScale int
}

// DefaultTheme is a dark canvas with a faint grid and a cyan outline.
var DefaultTheme = Theme{
	Background:   0x1e1e2e,
	Grid:         geometry.Style{StrokeColor: 0x45475a, StrokeWidth: 1, StrokeAlpha: 0.6},
	OutlineColor: 0x89dceb,
	OutlineWidth: 2,
	GridMinScale: 4,
}

// Target consumes a frame layer by layer.
type Target interface {
	BeginFrame(vp coords.Viewport, background geometry.Color) error
	DrawLayer(out LayerOutput) error
	EndFrame() error
}

// Pipeline builds layers from snapshots. The zero value is not usable; call
// NewPipeline.
type Pipeline struct {
	theme   Theme
	enabled map[Layer]bool
}

// NewPipeline returns a pipeline with grid, geometry and selection enabled and
// pixelation off.
func NewPipeline(theme Theme) *Pipeline {
	return &Pipeline{
		theme: theme,
		enabled: map[Layer]bool{
			LayerGrid:      true,
			LayerGeometry:  true,
			LayerSelection: true,
			LayerPixelate:  false,
		},
	}
}

// SetLayerEnabled turns one layer on or off without touching the others.
func (p *Pipeline) SetLayerEnabled(l Layer, on bool) {
	p.enabled[l] = on
}

// LayerEnabled reports whether l is drawn.
func (p *Pipeline) LayerEnabled(l Layer) bool {
	return p.enabled[l]
}

// EnabledLayers returns the state of every layer.
func (p *Pipeline) EnabledLayers() map[string]bool {
	out := make(map[string]bool, len(Layers))
	for _, l := range Layers {
		out[l.String()] = p.enabled[l]
	}
	return out
}

// Build produces the enabled layers for snap. Every layer reads the snapshot
// directly; none depends on another's output.
func (p *Pipeline) Build(snap store.Snapshot) ([]LayerOutput, error) {
	if err := snap.Viewport.Validate(); err != nil {
		return nil, err
	}
	// Every layer projects through the same pixel-aligned viewport so grid
	// lines, object edges and pixelate blocks share one origin.
	snap.Viewport = snap.Viewport.Aligned()
	pr := projector{vp: snap.Viewport}

	var out []LayerOutput
	for _, l := range Layers {
		if !p.enabled[l] {
			continue
		}
		var (
			lo  LayerOutput
			err error
		)
		switch l {
		case LayerGrid:
			lo = p.gridLayer(snap.Viewport)
		case LayerGeometry:
			lo, err = geometryLayer(pr, snap)
		case LayerSelection:
			lo, err = p.selectionLayer(pr, snap)
		case LayerPixelate:
			lo, err = pixelateLayer(pr, snap)
		}
		if err != nil {
			return nil, fmt.Errorf("%s layer: %w", l, err)
		}
		out = append(out, lo)
	}
	return out, nil
}

// Render builds the layers for snap and draws them into t.
func (p *Pipeline) Render(snap store.Snapshot, t Target) error {
	layers, err := p.Build(snap)
	if err != nil {
		return err
	}
	if err := t.BeginFrame(snap.Viewport, p.theme.Background); err != nil {
		return err
	}
	for _, lo := range layers {
		if err := t.DrawLayer(lo); err != nil {
			return fmt.Errorf("draw %s layer: %w", lo.Layer, err)
		}
	}
	Logger().Debug("frame rendered", "layers", len(layers), "objects", len(snap.Objects))
	return t.EndFrame()
}

// gridLayer draws world-integer grid lines across the fixed vertex-space mesh
// (0,0)..(width/scale, height/scale). Panning moves the lines, never the mesh.
func (p *Pipeline) gridLayer(vp coords.Viewport) LayerOutput {
	lo := LayerOutput{Layer: LayerGrid}
	if vp.Scale < p.theme.GridMinScale {
		return lo
	}
	minV, maxV := vp.MeshBounds()
	top := coords.VertexToScreen(minV, vp.Scale)
	bottom := coords.VertexToScreen(maxV, vp.Scale)
	origin := gridOrigin(vp)
	step := float64(vp.Scale)

	for i := 0; origin.X+float64(i)*step <= bottom.X; i++ {
		x := origin.X + float64(i)*step
		lo.Shapes = append(lo.Shapes, gridLine(p.theme.Grid, x, top.Y, x, bottom.Y))
	}
	for i := 0; origin.Y+float64(i)*step <= bottom.Y; i++ {
		y := origin.Y + float64(i)*step
		lo.Shapes = append(lo.Shapes, gridLine(p.theme.Grid, top.X, y, bottom.X, y))
	}
	return lo
}

func gridLine(style geometry.Style, x0, y0, x1, y1 float64) Shape {
	return Shape{
		Kind:  geometry.KindLine,
		Style: style,
		Path:  []Segment{{Op: SegMove, X: x0, Y: y0}, {Op: SegLine, X: x1, Y: y1}},
	}
}

// drawable returns the visible objects in painter's order with the active
// preview swapped in for its target and a create preview appended last.
func drawable(snap store.Snapshot) []*store.Object {
	pv := snap.Preview
	out := make([]*store.Object, 0, len(snap.Objects)+1)
	for _, o := range snap.Objects {
		if !o.Visible {
			continue
		}
		if pv.Active && pv.TargetID == o.ID && pv.Object != nil {
			out = append(out, pv.Object)
			continue
		}
		out = append(out, o)
	}
	if pv.Active && pv.TargetID == "" && pv.Object != nil {
		out = append(out, pv.Object)
	}
	return out
}

func geometryLayer(pr projector, snap store.Snapshot) (LayerOutput, error) {
	lo := LayerOutput{Layer: LayerGeometry}
	for _, o := range drawable(snap) {
		sh, err := shapeFor(pr, o)
		if err != nil {
			return lo, err
		}
		lo.Shapes = append(lo.Shapes, sh)
	}
	return lo, nil
}

// selectionLayer draws only the selected object, with the outline effect
// applied to this layer alone.
func (p *Pipeline) selectionLayer(pr projector, snap store.Snapshot) (LayerOutput, error) {
	lo := LayerOutput{Layer: LayerSelection}
	id := snap.Selection.ID
	if id == "" {
		return lo, nil
	}
	for _, o := range drawable(snap) {
		if o.ID != id {
			continue
		}
		sh, err := shapeFor(pr, o)
		if err != nil {
			return lo, err
		}
		lo.Shapes = []Shape{sh}
		lo.Effect = &Effect{
			Kind:  EffectOutline,
			Color: p.theme.OutlineColor,
			Width: p.theme.OutlineWidth,
		}
		break
	}
	return lo, nil
}

// pixelateLayer redraws the geometry into its own target and pixelates it in
// blocks of one world cell, aligned to the grid origin.
func pixelateLayer(pr projector, snap store.Snapshot) (LayerOutput, error) {
	lo, err := geometryLayer(pr, snap)
	if err != nil {
		return lo, err
	}
	lo.Layer = LayerPixelate
	lo.Effect = &Effect{
		Kind:      EffectPixelate,
		BlockSize: snap.Viewport.Scale,
		Origin:    gridOrigin(snap.Viewport),
	}
	return lo, nil
}

// gridOrigin is the device pixel every grid-aligned layer starts from.
func gridOrigin(vp coords.Viewport) coords.Screen {
	return snapScreen(vp.GridOrigin())
}

// snapScreen rounds a screen position to the nearest device pixel. Pixel
// effects can only align to whole pixels.
func snapScreen(s coords.Screen) coords.Screen {
	return coords.Screen{X: math.Round(s.X), Y: math.Round(s.Y)}
}
