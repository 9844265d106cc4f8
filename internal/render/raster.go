package render

import (
	"errors"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

var errNoFrame = errors.New("raster target: no frame in progress")

// RasterTarget rasterizes each layer into its own gg pixmap, applies the
// layer's effect there, and composites the result over the frame.
type RasterTarget struct {
	frame *gg.Pixmap
	dc    *gg.Context
	done  bool
}

// NewRasterTarget returns an empty raster target.
func NewRasterTarget() *RasterTarget {
	return &RasterTarget{}
}

// BeginFrame allocates a window-sized frame cleared to background.
func (t *RasterTarget) BeginFrame(vp coords.Viewport, background geometry.Color) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	if t.dc != nil {
		_ = t.dc.Close()
	}
	t.frame = gg.NewPixmap(vp.Width, vp.Height)
	t.frame.Clear(rgba(background, 1))
	t.dc = gg.NewContext(vp.Width, vp.Height, gg.WithPixmap(t.frame))
	t.done = false
	return nil
}

// DrawLayer draws out into a fresh pixmap and composites it.
func (t *RasterTarget) DrawLayer(out LayerOutput) error {
	if t.frame == nil {
		return errNoFrame
	}
	w, h := t.frame.Width(), t.frame.Height()
	layer := gg.NewPixmap(w, h)
	dc := gg.NewContext(w, h, gg.WithPixmap(layer))
	defer dc.Close()

	for _, sh := range out.Shapes {
		if err := drawShape(dc, sh); err != nil {
			return err
		}
	}
	if err := dc.FlushGPU(); err != nil {
		return err
	}

	if out.Effect != nil {
		f := filterFor(*out.Effect)
		if f != nil {
			bounds := scene.Rect{MaxX: float32(w), MaxY: float32(h)}
			dst := gg.NewPixmap(w, h)
			f.Apply(layer, dst, bounds)
			layer = dst
		}
	}
	t.dc.DrawImageEx(gg.ImageBufFromImage(straightAlpha(layer)), gg.DrawImageOptions{
		Interpolation: gg.InterpNearest,
		Opacity:       1,
		BlendMode:     gg.BlendNormal,
	})
	return nil
}

// EndFrame finishes the frame.
func (t *RasterTarget) EndFrame() error {
	if t.frame == nil {
		return errNoFrame
	}
	t.done = true
	return nil
}

// Pixmap returns the last finished frame, or nil.
func (t *RasterTarget) Pixmap() *gg.Pixmap {
	if !t.done {
		return nil
	}
	return t.frame
}

// Image returns the last finished frame as an image.
func (t *RasterTarget) Image() (*image.RGBA, error) {
	if !t.done {
		return nil, errNoFrame
	}
	return t.frame.ToImage(), nil
}

// EncodePNG writes the last finished frame as PNG.
func (t *RasterTarget) EncodePNG(w io.Writer) error {
	img, err := t.Image()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// straightAlpha converts a premultiplied pixmap into the non-premultiplied
// form gg's image blending expects.
func straightAlpha(pm *gg.Pixmap) *image.NRGBA {
	src := pm.ToImage()
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)
	return dst
}

func filterFor(e Effect) scene.Filter {
	switch e.Kind {
	case EffectOutline:
		return NewOutlineFilter(e.Color, e.Width)
	case EffectPixelate:
		return &PixelateFilter{
			BlockSize: e.BlockSize,
			OriginX:   int(e.Origin.X),
			OriginY:   int(e.Origin.Y),
		}
	default:
		Logger().Warn("unknown layer effect", "kind", e.Kind)
		return nil
	}
}

func drawShape(dc *gg.Context, sh Shape) error {
	trace := func() {
		for _, seg := range sh.Path {
			switch seg.Op {
			case SegMove:
				dc.MoveTo(seg.X, seg.Y)
			case SegLine:
				dc.LineTo(seg.X, seg.Y)
			case SegArc:
				dc.DrawCircle(seg.X, seg.Y, seg.R)
			case SegClose:
				dc.ClosePath()
			}
		}
	}

	st := sh.Style
	if st.FillEnabled {
		trace()
		r, g, b := st.FillColor.RGB()
		dc.SetRGBA(r, g, b, st.FillAlpha)
		if err := dc.Fill(); err != nil {
			return err
		}
	}
	trace()
	r, g, b := st.StrokeColor.RGB()
	dc.SetRGBA(r, g, b, st.StrokeAlpha)
	dc.SetLineWidth(st.StrokeWidth)
	return dc.Stroke()
}
