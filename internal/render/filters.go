package render

import (
	"math"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"

	"github.com/isocanvas/isocanvas/internal/geometry"
)

// OutlineFilter draws a solid halo of Width pixels around every non-transparent
// pixel of its input.
type OutlineFilter struct {
	Color gg.RGBA
	Width int
}

var _ scene.Filter = (*OutlineFilter)(nil)

// NewOutlineFilter builds an outline in c, width pixels thick.
func NewOutlineFilter(c geometry.Color, width int) *OutlineFilter {
	return &OutlineFilter{Color: rgba(c, 1), Width: max(width, 1)}
}

// Apply writes src into dst with the outline under it.
func (f *OutlineFilter) Apply(src, dst *gg.Pixmap, bounds scene.Rect) {
	x0, y0, x1, y1 := clampBounds(bounds, src)
	w := f.Width
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c := src.GetPixel(x, y)
			if c.A > 0 {
				dst.SetPixel(x, y, over(c, f.nearOutline(src, x, y, w, c)))
				continue
			}
			if f.touches(src, x, y, w) {
				dst.SetPixel(x, y, f.Color)
			} else {
				dst.SetPixel(x, y, gg.Transparent)
			}
		}
	}
}

// nearOutline returns the outline color under partially transparent edge
// pixels so anti-aliased edges blend into the halo.
func (f *OutlineFilter) nearOutline(src *gg.Pixmap, x, y, w int, c gg.RGBA) gg.RGBA {
	if c.A >= 1 || !f.touchesTransparent(src, x, y, w) {
		return gg.Transparent
	}
	return f.Color
}

func (f *OutlineFilter) touches(src *gg.Pixmap, x, y, w int) bool {
	for dy := -w; dy <= w; dy++ {
		for dx := -w; dx <= w; dx++ {
			if dx*dx+dy*dy > w*w {
				continue
			}
			if src.GetPixel(x+dx, y+dy).A > 0 {
				return true
			}
		}
	}
	return false
}

func (f *OutlineFilter) touchesTransparent(src *gg.Pixmap, x, y, w int) bool {
	for dy := -w; dy <= w; dy++ {
		for dx := -w; dx <= w; dx++ {
			if src.GetPixel(x+dx, y+dy).A == 0 {
				return true
			}
		}
	}
	return false
}

// ExpandBounds grows the region by the outline width.
func (f *OutlineFilter) ExpandBounds(input scene.Rect) scene.Rect {
	w := float32(f.Width)
	return scene.Rect{MinX: input.MinX - w, MinY: input.MinY - w, MaxX: input.MaxX + w, MaxY: input.MaxY + w}
}

// PixelateFilter replaces each BlockSize square with its average color.
// Blocks start at OriginX, OriginY so they line up with world grid cells.
type PixelateFilter struct {
	BlockSize        int
	OriginX, OriginY int
}

var _ scene.Filter = (*PixelateFilter)(nil)

// Apply averages every block of src intersecting bounds into dst.
func (f *PixelateFilter) Apply(src, dst *gg.Pixmap, bounds scene.Rect) {
	x0, y0, x1, y1 := clampBounds(bounds, src)
	n := f.BlockSize
	if n <= 1 {
		copyRegion(src, dst, x0, y0, x1, y1)
		return
	}
	startX := alignDown(x0, f.OriginX, n)
	startY := alignDown(y0, f.OriginY, n)
	for by := startY; by < y1; by += n {
		for bx := startX; bx < x1; bx += n {
			avg := average(src, max(bx, x0), max(by, y0), min(bx+n, x1), min(by+n, y1))
			for y := max(by, y0); y < min(by+n, y1); y++ {
				for x := max(bx, x0); x < min(bx+n, x1); x++ {
					dst.SetPixel(x, y, avg)
				}
			}
		}
	}
}

// ExpandBounds returns input unchanged; pixelation never grows the image.
func (f *PixelateFilter) ExpandBounds(input scene.Rect) scene.Rect {
	return input
}

// alignDown returns the largest block start <= v on the lattice origin + k*n.
func alignDown(v, origin, n int) int {
	d := (v - origin) % n
	if d < 0 {
		d += n
	}
	return v - d
}

func average(src *gg.Pixmap, x0, y0, x1, y1 int) gg.RGBA {
	var sum gg.RGBA
	count := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c := src.GetPixel(x, y)
			sum.R += c.R
			sum.G += c.G
			sum.B += c.B
			sum.A += c.A
			count++
		}
	}
	if count == 0 {
		return gg.Transparent
	}
	n := float64(count)
	return gg.RGBA{R: sum.R / n, G: sum.G / n, B: sum.B / n, A: sum.A / n}
}

func copyRegion(src, dst *gg.Pixmap, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			dst.SetPixel(x, y, src.GetPixel(x, y))
		}
	}
}

func clampBounds(b scene.Rect, pm *gg.Pixmap) (x0, y0, x1, y1 int) {
	x0 = max(int(math.Floor(float64(b.MinX))), 0)
	y0 = max(int(math.Floor(float64(b.MinY))), 0)
	x1 = min(int(math.Ceil(float64(b.MaxX))), pm.Width())
	y1 = min(int(math.Ceil(float64(b.MaxY))), pm.Height())
	return
}

// over composites premultiplied src over dst.
func over(src, dst gg.RGBA) gg.RGBA {
	k := 1 - src.A
	return gg.RGBA{
		R: src.R + dst.R*k,
		G: src.G + dst.G*k,
		B: src.B + dst.B*k,
		A: src.A + dst.A*k,
	}
}

// rgba converts a color and alpha into a premultiplied gg color.
func rgba(c geometry.Color, alpha float64) gg.RGBA {
	r, g, b := c.RGB()
	return gg.RGBA{R: r * alpha, G: g * alpha, B: b * alpha, A: alpha}
}
