// Package export rasterizes scene documents to images, for the snapshot
// endpoint and the offline renderer.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/render"
	"github.com/isocanvas/isocanvas/internal/store"
)

// MaxPixels caps snapshot size. The frame is held in memory twice, as a
// pixmap and as encoded PNG.
const MaxPixels = 4096 * 4096

// ErrTooLarge is returned for viewports over MaxPixels.
var ErrTooLarge = errors.New("snapshot too large")

// CheckSize validates vp and rejects frames over MaxPixels. The bound is
// checked by division, so huge sides cannot overflow past it.
func CheckSize(vp coords.Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	if vp.Width > MaxPixels/vp.Height {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, vp.Width, vp.Height, MaxPixels)
	}
	return nil
}

// Snapshot draws doc through vp into a fresh raster target. The document's
// own viewport is ignored. With no layers the pipeline defaults apply;
// otherwise exactly the listed layers are drawn.
func Snapshot(doc *document.Document, vp coords.Viewport, opts store.Options, theme render.Theme, layers []render.Layer) (*render.RasterTarget, error) {
	if err := CheckSize(vp); err != nil {
		return nil, err
	}

	framed := *doc
	framed.Viewport = &vp
	s, err := framed.NewStore(opts)
	if err != nil {
		return nil, err
	}

	pipeline := render.NewPipeline(theme)
	if len(layers) > 0 {
		want := make(map[render.Layer]bool, len(layers))
		for _, l := range layers {
			want[l] = true
		}
		for _, l := range render.Layers {
			pipeline.SetLayerEnabled(l, want[l])
		}
	}

	target := render.NewRasterTarget()
	if err := pipeline.Render(s.Snapshot(), target); err != nil {
		return nil, err
	}
	return target, nil
}

// ParseLayers parses a comma separated list of layer names.
func ParseLayers(raw string) ([]render.Layer, error) {
	var out []render.Layer
	for _, name := range strings.Split(raw, ",") {
		l, err := render.ParseLayer(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
