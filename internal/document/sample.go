package document

import (
	"time"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/typeid"
)

// NewSampleDocument returns a small scene with one of each shape kind and a
// row of isometric floor tiles.
func NewSampleDocument(sceneID string) *Document {
	now := time.Now().UTC().Truncate(time.Second)
	visible := true

	outline := geometry.DefaultStyle
	tile := geometry.Style{
		StrokeColor: 0x585b70, StrokeWidth: 1, StrokeAlpha: 1,
		FillEnabled: true, FillColor: 0xa6e3a1, FillAlpha: 0.8,
	}
	accent := geometry.Style{
		StrokeColor: 0xf38ba8, StrokeWidth: 2, StrokeAlpha: 1,
		FillEnabled: true, FillColor: 0xf38ba8, FillAlpha: 0.35,
	}

	rec := func(kind geometry.Kind, style geometry.Style, vs ...coords.Pixeloid) Record {
		return Record{
			ID:        typeid.NewObjectID(),
			Kind:      kind,
			CreatedAt: now,
			Visible:   &visible,
			Vertices:  vs,
			Style:     style.Settings(),
		}
	}

	var objects []Record
	for i := range 4 {
		west := float64(10 + i*8)
		vs, _ := geometry.GenerateVertices(geometry.KindDiamond, coords.P(west, 40), coords.P(west+8, 40))
		objects = append(objects, rec(geometry.KindDiamond, tile, vs...))
	}
	objects = append(objects,
		rec(geometry.KindRectangle, outline, coords.P(10, 10), coords.P(30, 24)),
		rec(geometry.KindCircle, accent, coords.P(60, 18), coords.P(68, 18)),
		rec(geometry.KindLine, outline, coords.P(40, 30), coords.P(80, 30)),
		rec(geometry.KindPoint, accent, coords.P(50, 10)),
	)

	return &Document{
		Version: FormatVersion,
		Scene: Scene{
			ID:         sceneID,
			Name:       "Sample",
			Background: 0x1e1e2e,
		},
		Objects: objects,
	}
}
