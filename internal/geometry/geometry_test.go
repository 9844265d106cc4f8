package geometry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocanvas/isocanvas/internal/coords"
)

func TestCircleRadiusIsExact(t *testing.T) {
	vs, err := GenerateVertices(KindCircle, coords.P(150, 100), coords.P(200, 100))
	require.NoError(t, err)
	require.Len(t, vs, 2)

	p, err := DeriveProperties(KindCircle, vs)
	require.NoError(t, err)
	assert.Equal(t, 50.0, p.Radius)
	assert.Equal(t, coords.P(150, 100), p.Center)
}

func TestCircleRadiusDiagonal(t *testing.T) {
	a, b := coords.P(10, 10), coords.P(13, 14)
	vs, err := GenerateVertices(KindCircle, a, b)
	require.NoError(t, err)

	p, err := DeriveProperties(KindCircle, vs)
	require.NoError(t, err)
	assert.Equal(t, a.Distance(b), p.Radius)
	assert.Equal(t, a.Y, vs[1].Y, "radius point lies on the horizontal through the center")
}

func TestGenerateMatchesAnchors(t *testing.T) {
	a, b := coords.P(4, 20), coords.P(14, 6)

	t.Run("point", func(t *testing.T) {
		vs, err := GenerateVertices(KindPoint, a, b)
		require.NoError(t, err)
		assert.Equal(t, []coords.Pixeloid{a}, vs)
	})

	t.Run("line", func(t *testing.T) {
		vs, err := GenerateVertices(KindLine, a, b)
		require.NoError(t, err)
		p, err := DeriveProperties(KindLine, vs)
		require.NoError(t, err)
		assert.Equal(t, a, p.Start)
		assert.Equal(t, b, p.End)
		assert.InDelta(t, a.Distance(b), p.Length, 1e-12)
		assert.Equal(t, coords.P(9, 13), p.Center)
	})

	t.Run("rectangle", func(t *testing.T) {
		vs, err := GenerateVertices(KindRectangle, a, b)
		require.NoError(t, err)
		assert.Equal(t, []coords.Pixeloid{coords.P(4, 6), coords.P(14, 20)}, vs)
		p, err := DeriveProperties(KindRectangle, vs)
		require.NoError(t, err)
		assert.Equal(t, 10.0, p.Width)
		assert.Equal(t, 14.0, p.Height)
		assert.Equal(t, coords.P(9, 13), p.Center)
	})
}

func TestDiamondIsometricRatio(t *testing.T) {
	for _, w := range []float64{2, 3, 7, 10, 33, 128} {
		a := coords.P(5, 9)
		b := coords.P(5+w, 40)
		vs, err := GenerateVertices(KindDiamond, a, b)
		require.NoError(t, err, "width %v", w)

		p, err := DeriveProperties(KindDiamond, vs)
		require.NoError(t, err)
		assert.Equal(t, w, p.Width)
		assert.Equal(t, w/2, p.Height)
		assert.Equal(t, vs[3].Y-vs[1].Y, p.Height)
	}
}

func TestDiamondOrderIsValidated(t *testing.T) {
	vs, err := GenerateVertices(KindDiamond, coords.P(0, 0), coords.P(8, 0))
	require.NoError(t, err)

	swapped := []coords.Pixeloid{vs[2], vs[1], vs[0], vs[3]}
	_, err = DeriveProperties(KindDiamond, swapped)
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	rotated := []coords.Pixeloid{vs[1], vs[2], vs[3], vs[0]}
	_, err = DeriveProperties(KindDiamond, rotated)
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	tall := []coords.Pixeloid{coords.P(0, 0), coords.P(4, -4), coords.P(8, 0), coords.P(4, 4)}
	_, err = DeriveProperties(KindDiamond, tall)
	assert.ErrorIs(t, err, ErrPreconditionViolation)
}

func TestDegenerateShapesRejected(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		a, b coords.Pixeloid
	}{
		{"rectangle identical points", KindRectangle, coords.P(5, 5), coords.P(5, 5)},
		{"rectangle zero height", KindRectangle, coords.P(5, 5), coords.P(20, 5)},
		{"rectangle thin", KindRectangle, coords.P(5, 5), coords.P(5.5, 30)},
		{"circle tiny radius", KindCircle, coords.P(5, 5), coords.P(5.2, 5.2)},
		{"line zero length", KindLine, coords.P(1, 1), coords.P(1, 1)},
		{"diamond narrow", KindDiamond, coords.P(0, 0), coords.P(1.5, 0)},
		{"non-finite anchor", KindLine, coords.P(math.NaN(), 0), coords.P(1, 1)},
		{"unknown kind", Kind(0), coords.P(0, 0), coords.P(10, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := GenerateVertices(tt.kind, tt.a, tt.b)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Nil(t, vs)
		})
	}
}

func TestDeriveRejectsWrongVertexCount(t *testing.T) {
	_, err := DeriveProperties(KindCircle, []coords.Pixeloid{coords.P(1, 1)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = DeriveProperties(KindDiamond, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCanonical(t *testing.T) {
	in := []coords.Pixeloid{coords.P(10, 0), coords.P(0, 10)}
	assert.Equal(t, []coords.Pixeloid{coords.P(0, 0), coords.P(10, 10)}, Canonical(KindRectangle, in))
	assert.Equal(t, coords.P(10, 0), in[0], "input untouched")

	line := []coords.Pixeloid{coords.P(10, 0), coords.P(0, 10)}
	out := Canonical(KindLine, line)
	assert.Equal(t, line, out)
	out[0] = coords.P(1, 1)
	assert.Equal(t, coords.P(10, 0), line[0])
}

func TestMoveVerticesDoesNotAlias(t *testing.T) {
	vs := []coords.Pixeloid{coords.P(10, 10), coords.P(20, 20)}
	moved := MoveVertices(vs, coords.Delta{X: 5, Y: -2})

	assert.Equal(t, []coords.Pixeloid{coords.P(15, 8), coords.P(25, 18)}, moved)
	assert.Equal(t, coords.P(10, 10), vs[0])
}

func TestExtentCoversCircle(t *testing.T) {
	vs, err := GenerateVertices(KindCircle, coords.P(10, 10), coords.P(13, 14))
	require.NoError(t, err)
	p, b, err := Validate(KindCircle, vs)
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.Radius)
	assert.Equal(t, Bounds{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}, b)
	assert.Equal(t, Bounds{MinX: 10, MinY: 10, MaxX: 15, MaxY: 10}, DeriveBounds(vs))
}

func TestContains(t *testing.T) {
	mk := func(kind Kind, a, b coords.Pixeloid) Properties {
		vs, err := GenerateVertices(kind, a, b)
		require.NoError(t, err)
		p, err := DeriveProperties(kind, vs)
		require.NoError(t, err)
		return p
	}

	rect := mk(KindRectangle, coords.P(0, 0), coords.P(10, 4))
	assert.True(t, Contains(rect, coords.P(5, 2), 0))
	assert.False(t, Contains(rect, coords.P(11, 2), 0))
	assert.True(t, Contains(rect, coords.P(10.4, 2), 0.5))

	circle := mk(KindCircle, coords.P(0, 0), coords.P(3, 4))
	assert.True(t, Contains(circle, coords.P(0, 4.9), 0))
	assert.False(t, Contains(circle, coords.P(4, 4), 0))

	line := mk(KindLine, coords.P(0, 0), coords.P(10, 0))
	assert.True(t, Contains(line, coords.P(5, 0.3), 0.5))
	assert.False(t, Contains(line, coords.P(12, 0), 0.5))

	diamond := mk(KindDiamond, coords.P(0, 0), coords.P(8, 0))
	assert.True(t, Contains(diamond, coords.P(4, 0), 0))
	assert.False(t, Contains(diamond, coords.P(1, 1.9), 0))
}

func TestKindText(t *testing.T) {
	for _, k := range Kinds {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var back Kind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}

	_, err := ParseKind("hexagon")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStyleSettingsRejectMissingFields(t *testing.T) {
	var ss StyleSettings
	require.NoError(t, json.Unmarshal([]byte(`{"strokeColor":"#ff0000","strokeWidth":1}`), &ss))
	_, err := ss.Resolve()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "strokeAlpha")
	assert.Contains(t, err.Error(), "fillEnabled")

	require.NoError(t, json.Unmarshal([]byte(`{"strokeColor":"#ff0000","strokeWidth":1,"strokeAlpha":1,"fillEnabled":true}`), &ss))
	_, err = ss.Resolve()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "fillColor")

	require.NoError(t, json.Unmarshal([]byte(`{"strokeColor":"#ff0000","strokeWidth":1,"strokeAlpha":1,"fillEnabled":true,"fillColor":"#00ff00","fillAlpha":0.5}`), &ss))
	s, err := ss.Resolve()
	require.NoError(t, err)
	assert.Equal(t, Color(0xff0000), s.StrokeColor)
	assert.Equal(t, Color(0x00ff00), s.FillColor)
}

func TestStyleValidate(t *testing.T) {
	ok := Style{StrokeColor: 0x112233, StrokeWidth: 1, StrokeAlpha: 1}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.StrokeWidth = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = ok
	bad.StrokeAlpha = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	bad = ok
	bad.FillEnabled = true
	bad.FillAlpha = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}
