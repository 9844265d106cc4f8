package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a packed 0xRRGGBB value. It encodes as "#rrggbb".
type Color uint32

// RGB returns the channels scaled to [0,1].
func (c Color) RGB() (r, g, b float64) {
	return float64(c>>16&0xff) / 255, float64(c>>8&0xff) / 255, float64(c&0xff) / 255
}

// Hex formats the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

func (c Color) MarshalText() ([]byte, error) {
	if c > 0xffffff {
		return nil, fmt.Errorf("%w: color %#x out of range", ErrInvalidInput, uint32(c))
	}
	return []byte(c.Hex()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	switch {
	case strings.HasPrefix(s, "#"):
		s = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s = s[2:]
	}
	if len(s) != 6 {
		return fmt.Errorf("%w: color %q is not #rrggbb", ErrInvalidInput, string(text))
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("%w: color %q: %v", ErrInvalidInput, string(text), err)
	}
	*c = Color(v)
	return nil
}

// DefaultStyle is a thin light outline with no fill.
var DefaultStyle = Style{StrokeColor: 0xcdd6f4, StrokeWidth: 1, StrokeAlpha: 1}

// Style is the complete paint description of an object.
type Style struct {
	StrokeColor Color   `json:"strokeColor" yaml:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"strokeWidth"`
	StrokeAlpha float64 `json:"strokeAlpha" yaml:"strokeAlpha"`
	FillEnabled bool    `json:"fillEnabled" yaml:"fillEnabled"`
	FillColor   Color   `json:"fillColor" yaml:"fillColor"`
	FillAlpha   float64 `json:"fillAlpha" yaml:"fillAlpha"`
}

// Validate rejects styles that cannot be drawn as specified.
func (s Style) Validate() error {
	if s.StrokeColor > 0xffffff {
		return fmt.Errorf("%w: stroke color %#x", ErrInvalidInput, uint32(s.StrokeColor))
	}
	if !finite(s.StrokeWidth) || s.StrokeWidth <= 0 {
		return fmt.Errorf("%w: stroke width %v", ErrInvalidInput, s.StrokeWidth)
	}
	if !unit(s.StrokeAlpha) {
		return fmt.Errorf("%w: stroke alpha %v", ErrInvalidInput, s.StrokeAlpha)
	}
	if s.FillEnabled {
		if s.FillColor > 0xffffff {
			return fmt.Errorf("%w: fill color %#x", ErrInvalidInput, uint32(s.FillColor))
		}
		if !unit(s.FillAlpha) {
			return fmt.Errorf("%w: fill alpha %v", ErrInvalidInput, s.FillAlpha)
		}
	}
	return nil
}

// StyleSettings is the style structure supplied by edit panels and remote
// clients. Every stroke field and fillEnabled are required; fill color and
// alpha are required when fill is enabled. Absent fields are rejected, never
// defaulted.
type StyleSettings struct {
	StrokeColor *Color   `json:"strokeColor" yaml:"strokeColor"`
	StrokeWidth *float64 `json:"strokeWidth" yaml:"strokeWidth"`
	StrokeAlpha *float64 `json:"strokeAlpha" yaml:"strokeAlpha"`
	FillEnabled *bool    `json:"fillEnabled" yaml:"fillEnabled"`
	FillColor   *Color   `json:"fillColor,omitempty" yaml:"fillColor,omitempty"`
	FillAlpha   *float64 `json:"fillAlpha,omitempty" yaml:"fillAlpha,omitempty"`
}

// Resolve checks completeness and returns the validated Style.
func (ss StyleSettings) Resolve() (Style, error) {
	var missing []string
	if ss.StrokeColor == nil {
		missing = append(missing, "strokeColor")
	}
	if ss.StrokeWidth == nil {
		missing = append(missing, "strokeWidth")
	}
	if ss.StrokeAlpha == nil {
		missing = append(missing, "strokeAlpha")
	}
	if ss.FillEnabled == nil {
		missing = append(missing, "fillEnabled")
	} else if *ss.FillEnabled {
		if ss.FillColor == nil {
			missing = append(missing, "fillColor")
		}
		if ss.FillAlpha == nil {
			missing = append(missing, "fillAlpha")
		}
	}
	if len(missing) > 0 {
		return Style{}, fmt.Errorf("%w: style missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	s := Style{
		StrokeColor: *ss.StrokeColor,
		StrokeWidth: *ss.StrokeWidth,
		StrokeAlpha: *ss.StrokeAlpha,
		FillEnabled: *ss.FillEnabled,
	}
	if s.FillEnabled {
		s.FillColor = *ss.FillColor
		s.FillAlpha = *ss.FillAlpha
	}
	if err := s.Validate(); err != nil {
		return Style{}, err
	}
	return s, nil
}

// Settings converts a complete style back to its settings form.
func (s Style) Settings() StyleSettings {
	ss := StyleSettings{
		StrokeColor: &s.StrokeColor,
		StrokeWidth: &s.StrokeWidth,
		StrokeAlpha: &s.StrokeAlpha,
		FillEnabled: &s.FillEnabled,
	}
	if s.FillEnabled {
		ss.FillColor = &s.FillColor
		ss.FillAlpha = &s.FillAlpha
	}
	return ss
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func unit(v float64) bool {
	return finite(v) && v >= 0 && v <= 1
}
