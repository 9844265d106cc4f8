package geometry

import (
	"fmt"
	"strings"
)

// Kind is the closed set of drawable shapes. The zero value is not a shape.
type Kind uint8

const (
	KindPoint Kind = iota + 1
	KindLine
	KindCircle
	KindRectangle
	KindDiamond
)

// Kinds lists every shape kind in declaration order.
var Kinds = []Kind{KindPoint, KindLine, KindCircle, KindRectangle, KindDiamond}

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindCircle:
		return "circle"
	case KindRectangle:
		return "rectangle"
	case KindDiamond:
		return "diamond"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k names a shape.
func (k Kind) Valid() bool {
	return k >= KindPoint && k <= KindDiamond
}

// VertexCount is the number of canonical vertices stored for k.
func (k Kind) VertexCount() int {
	switch k {
	case KindPoint:
		return 1
	case KindLine, KindCircle, KindRectangle:
		return 2
	case KindDiamond:
		return 4
	default:
		return 0
	}
}

// ParseKind converts a shape name to a Kind. Unknown names are an error,
// never a fallback to point.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown shape kind %q", ErrInvalidInput, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, k)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
