// Package typeid mints the prefixed, time-sortable ids used for scenes,
// drawn objects, collaboration operations and saved revisions.
package typeid

import (
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix is the type tag in front of an id, e.g. "obj" in "obj_01h...".
type Prefix string

const (
	PrefixScene    Prefix = "scene"
	PrefixObject   Prefix = "obj"
	PrefixOp       Prefix = "op"
	PrefixRevision Prefix = "rev"
)

// ErrWrongPrefix is wrapped when an id parses but carries another tag.
var ErrWrongPrefix = errors.New("typeid: wrong prefix")

// New returns a fresh id. The prefixes above are all valid, so generation
// cannot fail for them.
func (p Prefix) New() string {
	return typeid.MustGenerate(string(p)).String()
}

func NewSceneID() string    { return PrefixScene.New() }
func NewObjectID() string   { return PrefixObject.New() }
func NewOpID() string       { return PrefixOp.New() }
func NewRevisionID() string { return PrefixRevision.New() }

// PrefixOf parses id and reports its tag.
func PrefixOf(id string) (Prefix, error) {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("typeid: parse %q: %w", id, err)
	}
	return Prefix(parsed.Prefix()), nil
}

// Validate checks that id is well formed and tagged with want.
func Validate(id string, want Prefix) error {
	got, err := PrefixOf(id)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %q is %q, want %q", ErrWrongPrefix, id, got, want)
	}
	return nil
}
