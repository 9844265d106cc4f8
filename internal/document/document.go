package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/store"
)

// FormatVersion is the document layout written by this package.
const FormatVersion = 1

var ErrInvalidDocument = errors.New("invalid document")

// Document is the persisted form of a scene. Objects carry only canonical
// fields; properties and bounds are recomputed when the document is loaded.
type Document struct {
	Version  int              `json:"version" yaml:"version"`
	Scene    Scene            `json:"scene" yaml:"scene"`
	Viewport *coords.Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	Objects  []Record         `json:"objects" yaml:"objects"`
}

type Scene struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Background geometry.Color `json:"background" yaml:"background"`
}

// Record is one object. Style and Visible are required; a record missing
// either is rejected, not defaulted.
type Record struct {
	ID        string                 `json:"id" yaml:"id"`
	Kind      geometry.Kind          `json:"kind" yaml:"kind"`
	CreatedAt time.Time              `json:"createdAt" yaml:"createdAt"`
	Visible   *bool                  `json:"visible" yaml:"visible"`
	Vertices  []coords.Pixeloid      `json:"vertices" yaml:"vertices"`
	Style     geometry.StyleSettings `json:"style" yaml:"style"`
}

// FromStore captures the canonical state of s.
func FromStore(scene Scene, s *store.Store) *Document {
	vp := s.Viewport()
	doc := &Document{Version: FormatVersion, Scene: scene, Viewport: &vp}
	for _, o := range s.Objects() {
		visible := o.Visible
		doc.Objects = append(doc.Objects, Record{
			ID:        o.ID,
			Kind:      o.Kind,
			CreatedAt: o.CreatedAt,
			Visible:   &visible,
			Vertices:  o.Vertices,
			Style:     o.Style.Settings(),
		})
	}
	return doc
}

// Specs resolves every record into a store import spec.
func (d *Document) Specs() ([]store.ObjectSpec, error) {
	if d.Version != FormatVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrInvalidDocument, d.Version, FormatVersion)
	}
	specs := make([]store.ObjectSpec, 0, len(d.Objects))
	for i, r := range d.Objects {
		if r.Visible == nil {
			return nil, fmt.Errorf("%w: object %d (%s): %w: missing visible", ErrInvalidDocument, i, r.ID, geometry.ErrInvalidInput)
		}
		style, err := r.Style.Resolve()
		if err != nil {
			return nil, fmt.Errorf("%w: object %d (%s): %w", ErrInvalidDocument, i, r.ID, err)
		}
		specs = append(specs, store.ObjectSpec{
			ID:        r.ID,
			Kind:      r.Kind,
			CreatedAt: r.CreatedAt,
			Visible:   *r.Visible,
			Vertices:  r.Vertices,
			Style:     style,
		})
	}
	return specs, nil
}

// NewStore builds a fresh store holding the document's objects. A viewport
// saved in the document overrides opts.Viewport.
func (d *Document) NewStore(opts store.Options) (*store.Store, error) {
	if d.Viewport != nil {
		opts.Viewport = *d.Viewport
	}
	s, err := store.New(opts)
	if err != nil {
		return nil, err
	}
	specs, err := d.Specs()
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if err := s.ImportObject(spec); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}
	return s, nil
}

// ApplyTo replaces the objects in s with the document's. The document is
// checked against a scratch store first so s is left untouched on error.
func (d *Document) ApplyTo(s *store.Store) error {
	if _, err := d.NewStore(store.Options{Viewport: s.Viewport(), DefaultStyle: s.DefaultStyle()}); err != nil {
		return err
	}
	specs, err := d.Specs()
	if err != nil {
		return err
	}
	s.ClearAll()
	for _, spec := range specs {
		if err := s.ImportObject(spec); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) JSON() ([]byte, error) {
	return json.Marshal(d)
}

func (d *Document) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}

func ParseJSON(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &d, nil
}

func ParseYAML(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &d, nil
}

// ReadFile loads a .json, .yaml or .yml document.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrInvalidDocument, filepath.Ext(path))
	}
}

// WriteFile saves d as JSON or YAML depending on the extension.
func WriteFile(path string, d *Document) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(d, "", "  ")
	case ".yaml", ".yml":
		data, err = d.YAML()
	default:
		return fmt.Errorf("%w: unsupported extension %q", ErrInvalidDocument, filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
