// Package engine is the in-process canvas: one store, the input controller
// driving it and the render pipeline drawing it. Its surface takes plain
// numbers and strings and answers in JSON so the browser bridge can pass
// values straight through.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/input"
	"github.com/isocanvas/isocanvas/internal/ops"
	"github.com/isocanvas/isocanvas/internal/render"
	"github.com/isocanvas/isocanvas/internal/store"
)

// Options configure a new Engine.
type Options struct {
	Viewport     coords.Viewport
	DefaultStyle geometry.Style
	Input        input.Settings
	Theme        render.Theme
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// DefaultOptions returns the stock settings for a window of the given size.
func DefaultOptions(width, height int) Options {
	return Options{
		Viewport:     coords.Viewport{Scale: 10, Width: width, Height: height},
		DefaultStyle: geometry.DefaultStyle,
		Input: input.Settings{
			PanStep:      1,
			MinScale:     1,
			MaxScale:     64,
			HitTolerance: 0.5,
			SnapToGrid:   true,
		},
		Theme: render.DefaultTheme,
	}
}

// Engine owns the canvas state. It processes commands from the frontend and
// returns query results. It is not safe for concurrent use.
type Engine struct {
	store    *store.Store
	ctrl     *input.Controller
	pipeline *render.Pipeline
	logger   *slog.Logger

	scene document.Scene

	// Dirty flag: a store change or layer toggle since the last Render.
	dirty bool
	frame string

	onOp      func(ops.Operation)
	replaying bool
	clientSeq int64
	known     map[string]*store.Object
	pending   map[string]string // op id -> local id of an unacknowledged create
}

// NewEngine creates an engine with an empty scene.
func NewEngine(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s, err := store.New(store.Options{
		Viewport:     opts.Viewport,
		DefaultStyle: opts.DefaultStyle,
		// Operations carry creation times in milliseconds.
		Now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		return nil, err
	}
	ctrl, err := input.NewController(s, opts.Input, logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:    s,
		ctrl:     ctrl,
		pipeline: render.NewPipeline(opts.Theme),
		logger:   logger,
		dirty:    true,
		known:    make(map[string]*store.Object),
		pending:  make(map[string]string),
	}
	s.Subscribe(e.observe)
	return e, nil
}

// Store exposes the underlying store to Go callers such as the desktop shell.
func (e *Engine) Store() *store.Store { return e.store }

// Controller exposes the input controller.
func (e *Engine) Controller() *input.Controller { return e.ctrl }

// Pipeline exposes the render pipeline.
func (e *Engine) Pipeline() *render.Pipeline { return e.pipeline }

// --- Commands (frontend → engine) ---

// LoadDocument replaces the scene with a JSON document. The viewport is kept;
// the window belongs to the frontend.
func (e *Engine) LoadDocument(jsonData string) error {
	doc, err := document.ParseJSON([]byte(jsonData))
	if err != nil {
		return err
	}
	return e.Load(doc)
}

// LoadSampleDocument loads the built-in sample scene.
func (e *Engine) LoadSampleDocument(sceneID string) error {
	return e.Load(document.NewSampleDocument(sceneID))
}

// Load replaces the scene with doc. On error the current scene is kept.
func (e *Engine) Load(doc *document.Document) error {
	e.store.CancelPreview()
	if err := e.replay(func() error { return doc.ApplyTo(e.store) }); err != nil {
		return err
	}
	clear(e.pending)
	e.scene = doc.Scene
	e.logger.Info("document loaded", "scene", doc.Scene.ID, "objects", len(doc.Objects))
	return nil
}

func (e *Engine) PointerDown(x, y float64, button int) error {
	return e.ctrl.PointerDown(coords.Screen{X: x, Y: y}, input.Button(button))
}

func (e *Engine) PointerMove(x, y float64) error {
	return e.ctrl.PointerMove(coords.Screen{X: x, Y: y})
}

// PointerUp finishes a drag or drawing and returns the affected object id.
func (e *Engine) PointerUp(x, y float64, button int) (string, error) {
	return e.ctrl.PointerUp(coords.Screen{X: x, Y: y}, input.Button(button))
}

func (e *Engine) Wheel(x, y, dy float64) error {
	return e.ctrl.Wheel(coords.Screen{X: x, Y: y}, dy)
}

// KeyDown takes a DOM key name. It returns the id of a pasted object, or "".
func (e *Engine) KeyDown(key string, ctrl bool) (string, error) {
	return e.ctrl.KeyDown(input.KeyEvent{Key: input.Key(key), Ctrl: ctrl})
}

func (e *Engine) Resize(width, height int) error {
	return e.ctrl.Resize(width, height)
}

// SetDrawingMode selects a tool by shape name; "" or "none" selects none.
func (e *Engine) SetDrawingMode(name string) error {
	if name == "" || strings.EqualFold(name, "none") {
		return e.ctrl.SetMode(0)
	}
	kind, err := geometry.ParseKind(name)
	if err != nil {
		return err
	}
	return e.ctrl.SetMode(kind)
}

// SetLayerEnabled toggles a render layer by name.
func (e *Engine) SetLayerEnabled(name string, on bool) error {
	l, err := render.ParseLayer(name)
	if err != nil {
		return err
	}
	if e.pipeline.LayerEnabled(l) != on {
		e.pipeline.SetLayerEnabled(l, on)
		e.dirty = true
	}
	return nil
}

// SetDefaultStyle takes a complete style JSON object for new drawings.
func (e *Engine) SetDefaultStyle(jsonData string) error {
	style, err := parseStyle(jsonData)
	if err != nil {
		return err
	}
	return e.store.SetDefaultStyle(style)
}

func (e *Engine) Select(id string) error {
	if id == "" {
		e.store.ClearSelection()
		return nil
	}
	return e.store.Select(id)
}

func (e *Engine) SetVisible(id string, visible bool) error {
	return e.store.SetVisible(id, visible)
}

// editInput is the edit panel's preview payload. Style fields are all
// required when style is present.
type editInput struct {
	Anchors  *store.Anchors          `json:"anchors,omitempty"`
	Vertices []coords.Pixeloid       `json:"vertices,omitempty"`
	Style    *geometry.StyleSettings `json:"style,omitempty"`
}

// BeginEdit opens an edit preview on an object.
func (e *Engine) BeginEdit(id string) error {
	return e.store.StartPreview(store.OpEdit, id)
}

// PreviewEdit updates the open edit preview from a JSON editInput.
func (e *Engine) PreviewEdit(jsonData string) error {
	var in editInput
	if err := json.Unmarshal([]byte(jsonData), &in); err != nil {
		return fmt.Errorf("%w: %v", geometry.ErrInvalidInput, err)
	}
	pi := store.PreviewInput{Anchors: in.Anchors, Vertices: in.Vertices}
	if in.Style != nil {
		style, err := in.Style.Resolve()
		if err != nil {
			return err
		}
		pi.Style = &style
	}
	return e.store.UpdatePreview(pi)
}

// CommitEdit writes the previewed object and returns its id.
func (e *Engine) CommitEdit() (string, error) {
	return e.store.CommitPreview()
}

func (e *Engine) CancelEdit() {
	e.store.CancelPreview()
}

// ApplyOperation replays an operation broadcast by the server.
func (e *Engine) ApplyOperation(jsonData string) error {
	var op ops.Operation
	if err := json.Unmarshal([]byte(jsonData), &op); err != nil {
		return fmt.Errorf("%w: %v", geometry.ErrInvalidInput, err)
	}
	return e.replay(func() error { return ops.Apply(e.store, &op) })
}

// Tick returns the draw commands for this animation frame, re-rendering only
// when something changed.
func (e *Engine) Tick() (string, error) {
	if !e.dirty && e.frame != "" {
		return e.frame, nil
	}
	return e.Render()
}

// --- Queries (frontend ← engine) ---

// Render draws the current state and returns the draw commands as JSON.
func (e *Engine) Render() (string, error) {
	target := render.NewCommandTarget()
	if err := e.RenderTo(target); err != nil {
		return "", err
	}
	frame, err := target.JSON()
	if err != nil {
		return "", err
	}
	e.frame = frame
	return frame, nil
}

// RenderTo draws the current state into t and clears the dirty flag.
func (e *Engine) RenderTo(t render.Target) error {
	if err := e.pipeline.Render(e.store.Snapshot(), t); err != nil {
		e.logger.Error("render failed", "error", err)
		return err
	}
	e.frame = ""
	e.dirty = false
	return nil
}

// IsDirty reports whether the next Tick re-renders.
func (e *Engine) IsDirty() bool { return e.dirty }

// HitTest returns the id of the topmost visible object under a screen
// position, or "".
func (e *Engine) HitTest(x, y float64) string {
	p := e.ctrl.WorldPoint(coords.Screen{X: x, Y: y})
	id, _ := e.store.HitTest(p, e.ctrl.Settings().HitTolerance)
	return id
}

// WorldPoint returns the pixeloid under a screen position as JSON.
func (e *Engine) WorldPoint(x, y float64) string {
	return toJSON(e.ctrl.WorldPoint(coords.Screen{X: x, Y: y}))
}

func (e *Engine) GetSelection() string { return toJSON(e.store.Selection()) }

func (e *Engine) GetViewport() string { return toJSON(e.store.Viewport()) }

func (e *Engine) GetLayers() string { return toJSON(e.pipeline.EnabledLayers()) }

// GetSnapshot returns the whole store state as JSON (for panels and debugging).
func (e *Engine) GetSnapshot() string { return toJSON(e.store.Snapshot()) }

// Document captures the canonical document of the current scene.
func (e *Engine) Document() *document.Document {
	return document.FromStore(e.scene, e.store)
}

// GetDocument returns the canonical document as JSON.
func (e *Engine) GetDocument() string {
	return toJSON(e.Document())
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func parseStyle(jsonData string) (geometry.Style, error) {
	var ss geometry.StyleSettings
	if err := json.Unmarshal([]byte(jsonData), &ss); err != nil {
		return geometry.Style{}, fmt.Errorf("%w: %v", geometry.ErrInvalidInput, err)
	}
	return ss.Resolve()
}

// ErrorCode names the error class for the bridge.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, document.ErrInvalidDocument):
		return "invalid_document"
	default:
		return ops.Code(err)
	}
}
