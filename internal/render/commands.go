package render

import (
	"encoding/json"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
)

// DrawCommand is a single drawing operation for a Canvas2D frontend.
type DrawCommand struct {
	Op          string    `json:"op"`                    // "clear", "beginLayer", "path", "endLayer"
	Layer       string    `json:"layer,omitempty"`       // layer name for beginLayer/endLayer
	ObjectID    string    `json:"objectId,omitempty"`    // for hit correlation
	Path        []Segment `json:"path,omitempty"`        // screen-space path for "path"
	Fill        string    `json:"fill,omitempty"`        // fill color, omitted when unfilled
	FillAlpha   float64   `json:"fillAlpha,omitempty"`   // fill opacity
	Stroke      string    `json:"stroke,omitempty"`      // stroke color
	StrokeWidth float64   `json:"strokeWidth,omitempty"` // stroke width in screen pixels
	StrokeAlpha float64   `json:"strokeAlpha,omitempty"` // stroke opacity
	Effect      *Effect   `json:"effect,omitempty"`      // post-process for endLayer
	Width       int       `json:"width,omitempty"`       // frame width for "clear"
	Height      int       `json:"height,omitempty"`      // frame height for "clear"
}

// CommandTarget collects a frame as draw commands in painter's order.
type CommandTarget struct {
	commands []DrawCommand
}

// NewCommandTarget returns an empty command target.
func NewCommandTarget() *CommandTarget {
	return &CommandTarget{}
}

// BeginFrame starts a new command list with a clear.
func (t *CommandTarget) BeginFrame(vp coords.Viewport, background geometry.Color) error {
	t.commands = append(t.commands[:0], DrawCommand{
		Op:     "clear",
		Fill:   background.Hex(),
		Width:  vp.Width,
		Height: vp.Height,
	})
	return nil
}

// DrawLayer brackets the layer's paths with beginLayer/endLayer. The effect
// rides on endLayer so the frontend applies it to that layer only.
func (t *CommandTarget) DrawLayer(out LayerOutput) error {
	name := out.Layer.String()
	t.commands = append(t.commands, DrawCommand{Op: "beginLayer", Layer: name})
	for _, sh := range out.Shapes {
		cmd := DrawCommand{
			Op:          "path",
			ObjectID:    sh.ObjectID,
			Path:        sh.Path,
			Stroke:      sh.Style.StrokeColor.Hex(),
			StrokeWidth: sh.Style.StrokeWidth,
			StrokeAlpha: sh.Style.StrokeAlpha,
		}
		if sh.Style.FillEnabled {
			cmd.Fill = sh.Style.FillColor.Hex()
			cmd.FillAlpha = sh.Style.FillAlpha
		}
		t.commands = append(t.commands, cmd)
	}
	t.commands = append(t.commands, DrawCommand{Op: "endLayer", Layer: name, Effect: out.Effect})
	return nil
}

// EndFrame is a no-op; the command list is complete.
func (t *CommandTarget) EndFrame() error { return nil }

// Commands returns the collected commands.
func (t *CommandTarget) Commands() []DrawCommand {
	return t.commands
}

// JSON serializes the collected commands.
func (t *CommandTarget) JSON() (string, error) {
	return DrawCommandsToJSON(t.commands)
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
