package cmd

import (
	"fmt"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/cobra"

	"github.com/isocanvas/isocanvas/internal/config"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/engine"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/input"
	"github.com/isocanvas/isocanvas/internal/render"
)

var (
	playSample bool
	playSave   string
)

var playCmd = &cobra.Command{
	Use:   "play [scene-file]",
	Short: "Open the canvas in a desktop window",
	Long: `Open an interactive canvas window. Keys 1-5 pick a draw tool (point,
line, circle, rectangle, diamond) and 0 clears it; arrows or WASD pan; the
wheel zooms; Delete removes the selection; Ctrl+C / Ctrl+V copy and paste;
Escape cancels. G toggles the grid and P the pixelate layer.

Examples:
  isocanvas play
  isocanvas play --sample
  isocanvas play scene.yaml --save scene.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().BoolVar(&playSample, "sample", false, "start from the sample scene")
	playCmd.Flags().StringVar(&playSave, "save", "", "write the scene to this file on exit (.json or .yaml)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	vp, err := cfg.Viewport()
	if err != nil {
		return err
	}

	if verbose {
		render.SetLogger(slog.Default())
	}

	eng, err := engine.NewEngine(engine.Options{
		Viewport:     vp,
		DefaultStyle: geometry.DefaultStyle,
		Input:        cfg.Canvas(),
		Theme:        cfg.Theme(),
		Logger:       slog.Default(),
	})
	if err != nil {
		return err
	}

	switch {
	case len(args) == 1:
		doc, err := document.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		if err := eng.Load(doc); err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
	case playSample:
		if err := eng.LoadSampleDocument("scene_sample"); err != nil {
			return err
		}
	}

	ebiten.SetWindowSize(vp.Width, vp.Height)
	ebiten.SetWindowTitle("isocanvas")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	g := newCanvasGame(eng, vp.Width, vp.Height)
	if err := ebiten.RunGame(g); err != nil {
		return err
	}

	if playSave != "" {
		if err := document.WriteFile(playSave, eng.Document()); err != nil {
			return fmt.Errorf("save %s: %w", playSave, err)
		}
		slog.Info("scene saved", "path", playSave, "objects", eng.Store().Len())
	}
	return nil
}

var mouseButtons = map[ebiten.MouseButton]input.Button{
	ebiten.MouseButtonLeft:   input.ButtonLeft,
	ebiten.MouseButtonMiddle: input.ButtonMiddle,
	ebiten.MouseButtonRight:  input.ButtonRight,
}

// Pan keys act every tick while held.
var panKeys = map[ebiten.Key]input.Key{
	ebiten.KeyArrowLeft:  input.KeyLeft,
	ebiten.KeyArrowRight: input.KeyRight,
	ebiten.KeyArrowUp:    input.KeyUp,
	ebiten.KeyArrowDown:  input.KeyDown,
	ebiten.KeyA:          input.KeyA,
	ebiten.KeyD:          input.KeyD,
	ebiten.KeyW:          input.KeyW,
	ebiten.KeyS:          input.KeyS,
}

// Action keys act once per press.
var actionKeys = map[ebiten.Key]input.Key{
	ebiten.KeyEscape:    input.KeyEscape,
	ebiten.KeyDelete:    input.KeyDelete,
	ebiten.KeyBackspace: input.KeyBackspace,
	ebiten.KeyC:         input.KeyC,
	ebiten.KeyV:         input.KeyV,
	ebiten.KeyDigit0:    input.Key0,
	ebiten.KeyDigit1:    input.Key1,
	ebiten.KeyDigit2:    input.Key2,
	ebiten.KeyDigit3:    input.Key3,
	ebiten.KeyDigit4:    input.Key4,
	ebiten.KeyDigit5:    input.Key5,
}

// canvasGame feeds ebiten input into the engine and shows its raster output.
type canvasGame struct {
	eng    *engine.Engine
	target *render.RasterTarget
	frame  *ebiten.Image
	keys   []ebiten.Key

	width, height    int
	cursorX, cursorY int
}

func newCanvasGame(eng *engine.Engine, width, height int) *canvasGame {
	return &canvasGame{
		eng:    eng,
		target: render.NewRasterTarget(),
		width:  width,
		height: height,
	}
}

// report logs an aborted interaction. Too-small shapes and clicks on nothing
// are routine, so this stays at debug.
func (g *canvasGame) report(action string, err error) {
	if err != nil {
		slog.Debug("input ignored", "action", action, "error", err)
	}
}

func (g *canvasGame) Update() error {
	x, y := ebiten.CursorPosition()
	fx, fy := float64(x), float64(y)

	if x != g.cursorX || y != g.cursorY {
		g.cursorX, g.cursorY = x, y
		g.report("pointer move", g.eng.PointerMove(fx, fy))
	}

	for eb, b := range mouseButtons {
		if inpututil.IsMouseButtonJustPressed(eb) {
			g.report("pointer down", g.eng.PointerDown(fx, fy, int(b)))
		}
		if inpututil.IsMouseButtonJustReleased(eb) {
			_, err := g.eng.PointerUp(fx, fy, int(b))
			g.report("pointer up", err)
		}
	}

	if _, dy := ebiten.Wheel(); dy != 0 {
		// Wheel up zooms in, like a negative DOM deltaY.
		g.report("wheel", g.eng.Wheel(fx, fy, -dy))
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)
	if !ctrl {
		for k, name := range panKeys {
			if ebiten.IsKeyPressed(k) {
				_, err := g.eng.KeyDown(string(name), false)
				g.report("pan", err)
			}
		}
	}

	g.keys = inpututil.AppendJustPressedKeys(g.keys[:0])
	for _, k := range g.keys {
		switch k {
		case ebiten.KeyG:
			g.toggleLayer(render.LayerGrid)
			continue
		case ebiten.KeyP:
			g.toggleLayer(render.LayerPixelate)
			continue
		}
		if name, ok := actionKeys[k]; ok {
			_, err := g.eng.KeyDown(string(name), ctrl)
			g.report("key "+string(name), err)
		}
	}
	return nil
}

func (g *canvasGame) toggleLayer(l render.Layer) {
	on := !g.eng.Pipeline().LayerEnabled(l)
	g.report("toggle "+l.String(), g.eng.SetLayerEnabled(l.String(), on))
}

func (g *canvasGame) Draw(screen *ebiten.Image) {
	if g.eng.IsDirty() || g.frame == nil {
		if err := g.eng.RenderTo(g.target); err != nil {
			slog.Error("render frame", "error", err)
			return
		}
		img, err := g.target.Image()
		if err != nil {
			slog.Error("read frame", "error", err)
			return
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		if g.frame == nil || g.frame.Bounds().Dx() != w || g.frame.Bounds().Dy() != h {
			if g.frame != nil {
				g.frame.Deallocate()
			}
			g.frame = ebiten.NewImage(w, h)
		}
		g.frame.WritePixels(img.Pix)
	}
	screen.DrawImage(g.frame, nil)
}

// Layout keeps the canvas at the window's size. A minimized window reports
// zero sizes, which the store rejects; the last size is kept then.
func (g *canvasGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		if err := g.eng.Resize(outsideWidth, outsideHeight); err == nil {
			g.width, g.height = outsideWidth, outsideHeight
		}
	}
	return g.width, g.height
}
