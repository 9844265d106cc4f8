//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/isocanvas/isocanvas/internal/engine"
	"github.com/isocanvas/isocanvas/internal/ops"
)

var eng *engine.Engine

func main() {
	width, height := 1280, 720
	if w := js.Global().Get("innerWidth"); w.Type() == js.TypeNumber {
		width = w.Int()
	}
	if h := js.Global().Get("innerHeight"); h.Type() == js.TypeNumber {
		height = h.Int()
	}

	var err error
	eng, err = engine.NewEngine(engine.DefaultOptions(width, height))
	if err != nil {
		js.Global().Get("console").Call("error", "isocanvas: "+err.Error())
		return
	}

	// Create the engine API object
	isocanvasEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	isocanvasEngine.Set("loadDocument", js.FuncOf(loadDocument))
	isocanvasEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	isocanvasEngine.Set("applyOperation", js.FuncOf(applyOperation))
	isocanvasEngine.Set("acknowledgeOperation", js.FuncOf(acknowledgeOperation))
	isocanvasEngine.Set("rejectOperation", js.FuncOf(rejectOperation))
	isocanvasEngine.Set("onOperation", js.FuncOf(onOperation))
	isocanvasEngine.Set("pointerDown", js.FuncOf(pointerDown))
	isocanvasEngine.Set("pointerMove", js.FuncOf(pointerMove))
	isocanvasEngine.Set("pointerUp", js.FuncOf(pointerUp))
	isocanvasEngine.Set("wheel", js.FuncOf(wheel))
	isocanvasEngine.Set("keyDown", js.FuncOf(keyDown))
	isocanvasEngine.Set("resize", js.FuncOf(resize))
	isocanvasEngine.Set("setDrawingMode", js.FuncOf(setDrawingMode))
	isocanvasEngine.Set("setLayerEnabled", js.FuncOf(setLayerEnabled))
	isocanvasEngine.Set("setDefaultStyle", js.FuncOf(setDefaultStyle))
	isocanvasEngine.Set("select", js.FuncOf(selectObject))
	isocanvasEngine.Set("setVisible", js.FuncOf(setVisible))
	isocanvasEngine.Set("beginEdit", js.FuncOf(beginEdit))
	isocanvasEngine.Set("previewEdit", js.FuncOf(previewEdit))
	isocanvasEngine.Set("commitEdit", js.FuncOf(commitEdit))
	isocanvasEngine.Set("cancelEdit", js.FuncOf(cancelEdit))
	isocanvasEngine.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← backend) ---
	isocanvasEngine.Set("render", js.FuncOf(render))
	isocanvasEngine.Set("isDirty", js.FuncOf(isDirty))
	isocanvasEngine.Set("hitTest", js.FuncOf(hitTest))
	isocanvasEngine.Set("worldPoint", js.FuncOf(worldPoint))
	isocanvasEngine.Set("getSelection", js.FuncOf(getSelection))
	isocanvasEngine.Set("getViewport", js.FuncOf(getViewport))
	isocanvasEngine.Set("getLayers", js.FuncOf(getLayers))
	isocanvasEngine.Set("getSnapshot", js.FuncOf(getSnapshot))
	isocanvasEngine.Set("getDocument", js.FuncOf(getDocument))

	// Register on global scope
	js.Global().Set("isocanvasEngine", isocanvasEngine)

	// Signal that WASM is ready
	js.Global().Set("isocanvasWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error(), "code": engine.ErrorCode(err)})
	}
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func idResult(id string, err error) interface{} {
	if err != nil {
		return result(err)
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "id": id})
}

func missing(what string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": "missing " + what, "code": "invalid_input"})
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("document JSON")
	}
	return result(eng.LoadDocument(args[0].String()))
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	sceneID := "scene_sample"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		sceneID = args[0].String()
	}
	return result(eng.LoadSampleDocument(sceneID))
}

func applyOperation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("operation JSON")
	}
	return result(eng.ApplyOperation(args[0].String()))
}

func acknowledgeOperation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("ack JSON")
	}
	return result(eng.AcknowledgeOperation(args[0].String()))
}

func rejectOperation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("nack JSON")
	}
	return result(eng.RejectOperation(args[0].String()))
}

// onOperation registers a JS callback that receives each local edit as an
// operation JSON string, to be sent as op.submit.
func onOperation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		eng.OnOperation(nil)
		return result(nil)
	}
	fn := args[0]
	eng.OnOperation(func(op ops.Operation) {
		data, err := json.Marshal(op)
		if err != nil {
			js.Global().Get("console").Call("error", "isocanvas: "+err.Error())
			return
		}
		fn.Invoke(string(data))
	})
	return result(nil)
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("x, y, button")
	}
	return result(eng.PointerDown(args[0].Float(), args[1].Float(), args[2].Int()))
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("x, y")
	}
	return result(eng.PointerMove(args[0].Float(), args[1].Float()))
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("x, y, button")
	}
	return idResult(eng.PointerUp(args[0].Float(), args[1].Float(), args[2].Int()))
}

func wheel(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return missing("x, y, deltaY")
	}
	return result(eng.Wheel(args[0].Float(), args[1].Float(), args[2].Float()))
}

func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("key")
	}
	ctrl := len(args) > 1 && args[1].Truthy()
	return idResult(eng.KeyDown(args[0].String(), ctrl))
}

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("width, height")
	}
	return result(eng.Resize(args[0].Int(), args[1].Int()))
}

func setDrawingMode(this js.Value, args []js.Value) interface{} {
	mode := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		mode = args[0].String()
	}
	return result(eng.SetDrawingMode(mode))
}

func setLayerEnabled(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("layer, enabled")
	}
	return result(eng.SetLayerEnabled(args[0].String(), args[1].Truthy()))
}

func setDefaultStyle(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("style JSON")
	}
	return result(eng.SetDefaultStyle(args[0].String()))
}

func selectObject(this js.Value, args []js.Value) interface{} {
	id := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		id = args[0].String()
	}
	return result(eng.Select(id))
}

func setVisible(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("id, visible")
	}
	return result(eng.SetVisible(args[0].String(), args[1].Truthy()))
}

func beginEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("id")
	}
	return result(eng.BeginEdit(args[0].String()))
}

func previewEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("edit JSON")
	}
	return result(eng.PreviewEdit(args[0].String()))
}

func commitEdit(this js.Value, args []js.Value) interface{} {
	return idResult(eng.CommitEdit())
}

func cancelEdit(this js.Value, args []js.Value) interface{} {
	eng.CancelEdit()
	return nil
}

func tick(this js.Value, args []js.Value) interface{} {
	frame, err := eng.Tick()
	if err != nil {
		return result(err)
	}
	return js.ValueOf(frame)
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	frame, err := eng.Render()
	if err != nil {
		return result(err)
	}
	return js.ValueOf(frame)
}

func isDirty(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.IsDirty())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float()))
}

func worldPoint(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("{}")
	}
	return js.ValueOf(eng.WorldPoint(args[0].Float(), args[1].Float()))
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelection())
}

func getViewport(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetViewport())
}

func getLayers(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetLayers())
}

func getSnapshot(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSnapshot())
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetDocument())
}
