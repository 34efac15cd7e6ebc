//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/sketchboard/internal/engine"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine(engine.Config{})

	// Create the engine API object
	sketchEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	sketchEngine.Set("loadScene", js.FuncOf(loadScene))
	sketchEngine.Set("loadSampleScene", js.FuncOf(loadSampleScene))
	sketchEngine.Set("applyRemote", js.FuncOf(applyRemote))
	sketchEngine.Set("createElement", js.FuncOf(createElement))
	sketchEngine.Set("mutateElement", js.FuncOf(mutateElement))
	sketchEngine.Set("deleteElements", js.FuncOf(deleteElements))
	sketchEngine.Set("setSelection", js.FuncOf(setSelection))
	sketchEngine.Set("onChange", js.FuncOf(onChange))

	// --- Queries (frontend ← engine) ---
	sketchEngine.Set("render", js.FuncOf(render))
	sketchEngine.Set("hitTest", js.FuncOf(hitTest))
	sketchEngine.Set("hitTestAll", js.FuncOf(hitTestAll))
	sketchEngine.Set("hitTestRegion", js.FuncOf(hitTestRegion))
	sketchEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	sketchEngine.Set("getSelection", js.FuncOf(getSelection))
	sketchEngine.Set("getElements", js.FuncOf(getElements))
	sketchEngine.Set("getAllElements", js.FuncOf(getAllElements))
	sketchEngine.Set("getCacheStats", js.FuncOf(getCacheStats))

	// Register on global scope
	js.Global().Set("sketchEngine", sketchEngine)

	// Signal that WASM is ready
	js.Global().Set("sketchWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func missing(what string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": "missing " + what})
}

func optString(args []js.Value, i int) string {
	if len(args) > i && args[i].Type() == js.TypeString {
		return args[i].String()
	}
	return ""
}

func stringSlice(v js.Value) []string {
	if v.Type() != js.TypeObject {
		return nil
	}
	ids := make([]string, v.Length())
	for i := range ids {
		ids[i] = v.Index(i).String()
	}
	return ids
}

// --- Command Handlers ---

func loadScene(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("scene JSON")
	}
	res, err := eng.LoadScene(args[0].String())
	if err != nil {
		return fail(err)
	}
	data, _ := json.Marshal(res)
	return js.ValueOf(string(data))
}

func loadSampleScene(this js.Value, args []js.Value) interface{} {
	eng.LoadSampleScene()
	return ok()
}

func applyRemote(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("batch JSON")
	}
	out, err := eng.ApplyRemote(args[0].String())
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(out)
}

func createElement(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("element JSON")
	}
	id, err := eng.CreateElement(args[0].String())
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(map[string]interface{}{"id": id})
}

func mutateElement(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return missing("id and patch JSON")
	}
	if err := eng.MutateElement(args[0].String(), args[1].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func deleteElements(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return missing("ids")
	}
	if err := eng.DeleteElements(stringSlice(args[0])); err != nil {
		return fail(err)
	}
	return ok()
}

func setSelection(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		eng.SetSelection(nil)
		return nil
	}
	eng.SetSelection(stringSlice(args[0]))
	return nil
}

// onChange registers a callback that receives the changed ids as a JSON array.
func onChange(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return missing("callback")
	}
	fn := args[0]
	eng.OnChange(func(ids []string) {
		data, _ := json.Marshal(ids)
		fn.Invoke(string(data))
	})
	return ok()
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	zoom := 1.0
	if len(args) > 2 && args[2].Type() == js.TypeNumber {
		zoom = args[2].Float()
	}
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float(), zoom))
}

func hitTestAll(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("[]")
	}
	out, err := eng.HitTestAll(args[0].Float(), args[1].Float(), optString(args, 2))
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(out)
}

func hitTestRegion(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return js.ValueOf("[]")
	}
	out, err := eng.HitTestRegion(args[0].Float(), args[1].Float(), args[2].Float(), args[3].Float(),
		optString(args, 4), optString(args, 5))
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(out)
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelectionBounds())
}

func getSelection(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelection())
}

func getElements(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetElements())
}

func getAllElements(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetAllElements())
}

func getCacheStats(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetCacheStats())
}
