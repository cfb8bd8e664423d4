//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"migra/pkg/engine"
	"migra/pkg/schema"
)

// NOTE: each Web Worker loads its own WASM instance, so nothing here keeps
// state between calls. The archive is analyzed where it is dropped and only
// the result crosses back to the page.

var catalog = schema.DefaultCatalog()

func errorJSON(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}

// analyzeArchive handles the migraAnalyze JS function call.
// args[0] = Uint8Array (ZIP bytes)
// args[1] = bool (optional, strict sniffing)
// args[2] = bool (optional, include every data row, not just previews)
// Returns: JSON of the analysis, or {"error": ...}
func analyzeArchive(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorJSON("analyze requires 1 argument: Uint8Array")
	}

	data := make([]byte, args[0].Get("length").Int())
	js.CopyBytesToGo(data, args[0])

	strict := len(args) > 1 && args[1].Truthy()
	includeData := len(args) > 2 && args[2].Truthy()

	analysis, err := engine.NewAnalyzer(engine.Options{StrictSniffing: strict}).Analyze(context.Background(), data)
	if err != nil {
		return errorJSON(err.Error())
	}
	return engine.SerializeAnalysis(analysis, includeData)
}

// suggestMapping handles the migraSuggestMapping JS function call.
// args[0] = string (JSON array of source columns)
// args[1] = string (JSON array of target fields, or a catalog schema name)
// Returns: JSON {"mapping": {...}, "conflicts": [...]}
func suggestMapping(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorJSON("suggestMapping requires 2 arguments: columnsJSON and fieldsJSON or schema name")
	}

	var columns []string
	if err := json.Unmarshal([]byte(args[0].String()), &columns); err != nil {
		return errorJSON("columns must be a JSON array of strings")
	}

	var fields []string
	if err := json.Unmarshal([]byte(args[1].String()), &fields); err != nil {
		s, ok := catalog.Get(args[1].String())
		if !ok {
			return errorJSON("unknown schema: " + args[1].String())
		}
		fields = s.FieldNames()
	}

	out, _ := json.Marshal(schema.SuggestMappingTrace(columns, fields))
	return string(out)
}

// guessSchema handles the migraGuessSchema JS function call.
// args[0] = string (file name)
// args[1] = string (JSON array of columns)
// Returns: JSON of the best schema, or {"schema": null}
func guessSchema(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorJSON("guessSchema requires 2 arguments: fileName and columnsJSON")
	}

	var columns []string
	if err := json.Unmarshal([]byte(args[1].String()), &columns); err != nil {
		return errorJSON("columns must be a JSON array of strings")
	}

	s, ok := catalog.Guess(args[0].String(), columns)
	if !ok {
		return `{"schema": null}`
	}
	out, _ := json.Marshal(map[string]any{"schema": s})
	return string(out)
}

func main() {
	js.Global().Set("migraAnalyze", js.FuncOf(analyzeArchive))
	js.Global().Set("migraSuggestMapping", js.FuncOf(suggestMapping))
	js.Global().Set("migraGuessSchema", js.FuncOf(guessSchema))

	// Block forever; the module stays alive
	select {}
}
