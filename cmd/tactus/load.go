package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AnthusAI/Tactus/procedure"
)

// jsonLoader implements procedure.ProcedureLoader by decoding a procedure
// definition directly from JSON. It is the CLI's own concrete loader, kept
// out of the procedure package itself since generic file-format loading is
// out of scope for the core (spec.md §1) — the ProcedureLoader interface is
// the seam this implementation plugs into.
type jsonLoader struct{}

func (jsonLoader) LoadSource(data []byte) (procedure.Source, error) {
	var src procedure.Source
	if err := json.Unmarshal(data, &src); err != nil {
		return procedure.Source{}, fmt.Errorf("tactus: decode procedure definition: %w", err)
	}
	return src, nil
}

var defaultLoader procedure.ProcedureLoader = jsonLoader{}

// loadDefinition reads path and compiles it into an immutable
// procedure.Definition.
func loadDefinition(path string) (*procedure.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tactus: read %s: %w", path, err)
	}
	src, err := defaultLoader.LoadSource(data)
	if err != nil {
		return nil, err
	}
	def, err := procedure.Load(src)
	if err != nil {
		return nil, err
	}
	return def, nil
}
