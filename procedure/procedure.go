// Package procedure implements the Procedure Definition / Invocation data
// model described in spec.md §3: a named, versioned, immutable description
// of a parameter schema, agent declarations, resource dependencies, an
// ordered set of stages, an orchestration script, and optional Gherkin
// specifications. Parameter schemas are compiled and validated with
// github.com/santhosh-tekuri/jsonschema/v6 at Load time — the one piece of
// "configuration" surface the core owns directly, since file-format loading
// (YAML/TOML) is out of scope per spec.md §1 but enforcing a definition's
// typed fields and defaults is not.
package procedure

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/tactuserr"
)

type (
	// AgentDecl declares one named agent a procedure's script may drive via
	// RegisterAgent (spec.md §4.E).
	AgentDecl struct {
		Name                 string
		Model                provider.Config
		SystemPromptTemplate string
		InitialMessage       string
		AllowedTools         []string
		MaxRetries           int
		InitialBackoff       time.Duration
		BackoffCoefficient   float64
	}

	// ResourceKind distinguishes the shapes of external dependency a
	// procedure can declare.
	ResourceKind string

	// ResourceDecl declares one external dependency the procedure's script
	// consumes through Tool.call: a native tool implemented by the host
	// process, or a nested procedure exposed as a tool (spec.md §4.D
	// "tools implemented as nested procedures").
	ResourceDecl struct {
		Name string
		Kind ResourceKind
		// Procedure names the nested procedure definition when Kind is
		// ResourceProcedure.
		Procedure string
	}

	// EvaluationConfig is a procedure's optional default configuration for
	// the `evaluate` CLI operation (spec.md §4.J).
	EvaluationConfig struct {
		Runs    int
		Workers int
	}

	// Source is the plain-data shape a ProcedureLoader produces from
	// whatever file format it reads (YAML, TOML, or in tests, a literal
	// Go value). Load compiles it into an immutable Definition.
	Source struct {
		Name           string
		Version        string
		ParamSchema    json.RawMessage
		ParamDefaults  map[string]any
		Agents         []AgentDecl
		Resources      []ResourceDecl
		Stages         []string
		Script         string
		Specifications string
		Evaluation     *EvaluationConfig
	}

	// Definition is an immutable, loaded procedure. Once Load returns one
	// successfully, none of its fields change for the lifetime of the
	// process (spec.md §3 "Immutable once loaded").
	Definition struct {
		Name           string
		Version        string
		Agents         []AgentDecl
		Resources      []ResourceDecl
		Stages         []string
		Script         string
		Specifications string
		Evaluation     *EvaluationConfig

		schema   *jsonschema.Schema
		defaults map[string]any
	}

	// ProcedureLoader reads a procedure definition from some external
	// encoding (YAML, TOML, ...) into a Source. The core does not implement
	// one (spec.md §1's file-format loading non-goal); this interface is
	// the seam a future loader plugs into without touching procedure.Load
	// or anything downstream of it.
	ProcedureLoader interface {
		LoadSource(data []byte) (Source, error)
	}
)

const (
	ResourceTool      ResourceKind = "tool"
	ResourceProcedure ResourceKind = "procedure"
)

// Load compiles src into an immutable Definition, validating its shape and
// compiling its parameter schema (if any) once up front so every later
// invocation only pays for a cheap Validate call.
func Load(src Source) (*Definition, error) {
	if src.Name == "" {
		return nil, tactuserr.New(tactuserr.KindValidation, "procedure: definition has no name")
	}
	if src.Script == "" {
		return nil, tactuserr.Newf(tactuserr.KindValidation, "procedure %q: orchestration script is empty", src.Name)
	}
	for _, rd := range src.Resources {
		if rd.Kind == ResourceProcedure && rd.Procedure == "" {
			return nil, tactuserr.Newf(tactuserr.KindValidation, "procedure %q: resource %q declares kind procedure with no target", src.Name, rd.Name)
		}
	}

	def := &Definition{
		Name:           src.Name,
		Version:        src.Version,
		Agents:         src.Agents,
		Resources:      src.Resources,
		Stages:         src.Stages,
		Script:         src.Script,
		Specifications: src.Specifications,
		Evaluation:     src.Evaluation,
		defaults:       src.ParamDefaults,
	}

	if len(src.ParamSchema) > 0 {
		var schemaDoc any
		if err := json.Unmarshal(src.ParamSchema, &schemaDoc); err != nil {
			return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "procedure "+src.Name+": invalid parameter schema JSON")
		}
		compiler := jsonschema.NewCompiler()
		url := src.Name + "/params.json"
		if err := compiler.AddResource(url, schemaDoc); err != nil {
			return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "procedure "+src.Name+": invalid parameter schema")
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "procedure "+src.Name+": compile parameter schema")
		}
		def.schema = schema
	}

	return def, nil
}

// ValidateParams merges provided params over the definition's declared
// defaults and validates the result against the compiled parameter schema,
// returning a tactuserr.KindValidation error describing every violation
// the schema library reports.
func (d *Definition) ValidateParams(params map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(d.defaults)+len(params))
	for k, v := range d.defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	if d.schema == nil {
		return merged, nil
	}
	if err := d.schema.Validate(merged); err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindValidation, err, fmt.Sprintf("procedure %s: parameters", d.Name))
	}
	return merged, nil
}

// CallsTo returns the names of every nested procedure this definition
// declares as a resource, the edges a Registry walks for cycle detection.
func (d *Definition) CallsTo() []string {
	var names []string
	for _, r := range d.Resources {
		if r.Kind == ResourceProcedure {
			names = append(names, r.Procedure)
		}
	}
	return names
}
