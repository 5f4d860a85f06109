package procedure

import (
	"strings"
	"sync"

	"github.com/AnthusAI/Tactus/tactuserr"
)

// Registry holds every loaded Definition for one process and detects
// sub-procedure-as-tool cycles across the whole set (SPEC_FULL.md Open
// Question resolution #2): a procedure declaring another as a resource
// dependency must not, transitively, declare itself.
type Registry struct {
	mu   sync.Mutex
	defs map[string]*Definition
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Add records def under its name. A duplicate name is a load-time error,
// not a silent overwrite, since two definitions of the same name loaded
// into one process is always a configuration mistake.
func (r *Registry) Add(def *Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[def.Name]; dup {
		return tactuserr.Newf(tactuserr.KindValidation, "procedure: %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns the named Definition, if loaded.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.defs[name]
	return d, ok
}

// CheckCycles walks the static call graph recorded in every loaded
// Definition's resource declarations and raises InternalError at the first
// cycle found, before any invocation of any of them is created. It also
// reports a resource pointing at a procedure name nothing in the registry
// defines, since that can never resolve at run time either.
func (r *Registry) CheckCycles() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(r.defs))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return tactuserr.Newf(tactuserr.KindInternal, "procedure: sub-procedure cycle detected: %s -> %s", joinPath(path), name)
		}
		def, ok := r.defs[name]
		if !ok {
			return tactuserr.Newf(tactuserr.KindInternal, "procedure: %q references undefined procedure %q", path[len(path)-1], name)
		}
		color[name] = gray
		path = append(path, name)
		for _, child := range def.CallsTo() {
			if err := visit(child); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return nil
	}

	for name := range r.defs {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(path []string) string {
	return strings.Join(path, " -> ")
}
