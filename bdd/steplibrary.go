package bdd

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AnthusAI/Tactus/hitl"
	hitlmock "github.com/AnthusAI/Tactus/hitl/mock"
	"github.com/AnthusAI/Tactus/tools"
)

type (
	// Mocks bundles the mock-mode collaborators one scenario run is wired
	// against: a tools.MockRegistry and hitl/mock.Responder that arrange
	// steps configure before the procedure runs, plus the params it is
	// invoked with.
	Mocks struct {
		Tools  *tools.MockRegistry
		Human  *hitlmock.Responder
		Params map[string]any
	}

	// ToolCallRecord summarizes one distinct tool name's call count across a
	// run, read back from the invocation's event log.
	ToolCallRecord struct {
		Name  string
		Count int
	}

	// Outcome is what a RunFunc hands back after driving one scenario's
	// procedure to completion: enough of the invocation's observable
	// surface for the built-in step patterns to assert against.
	Outcome struct {
		Status       string
		Result       any
		Err          error
		ToolCalls    []ToolCallRecord
		Stages       []string
		FinalStage   string
		State        map[string]any
		Iterations   int
		FinishReason string
	}

	// RunFunc drives one fresh mock-mode invocation of a scenario's target
	// procedure to completion and reports its Outcome. The bdd package does
	// not know how to load or interpret a procedure definition itself; a
	// caller (the procedure package) supplies this closure over its own
	// scheduler/script wiring.
	RunFunc func(mocks *Mocks) (*Outcome, error)

	// StepContext is passed to a StepFunc. Arrange steps (Given, and most
	// When) mutate Mocks before the run; assert steps (Then, and most And)
	// read Outcome after it, triggering the run on first use via EnsureRun.
	StepContext struct {
		Mocks *Mocks
		// Outcome is populated the first time EnsureRun is called; nil
		// beforehand.
		Outcome *Outcome
		// Run produces the scenario's Outcome on demand. Set by the
		// Evaluator (or directly by a test) before any step runs.
		Run func() (*Outcome, error)
		ran bool
	}

	// StepFunc implements one matched step. args are the regexp's captured
	// groups, in order.
	StepFunc func(c *StepContext, args []string) error

	// StepLibrary resolves a Gherkin step's text against a set of
	// regexp-matched patterns, spec.md §4.J's "step library": a fixed set
	// of built-ins plus whatever a procedure definition registers of its
	// own via Register.
	StepLibrary struct {
		entries []libEntry
	}

	libEntry struct {
		pattern *regexp.Regexp
		fn      StepFunc
	}
)

// EnsureRun triggers the scenario's RunFunc the first time an assert step
// needs Outcome, memoizing the result so later assert steps in the same
// scenario see the same run.
func (c *StepContext) EnsureRun() (*Outcome, error) {
	if !c.ran {
		out, err := c.Run()
		c.Outcome = out
		c.ran = true
		if err != nil {
			return out, err
		}
	}
	return c.Outcome, nil
}

// NewStepLibrary constructs a StepLibrary seeded with the built-in patterns
// spec.md §4.J enumerates: tool-call assertions, stage assertions, state
// assertions, completion assertions, iteration-count assertions, parameter
// assertions, and mock-configuration steps.
func NewStepLibrary() *StepLibrary {
	lib := &StepLibrary{}
	lib.registerBuiltins()
	return lib
}

// Register adds a custom step pattern, taking precedence over any built-in
// that would otherwise also match (patterns are tried in reverse
// registration order, most-recently-registered first).
func (lib *StepLibrary) Register(pattern string, fn StepFunc) error {
	re, err := regexp.Compile("^" + strings.TrimPrefix(strings.TrimSuffix(pattern, "$"), "^") + "$")
	if err != nil {
		return fmt.Errorf("bdd: invalid step pattern %q: %w", pattern, err)
	}
	lib.entries = append([]libEntry{{pattern: re, fn: fn}}, lib.entries...)
	return nil
}

// Run matches text against the library and invokes the first matching
// StepFunc. An unmatched step is a scenario failure, not a panic: the
// caller (Evaluator) reports it as such.
func (lib *StepLibrary) Run(c *StepContext, text string) error {
	for _, e := range lib.entries {
		if m := e.pattern.FindStringSubmatch(text); m != nil {
			return e.fn(c, m[1:])
		}
	}
	return fmt.Errorf("bdd: no step definition matches %q", text)
}

func (lib *StepLibrary) registerBuiltins() {
	must := func(pattern string, fn StepFunc) {
		if err := lib.Register(pattern, fn); err != nil {
			panic(err)
		}
	}

	// Mock configuration: tool behavior.
	must(`the "([\w.-]+)" tool returns (.+)`, func(c *StepContext, a []string) error {
		raw, err := literalJSON(a[1])
		if err != nil {
			return err
		}
		c.Mocks.Tools.OnDefault(a[0], tools.MockResponse{Result: raw})
		return nil
	})
	must(`the "([\w.-]+)" tool fails with "(.*)"`, func(c *StepContext, a []string) error {
		c.Mocks.Tools.OnDefault(a[0], tools.MockResponse{Err: fmt.Errorf("%s", a[1])})
		return nil
	})
	must(`calling "([\w.-]+)" with (.+) returns (.+)`, func(c *StepContext, a []string) error {
		argsRaw, err := literalJSON(a[1])
		if err != nil {
			return err
		}
		resultRaw, err := literalJSON(a[2])
		if err != nil {
			return err
		}
		c.Mocks.Tools.OnCall(a[0], argsRaw, tools.MockResponse{Result: resultRaw})
		return nil
	})

	// Mock configuration: human responses.
	must(`Human\.approve will return (true|false)`, func(c *StepContext, a []string) error {
		v, _ := json.Marshal(a[0] == "true")
		c.Mocks.Human.OnKind(hitl.KindApprove, hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: v})
		return nil
	})
	must(`Human\.input will return "(.*)"`, func(c *StepContext, a []string) error {
		v, _ := json.Marshal(a[0])
		c.Mocks.Human.OnKind(hitl.KindInput, hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: v})
		return nil
	})
	must(`Human\.review will return (.+)`, func(c *StepContext, a []string) error {
		raw, err := literalJSON(a[0])
		if err != nil {
			return err
		}
		c.Mocks.Human.OnKind(hitl.KindReview, hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: raw})
		return nil
	})

	// Parameter assertions (no run required; read back from Mocks.Params).
	must(`the parameter "([\w.-]+)" (?:is|equals) (.+)`, func(c *StepContext, a []string) error {
		want, err := literalValue(a[1])
		if err != nil {
			return err
		}
		got, ok := c.Mocks.Params[a[0]]
		if !ok {
			return fmt.Errorf("parameter %q was not set", a[0])
		}
		return compareEqual(a[0], want, got)
	})

	// Completion assertions.
	must(`the procedure completes successfully`, func(c *StepContext, _ []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		if out.Status != "completed" {
			return fmt.Errorf("expected procedure to complete, got status %q (err: %v)", out.Status, out.Err)
		}
		return nil
	})
	must(`the procedure fails`, func(c *StepContext, _ []string) error {
		out, _ := c.EnsureRun()
		if out.Status != "failed" {
			return fmt.Errorf("expected procedure to fail, got status %q", out.Status)
		}
		return nil
	})

	// Tool-call assertions.
	must(`the "([\w.-]+)" tool (?:was|is) called`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		if toolCallCount(out, a[0]) < 1 {
			return fmt.Errorf("expected %q to have been called at least once", a[0])
		}
		return nil
	})
	must(`the "([\w.-]+)" tool was called at least (\d+) times?`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		n, _ := strconv.Atoi(a[1])
		if got := toolCallCount(out, a[0]); got < n {
			return fmt.Errorf("expected %q to have been called at least %d times, got %d", a[0], n, got)
		}
		return nil
	})
	must(`the "([\w.-]+)" tool was not called`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		if got := toolCallCount(out, a[0]); got != 0 {
			return fmt.Errorf("expected %q to have never been called, got %d calls", a[0], got)
		}
		return nil
	})

	// Stage assertions.
	must(`the stage (?:is|becomes) "(\w+)"`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		if out.FinalStage != a[0] {
			return fmt.Errorf("expected final stage %q, got %q", a[0], out.FinalStage)
		}
		return nil
	})
	must(`the stage transitions? from "(\w+)" to "(\w+)"`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		for i := 0; i+1 < len(out.Stages); i++ {
			if out.Stages[i] == a[0] && out.Stages[i+1] == a[1] {
				return nil
			}
		}
		return fmt.Errorf("expected a stage transition from %q to %q, got sequence %v", a[0], a[1], out.Stages)
	})

	// State assertions.
	must(`the state "([\w.-]+)" exists`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		if _, ok := out.State[a[0]]; !ok {
			return fmt.Errorf("expected state key %q to exist", a[0])
		}
		return nil
	})
	must(`the state "([\w.-]+)" (?:is|equals) (.+)`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		want, err := literalValue(a[1])
		if err != nil {
			return err
		}
		got, ok := out.State[a[0]]
		if !ok {
			return fmt.Errorf("expected state key %q to exist", a[0])
		}
		return compareEqual(a[0], want, got)
	})

	// Iteration-count assertions.
	must(`the procedure takes (?:exactly )?(\d+) iterations?`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		n, _ := strconv.Atoi(a[0])
		if out.Iterations != n {
			return fmt.Errorf("expected exactly %d iterations, got %d", n, out.Iterations)
		}
		return nil
	})
	must(`the procedure takes between (\d+) and (\d+) iterations`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		lo, _ := strconv.Atoi(a[0])
		hi, _ := strconv.Atoi(a[1])
		if out.Iterations < lo || out.Iterations > hi {
			return fmt.Errorf("expected between %d and %d iterations, got %d", lo, hi, out.Iterations)
		}
		return nil
	})
	must(`iterations should be less than (\d+)`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		n, _ := strconv.Atoi(a[0])
		if out.Iterations >= n {
			return fmt.Errorf("expected fewer than %d iterations, got %d", n, out.Iterations)
		}
		return nil
	})

	// Finish-reason assertion.
	must(`stop reason should contain "(.+)"`, func(c *StepContext, a []string) error {
		out, err := c.EnsureRun()
		if err != nil {
			return err
		}
		if !strings.Contains(out.FinishReason, a[0]) {
			return fmt.Errorf("expected stop reason to contain %q, got %q", a[0], out.FinishReason)
		}
		return nil
	})
}

func toolCallCount(out *Outcome, name string) int {
	for _, tc := range out.ToolCalls {
		if tc.Name == name {
			return tc.Count
		}
	}
	return 0
}

// literalJSON parses a step's trailing literal into a json.RawMessage:
// a double-quoted string, a number, true/false, or a JSON object/array
// written inline in the feature file.
func literalJSON(s string) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return json.Marshal(s[1 : len(s)-1])
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}
	return nil, fmt.Errorf("bdd: cannot parse literal %q", s)
}

func literalValue(s string) (any, error) {
	raw, err := literalJSON(s)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func compareEqual(label string, want, got any) error {
	wantRaw, _ := json.Marshal(want)
	gotRaw, _ := json.Marshal(got)
	if string(wantRaw) != string(gotRaw) {
		return fmt.Errorf("%s: expected %s, got %s", label, wantRaw, gotRaw)
	}
	return nil
}
