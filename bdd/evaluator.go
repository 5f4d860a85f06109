package bdd

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnthusAI/Tactus/hitl"
	hitlmock "github.com/AnthusAI/Tactus/hitl/mock"
	"github.com/AnthusAI/Tactus/tools"
)

type (
	// Target binds a scenario's name to the RunFunc that drives its
	// procedure to completion in mock mode, and the base parameters the
	// scenario starts from (a procedure definition's "Examples" or default
	// params, overridden by any "the parameter ... is ..." Given steps
	// before the run is triggered).
	Target struct {
		Run    RunFunc
		Params map[string]any
	}

	// ScenarioResult is one scenario's outcome from the "test" operation.
	ScenarioResult struct {
		Name     string
		Passed   bool
		Error    error
		Duration time.Duration
	}

	// EvalResult is one scenario's aggregate outcome from the "evaluate"
	// operation across N repetitions (spec.md §4.J "evaluate").
	EvalResult struct {
		Name             string
		Runs             int
		Passed           int
		Failed           int
		SuccessRate      float64
		DurationMean     time.Duration
		DurationMedian   time.Duration
		DurationStdDev   time.Duration
		ConsistencyScore float64
		FirstFailure     error
	}

	// Evaluator runs Feature/Scenario pairs against a StepLibrary and a
	// per-scenario Target, implementing spec.md §4.J's "test" and
	// "evaluate" operations. Workers bounds how many scenarios (or
	// repetitions, for evaluate) run concurrently.
	Evaluator struct {
		Library *StepLibrary
		Workers int
	}
)

// NewEvaluator constructs an Evaluator with a default StepLibrary and a
// worker cap of 4.
func NewEvaluator() *Evaluator {
	return &Evaluator{Library: NewStepLibrary(), Workers: 4}
}

func (e *Evaluator) workers() int {
	if e.Workers <= 0 {
		return 1
	}
	return e.Workers
}

// Test runs every scenario in features exactly once, looking up each
// scenario's Target by name, and reports pass/fail per scenario (spec.md
// §4.J "test": "runs each scenario once, matching steps against the step
// library"). Scenarios not present in targets fail with a descriptive
// error rather than being silently skipped.
func (e *Evaluator) Test(ctx context.Context, features []Feature, targets map[string]Target) []ScenarioResult {
	scenarios := flatten(features)
	results := make([]ScenarioResult, len(scenarios))

	sem := make(chan struct{}, e.workers())
	var wg sync.WaitGroup
	for i, sc := range scenarios {
		i, sc := i, sc
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.runOnce(ctx, sc, targets[sc.Name])
		}()
	}
	wg.Wait()
	return results
}

// Evaluate runs every scenario in features `runs` times, each repetition a
// fresh mock-mode invocation, and computes a success rate, duration
// statistics, and a consistency score: the fraction of repetitions whose
// outcome — the set of (tool name, finish status, final state keys) —
// matches the most common outcome observed (spec.md §4.J "evaluate").
func (e *Evaluator) Evaluate(ctx context.Context, features []Feature, targets map[string]Target, runs int) []EvalResult {
	scenarios := flatten(features)
	out := make([]EvalResult, len(scenarios))

	for i, sc := range scenarios {
		out[i] = e.evaluateScenario(ctx, sc, targets[sc.Name], runs)
	}
	return out
}

func (e *Evaluator) evaluateScenario(ctx context.Context, sc Scenario, target Target, runs int) EvalResult {
	type rep struct {
		result      ScenarioResult
		fingerprint string
	}

	reps := make([]rep, runs)
	sem := make(chan struct{}, e.workers())
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res, outcome := e.runOnceWithOutcome(ctx, sc, target)
			reps[i] = rep{result: res, fingerprint: fingerprint(outcome)}
		}()
	}
	wg.Wait()

	er := EvalResult{Name: sc.Name, Runs: runs}
	durations := make([]time.Duration, runs)
	counts := make(map[string]int)
	for i, r := range reps {
		durations[i] = r.result.Duration
		counts[r.fingerprint]++
		if r.result.Passed {
			er.Passed++
		} else {
			er.Failed++
			if er.FirstFailure == nil {
				er.FirstFailure = r.result.Error
			}
		}
	}
	if runs > 0 {
		er.SuccessRate = float64(er.Passed) / float64(runs)
	}
	er.DurationMean, er.DurationMedian, er.DurationStdDev = durationStats(durations)

	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	if runs > 0 {
		er.ConsistencyScore = float64(best) / float64(runs)
	}
	return er
}

func (e *Evaluator) runOnce(ctx context.Context, sc Scenario, target Target) ScenarioResult {
	res, _ := e.runOnceWithOutcome(ctx, sc, target)
	return res
}

func (e *Evaluator) runOnceWithOutcome(ctx context.Context, sc Scenario, target Target) (ScenarioResult, *Outcome) {
	start := time.Now()
	if target.Run == nil {
		return ScenarioResult{Name: sc.Name, Passed: false, Error: fmt.Errorf("bdd: no target registered for scenario %q", sc.Name), Duration: time.Since(start)}, nil
	}

	params := map[string]any{}
	for k, v := range target.Params {
		params[k] = v
	}
	mocks := &Mocks{
		Tools:  tools.NewMockRegistry(nil, tools.MockResponse{}),
		Human:  hitlmock.NewResponder(hitl.Resolution{Outcome: hitl.OutcomeResolved}),
		Params: params,
	}

	var cached *Outcome
	runOnce := func() (*Outcome, error) {
		out, err := target.Run(mocks)
		cached = out
		return out, err
	}
	sctx := &StepContext{Mocks: mocks}
	sctx.Run = runOnce

	var failErr error
	for _, step := range sc.Steps {
		if strings.TrimSpace(step.Text) == "" {
			continue
		}
		if err := e.Library.Run(sctx, step.Text); err != nil {
			failErr = fmt.Errorf("line %d: %s: %w", step.Line, step.Text, err)
			break
		}
	}
	if failErr == nil && !sctx.ran {
		// A scenario with only arrange/When steps and no assertion still
		// needs its procedure exercised once.
		if _, err := sctx.EnsureRun(); err != nil {
			failErr = err
		}
	}

	return ScenarioResult{
		Name:     sc.Name,
		Passed:   failErr == nil,
		Error:    failErr,
		Duration: time.Since(start),
	}, cached
}

func flatten(features []Feature) []Scenario {
	var out []Scenario
	for _, f := range features {
		out = append(out, f.Scenarios...)
	}
	return out
}

// fingerprint reduces an Outcome to the (tool names called, finish status,
// final state key set) triple spec.md §4.J defines as "identical outcome"
// for the consistency score. A nil Outcome (the run never completed
// against this target) fingerprints as its own distinct bucket.
func fingerprint(out *Outcome) string {
	if out == nil {
		return "<no-run>"
	}
	var calledTools []string
	for _, tc := range out.ToolCalls {
		if tc.Count > 0 {
			calledTools = append(calledTools, tc.Name)
		}
	}
	sort.Strings(calledTools)

	var keys []string
	for k := range out.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return fmt.Sprintf("tools=%s|status=%s|state=%s", strings.Join(calledTools, ","), out.Status, strings.Join(keys, ","))
}

func durationStats(ds []time.Duration) (mean, median, stddev time.Duration) {
	if len(ds) == 0 {
		return 0, 0, 0
	}
	sorted := append([]time.Duration(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	mean = sum / time.Duration(len(sorted))
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 && len(sorted) > 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	var variance float64
	for _, d := range sorted {
		diff := float64(d - mean)
		variance += diff * diff
	}
	variance /= float64(len(sorted))
	stddev = time.Duration(math.Sqrt(variance))
	return mean, median, stddev
}
