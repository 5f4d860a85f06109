// Package bdd implements the Gherkin-based test and evaluation harness
// described in spec.md §4.J: a small hand-rolled Feature/Scenario/Step
// parser (the embedded scripting language's own grammar is an external
// collaborator per spec.md §1, but Gherkin specification text is core to
// this module since the harness's step-matching and scoring logic depends
// on its exact shape), a StepLibrary of regexp-matched assertions, and an
// Evaluator that drives the procedure scheduler in mock mode.
package bdd

import (
	"bufio"
	"fmt"
	"strings"
)

type (
	// Step is one Given/When/Then/And/But line of a Scenario.
	Step struct {
		Keyword string
		Text    string
		Line    int
	}

	// Scenario is a named sequence of Steps.
	Scenario struct {
		Name  string
		Steps []Step
	}

	// Feature is a named group of Scenarios, the top-level unit produced by
	// Parse.
	Feature struct {
		Name      string
		Scenarios []Scenario
	}
)

// Parse reads Gherkin text (the `specifications` block of a procedure
// definition, per spec.md §4.J "parse") into a list of Features. The
// grammar supported is deliberately small: Feature:, Scenario:, and
// Given/When/Then/And/But step lines, plus blank lines and '#' comments.
func Parse(source string) ([]Feature, error) {
	var features []Feature
	var cur *Feature
	var scenario *Scenario

	scanner := bufio.NewScanner(strings.NewReader(source))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Feature:"):
			if cur != nil {
				if scenario != nil {
					cur.Scenarios = append(cur.Scenarios, *scenario)
					scenario = nil
				}
				features = append(features, *cur)
			}
			cur = &Feature{Name: strings.TrimSpace(strings.TrimPrefix(line, "Feature:"))}
		case strings.HasPrefix(line, "Scenario:"):
			if cur == nil {
				return nil, fmt.Errorf("bdd: line %d: Scenario outside of any Feature", lineNo)
			}
			if scenario != nil {
				cur.Scenarios = append(cur.Scenarios, *scenario)
			}
			scenario = &Scenario{Name: strings.TrimSpace(strings.TrimPrefix(line, "Scenario:"))}
		default:
			kw, text, ok := splitStepKeyword(line)
			if !ok {
				return nil, fmt.Errorf("bdd: line %d: expected Given/When/Then/And/But, got %q", lineNo, line)
			}
			if scenario == nil {
				return nil, fmt.Errorf("bdd: line %d: step outside of any Scenario", lineNo)
			}
			scenario.Steps = append(scenario.Steps, Step{Keyword: kw, Text: text, Line: lineNo})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if scenario != nil && cur != nil {
		cur.Scenarios = append(cur.Scenarios, *scenario)
	}
	if cur != nil {
		features = append(features, *cur)
	}
	return features, nil
}

var stepKeywords = []string{"Given", "When", "Then", "And", "But"}

func splitStepKeyword(line string) (keyword, text string, ok bool) {
	for _, kw := range stepKeywords {
		if strings.HasPrefix(line, kw+" ") {
			return kw, strings.TrimSpace(strings.TrimPrefix(line, kw)), true
		}
	}
	return "", "", false
}
