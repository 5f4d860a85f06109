package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnthusAI/Tactus/bdd"
	"github.com/AnthusAI/Tactus/procedure"
)

func newTestCmd() *cobra.Command {
	var scenario string
	cmd := &cobra.Command{
		Use:   "test <file>",
		Short: "Run every Gherkin scenario in a procedure definition once in mock mode.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			features, err := specFeatures(def)
			if err != nil {
				return err
			}
			features = filterScenario(features, scenario)

			ev := bdd.NewEvaluator()
			if parallel, _ := cmd.Flags().GetBool("parallel"); !parallel {
				ev.Workers = 1
			}
			results := ev.Test(cmd.Context(), features, targetsFor(def, features))

			failed := 0
			for _, r := range results {
				status := "PASS"
				if !r.Passed {
					status = "FAIL"
					failed++
				}
				fmt.Printf("%-6s %s (%s)\n", status, r.Name, r.Duration)
				if !r.Passed && r.Error != nil {
					fmt.Printf("       %s\n", r.Error)
				}
			}
			if failed > 0 {
				return fmt.Errorf("tactus: %d of %d scenarios failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "", "run only the named scenario")
	// test always runs in mock mode: a scenario's Given/And steps are the
	// only source of canned tool/human responses (bdd.StepLibrary's
	// built-ins), so --mock is accepted for CLI-surface compatibility with
	// spec.md §6 but has no effect of its own.
	cmd.Flags().Bool("mock", true, "run in mock mode")
	cmd.Flags().String("mock-config", "", "reserved: per-scenario mock overrides are set via Given/And steps, not a config file")
	cmd.Flags().Bool("parallel", true, "run scenarios concurrently")
	return cmd
}

func specFeatures(def *procedure.Definition) ([]bdd.Feature, error) {
	if def.Specifications == "" {
		return nil, fmt.Errorf("tactus: %s has no specifications block to test", def.Name)
	}
	return bdd.Parse(def.Specifications)
}

func filterScenario(features []bdd.Feature, name string) []bdd.Feature {
	if name == "" {
		return features
	}
	out := make([]bdd.Feature, 0, len(features))
	for _, f := range features {
		var kept []bdd.Scenario
		for _, sc := range f.Scenarios {
			if sc.Name == name {
				kept = append(kept, sc)
			}
		}
		if len(kept) > 0 {
			out = append(out, bdd.Feature{Name: f.Name, Scenarios: kept})
		}
	}
	return out
}

// targetsFor maps every scenario name in features to a Target that drives
// def's real interpreter in mock mode — one procedure definition backs
// every scenario in its own specifications block.
func targetsFor(def *procedure.Definition, features []bdd.Feature) map[string]bdd.Target {
	run := procedureRunFunc(def)
	targets := map[string]bdd.Target{}
	for _, f := range features {
		for _, sc := range f.Scenarios {
			targets[sc.Name] = bdd.Target{Run: run}
		}
	}
	return targets
}
