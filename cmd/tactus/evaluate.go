package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnthusAI/Tactus/bdd"
)

func newEvaluateCmd() *cobra.Command {
	var scenario string
	var runs, workers int
	cmd := &cobra.Command{
		Use:   "evaluate <file>",
		Short: "Repeat every scenario N times and report success rate and consistency.",
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

			n := runs
			w := workers
			if def.Evaluation != nil {
				if n == 0 {
					n = def.Evaluation.Runs
				}
				if w == 0 {
					w = def.Evaluation.Workers
				}
			}
			if n <= 0 {
				n = 10
			}

			ev := bdd.NewEvaluator()
			if w > 0 {
				ev.Workers = w
			}
			results := ev.Evaluate(cmd.Context(), features, targetsFor(def, features), n)

			for _, r := range results {
				fmt.Printf(
					"%-30s runs=%d success=%.0f%% consistency=%.0f%% mean=%s median=%s stddev=%s\n",
					r.Name, r.Runs, r.SuccessRate*100, r.ConsistencyScore*100,
					r.DurationMean, r.DurationMedian, r.DurationStdDev,
				)
				if r.FirstFailure != nil {
					fmt.Printf("  first failure: %s\n", r.FirstFailure)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 0, "repetitions per scenario (default: procedure's own evaluation config, or 10)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent repetitions (default: procedure's own evaluation config, or 4)")
	cmd.Flags().StringVar(&scenario, "scenario", "", "evaluate only the named scenario")
	cmd.Flags().Bool("mock", true, "run in mock mode")
	return cmd
}
