package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	engineinmem "github.com/AnthusAI/Tactus/engine/inmem"
	"github.com/AnthusAI/Tactus/procedure"
	"github.com/AnthusAI/Tactus/scheduler"
)

func newRunCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a procedure, streaming its events to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			parsed, err := parseParams(params)
			if err != nil {
				return err
			}
			return runProcedure(cmd.Context(), def, parsed)
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "procedure parameter as key=value (repeatable)")
	return cmd
}

// parseParams decodes `--param k=v` pairs. A value that parses as JSON
// (number, bool, object, array, quoted string) is decoded as such;
// otherwise it is kept as a plain string, so `--param name=world` and
// `--param loud=true` both do the obvious thing.
func parseParams(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("tactus: --param %q is not in key=value form", p)
		}
		out[k] = coerceParam(v)
	}
	return out, nil
}

func coerceParam(v string) any {
	if v == "true" || v == "false" {
		return v == "true"
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

func runProcedure(ctx context.Context, def *procedure.Definition, params map[string]any) error {
	eng := engineinmem.New()
	sched := scheduler.New(eng, "tactus-cli")
	deps, logs := buildDeps(sched, false, mockConfig{})

	if err := sched.Register(ctx, def.Name, procedure.Interpreter(def, deps)); err != nil {
		return err
	}
	h, err := sched.Spawn(ctx, nil, def.Name, params)
	if err != nil {
		return err
	}

	streamEvents(ctx, os.Stdout, logs, sched, h)

	result, err := sched.Result(ctx, h)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "result: %v\n", result)
	return nil
}
