package procedure

import (
	"context"
	"encoding/json"

	"github.com/AnthusAI/Tactus/agentrt"
	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/hitl"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/scheduler"
	"github.com/AnthusAI/Tactus/script"
	"github.com/AnthusAI/Tactus/session"
	"github.com/AnthusAI/Tactus/state"
	"github.com/AnthusAI/Tactus/tactuserr"
	"github.com/AnthusAI/Tactus/tools"
)

type (
	// NativeTool is a host-implemented tool bound to a resource declaration
	// of kind ResourceTool.
	NativeTool struct {
		Spec   tools.Spec
		Invoke tools.Invoke
	}

	// Deps bundles the per-process collaborators an interpreted Definition
	// needs that are not themselves part of the procedure data model: an
	// eventlog.Log/checkpoint.Journal pair per invocation, a provider
	// adapter resolver, a HITL responder, the native tools a procedure may
	// declare as resources, and the Scheduler used to spawn declared
	// sub-procedures.
	Deps struct {
		NewLog        func(invocationID string) eventlog.Log
		NewJournal    func(invocationID string) checkpoint.Journal
		ProviderFor   func(cfg provider.Config) (provider.Adapter, error)
		HITLResponder hitl.Responder
		NativeTools   map[string]NativeTool
		Scheduler     *scheduler.Scheduler

		// ToolInvoker, when set, replaces the real tools.Registry built from
		// NativeTools as the script bridge's tool backend. This is the seam
		// the BDD harness's mock mode (spec.md §4.J) uses to swap in a
		// tools.MockRegistry without touching the orchestration script or
		// anything else in Interpreter; cmd/tactus's buildDeps also sets it
		// when called with mock set, which no command does.
		ToolInvoker tools.Invoker
	}
)

// Interpreter builds the scheduler.Procedure that drives def's orchestration
// script: one eventlog.Log, checkpoint.Journal, state.Store and hitl.Gateway
// per invocation, one agentrt.Agent per declared agent, a tools.Registry
// seeded with the definition's declared resources, and a script.Bridge
// wiring all of it into the Lua capability tables spec.md §4.I describes.
// The returned function is registered with a scheduler.Scheduler under
// def.Name (matching script_test.go's TestProcedureRunSpawnsAndReturnsChildResult
// pattern, generalized from a literal test closure to a data-driven one).
func Interpreter(def *Definition, deps Deps) scheduler.Procedure {
	return func(ic *scheduler.InvocationContext, rawParams map[string]any) (any, error) {
		ctx := context.Background()

		params, err := def.ValidateParams(rawParams)
		if err != nil {
			return nil, err
		}

		log := deps.NewLog(ic.ID)
		journal := deps.NewJournal(ic.ID)
		st := state.New(log)
		responder := deps.HITLResponder
		if responder == nil {
			return nil, tactuserr.New(tactuserr.KindInternal, "procedure: no HITL responder configured")
		}
		gateway := hitl.New(journal, log, responder)

		var invoker tools.Invoker
		if deps.ToolInvoker != nil {
			invoker = deps.ToolInvoker
		} else {
			registry := tools.NewRegistry(journal, log)
			if err := wireResources(def, registry, deps, ic); err != nil {
				return nil, err
			}
			invoker = registry
		}

		bridge := script.New(ctx, ic, deps.Scheduler, invoker, gateway, st, log, journal)
		defer bridge.Close()
		bridge.SetParams(params)

		for _, ad := range def.Agents {
			adapter, err := deps.ProviderFor(ad.Model)
			if err != nil {
				return nil, tactuserr.Wrap(tactuserr.KindInternal, err, "procedure "+def.Name+": resolve provider for agent "+ad.Name)
			}
			sess := session.New(log)
			cfg := agentrt.Config{
				Name:                 ad.Name,
				Model:                ad.Model,
				SystemPromptTemplate: ad.SystemPromptTemplate,
				InitialMessage:       ad.InitialMessage,
				AllowedTools:         ad.AllowedTools,
				MaxRetries:           ad.MaxRetries,
				InitialBackoff:       ad.InitialBackoff,
				BackoffCoefficient:   ad.BackoffCoefficient,
			}
			agent, err := agentrt.New(cfg, adapter, invoker, sess, nil, journal, log, ic)
			if err != nil {
				return nil, tactuserr.Wrap(tactuserr.KindInternal, err, "procedure "+def.Name+": construct agent "+ad.Name)
			}
			bridge.RegisterAgent(ad.Name, agent, script.NewSession(ctx, sess, st))
		}

		return bridge.DoString(def.Script)
	}
}

// wireResources registers every ResourceTool declaration against deps'
// native tool implementations and every ResourceProcedure declaration as a
// sub-procedure tool that spawns and awaits a child invocation through the
// scheduler (spec.md §4.D).
func wireResources(def *Definition, registry *tools.Registry, deps Deps, ic *scheduler.InvocationContext) error {
	for _, rd := range def.Resources {
		switch rd.Kind {
		case ResourceTool:
			nt, ok := deps.NativeTools[rd.Name]
			if !ok {
				return tactuserr.Newf(tactuserr.KindInternal, "procedure %s: no native tool registered for resource %q", def.Name, rd.Name)
			}
			registry.Register(nt.Spec, nt.Invoke)
		case ResourceProcedure:
			procedureName := rd.Procedure
			if deps.Scheduler == nil {
				return tactuserr.Newf(tactuserr.KindInternal, "procedure %s: resource %q needs a scheduler but none is configured", def.Name, rd.Name)
			}
			sched := deps.Scheduler
			registry.RegisterSubProcedure(tools.Spec{
				Name:          rd.Name,
				ProcedureName: procedureName,
			}, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
				var childParams map[string]any
				if len(args) > 0 {
					if err := json.Unmarshal(args, &childParams); err != nil {
						return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "decode sub-procedure arguments")
					}
				}
				result, err := sched.Run(ctx, ic, procedureName, childParams)
				if err != nil {
					return nil, err
				}
				raw, err := json.Marshal(result)
				if err != nil {
					return nil, tactuserr.Wrap(tactuserr.KindInternal, err, "encode sub-procedure result")
				}
				return raw, nil
			})
		default:
			return tactuserr.Newf(tactuserr.KindValidation, "procedure %s: resource %q has unknown kind %q", def.Name, rd.Name, rd.Kind)
		}
	}
	return nil
}
