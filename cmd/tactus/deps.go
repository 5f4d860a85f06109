package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/AnthusAI/Tactus/checkpoint"
	checkpointinmem "github.com/AnthusAI/Tactus/checkpoint/inmem"
	"github.com/AnthusAI/Tactus/eventlog"
	eventloginmem "github.com/AnthusAI/Tactus/eventlog/inmem"
	"github.com/AnthusAI/Tactus/hitl"
	hitlmock "github.com/AnthusAI/Tactus/hitl/mock"
	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/procedure"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/provider/anthropic"
	"github.com/AnthusAI/Tactus/provider/bedrock"
	"github.com/AnthusAI/Tactus/provider/openai"
	"github.com/AnthusAI/Tactus/scheduler"
	"github.com/AnthusAI/Tactus/tools"
)

// mockConfig is the JSON shape of a mock-config file: canned tool and human
// responses that buildDeps installs when its mock argument is true,
// grounded on the exact/default/fallback lookup tools.MockRegistry and
// hitl/mock.Responder already implement. No command currently reads such a
// file or calls buildDeps with mock set; the BDD harness configures its
// mocks through bdd.Mocks instead.
type mockConfig struct {
	Tools map[string]struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	} `json:"tools"`
	Human struct {
		Outcome string `json:"outcome"`
		Value   json.RawMessage `json:"value"`
	} `json:"human"`
}

func loadMockConfig(path string) (mockConfig, error) {
	var cfg mockConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("tactus: read mock config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("tactus: decode mock config %s: %w", path, err)
	}
	return cfg, nil
}

func mockToolInvoker(cfg mockConfig) *tools.MockRegistry {
	reg := tools.NewMockRegistry(nil, tools.MockResponse{Result: json.RawMessage(`null`)})
	for name, r := range cfg.Tools {
		resp := tools.MockResponse{Result: r.Result}
		if r.Error != "" {
			resp.Err = fmt.Errorf("%s", r.Error)
		}
		reg.OnDefault(name, resp)
	}
	return reg
}

func mockHITLResponder(cfg mockConfig) hitl.Responder {
	if cfg.Human.Outcome == "" {
		return hitlmock.AutoApprove()
	}
	return hitlmock.NewResponder(hitl.Resolution{
		Outcome: hitl.Outcome(cfg.Human.Outcome),
		Value:   cfg.Human.Value,
	})
}

// stdinResponder is the interactive, non-mock hitl.Responder a `run`
// invocation uses by default: it prints the request to stdout and blocks on
// a line of stdin, the simplest faithful implementation of spec.md §6's
// "HITL handler (consumed)" boundary for a bare terminal front-end.
type stdinResponder struct {
	in *bufio.Scanner
}

func newStdinResponder() *stdinResponder {
	return &stdinResponder{in: bufio.NewScanner(os.Stdin)}
}

func (r *stdinResponder) Respond(_ context.Context, req hitl.Request) (hitl.Resolution, error) {
	fmt.Fprintf(os.Stderr, "\n[human:%s] %s\n> ", req.Kind, req.Message)
	if !r.in.Scan() {
		return hitl.Resolution{Outcome: hitl.OutcomeCancelled}, r.in.Err()
	}
	line := strings.TrimSpace(r.in.Text())
	switch req.Kind {
	case hitl.KindApprove:
		v, _ := json.Marshal(line == "y" || line == "yes")
		return hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: v}, nil
	default:
		v, _ := json.Marshal(line)
		return hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: v}, nil
	}
}

var _ hitl.Responder = (*stdinResponder)(nil)

// logRegistry records the eventlog.Log each invocation's Interpreter call
// constructs, keyed by invocation id, so the CLI can subscribe to an
// invocation it just spawned without Interpreter needing to expose its
// internal log construction any other way.
type logRegistry struct {
	mu   sync.Mutex
	logs map[string]eventlog.Log
}

func newLogRegistry() *logRegistry {
	return &logRegistry{logs: make(map[string]eventlog.Log)}
}

func (r *logRegistry) new(id string) eventlog.Log {
	l := eventloginmem.New(id)
	r.mu.Lock()
	r.logs[id] = l
	r.mu.Unlock()
	return l
}

func (r *logRegistry) get(id string) (eventlog.Log, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	return l, ok
}

// baseDeps assembles the parts of procedure.Deps every CLI operation needs
// regardless of mock mode (log/journal construction, the scheduler, the
// provider resolver) plus the logRegistry that records each invocation's
// eventlog.Log. Callers fill in ToolInvoker and HITLResponder themselves.
func baseDeps(sched *scheduler.Scheduler) (procedure.Deps, *logRegistry) {
	logs := newLogRegistry()
	deps := procedure.Deps{
		NewLog:      logs.new,
		NewJournal:  func(id string) checkpoint.Journal { return checkpointinmem.New() },
		Scheduler:   sched,
		NativeTools: map[string]procedure.NativeTool{},
		ProviderFor: resolveProvider,
	}
	return deps, logs
}

// buildDeps assembles the procedure.Deps a CLI `run` invocation runs
// against. mock, when true, swaps the tool registry and HITL responder for
// deterministic mocked ones; otherwise tools declared by the loaded
// definition's ResourceTool resources must be satisfied by the returned
// Deps.NativeTools (empty for the bare CLI, since it has no
// application-specific tool implementations of its own — a host embedding
// Tactus supplies those).
func buildDeps(sched *scheduler.Scheduler, mock bool, cfg mockConfig) (procedure.Deps, *logRegistry) {
	deps, logs := baseDeps(sched)
	if mock {
		deps.ToolInvoker = mockToolInvoker(cfg)
		deps.HITLResponder = mockHITLResponder(cfg)
	} else {
		deps.HITLResponder = newStdinResponder()
	}
	return deps, logs
}

// resolveProvider picks a reference provider.Adapter by cfg.Provider,
// reading credentials from the environment (spec.md §6's LLM provider
// adapter boundary is consumed, not configured, by the core). An empty or
// unrecognized provider name falls back to a deterministic mock adapter so
// `run`/`test` against a procedure with no agents, or whose agents name no
// known provider, never needs real credentials.
func resolveProvider(cfg provider.Config) (provider.Adapter, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewFromAPIKey(os.Getenv("ANTHROPIC_API_KEY")), nil
	case "openai":
		return openai.NewFromAPIKey(os.Getenv("OPENAI_API_KEY")), nil
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("tactus: load AWS config for bedrock provider: %w", err)
		}
		return bedrock.New(bedrockruntime.NewFromConfig(awsCfg)), nil
	default:
		return provider.NewMockAdapter(model.Response{}), nil
	}
}
