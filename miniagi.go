// Package miniagi provides a high-level façade over the orchestration loop
// and its collaborators (agent and tool registries, the conversation memory
// store, persona resolution and the language-model transport). Most
// applications interact with this package by:
//  1. Creating an Engine via New() (optionally overriding the transport,
//     memory store, tool set or logger)
//  2. Calling Orchestrate() per user request
//
// All defaults are safe for local development and testing; production
// deployments supply a real LLM transport and a durable database path.
package miniagi

import (
	"context"

	"github.com/miniagi/miniagi/agent"
	"github.com/miniagi/miniagi/logging"
	"github.com/miniagi/miniagi/memory"
	"github.com/miniagi/miniagi/model"
	"github.com/miniagi/miniagi/orchestrator"
	"github.com/miniagi/miniagi/persona"
	"github.com/miniagi/miniagi/tool"
)

// Options configures the Engine.
type Options struct {
	// Transport is the language-model backend. Defaults to a mock transport
	// suitable for tests and offline development.
	Transport model.Transport

	// Store is the conversation memory store. When nil, one is opened at
	// DBPath.
	Store *memory.Store

	// DBPath locates the SQLite database when Store is nil.
	DBPath string

	// Tools overrides the default tool set (file access and Python
	// execution). Extra tools can instead be appended via ExtraTools.
	Tools []tool.Tool

	// ExtraTools are appended to the default (or overridden) tool set.
	ExtraTools []tool.Tool

	// PersonaDir is the persona instruction file directory.
	PersonaDir string

	// MaxSteps bounds each orchestration loop. Defaults to the loop's own
	// default when <= 0.
	MaxSteps int

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Engine is the high-level façade aggregating the loop and its services.
type Engine struct {
	opts      Options
	tools     *tool.Registry
	agents    *agent.Registry
	store     *memory.Store
	personas  *persona.Registry
	transport model.Transport
	orch      *orchestrator.Orchestrator
	ownsStore bool
}

// New creates an Engine with optional overrides. Any unset collaborator is
// initialized with a local default.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Transport:  model.NewMockTransport(),
		DBPath:     "./data/conversations.db",
		PersonaDir: persona.DefaultDir,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	tools := opts.Tools
	if tools == nil {
		tools = []tool.Tool{
			tool.NewReadFile(),
			tool.NewWriteFile(),
			tool.NewRunPython(tool.DefaultPythonTimeout),
		}
	}
	tools = append(tools, opts.ExtraTools...)
	toolRegistry := tool.NewRegistry(opts.Logger, tools...)

	agents := agent.BuiltinRegistry(toolRegistry.Menu())

	store := opts.Store
	ownsStore := false
	if store == nil {
		var err error
		store, err = memory.Open(opts.DBPath, func(o *memory.Options) {
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		ownsStore = true
	}

	personas := persona.NewRegistry(func(o *persona.Options) {
		o.Dir = opts.PersonaDir
		o.Logger = opts.Logger
	})

	invoker := agent.NewInvoker(agents, opts.Transport, opts.Logger)

	orch, err := orchestrator.New(agents, toolRegistry, invoker, store, personas, opts.Logger)
	if err != nil {
		if ownsStore {
			store.Close()
		}
		return nil, err
	}

	return &Engine{
		opts:      opts,
		tools:     toolRegistry,
		agents:    agents,
		store:     store,
		personas:  personas,
		transport: opts.Transport,
		orch:      orch,
		ownsStore: ownsStore,
	}, nil
}

// Orchestrate runs one bounded orchestration loop for a user request.
// A zero MaxSteps on the request falls back to the engine-level option.
func (e *Engine) Orchestrate(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	if req.MaxSteps <= 0 {
		req.MaxSteps = e.opts.MaxSteps
	}
	return e.orch.Run(ctx, req)
}

// Orchestrator exposes the underlying loop for direct wiring.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator { return e.orch }

// Store exposes the conversation memory store.
func (e *Engine) Store() *memory.Store { return e.store }

// Personas exposes the persona registry.
func (e *Engine) Personas() *persona.Registry { return e.personas }

// Transport exposes the configured language-model transport.
func (e *Engine) Transport() model.Transport { return e.transport }

// Tools exposes the tool registry.
func (e *Engine) Tools() *tool.Registry { return e.tools }

// Agents exposes the agent registry.
func (e *Engine) Agents() *agent.Registry { return e.agents }

// Close releases resources owned by the engine. A store supplied by the
// caller is left open.
func (e *Engine) Close() error {
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}
