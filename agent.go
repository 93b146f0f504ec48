package agentflow

import (
	"context"
	"sort"
)

// Agent is an opaque external capability invoked by name. The engine never
// inspects an agent's internals; it passes the step's action string and the
// resolved inputs and expects the declared outputs back. Implementations
// must honor ctx cancellation.
type Agent interface {
	Execute(ctx context.Context, action string, inputs map[string]any) (map[string]any, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(ctx context.Context, action string, inputs map[string]any) (map[string]any, error)

// Execute implements Agent
func (f AgentFunc) Execute(ctx context.Context, action string, inputs map[string]any) (map[string]any, error) {
	return f(ctx, action, inputs)
}

// Registry maps agent capability names to callables. It is populated before
// execution and read-only during runs, so it may be shared across concurrent
// runs without locking.
type Registry struct {
	agents map[string]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register binds an agent under the given capability name, replacing any
// previous binding.
func (r *Registry) Register(name string, agent Agent) {
	r.agents[name] = agent
}

// RegisterFunc binds a plain function as an agent.
func (r *Registry) RegisterFunc(name string, fn AgentFunc) {
	r.Register(name, fn)
}

// Get returns the agent bound under name.
func (r *Registry) Get(name string) (Agent, bool) {
	agent, ok := r.agents[name]
	return agent, ok
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
