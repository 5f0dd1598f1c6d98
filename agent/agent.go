// Package agent defines agent role descriptors, the static agent registry,
// and the Invoker that turns one (agent, query, context) triple into a
// decoded protocol record via the language-model transport.
package agent

import (
	"fmt"
	"sort"
	"strings"
)

// Agent is a named role with fixed instructions. Given a query and context it
// returns one structured action; the instructions describe the agent's scope,
// the fixed JSON response schema, and its tool/agent menu.
type Agent struct {
	// Name is the unique registry key.
	Name string
	// Description is a one-line summary rendered into the coordinator's
	// delegation menu.
	Description string
	// Instructions is the system-prompt fragment defining the role.
	Instructions string
}

// Registry is a static, process-wide mapping from agent name to role
// descriptor. It is read-only after construction and safe for concurrent use.
type Registry struct {
	agents map[string]Agent
	names  []string
}

// NewRegistry builds an immutable registry from the given agents. Later
// agents with duplicate names replace earlier ones.
func NewRegistry(agents ...Agent) *Registry {
	m := make(map[string]Agent, len(agents))
	for _, a := range agents {
		m[a.Name] = a
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Registry{agents: m, names: names}
}

// Lookup returns the named agent. A missing name is not an error at this
// layer; the orchestration loop converts it into a corrective instruction.
func (r *Registry) Lookup(name string) (Agent, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// Names returns all registered agent names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Menu renders one "- name: description" line per agent for inclusion in the
// coordinator's role instructions.
func (r *Registry) Menu() string {
	var b strings.Builder
	for _, name := range r.names {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.agents[name].Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
