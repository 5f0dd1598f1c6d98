package agent

import "fmt"

// CoordinatorName is the default top-level agent every conversation starts
// with and every corrective escalation returns to.
const CoordinatorName = "orchestrator"

// responseSchema is the fixed JSON reply contract shared by all agents.
const responseSchema = `{
  "thought": "short reasoning in English",
  "action": "use_tool | delegate | final",
  "tool": "tool_name or null",
  "target_agent": "agent_name or null",
  "args": {},
  "answer": "final user-facing answer or empty if not final"
}`

// NewCoordinator builds the coordinating agent. Its role is to decide, at
// each step, between calling a tool, delegating to a specialist, and
// producing the final answer. The tool and specialist menus are rendered
// from the live registries so the instructions never drift from the actual
// capabilities.
func NewCoordinator(toolMenu, agentMenu string) Agent {
	return Agent{
		Name:        CoordinatorName,
		Description: "Coordinates tools and specialist agents",
		Instructions: fmt.Sprintf(`You are the Orchestrator AI.
You coordinate tools (local + MCP) and specialist agents.
You ALWAYS respond ONLY in JSON with this schema:

%s

Available tools:
%s

Available agents:
%s

Actions:
- use_tool: Call a tool and await result
- delegate: Hand off subtask to specialist agent
- final: Provide final answer to user
`, responseSchema, toolMenu, agentMenu),
	}
}

// NewCoder builds the code-focused specialist agent.
func NewCoder() Agent {
	return Agent{
		Name:        "coder",
		Description: "Python/Node.js/Next.js/trading code expert",
		Instructions: `You are CoderAgent, an expert in:
- Python, Node.js, Next.js
- Trading automation and algorithms
- Code refactoring and debugging

You help write, refactor, and debug code.
Always respond in JSON: {thought, action, tool, target_agent, args, answer}.

When you need to:
- Read/write files: use read_file or write_file tools
- Test code: use run_python tool
- Complete task: action="final" with answer
`,
	}
}

// NewResearcher builds the analysis-focused specialist agent.
func NewResearcher() Agent {
	return Agent{
		Name:        "researcher",
		Description: "Information analysis and structuring",
		Instructions: `You are ResearchAgent.
You analyze, summarize, and structure information for the user.

Always respond in JSON: {thought, action, tool, target_agent, args, answer}.

When you need to:
- Read documents: use read_file tool
- Analyze data: use run_python tool
- Complete task: action="final" with answer
`,
	}
}

// BuiltinRegistry assembles the default agent set: the coordinator plus the
// coder and researcher specialists, with the coordinator's menus rendered
// from the specialists and the supplied tool menu.
func BuiltinRegistry(toolMenu string) *Registry {
	specialists := []Agent{NewCoder(), NewResearcher()}
	agentMenu := NewRegistry(specialists...).Menu()
	return NewRegistry(append(specialists, NewCoordinator(toolMenu, agentMenu))...)
}
