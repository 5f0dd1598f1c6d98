package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_LookupAndNames(t *testing.T) {
	r := NewRegistry(
		Agent{Name: "b", Description: "second"},
		Agent{Name: "a", Description: "first"},
	)

	a, ok := r.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "first", a.Description)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_DuplicateNamesLastWins(t *testing.T) {
	r := NewRegistry(
		Agent{Name: "x", Description: "old"},
		Agent{Name: "x", Description: "new"},
	)

	a, _ := r.Lookup("x")
	assert.Equal(t, "new", a.Description)
	assert.Equal(t, []string{"x"}, r.Names())
}

func TestRegistry_Menu(t *testing.T) {
	r := NewRegistry(
		Agent{Name: "coder", Description: "writes code"},
		Agent{Name: "researcher", Description: "analyzes information"},
	)

	assert.Equal(t, "- coder: writes code\n- researcher: analyzes information", r.Menu())
}

func TestBuiltinRegistry(t *testing.T) {
	r := BuiltinRegistry("- run_python(code: str) - Execute Python code")

	coordinator, ok := r.Lookup(CoordinatorName)
	assert.True(t, ok)
	// The coordinator's instructions embed the live menus.
	assert.Contains(t, coordinator.Instructions, "run_python")
	assert.Contains(t, coordinator.Instructions, "- coder:")
	assert.Contains(t, coordinator.Instructions, "- researcher:")

	_, ok = r.Lookup("coder")
	assert.True(t, ok)
	_, ok = r.Lookup("researcher")
	assert.True(t, ok)
}
