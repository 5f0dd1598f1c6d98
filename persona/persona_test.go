package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRegistry(func(o *Options) { o.Dir = dir })
	return r, dir
}

func writePersonaFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	r, dir := newTestRegistry(t)
	r.Register("test-bot", "test_bot.md")
	writePersonaFile(t, dir, "test_bot.md", "  You are a test bot.\n\n")

	text, err := r.Load("test-bot")
	require.NoError(t, err)
	assert.Equal(t, "You are a test bot.", text, "content is trimmed")
}

func TestLoad_NormalizesID(t *testing.T) {
	r, dir := newTestRegistry(t)
	r.Register("test-bot", "test_bot.md")
	writePersonaFile(t, dir, "test_bot.md", "instructions")

	text, err := r.Load("  Test-Bot ")
	require.NoError(t, err)
	assert.Equal(t, "instructions", text)
}

func TestLoad_UnknownPersona(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Load("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown persona")
	assert.Contains(t, err.Error(), "oi-trader")
}

func TestLoad_MissingFile(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Register("ghost", "missing.md")

	_, err := r.Load("ghost")
	assert.Error(t, err)
}

func TestAvailable(t *testing.T) {
	r, dir := newTestRegistry(t)
	r.Register("test-bot", "test_bot.md")
	writePersonaFile(t, dir, "test_bot.md", "x")

	infos := r.Available()
	require.Len(t, infos, 2)

	// Sorted by ID: oi-trader before test-bot.
	assert.Equal(t, "oi-trader", infos[0].ID)
	assert.Equal(t, "Oi Trader", infos[0].Name)
	assert.False(t, infos[0].Exists)

	assert.Equal(t, "test-bot", infos[1].ID)
	assert.Equal(t, "Test Bot", infos[1].Name)
	assert.True(t, infos[1].Exists)
}

func TestGetOrCustom(t *testing.T) {
	r, dir := newTestRegistry(t)
	r.Register("test-bot", "test_bot.md")
	writePersonaFile(t, dir, "test_bot.md", "persona text")

	// Persona wins over the custom instruction.
	assert.Equal(t, "persona text", r.GetOrCustom("test-bot", "custom text"))

	// Failing persona falls back to custom instead of erroring.
	assert.Equal(t, "custom text", r.GetOrCustom("unknown", "custom text"))

	// No persona: the custom instruction passes through, empty or not.
	assert.Equal(t, "custom text", r.GetOrCustom("", "custom text"))
	assert.Equal(t, "", r.GetOrCustom("", ""))
}
