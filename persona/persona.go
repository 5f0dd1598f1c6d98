// Package persona loads predefined system-instruction overrides from markdown
// files on disk. A persona is an identifier mapped to an instruction file; the
// resolved text replaces any inline custom instruction for the request.
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/miniagi/miniagi/logging"
)

// DefaultDir is the default instruction file directory.
const DefaultDir = "instruction"

// Info describes one registered persona.
type Info struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	File   string `json:"file"`
	Exists bool   `json:"exists"`
}

// Registry maps persona IDs to instruction filenames inside a base directory.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	dir    string
	files  map[string]string
	logger logging.Logger
}

// Options configures a Registry.
type Options struct {
	// Dir is the instruction file directory. Defaults to DefaultDir.
	Dir string
	// Logger used for load warnings. Defaults to a no-op logger.
	Logger logging.Logger
}

// builtins is the default persona set.
var builtins = map[string]string{
	"oi-trader": "AI_System_Instructions_Trading_Analysis.md",
}

// NewRegistry builds a registry over the builtin persona set.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Dir: DefaultDir, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	files := make(map[string]string, len(builtins))
	for id, file := range builtins {
		files[id] = file
	}
	return &Registry{dir: opts.Dir, files: files, logger: opts.Logger}
}

// Register adds or replaces a persona mapping. Intended for setup time, before
// the registry is shared.
func (r *Registry) Register(id, filename string) {
	r.files[normalizeID(id)] = filename
}

// Available returns metadata for every registered persona, sorted by ID.
func (r *Registry) Available() []Info {
	ids := make([]string, 0, len(r.files))
	for id := range r.files {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		file := r.files[id]
		_, err := os.Stat(filepath.Join(r.dir, file))
		infos = append(infos, Info{
			ID:     id,
			Name:   displayName(id),
			File:   file,
			Exists: err == nil,
		})
	}
	return infos
}

// Load reads the instruction text for a persona. Unknown IDs and missing
// files are errors.
func (r *Registry) Load(id string) (string, error) {
	id = normalizeID(id)
	file, ok := r.files[id]
	if !ok {
		ids := make([]string, 0, len(r.files))
		for known := range r.files {
			ids = append(ids, known)
		}
		sort.Strings(ids)
		return "", fmt.Errorf("unknown persona %q (available: %s)", id, strings.Join(ids, ", "))
	}

	path := filepath.Join(r.dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona file %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// GetOrCustom resolves the effective system override for a request. A persona
// ID takes priority over the inline custom instruction; a persona that fails
// to load is logged and falls back to the custom instruction rather than
// failing the request.
func (r *Registry) GetOrCustom(personaID, custom string) string {
	if personaID != "" {
		text, err := r.Load(personaID)
		if err != nil {
			r.logger.Warn("persona load failed, falling back", "persona", personaID, "error", err.Error())
			return custom
		}
		return text
	}
	return custom
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func displayName(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
