// Package tool resolves and validates the external processing tools
// (lumberjack, pp, ...) declared in configuration.
package tool

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/zjetlab/zjetrun/internal/config"
)

// Tool is a resolved external tool: its configured name plus the absolute
// path of its entrypoint.
type Tool struct {
	Name       string
	Entrypoint string
	Jobs       int
}

// Registry holds resolved tools indexed by name.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns all registered tools.
func (r *Registry) All() map[string]*Tool {
	return r.tools
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Add registers a tool in the registry.
func (r *Registry) Add(t *Tool) error {
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Resolve builds a registry from the configured tools. Entrypoints given as
// bare names are resolved through $PATH (the analysis runtime environment is
// expected to provide them); paths are resolved to absolute and checked for
// the executable bit.
func Resolve(cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()
	for name, tc := range cfg.Tools {
		entrypoint, err := resolveEntrypoint(tc.Entrypoint)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		if err := registry.Add(&Tool{Name: name, Entrypoint: entrypoint, Jobs: tc.Jobs}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func resolveEntrypoint(entrypoint string) (string, error) {
	if entrypoint == "" {
		return "", fmt.Errorf("entrypoint is empty")
	}

	// Bare command name: defer to $PATH.
	if filepath.Base(entrypoint) == entrypoint {
		resolved, err := exec.LookPath(entrypoint)
		if err != nil {
			return "", fmt.Errorf("entrypoint %q not found in PATH (is the analysis runtime environment active?): %w", entrypoint, err)
		}
		return resolved, nil
	}

	abs, err := filepath.Abs(entrypoint)
	if err != nil {
		return "", fmt.Errorf("failed to resolve entrypoint %q: %w", entrypoint, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("entrypoint does not exist: %s", abs)
		}
		return "", fmt.Errorf("failed to stat entrypoint %s: %w", abs, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("entrypoint is a directory: %s", abs)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("entrypoint is not executable: %s", abs)
	}
	return abs, nil
}
