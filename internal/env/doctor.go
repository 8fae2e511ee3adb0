// Package env validates that the analysis runtime environment required for
// dispatch is actually active: required environment variables, resolvable
// tool entrypoints, and readable sample inputs.
package env

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/zjetlab/zjetrun/internal/config"
)

func defaultLookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates the runtime environment against a loaded config.
type Doctor struct {
	cfg *config.Config
	// lookPath is swappable in tests.
	lookPath func(file string) (string, error)
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, lookPath: defaultLookPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.checkRequiredEnv(r)
	d.checkRequiredExec(r)
	d.checkTools(r)
	d.checkSampleInputs(r)
	d.checkAPIConfig(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// checkRequiredEnv verifies the environment variables the analysis stack
// setup script is expected to export. Their absence means the stack was not
// sourced, which is a fatal precondition for dispatch.
func (d *Doctor) checkRequiredEnv(r *Result) {
	for _, name := range d.cfg.Runtime.RequireEnv {
		if os.Getenv(name) == "" {
			d.addError(r, "runtime", fmt.Sprintf("runtime.require_env.%s", name),
				fmt.Sprintf("environment variable %s is not set (analysis runtime environment not active?)", name))
		}
	}
}

// checkRequiredExec verifies auxiliary executables the stack must provide.
func (d *Doctor) checkRequiredExec(r *Result) {
	for _, name := range d.cfg.Runtime.RequireExec {
		if _, err := d.lookPath(name); err != nil {
			d.addError(r, "runtime", fmt.Sprintf("runtime.require_exec.%s", name),
				fmt.Sprintf("executable %q not found in PATH", name))
		}
	}
}

// checkTools verifies every configured tool entrypoint resolves.
func (d *Doctor) checkTools(r *Result) {
	names := make([]string, 0, len(d.cfg.Tools))
	for name := range d.cfg.Tools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := d.cfg.Tools[name]
		field := fmt.Sprintf("tools.%s.entrypoint", name)
		if strings.ContainsRune(tc.Entrypoint, os.PathSeparator) {
			info, err := os.Stat(tc.Entrypoint)
			if err != nil {
				d.addError(r, "tools", field,
					fmt.Sprintf("entrypoint %q not found", tc.Entrypoint))
				continue
			}
			if info.Mode().Perm()&0o111 == 0 {
				d.addError(r, "tools", field,
					fmt.Sprintf("entrypoint %q is not executable", tc.Entrypoint))
			}
			continue
		}
		if _, err := d.lookPath(tc.Entrypoint); err != nil {
			d.addError(r, "tools", field,
				fmt.Sprintf("entrypoint %q not found in PATH", tc.Entrypoint))
		}
	}
}

// checkSampleInputs warns about missing ntuple files. A warning rather than
// an error: inputs may live on storage that is mounted later.
func (d *Doctor) checkSampleInputs(r *Result) {
	names := make([]string, 0, len(d.cfg.Samples))
	for name := range d.cfg.Samples {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := d.cfg.Samples[name]
		for it, path := range sc.Inputs {
			if _, err := os.Stat(path); err != nil {
				d.addWarning(r, "samples", fmt.Sprintf("samples.%s.inputs.%s", name, it),
					fmt.Sprintf("input file not found: %s", path))
			}
		}
	}
}

// checkAPIConfig checks status API settings.
func (d *Doctor) checkAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Runtime environment ready.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Runtime environment ready")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Runtime environment not ready (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
