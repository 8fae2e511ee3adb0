package tool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zjetlab/zjetrun/internal/config"
)

func writeScript(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRegistryAddAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Add(&Tool{Name: "lumberjack", Entrypoint: "/opt/analysis/bin/lumberjack.py", Jobs: 4}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(&Tool{Name: "pp", Entrypoint: "/opt/analysis/bin/pp.py"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, ok := r.Get("lumberjack")
	if !ok {
		t.Fatalf("expected lumberjack to be registered")
	}
	if got.Jobs != 4 {
		t.Fatalf("Jobs = %d, want 4", got.Jobs)
	}
	if _, ok := r.Get("npcorr"); ok {
		t.Fatalf("expected npcorr to be absent")
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "lumberjack" || names[1] != "pp" {
		t.Fatalf("Names = %v, want [lumberjack pp]", names)
	}
}

func TestRegistryAddDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Add(&Tool{Name: "pp"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(&Tool{Name: "pp"}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestResolvePathEntrypoint(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "lumberjack.py", 0o755)

	cfg := config.Defaults()
	cfg.Tools["lumberjack"] = config.ToolConf{Entrypoint: path, Jobs: 4}

	r, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, ok := r.Get("lumberjack")
	if !ok {
		t.Fatalf("tool not registered after Resolve")
	}
	if got.Entrypoint != path {
		t.Fatalf("Entrypoint = %q, want %q", got.Entrypoint, path)
	}
}

func TestResolveNonExecutableEntrypoint(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "pp.py", 0o644)

	cfg := config.Defaults()
	cfg.Tools["pp"] = config.ToolConf{Entrypoint: path}

	_, err := Resolve(cfg)
	if err == nil || !strings.Contains(err.Error(), "not executable") {
		t.Fatalf("expected not-executable error, got %v", err)
	}
}

func TestResolveMissingEntrypoint(t *testing.T) {
	cfg := config.Defaults()
	cfg.Tools["pp"] = config.ToolConf{Entrypoint: filepath.Join(t.TempDir(), "pp.py")}

	_, err := Resolve(cfg)
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected does-not-exist error, got %v", err)
	}
}

func TestResolveBareNameNotInPATH(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	cfg := config.Defaults()
	cfg.Tools["lumberjack"] = config.ToolConf{Entrypoint: "zjr-definitely-missing"}

	_, err := Resolve(cfg)
	if err == nil || !strings.Contains(err.Error(), "analysis runtime environment") {
		t.Fatalf("expected PATH resolution error, got %v", err)
	}
}

func TestResolveEmptyEntrypoint(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Tools["broken"] = config.ToolConf{Entrypoint: ""}

	if _, err := Resolve(cfg); err == nil {
		t.Fatalf("expected error for empty entrypoint")
	}
}
