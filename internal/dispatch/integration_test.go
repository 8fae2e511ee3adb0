package dispatch_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjetlab/zjetrun/internal/dispatch"
	"github.com/zjetlab/zjetrun/internal/ledger"
	"github.com/zjetlab/zjetrun/internal/state"
	"github.com/zjetlab/zjetrun/internal/storage"
	"github.com/zjetlab/zjetrun/internal/tool"
)

// writeStubTool writes a shell script that appends its argv to argvLog, one
// invocation per line, and exits 0.
func writeStubTool(t *testing.T, dir, argvLog string) string {
	t.Helper()
	script := filepath.Join(dir, "lumberjack.py")
	body := "#!/bin/sh\necho \"$@\" >> \"" + argvLog + "\"\nexit 0\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub tool: %v", err)
	}
	return script
}

// TestDispatchExecutesRealProcesses drives a whole dispatch through the
// os/exec runner against a stub tool and checks the recorded outcome
// end to end.
func TestDispatchExecutesRealProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub tool is a shell script")
	}

	dir := t.TempDir()
	argvLog := filepath.Join(dir, "argv.log")
	script := writeStubTool(t, dir, argvLog)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := tool.NewRegistry()
	require.NoError(t, registry.Add(&tool.Tool{Name: "lumberjack", Entrypoint: script, Jobs: 4}))

	led := ledger.New(db)
	st := state.NewStore(db)
	disp := dispatch.New(led, registry, st, testConfig())

	summary, err := disp.Dispatch(ctx, dispatch.Options{
		Sample:      "Run2016",
		Passthrough: []string{"--max-events", "1000"},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, summary.Status)
	assert.Equal(t, 6, summary.Planned)
	assert.Equal(t, 6, summary.Succeeded)

	data, err := os.ReadFile(argvLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 6)

	// Matrix order: data levels for both channels first, then mc.
	wantSuffixes := []string{
		"Zmm_Run2016_L1L2L3",
		"Zmm_Run2016_L1L2Res",
		"Zee_Run2016_L1L2L3",
		"Zee_Run2016_L1L2Res",
		"Zmm_Run2016_L1L2L3",
		"Zee_Run2016_L1L2L3",
	}
	for i, line := range lines {
		assert.True(t, strings.HasSuffix(line, "--output-file-suffix "+wantSuffixes[i]),
			"line %d = %q", i, line)
		assert.Contains(t, line, "--max-events 1000")
		assert.Contains(t, line, "-a zjet")
	}

	// Every invocation landed terminal in the ledger.
	invs, err := led.Invocations(ctx, summary.RunID)
	require.NoError(t, err)
	require.Len(t, invs, 6)
	for _, inv := range invs {
		assert.Equal(t, ledger.StatusSucceeded, inv.Status)
		require.NotNil(t, inv.ExitCode)
		assert.Equal(t, 0, *inv.ExitCode)
	}
}

// TestDispatchRecordsRealFailure checks a nonzero tool exit is captured with
// its stderr through the real runner.
func TestDispatchRecordsRealFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub tool is a shell script")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "lumberjack.py")
	body := "#!/bin/sh\necho 'fit did not converge' >&2\nexit 3\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := tool.NewRegistry()
	require.NoError(t, registry.Add(&tool.Tool{Name: "lumberjack", Entrypoint: script, Jobs: 4}))

	cfg := testConfig()
	cfg.Service.OnError = "halt"

	led := ledger.New(db)
	disp := dispatch.New(led, registry, state.NewStore(db), cfg)

	summary, err := disp.Dispatch(ctx, dispatch.Options{Sample: "Run2016"})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, summary.Status)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 5, summary.Skipped)

	invs, err := led.Invocations(ctx, summary.RunID)
	require.NoError(t, err)
	require.NotEmpty(t, invs)
	first := invs[0]
	assert.Equal(t, ledger.StatusFailed, first.Status)
	require.NotNil(t, first.ExitCode)
	assert.Equal(t, 3, *first.ExitCode)
	require.NotNil(t, first.Stderr)
	assert.Contains(t, *first.Stderr, "fit did not converge")
}
