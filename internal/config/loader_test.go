package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const fullConfigYAML = `
service:
  name: zjetrun
  log_level: debug
  on_error: continue
  timeout: 2h

ledger:
  path: /tmp/zjetrun/ledger.db

runtime:
  require_env: [ANALYSIS_BASE]
  require_exec: [python3]

tools:
  lumberjack:
    entrypoint: lumberjack.py
  pp:
    entrypoint: pp.py
    jobs: 8
    no_progress: true

samples:
  Run2016:
    analysis: zjet
    tool: lumberjack
    tree: Events
    iov: 2016
    inputs:
      data: /store/data/Run2016.root
      mc: /store/mc/DYJets.root
    tasks: [CreateHistograms]
    selection: [zpt, alpha]

channels: [mm, ee]

correction_levels:
  data:
    - L1L2L3
    - L1L2Res
    - level: L1L2L3Res
      enabled: false
  mc:
    - L1L2L3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, fullConfigYAML)

	cfg, err := Load(path)
	assert.NoError(t, err)

	assert.Equal(t, "zjetrun", cfg.Service.Name)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "continue", cfg.Service.OnError)
	assert.Equal(t, 2*time.Hour, cfg.Service.Timeout)
	assert.Equal(t, "/tmp/zjetrun/ledger.db", cfg.Ledger.Path)
	assert.Equal(t, []string{"ANALYSIS_BASE"}, cfg.Runtime.RequireEnv)

	// Unset jobs falls back to the default.
	assert.Equal(t, 4, cfg.Tools["lumberjack"].Jobs)
	assert.Equal(t, 8, cfg.Tools["pp"].Jobs)
	assert.True(t, cfg.Tools["pp"].NoProgress)

	sample := cfg.Samples["Run2016"]
	assert.Equal(t, "zjet", sample.Analysis)
	assert.Equal(t, "/store/data/Run2016.root", sample.Inputs[InputData])
	assert.Equal(t, "/store/mc/DYJets.root", sample.Inputs[InputMC])

	assert.Equal(t, []string{"L1L2L3", "L1L2Res"}, cfg.CorrectionLevels[InputData].EnabledNames())
	assert.Equal(t, []string{"L1L2L3"}, cfg.CorrectionLevels[InputMC].EnabledNames())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "service:\n  name: test\n")

	cfg, err := Load(path)
	assert.NoError(t, err)

	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, "halt", cfg.Service.OnError)
	assert.Equal(t, []string{"mm", "ee"}, cfg.Channels)
	assert.Equal(t, []string{"L1L2L3", "L1L2Res"}, cfg.CorrectionLevels[InputData].EnabledNames())
	assert.Equal(t, []string{"L1L2L3"}, cfg.CorrectionLevels[InputMC].EnabledNames())
	assert.False(t, cfg.API.Enabled)
}

func TestLoadFromDirectory(t *testing.T) {
	path := writeConfig(t, fullConfigYAML)

	cfg, err := Load(filepath.Dir(path))
	assert.NoError(t, err)
	assert.Equal(t, "zjetrun", cfg.Service.Name)
}

func TestLoadInterpolatesEnv(t *testing.T) {
	t.Setenv("ZJR_TEST_INPUT", "/store/data/fromenv.root")

	path := writeConfig(t, `
tools:
  lumberjack:
    entrypoint: lumberjack.py
samples:
  Run2016:
    analysis: zjet
    tool: lumberjack
    tree: Events
    inputs:
      data: ${ZJR_TEST_INPUT}
    tasks: [CreateHistograms]
`)

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "/store/data/fromenv.root", cfg.Samples["Run2016"].Inputs[InputData])
}

func TestLoadRejectsUnsetEnvInSampleInput(t *testing.T) {
	path := writeConfig(t, `
tools:
  lumberjack:
    entrypoint: lumberjack.py
samples:
  Run2016:
    analysis: zjet
    tool: lumberjack
    tree: Events
    inputs:
      data: ${ZJR_DEFINITELY_UNSET_VAR}
    tasks: [CreateHistograms]
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ZJR_DEFINITELY_UNSET_VAR")
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad on_error",
			yaml:    "service:\n  on_error: retry\n",
			wantErr: "on_error",
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "log_level",
		},
		{
			name: "sample references unknown tool",
			yaml: `
samples:
  Run2016:
    analysis: zjet
    tool: missing
    tree: Events
    inputs:
      data: /a.root
    tasks: [CreateHistograms]
`,
			wantErr: "unknown tool",
		},
		{
			name: "sample without tasks",
			yaml: `
tools:
  lumberjack:
    entrypoint: lumberjack.py
samples:
  Run2016:
    analysis: zjet
    tool: lumberjack
    tree: Events
    inputs:
      data: /a.root
`,
			wantErr: "task",
		},
		{
			name: "tool without entrypoint",
			yaml: `
tools:
  lumberjack:
    jobs: 4
`,
			wantErr: "entrypoint",
		},
		{
			name: "unknown input type",
			yaml: `
tools:
  lumberjack:
    entrypoint: lumberjack.py
samples:
  Run2016:
    analysis: zjet
    tool: lumberjack
    tree: Events
    inputs:
      embedded: /a.root
    tasks: [CreateHistograms]
`,
			wantErr: "input type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLevelListRejectsNonSequence(t *testing.T) {
	path := writeConfig(t, "correction_levels:\n  data: L1L2L3\n")
	_, err := Load(path)
	assert.Error(t, err)
}
