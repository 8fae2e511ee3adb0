package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// InputType distinguishes real-data ntuples from Monte Carlo ntuples.
// The correction-level list dispatched for a sample depends on it.
type InputType string

const (
	InputData InputType = "data"
	InputMC   InputType = "mc"
)

// Valid reports whether t is one of the two known input types.
func (t InputType) Valid() bool {
	return t == InputData || t == InputMC
}

// Config represents the complete zjetrun configuration.
type Config struct {
	Service          ServiceConfig           `yaml:"service"`
	Ledger           LedgerConfig            `yaml:"ledger"`
	Runtime          RuntimeConfig           `yaml:"runtime"`
	API              APIConfig               `yaml:"api,omitempty"`
	Tools            map[string]ToolConf     `yaml:"tools"`
	Samples          map[string]SampleConf   `yaml:"samples"`
	Channels         []string                `yaml:"channels,omitempty"`
	CorrectionLevels map[InputType]LevelList `yaml:"correction_levels,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
	// OnError decides whether dispatch halts or continues when an
	// invocation exits non-zero. One of "halt", "continue".
	OnError string `yaml:"on_error"`
	// Timeout bounds a single tool invocation. Zero disables enforcement.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LedgerConfig defines run-ledger storage settings.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// RuntimeConfig declares the analysis runtime environment that must be
// active before dispatch. Checked by `env check` and again at dispatch time.
type RuntimeConfig struct {
	RequireEnv  []string `yaml:"require_env,omitempty"`
	RequireExec []string `yaml:"require_exec,omitempty"`
}

// APIConfig defines the optional read-only status API.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// ToolConf describes one external processing tool and the fixed flags
// forwarded on every invocation.
type ToolConf struct {
	Entrypoint string `yaml:"entrypoint"`
	// Jobs is forwarded as -j<N>; it configures the tool's internal
	// parallelism and is opaque to the dispatcher.
	Jobs int `yaml:"jobs,omitempty"`
	// --log and --progress are forwarded on every invocation unless
	// explicitly switched off.
	NoLog      bool `yaml:"no_log,omitempty"`
	NoProgress bool `yaml:"no_progress,omitempty"`
	DumpYAML   bool `yaml:"dump_yaml,omitempty"`
}

// SampleConf describes one ntuple sample and the task names dispatched for it.
type SampleConf struct {
	Analysis  string               `yaml:"analysis"`
	Tool      string               `yaml:"tool"`
	Tree      string               `yaml:"tree"`
	IOV       string               `yaml:"iov,omitempty"`
	Inputs    map[InputType]string `yaml:"inputs"`
	Tasks     []string             `yaml:"tasks"`
	Selection []string             `yaml:"selection,omitempty"`
}

// Level is one correction-level entry. Disabled levels stay visible in the
// resolved config but never produce an invocation.
type Level struct {
	Name    string `yaml:"level"`
	Enabled bool   `yaml:"enabled"`
}

// LevelList is an ordered list of correction levels.
//
// Accepted YAML forms:
//   - scalar entries:  [L1L2L3, L1L2Res]
//   - object entries:  [{level: L1L2L3Res, enabled: false}]
type LevelList []Level

func (l *LevelList) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*l = nil
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("correction levels must be a sequence")
	}

	out := make([]Level, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, Level{Name: strings.TrimSpace(item.Value), Enabled: true})
		case yaml.MappingNode:
			tmp := struct {
				Level   string `yaml:"level"`
				Enabled *bool  `yaml:"enabled"`
			}{}
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid correction level entry: %w", err)
			}
			lv := Level{Name: strings.TrimSpace(tmp.Level), Enabled: true}
			if tmp.Enabled != nil {
				lv.Enabled = *tmp.Enabled
			}
			out = append(out, lv)
		default:
			return fmt.Errorf("invalid correction level entry (must be string or object)")
		}
	}

	*l = out
	return nil
}

// EnabledNames returns the enabled level names, preserving list order.
func (l LevelList) EnabledNames() []string {
	var out []string
	for _, lv := range l {
		if lv.Enabled {
			out = append(out, lv.Name)
		}
	}
	return out
}

// Defaults returns a Config with the stock dispatch matrix.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "zjetrun",
			LogLevel: "info",
			OnError:  "halt",
		},
		Ledger: LedgerConfig{
			Path: "./data/ledger.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Tools:    make(map[string]ToolConf),
		Samples:  make(map[string]SampleConf),
		Channels: []string{"mm", "ee"},
		CorrectionLevels: map[InputType]LevelList{
			InputData: {
				{Name: "L1L2L3", Enabled: true},
				{Name: "L1L2Res", Enabled: true},
				// Residual-on-residual stage, kept off in production.
				{Name: "L1L2L3Res", Enabled: false},
			},
			InputMC: {
				{Name: "L1L2L3", Enabled: true},
			},
		},
	}
}

// DefaultToolConf returns default tool settings.
func DefaultToolConf() ToolConf {
	return ToolConf{
		Jobs: 4,
	}
}
