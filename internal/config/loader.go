package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file or a directory containing
// config.yaml. Environment references of the form ${VAR} are interpolated
// before parsing; defaults are merged; the result is validated; and if a
// .checksums file is present next to the config it is verified.
func Load(configPath string) (*Config, error) {
	absPath, err := resolveConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	for name, tc := range cfg.Tools {
		cfg.Tools[name] = mergeToolDefaults(tc)
	}

	return &cfg, nil
}

// DiscoverConfigPath finds the configuration by checking standard locations.
// Priority order: $ZJETRUN_CONFIG, ~/.config/zjetrun, /etc/zjetrun, ./config.yaml.
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("ZJETRUN_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userDir := filepath.Join(homeDir, ".config", "zjetrun")
		if _, err := os.Stat(userDir); err == nil {
			return userDir, nil
		}
	}

	systemDir := "/etc/zjetrun"
	if _, err := os.Stat(systemDir); err == nil {
		return systemDir, nil
	}

	local := "./config.yaml"
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	return "", fmt.Errorf("no config found (checked: $ZJETRUN_CONFIG, ~/.config/zjetrun, /etc/zjetrun, ./config.yaml)")
}

// resolveConfigFile resolves configPath to the absolute path of a config file,
// accepting either a file or a directory containing config.yaml.
func resolveConfigFile(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// verifyConfigHash checks the config file against the .checksums file in its
// directory. A missing .checksums means locking is not in use; skip silently.
func verifyConfigHash(absPath string) error {
	dir := filepath.Dir(absPath)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		return nil
	}

	basename := filepath.Base(absPath)
	expected, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: zjetrun config lock --config %s", basename, dir, absPath)
	}

	if err := VerifyFileHash(absPath, expected); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: zjetrun config lock --config %s", absPath, err, absPath)
	}
	return nil
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.OnError == "" {
		cfg.Service.OnError = defaults.Service.OnError
	}

	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = defaults.Ledger.Path
	}

	if !cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API = defaults.API
	}

	if cfg.Tools == nil {
		cfg.Tools = make(map[string]ToolConf)
	}
	if cfg.Samples == nil {
		cfg.Samples = make(map[string]SampleConf)
	}

	if len(cfg.Channels) == 0 {
		cfg.Channels = defaults.Channels
	}

	if cfg.CorrectionLevels == nil {
		cfg.CorrectionLevels = make(map[InputType]LevelList)
	}
	for it, levels := range defaults.CorrectionLevels {
		if _, ok := cfg.CorrectionLevels[it]; !ok {
			cfg.CorrectionLevels[it] = levels
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.Service.OnError != "halt" && cfg.Service.OnError != "continue" {
		return fmt.Errorf("service.on_error must be \"halt\" or \"continue\" (got %q)", cfg.Service.OnError)
	}

	if cfg.Service.Timeout < 0 {
		return fmt.Errorf("service.timeout must not be negative")
	}

	if cfg.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}

	if len(cfg.Channels) == 0 {
		return fmt.Errorf("channels must be non-empty")
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when API is enabled")
		}
		if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
			matches := envVarPattern.FindStringSubmatch(cfg.API.Auth.APIKey)
			if len(matches) > 1 {
				return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", matches[1])
			}
			return fmt.Errorf("api.auth.api_key: unresolved environment variable")
		}
	}

	for name, tc := range cfg.Tools {
		if tc.Entrypoint == "" {
			return fmt.Errorf("tool %q: entrypoint is required", name)
		}
		if tc.Jobs < 0 {
			return fmt.Errorf("tool %q: jobs must not be negative", name)
		}
	}

	for it, levels := range cfg.CorrectionLevels {
		if !it.Valid() {
			return fmt.Errorf("correction_levels: unknown input type %q (expected data or mc)", it)
		}
		for i, lv := range levels {
			if lv.Name == "" {
				return fmt.Errorf("correction_levels.%s[%d]: level name is empty", it, i)
			}
		}
	}

	for name, sc := range cfg.Samples {
		if sc.Analysis == "" {
			return fmt.Errorf("sample %q: analysis is required", name)
		}
		if sc.Tool == "" {
			return fmt.Errorf("sample %q: tool is required", name)
		}
		if _, ok := cfg.Tools[sc.Tool]; !ok {
			return fmt.Errorf("sample %q: references unknown tool %q", name, sc.Tool)
		}
		if sc.Tree == "" {
			return fmt.Errorf("sample %q: tree is required", name)
		}
		if len(sc.Inputs) == 0 {
			return fmt.Errorf("sample %q: at least one input (data or mc) is required", name)
		}
		for it, path := range sc.Inputs {
			if !it.Valid() {
				return fmt.Errorf("sample %q: unknown input type %q (expected data or mc)", name, it)
			}
			if path == "" {
				return fmt.Errorf("sample %q: input path for %s is empty", name, it)
			}
			if envVarPattern.MatchString(path) {
				matches := envVarPattern.FindStringSubmatch(path)
				if len(matches) > 1 {
					return fmt.Errorf("sample %q: environment variable ${%s} is not set", name, matches[1])
				}
				return fmt.Errorf("sample %q: unresolved environment variable in inputs.%s", name, it)
			}
		}
		if len(sc.Tasks) == 0 {
			return fmt.Errorf("sample %q: at least one task is required", name)
		}
	}

	return nil
}

// mergeToolDefaults applies default values to tool config where not specified.
func mergeToolDefaults(tc ToolConf) ToolConf {
	defaults := DefaultToolConf()
	if tc.Jobs == 0 {
		tc.Jobs = defaults.Jobs
	}
	return tc
}
