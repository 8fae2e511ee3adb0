package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zjetlab/zjetrun/internal/api"
	"github.com/zjetlab/zjetrun/internal/config"
	"github.com/zjetlab/zjetrun/internal/dispatch"
	"github.com/zjetlab/zjetrun/internal/env"
	"github.com/zjetlab/zjetrun/internal/inspect"
	"github.com/zjetlab/zjetrun/internal/ledger"
	"github.com/zjetlab/zjetrun/internal/lock"
	"github.com/zjetlab/zjetrun/internal/log"
	"github.com/zjetlab/zjetrun/internal/matrix"
	"github.com/zjetlab/zjetrun/internal/state"
	"github.com/zjetlab/zjetrun/internal/storage"
	"github.com/zjetlab/zjetrun/internal/tool"
	"github.com/zjetlab/zjetrun/internal/tui/watch"
	"gopkg.in/yaml.v3"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	// --- NOUNS ---
	case "run":
		return runRunNoun(args)
	case "config":
		return runConfigNoun(args)
	case "env":
		return runEnvNoun(args)

	// --- ROOT ALIASES ---
	case "dispatch":
		return runDispatch(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

// --- NOUN DISPATCHERS ---

func runRunNoun(args []string) int {
	if len(args) < 1 {
		printRunNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printRunNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "dispatch":
		if hasHelpFlag(actionArgs) {
			printRunDispatchHelp()
			return 0
		}
		return runDispatch(actionArgs)
	case "list":
		if hasHelpFlag(actionArgs) {
			printRunListHelp()
			return 0
		}
		return runRunList(actionArgs)
	case "inspect":
		if hasHelpFlag(actionArgs) {
			printRunInspectHelp()
			return 0
		}
		return runRunInspect(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printRunWatchHelp()
			return 0
		}
		return runRunWatch(actionArgs)
	case "help":
		printRunNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown run action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	case "get":
		if hasHelpFlag(actionArgs) {
			printConfigGetHelp()
			return 0
		}
		return runConfigGet(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runEnvNoun(args []string) int {
	if len(args) < 1 {
		printEnvNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printEnvNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printEnvCheckHelp()
			return 0
		}
		return runEnvCheck(actionArgs)
	case "help":
		printEnvNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown env action: %s\n", action)
		return 1
	}
}

// --- ACTION IMPLEMENTATIONS ---

func runDispatch(args []string) int {
	args, passthrough := splitPassthrough(args)

	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	sample := fs.String("sample", "", "Sample name from config to dispatch")
	inputType := fs.String("input-type", "", "Restrict to one input type: data or mc (default: both)")
	toolOverride := fs.String("tool", "", "Override the sample's processing tool")
	dryRun := fs.Bool("dry-run", false, "Print planned invocations without executing")
	skipDone := fs.Bool("skip-done", false, "Skip combinations already recorded as done")
	timeout := fs.Duration("timeout", 0, "Per-invocation timeout override (0 uses config)")
	submittedBy := fs.String("submitted-by", "cli", "Recorded as the run's submitter")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *sample == "" {
		fmt.Fprintln(os.Stderr, "Usage: zjetrun run dispatch --sample NAME [flags] [-- TOOL_ARGS...]")
		return 1
	}

	cfg, err := loadConfigFromFlag(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	var inputTypes []config.InputType
	if *inputType != "" {
		it := config.InputType(*inputType)
		if !it.Valid() {
			fmt.Fprintf(os.Stderr, "Invalid --input-type %q (expected data or mc)\n", *inputType)
			return 1
		}
		inputTypes = []config.InputType{it}
	}

	if *toolOverride != "" {
		if _, ok := cfg.Tools[*toolOverride]; !ok {
			fmt.Fprintf(os.Stderr, "Unknown tool: %s\n", *toolOverride)
			return 1
		}
		sc, ok := cfg.Samples[*sample]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown sample: %s\n", *sample)
			return 1
		}
		sc.Tool = *toolOverride
		cfg.Samples[*sample] = sc
	}

	if *timeout > 0 {
		cfg.Service.Timeout = *timeout
	}

	if *dryRun {
		return printDryRun(cfg, *sample, inputTypes, passthrough)
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("zjetrun starting", "version", version, "sample", *sample)

	doc := env.New(cfg).Validate()
	if !doc.Valid {
		fmt.Fprint(os.Stderr, env.FormatHuman(doc))
		return 1
	}

	pidLockPath := filepath.Join(filepath.Dir(cfg.Ledger.Path), "zjetrun.pid")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another dispatch may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.Ledger.Path)
	if err != nil {
		logger.Error("failed to open ledger", "path", cfg.Ledger.Path, "error", err)
		return 1
	}
	defer db.Close()

	registry, err := tool.Resolve(cfg)
	if err != nil {
		logger.Error("tool resolution failed", "error", err)
		return 1
	}

	led := ledger.New(db)
	st := state.NewStore(db)
	disp := dispatch.New(led, registry, st, cfg)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
		}, led, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("api server failed", "error", err)
			}
		}()
	}

	summary, err := disp.Dispatch(ctx, dispatch.Options{
		Sample:      *sample,
		InputTypes:  inputTypes,
		Passthrough: passthrough,
		SkipDone:    *skipDone,
		SubmittedBy: *submittedBy,
	})
	if err != nil {
		logger.Error("dispatch failed", "error", err)
		return 1
	}

	printSummary(summary)
	if summary.Status != ledger.StatusSucceeded {
		return 1
	}
	return 0
}

func printDryRun(cfg *config.Config, sample string, inputTypes []config.InputType, passthrough []string) int {
	invs, err := matrix.Build(cfg, sample, inputTypes, passthrough)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to plan invocations: %v\n", err)
		return 1
	}

	fmt.Printf("Planned invocations for sample %q (%d):\n", sample, len(invs))
	for i, inv := range invs {
		entrypoint := inv.Tool
		if tc, ok := cfg.Tools[inv.Tool]; ok {
			entrypoint = tc.Entrypoint
		}
		fmt.Printf("[%d] %s\n", i+1, inv.Suffix)
		fmt.Printf("    %s %s\n", entrypoint, strings.Join(inv.Argv(), " "))
	}
	return 0
}

func printSummary(s *dispatch.Summary) {
	fmt.Printf("Run %s: %s\n", s.RunID, s.Status)
	fmt.Printf("  planned: %d  succeeded: %d  failed: %d  timed_out: %d  skipped: %d\n",
		s.Planned, s.Succeeded, s.Failed, s.TimedOut, s.Skipped)
}

func runRunList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigFromFlag(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.Ledger.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		return 1
	}
	defer db.Close()

	runs, err := ledger.New(db).Runs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list runs: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return 0
	}
	fmt.Printf("%-36s  %-12s  %-20s  %-10s  %s\n", "RUN", "STATUS", "SAMPLE", "TOOL", "CREATED")
	for _, r := range runs {
		fmt.Printf("%-36s  %-12s  %-20s  %-10s  %s\n",
			r.ID, r.Status, r.Sample, r.Tool, r.CreatedAt.Format(time.RFC3339))
	}
	return 0
}

func runRunInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: zjetrun run inspect <run_id> [--config PATH] [--json]")
		return 1
	}
	runID := fs.Arg(0)

	cfg, err := loadConfigFromFlag(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.Ledger.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		return 1
	}
	defer db.Close()

	led := ledger.New(db)
	var report string
	if *jsonOut {
		report, err = inspect.BuildJSONReport(ctx, led, runID)
	} else {
		report, err = inspect.BuildReport(ctx, led, runID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		return 1
	}
	fmt.Print(report)
	return 0
}

func runRunWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	runID := fs.String("run", "", "Pin the view to one run ID (default: follow latest)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigFromFlag(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	db, err := storage.OpenSQLite(context.Background(), cfg.Ledger.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		return 1
	}
	defer db.Close()

	m := watch.New(ledger.New(db), *runID)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	resolved := *configPath
	if resolved == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		resolved = discovered
	}

	if _, err := config.Load(resolved); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %v\n", err)
		return 1
	}
	fmt.Println("Configuration check PASSED.")
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dryRun := fs.Bool("dry-run", false, "Compute hashes without writing the checksums file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	resolved := *configPath
	if resolved == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		resolved = discovered
	}

	report, err := config.GenerateChecksums(resolved, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}

	for name, hash := range report.Hashes {
		fmt.Printf("%s  %s\n", hash, name)
	}
	if report.Written {
		fmt.Printf("Checksums written: %s\n", report.ChecksumPath)
	} else {
		fmt.Println("Dry-run: checksums not written.")
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigFromFlag(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(cfg)
		fmt.Print(string(data))
	}
	return 0
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: zjetrun config get <path> [--config PATH] [--json]")
		return 1
	}
	path := fs.Arg(0)

	cfg, err := loadConfigFromFlag(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	val, err := configValueAtPath(cfg, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(val, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("%v\n", val)
	}
	return 0
}

func runEnvCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigFromFlag(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := env.New(cfg).Validate()

	if *jsonOut {
		out, err := env.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(env.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: zjetrun version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("zjetrun %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		if len(resolvedCommit) > 12 {
			resolvedCommit = resolvedCommit[:12]
		}
		info.Commit = resolvedCommit
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, resolvedBuildTime); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// --- HELPERS ---

// splitPassthrough separates CLI flags from tool passthrough args at the
// first bare "--". Everything after it is forwarded verbatim.
func splitPassthrough(args []string) (own, passthrough []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func loadConfigFromFlag(configPath string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = discovered
	}
	return config.Load(configPath)
}

// configValueAtPath reads a single value from the resolved config by a
// dotted path, e.g. "service.on_error" or "tools.lumberjack.jobs".
func configValueAtPath(cfg *config.Config, path string) (any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rendered config: %w", err)
	}

	var current any = doc
	for _, part := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q: %q is not a map", path, part)
		}
		current, ok = node[part]
		if !ok {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
	}
	return current, nil
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// --- HELP TEXT ---

func printUsage() {
	fmt.Print(`zjetrun - Batch dispatcher for Z+jet calibration tools

Usage:
  zjetrun <noun> <action> [flags]

Core Resources (Nouns):
  run       Dispatch batches and inspect their outcomes
  config    Configuration validation and integrity
  env       Runtime environment checks

Run Commands:
  run dispatch      Plan and execute the invocation matrix for a sample
  run list          List recorded runs
  run inspect <id>  Show a run report with per-invocation detail
  run watch         Live TUI view of the current or last run

Config Commands:
  config check      Validate syntax, policy, and integrity
  config lock       Authorize current state (update integrity hashes)
  config show       Show full resolved configuration
  config get        Read a single value from the resolved configuration

Env Commands:
  env check         Verify the analysis runtime environment is ready

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

Use 'zjetrun <noun> help' for resource-specific flags.
`)
}

func printRunNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: zjetrun run <action> [flags]")
	fmt.Fprintln(w, "Actions: dispatch, list, inspect, watch")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: zjetrun config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show, get")
}

func printEnvNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: zjetrun env <action> [flags]")
	fmt.Fprintln(w, "Actions: check")
}

func printRunDispatchHelp() {
	fmt.Println("Usage: zjetrun run dispatch --sample NAME [flags] [-- TOOL_ARGS...]")
	fmt.Println()
	fmt.Println("Plan the channel x correction-level matrix for a sample and execute")
	fmt.Println("one tool process per combination, sequentially.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --sample NAME        Sample name from config (required)")
	fmt.Println("  --input-type TYPE    Restrict to data or mc (default: both)")
	fmt.Println("  --tool NAME          Override the sample's processing tool")
	fmt.Println("  --dry-run            Print planned invocations without executing")
	fmt.Println("  --skip-done          Skip combinations already recorded as done")
	fmt.Println("  --timeout D          Per-invocation timeout override, e.g. 2h")
	fmt.Println("  --config PATH        Path to configuration file or directory")
	fmt.Println()
	fmt.Println("Everything after a bare -- is forwarded to the tool verbatim.")
}

func printRunListHelp() {
	fmt.Println("Usage: zjetrun run list [--config PATH] [--json]")
	fmt.Println("List recorded runs, newest first.")
}

func printRunInspectHelp() {
	fmt.Println("Usage: zjetrun run inspect <run_id> [--config PATH] [--json]")
	fmt.Println("Show a full run report with per-invocation status and argv.")
}

func printRunWatchHelp() {
	fmt.Println("Usage: zjetrun run watch [--run ID] [--config PATH]")
	fmt.Println()
	fmt.Println("Live TUI view of a run, refreshed from the ledger every second.")
	fmt.Println("Follows the latest run unless --run pins one.")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Scroll invocations")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: zjetrun config check [--config PATH]")
	fmt.Println("Validate configuration syntax, policy, and integrity.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: zjetrun config lock [--config PATH] [--dry-run]")
	fmt.Println("Authorize current configuration state by regenerating integrity hashes.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: zjetrun config show [--config PATH] [--json]")
	fmt.Println("Show the full resolved configuration.")
}

func printConfigGetHelp() {
	fmt.Println("Usage: zjetrun config get <path> [--config PATH] [--json]")
	fmt.Println("Read a single value from the resolved configuration, e.g. service.on_error.")
}

func printEnvCheckHelp() {
	fmt.Println("Usage: zjetrun env check [--config PATH] [--json]")
	fmt.Println()
	fmt.Println("Verify the analysis runtime environment: required variables exported,")
	fmt.Println("tool entrypoints resolvable, sample input files present.")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  All required checks passed")
	fmt.Println("  1  One or more checks failed")
}
