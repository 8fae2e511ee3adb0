package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zjetlab/zjetrun/internal/config"
	"github.com/zjetlab/zjetrun/internal/ledger"
	"github.com/zjetlab/zjetrun/internal/log"
	"github.com/zjetlab/zjetrun/internal/matrix"
	"github.com/zjetlab/zjetrun/internal/state"
	"github.com/zjetlab/zjetrun/internal/tool"
)

// Dispatcher plans the invocation matrix for a sample and executes it
// sequentially, one external tool process per combination.
type Dispatcher struct {
	ledger *ledger.Ledger
	tools  *tool.Registry
	state  *state.Store
	cfg    *config.Config
	runner Runner
	logger *slog.Logger
}

// New creates a new Dispatcher backed by the os/exec runner.
func New(l *ledger.Ledger, tools *tool.Registry, st *state.Store, cfg *config.Config) *Dispatcher {
	return NewWithRunner(l, tools, st, cfg, NewExecRunner())
}

// NewWithRunner creates a Dispatcher with a custom Runner. Used by tests to
// avoid spawning real processes.
func NewWithRunner(l *ledger.Ledger, tools *tool.Registry, st *state.Store, cfg *config.Config, r Runner) *Dispatcher {
	return &Dispatcher{
		ledger: l,
		tools:  tools,
		state:  st,
		cfg:    cfg,
		runner: r,
		logger: log.WithComponent("dispatch"),
	}
}

// Options selects what a dispatch run covers.
type Options struct {
	Sample      string
	InputTypes  []config.InputType
	Passthrough []string
	SkipDone    bool
	SubmittedBy string
}

// Summary is the outcome of a dispatch run.
type Summary struct {
	RunID     string
	Status    ledger.Status
	Planned   int
	Succeeded int
	Failed    int
	TimedOut  int
	Skipped   int
}

// Failures returns the number of invocations that did not succeed or get skipped.
func (s *Summary) Failures() int {
	return s.Failed + s.TimedOut
}

// Dispatch builds the matrix for opts.Sample, records it as a run, and drains
// it sequentially. Invocation failures do not return an error; they are
// reflected in the summary and the run status. The on_error policy decides
// whether remaining invocations still execute after a failure.
func (d *Dispatcher) Dispatch(ctx context.Context, opts Options) (*Summary, error) {
	invs, err := matrix.Build(d.cfg, opts.Sample, opts.InputTypes, opts.Passthrough)
	if err != nil {
		return nil, err
	}

	sample := d.cfg.Samples[opts.Sample]
	t, ok := d.tools.Get(sample.Tool)
	if !ok {
		return nil, fmt.Errorf("tool %q not found in registry", sample.Tool)
	}

	if opts.SkipDone {
		invs, err = d.filterDone(ctx, sample.Analysis, invs)
		if err != nil {
			return nil, err
		}
		if len(invs) == 0 {
			d.logger.Info("all combinations already done, nothing to dispatch", "sample", opts.Sample)
			return &Summary{Status: ledger.StatusSucceeded}, nil
		}
	}

	if n, err := d.ledger.RecoverOrphans(ctx); err != nil {
		return nil, fmt.Errorf("crash recovery: %w", err)
	} else if n > 0 {
		d.logger.Warn("marked orphaned invocations as interrupted", "count", n)
	}

	submittedBy := opts.SubmittedBy
	if submittedBy == "" {
		submittedBy = "cli"
	}
	runID, err := d.ledger.CreateRun(ctx, ledger.RunSpec{
		Tool:        sample.Tool,
		Analysis:    sample.Analysis,
		Sample:      opts.Sample,
		SubmittedBy: submittedBy,
	})
	if err != nil {
		return nil, err
	}

	for _, inv := range invs {
		if _, err := d.ledger.Enqueue(ctx, runID, inv); err != nil {
			return nil, err
		}
	}

	runLogger := log.WithRun(runID).With("sample", opts.Sample, "tool", sample.Tool)
	runLogger.Info("dispatch run started", "invocations", len(invs))

	summary := &Summary{RunID: runID, Planned: len(invs)}
	halted := d.drain(ctx, runID, t, sample.Analysis, summary, runLogger)

	switch {
	case halted || summary.Failures() > 0:
		summary.Status = ledger.StatusFailed
	default:
		summary.Status = ledger.StatusSucceeded
	}
	if err := d.ledger.CompleteRun(ctx, runID, summary.Status); err != nil {
		runLogger.Error("failed to complete run", "error", err)
	}

	runLogger.Info("dispatch run finished",
		"status", summary.Status,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"timed_out", summary.TimedOut,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// drain executes queued invocations in FIFO order. Returns true when the
// halt-on-error policy stopped the run early.
func (d *Dispatcher) drain(ctx context.Context, runID string, t *tool.Tool, analysis string, summary *Summary, runLogger *slog.Logger) bool {
	for {
		inv, err := d.ledger.Dequeue(ctx, runID)
		if err != nil {
			runLogger.Error("dequeue failed", "error", err)
			return true
		}
		if inv == nil {
			return false
		}

		status := d.executeInvocation(ctx, inv, t, analysis)
		switch status {
		case ledger.StatusSucceeded:
			summary.Succeeded++
		case ledger.StatusTimedOut:
			summary.TimedOut++
		default:
			summary.Failed++
		}

		if status != ledger.StatusSucceeded && d.cfg.Service.OnError == "halt" {
			n, err := d.ledger.SkipQueued(ctx, runID)
			if err != nil {
				runLogger.Error("failed to skip queued invocations", "error", err)
			}
			summary.Skipped += n
			runLogger.Warn("halting run on first failure", "skipped", n)
			return true
		}
	}
}

// executeInvocation runs a single invocation and records its outcome.
func (d *Dispatcher) executeInvocation(ctx context.Context, inv *ledger.Invocation, t *tool.Tool, analysis string) ledger.Status {
	invLogger := log.WithInvocation(inv.ID).With(
		"channel", inv.Channel,
		"level", inv.Level,
		"input_type", inv.InputType,
		"suffix", inv.Suffix,
	)
	invLogger.Info("executing invocation", "argv", strings.Join(inv.Argv, " "))

	res, err := d.runner.Run(ctx, t.Entrypoint, inv.Argv, d.cfg.Service.Timeout, invLogger)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			errMsg := fmt.Sprintf("tool execution timed out after %v", d.cfg.Service.Timeout)
			invLogger.Warn(errMsg)
			d.completeInvocation(ctx, inv.ID, ledger.StatusTimedOut, nil, &errMsg, &res.Stderr)
			return ledger.StatusTimedOut
		}

		errMsg := fmt.Sprintf("tool spawn failed: %v", err)
		invLogger.Error(errMsg)
		d.completeInvocation(ctx, inv.ID, ledger.StatusFailed, nil, &errMsg, &res.Stderr)
		return ledger.StatusFailed
	}

	if res.ExitCode != 0 {
		errMsg := fmt.Sprintf("tool exited with status %d", res.ExitCode)
		invLogger.Warn(errMsg)
		d.completeInvocation(ctx, inv.ID, ledger.StatusFailed, &res.ExitCode, &errMsg, &res.Stderr)
		return ledger.StatusFailed
	}

	if err := d.state.MarkDone(ctx, analysis, inv.Suffix); err != nil {
		invLogger.Error("failed to record completion state", "error", err)
	}

	invLogger.Info("invocation completed successfully")
	d.completeInvocation(ctx, inv.ID, ledger.StatusSucceeded, &res.ExitCode, nil, &res.Stderr)
	return ledger.StatusSucceeded
}

// filterDone drops invocations whose output suffix is already recorded done.
func (d *Dispatcher) filterDone(ctx context.Context, analysis string, invs []matrix.Invocation) ([]matrix.Invocation, error) {
	var out []matrix.Invocation
	for _, inv := range invs {
		done, err := d.state.IsDone(ctx, analysis, inv.Suffix)
		if err != nil {
			return nil, err
		}
		if done {
			d.logger.Info("skipping already-done combination", "suffix", inv.Suffix)
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

// completeInvocation marks an invocation terminal.
func (d *Dispatcher) completeInvocation(ctx context.Context, id string, status ledger.Status, exitCode *int, lastError, stderr *string) {
	if err := d.ledger.Complete(ctx, id, status, exitCode, lastError, stderr); err != nil {
		d.logger.Error("failed to complete invocation", "invocation_id", id, "error", err)
	}
}
