// Package matrix builds the invocation matrix for a sample: one external-tool
// invocation per channel x correction-level combination, with the correction
// levels chosen by input type (data or mc).
package matrix

import (
	"fmt"

	"github.com/zjetlab/zjetrun/internal/config"
)

// Invocation is one fully-resolved call of an external processing tool.
// It is constructed once, consumed by the dispatcher, and never mutated.
type Invocation struct {
	Tool      string
	Analysis  string
	Sample    string
	Channel   string
	Level     string
	InputType config.InputType
	InputFile string
	Tree      string
	Tasks     []string
	Selection []string
	// Passthrough args are forwarded verbatim, in original order.
	Passthrough []string
	Suffix      string

	Jobs     int
	Log      bool
	Progress bool
	DumpYAML bool
}

// Suffix constructs the output-file suffix for a combination:
// Z<channel>_<sampleName>_<correctionLevel>.
func Suffix(channel, sample, level string) string {
	return "Z" + channel + "_" + sample + "_" + level
}

// Argv renders the invocation as the external tool's command line.
func (inv Invocation) Argv() []string {
	argv := []string{
		"-a", inv.Analysis,
		"-i", inv.InputFile,
		"--tree", inv.Tree,
		"--input-type", string(inv.InputType),
		fmt.Sprintf("-j%d", inv.Jobs),
	}
	if inv.Log {
		argv = append(argv, "--log")
	}
	if inv.Progress {
		argv = append(argv, "--progress")
	}
	if inv.DumpYAML {
		argv = append(argv, "--dump-yaml")
	}
	if len(inv.Selection) > 0 {
		argv = append(argv, "--selection")
		argv = append(argv, inv.Selection...)
	}
	argv = append(argv, inv.Passthrough...)
	argv = append(argv, "task")
	argv = append(argv, inv.Tasks...)
	argv = append(argv, "--output-file-suffix", inv.Suffix)
	return argv
}

// Build produces the ordered invocation list for a sample: channels in config
// order, then enabled correction levels for the input type in config order.
// Input types with no configured input file for the sample are skipped.
func Build(cfg *config.Config, sampleName string, inputTypes []config.InputType, passthrough []string) ([]Invocation, error) {
	sample, ok := cfg.Samples[sampleName]
	if !ok {
		return nil, fmt.Errorf("sample %q not found in config", sampleName)
	}
	tool, ok := cfg.Tools[sample.Tool]
	if !ok {
		return nil, fmt.Errorf("sample %q references unknown tool %q", sampleName, sample.Tool)
	}

	if len(inputTypes) == 0 {
		inputTypes = []config.InputType{config.InputData, config.InputMC}
	}

	var out []Invocation
	for _, it := range inputTypes {
		if !it.Valid() {
			return nil, fmt.Errorf("unknown input type %q (expected data or mc)", it)
		}
		inputFile, ok := sample.Inputs[it]
		if !ok {
			continue
		}

		levels := cfg.CorrectionLevels[it].EnabledNames()
		if len(levels) == 0 {
			return nil, fmt.Errorf("no enabled correction levels for input type %q", it)
		}

		for _, channel := range cfg.Channels {
			for _, level := range levels {
				out = append(out, Invocation{
					Tool:        sample.Tool,
					Analysis:    sample.Analysis,
					Sample:      sampleName,
					Channel:     channel,
					Level:       level,
					InputType:   it,
					InputFile:   inputFile,
					Tree:        sample.Tree,
					Tasks:       sample.Tasks,
					Selection:   sample.Selection,
					Passthrough: passthrough,
					Suffix:      Suffix(channel, sampleName, level),
					Jobs:        tool.Jobs,
					Log:         !tool.NoLog,
					Progress:    !tool.NoProgress,
					DumpYAML:    tool.DumpYAML,
				})
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("sample %q has no inputs for requested input types", sampleName)
	}
	return out, nil
}
