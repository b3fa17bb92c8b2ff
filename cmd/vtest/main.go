// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The following enables go generate to generate the doc.go file.
//go:generate go run v.io/x/lib/cmdline/gendoc .

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/markkurossi/tabulate"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"v.io/v23/context"
	"v.io/x/lib/cmdline"
	"v.io/x/lib/vlog"
	"v.io/x/vtest/ecc"
	"v.io/x/vtest/keyinject"
	"v.io/x/vtest/perf"
	"v.io/x/vtest/se/emu"
	"v.io/x/vtest/vtest"
)

var (
	perfConfig      = perf.DefaultConfig()
	emuConfig       emu.Config
	eccConfig       ecc.Config
	keyinjectConfig keyinject.Config
	flagLogLevel    int
	flagQuiet       bool
)

func init() {
	for _, fs := range []*flag.FlagSet{&cmdRun.Flags, &cmdConfig.Flags, &cmdProbe.Flags} {
		perf.RegisterFlags(fs, &perfConfig)
		emu.RegisterFlags(fs, &emuConfig)
		ecc.RegisterFlags(fs, &eccConfig)
		keyinject.RegisterFlags(fs, &keyinjectConfig)
		fs.IntVar(&flagLogLevel, "log-level", 0, "Verbosity of the log written to stderr.")
	}
	cmdRun.Flags.BoolVar(&flagQuiet, "quiet", false, "If true, only the results table is written.")
}

func main() {
	cmdline.Main(cmdRoot)
}

var cmdRoot = &cmdline.Command{
	Name:  "vtest",
	Short: "runs the V2X secure element conformance tests",
	Long: `
Command vtest runs the conformance and performance tests of a V2X secure
element against an in-process emulated engine. Tests are numbered with six
digits: a two digit suite, a two digit requirement and a two digit test.
`,
	Children: []*cmdline.Command{cmdRun, cmdList, cmdProbe, cmdConfig},
}

var cmdRun = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runRun),
	Name:   "run",
	Short:  "Runs tests",
	Long: `
Runs the selected tests in test number order and prints a results table.
The exit code is 0 if every test passed, 1 if any test failed and 32 if
any test was inconclusive or no test was selected.
`,
	ArgsName: "[<suite> | <test> | <first> <last>]",
	ArgsLong: `
With no arguments every test is run. A two digit <suite> runs the tests of
that suite, a single <test> number runs that test and <first> <last> runs
the tests numbered in that inclusive range.
`,
}

var cmdList = &cmdline.Command{
	Runner:   cmdline.RunnerFunc(runList),
	Name:     "list",
	Short:    "Lists tests",
	Long:     "Lists the selected tests by number and name.",
	ArgsName: "[<suite> | <test> | <first> <last>]",
	ArgsLong: "The arguments select tests as for the run command.",
}

var cmdProbe = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runProbe),
	Name:   "probe",
	Short:  "Reports the detected hardware acceleration",
	Long: `
Reports whether hardware acceleration is present, which selects the
thresholds the performance tests are checked against.
`,
}

var cmdConfig = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runConfig),
	Name:   "config",
	Short:  "Prints the effective configuration",
	Long:   "Prints the configuration the tests would run with, after flags are applied.",
}

func newContext() (*context.T, context.CancelFunc) {
	vlog.Log.Configure(vlog.OverridePriorConfiguration(true), vlog.LogToStderr(true), vlog.Level(flagLogLevel))
	ctx, cancel := context.RootContext()
	return context.WithLogger(ctx, vlog.Log), cancel
}

// registry returns all tests, run against a fresh emulated engine.
func registry() (*vtest.Registry, error) {
	probe, err := perfConfig.Probe()
	if err != nil {
		return nil, err
	}
	s := emu.New(emuConfig.Options()...)
	suites := []interface{ Tests() []vtest.Test }{
		&ecc.Suite{Config: eccConfig, Dispatcher: s.Dispatcher()},
		&keyinject.Suite{Config: keyinjectConfig, Engine: s},
		&perf.Suite{Config: perfConfig, Engine: s, Dispatcher: s.Dispatcher(), Probe: probe},
	}
	reg := &vtest.Registry{}
	for _, suite := range suites {
		if err := reg.Register(suite.Tests()...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func selectTests(env *cmdline.Env, args []string) ([]vtest.Test, error) {
	if len(args) > 2 {
		return nil, env.UsageErrorf("expected at most two test numbers, got %d arguments", len(args))
	}
	reg, err := registry()
	if err != nil {
		return nil, err
	}
	return reg.Select(args)
}

func runRun(env *cmdline.Env, args []string) error {
	tests, err := selectTests(env, args)
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()
	runner := &vtest.Runner{}
	if !flagQuiet {
		runner.Out = env.Stdout
	}
	id, results := runner.Run(ctx, tests)
	printResults(env.Stdout, isTerminal(env.Stdout), id.String(), results)
	if code := vtest.ExitCode(results); code != vtest.ExitPass {
		return cmdline.ErrExitCode(code)
	}
	return nil
}

func runList(env *cmdline.Env, args []string) error {
	tests, err := selectTests(env, args)
	if err != nil {
		return err
	}
	for _, t := range tests {
		fmt.Fprintf(env.Stdout, "%06d %s\n", t.Num, t.Name)
	}
	return nil
}

func runProbe(env *cmdline.Env, args []string) error {
	if len(args) > 0 {
		return env.UsageErrorf("expected no arguments, got %d", len(args))
	}
	probe, err := perfConfig.Probe()
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()
	hw, err := probe.HardwarePresent(ctx)
	if err != nil {
		return err
	}
	th := perfConfig.VerifyRate()
	fmt.Fprintf(env.Stdout, "hardware acceleration: %v (verification rate bound %v/s)\n", hw, th.Select(hw))
	return nil
}

func runConfig(env *cmdline.Env, args []string) error {
	if len(args) > 0 {
		return env.UsageErrorf("expected no arguments, got %d", len(args))
	}
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	cfg.Fdump(env.Stdout, perfConfig, emuConfig, eccConfig)
	fmt.Fprintf(env.Stdout, "keyinject slot: %d\n", keyinjectConfig.Slot)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printResults writes a table with one row per test followed by the
// totals.
func printResults(w io.Writer, tty bool, id string, results []vtest.Result) {
	style := tabulate.ASCII
	if tty {
		style = tabulate.UnicodeLight
	}
	tab := tabulate.New(style)
	tab.Header("Test").SetAlign(tabulate.MR)
	tab.Header("Name").SetAlign(tabulate.ML)
	tab.Header("Verdict").SetAlign(tabulate.ML)
	tab.Header("Subtests").SetAlign(tabulate.MR)
	tab.Header("Failed").SetAlign(tabulate.MR)
	tab.Header("Time").SetAlign(tabulate.MR)

	counts := map[vtest.Verdict]int{}
	for _, r := range results {
		counts[r.Verdict]++
		row := tab.Row()
		row.Column(fmt.Sprintf("%06d", r.Num))
		row.Column(r.Name)
		verdict := row.Column(r.Verdict.String())
		if tty && r.Verdict != vtest.Pass {
			verdict.SetFormat(tabulate.FmtBold)
		}
		row.Column(fmt.Sprintf("%d", r.Checks))
		row.Column(fmt.Sprintf("%d", len(r.Failures)))
		row.Column(r.Duration.Round(time.Microsecond).String())
	}
	tab.Print(w)

	p := message.NewPrinter(language.English)
	p.Fprintf(w, "run %s: %d tests, %d passed, %d failed, %d inconclusive\n",
		id, len(results), counts[vtest.Pass], counts[vtest.Fail], counts[vtest.Conf])
}
