// Package main provides the localopt command.
//
// localopt reads textual IR, runs the local block optimizer over every
// function and writes the optimized IR:
//
//	localopt [options] INPUT.ir
//
// The pipeline is:
// 1. Parsing (textual IR to ir.Module)
// 2. Verification of the input
// 3. Optimization (identities, strength reduction, cancellation, DCE)
// 4. Verification of the result
//
// The optimized IR goes to --output or stdout. The --stats table and the
// --diff listing go to stderr.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hassan/localopt/internal/config"
	"github.com/hassan/localopt/internal/ir"
	"github.com/hassan/localopt/internal/parser"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "TOML configuration `FILE` (default: ./" + config.FileName + " if present)",
	}
	maxIterationsFlag = &cli.IntFlag{
		Name:  "max-iterations",
		Usage: "run the pipeline up to `N` times, stopping early when nothing changes",
	}
	passesFlag = &cli.StringSliceFlag{
		Name:  "passes",
		Usage: "comma-separated pass pipeline, in order",
	}
	statsFlag = &cli.BoolFlag{
		Name:  "stats",
		Usage: "print a table of rewrite counters",
	}
	diffFlag = &cli.BoolFlag{
		Name:  "diff",
		Usage: "print a unified diff of the IR before and after optimization",
	}
	noVerifyFlag = &cli.BoolFlag{
		Name:  "no-verify",
		Usage: "skip IR verification before and after optimization",
	}
	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "disable colored output",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "log `LEVEL`: debug, info, warn or error",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "write the optimized IR to `FILE` instead of stdout",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "localopt",
		Usage:     "local algebraic optimizer for single-basic-block IR",
		ArgsUsage: "INPUT.ir",
		Flags: []cli.Flag{
			configFlag,
			maxIterationsFlag,
			passesFlag,
			statsFlag,
			diffFlag,
			noVerifyFlag,
			noColorFlag,
			logLevelFlag,
			outputFlag,
		},
		Commands: []*cli.Command{
			{
				Name:   "passes",
				Usage:  "list the available passes",
				Action: listPasses,
			},
		},
		Action: optimize,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the
// command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	path := c.String(configFlag.Name)
	if path == "" {
		if _, err := os.Stat(config.FileName); err == nil {
			path = config.FileName
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(maxIterationsFlag.Name) {
		cfg.Optimizer.MaxIterations = c.Int(maxIterationsFlag.Name)
	}
	if c.IsSet(passesFlag.Name) {
		cfg.Optimizer.Passes = c.StringSlice(passesFlag.Name)
	}
	if c.Bool(noVerifyFlag.Name) {
		cfg.Optimizer.Verify = false
	}
	if c.IsSet(logLevelFlag.Name) {
		cfg.Log.Level = c.String(logLevelFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func optimize(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.Errorf("expected exactly one input file, got %d (see --help)", c.NArg())
	}
	if c.Bool(noColorFlag.Name) {
		color.NoColor = true
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	input := c.Args().First()
	module, err := readModule(c.App.Reader, input)
	if err != nil {
		return err
	}
	logger.Debug("parsed module",
		zap.String("module", module.Name),
		zap.Int("functions", len(module.Functions)))

	if cfg.Optimizer.Verify {
		if err := verify(module, "input"); err != nil {
			return err
		}
	}
	before := module.String()

	opt, err := cfg.NewOptimizer(logger)
	if err != nil {
		return err
	}
	runs, result := opt.OptimizeUntilStable(module)
	logger.Debug("pipeline finished",
		zap.Int("runs", runs),
		zap.Int("max_iterations", opt.MaxIterations()),
		zap.Stringer("preserved", result))

	if cfg.Optimizer.Verify {
		if err := verify(module, "optimized"); err != nil {
			return err
		}
	}
	after := module.String()

	if err := writeOutput(c.App.Writer, c.String(outputFlag.Name), after); err != nil {
		return err
	}
	if c.Bool(diffFlag.Name) {
		if err := printDiff(c.App.ErrWriter, input, before, after); err != nil {
			return err
		}
	}
	if c.Bool(statsFlag.Name) {
		printStats(c.App.ErrWriter, opt.Stats(), runs)
	}
	return nil
}

// readModule parses path, or stdin when path is "-".
func readModule(stdin io.Reader, path string) (*ir.Module, error) {
	var (
		source []byte
		err    error
		name   = filepath.Base(path)
	)
	if path == "-" {
		name = "stdin"
		source, err = io.ReadAll(stdin)
	} else {
		source, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input")
	}

	module, err := parser.ParseString(name, string(source))
	if err != nil {
		return nil, errors.Wrap(err, "parse errors")
	}
	return module, nil
}

func verify(module *ir.Module, stage string) error {
	errs := module.Verify()
	if len(errs) == 0 {
		return nil
	}
	return errors.Wrapf(parser.ErrorList(errs), "%s IR failed verification", stage)
}

func writeOutput(stdout io.Writer, path, text string) error {
	if path == "" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "failed to write output")
	}
	return nil
}
