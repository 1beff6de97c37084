// Package optimizer implements local (single basic block) optimizations
// over the ir package's def-use graph.
package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hassan/localopt/internal/ir"
)

// Pass names, as used in configuration files and on the command line.
const (
	PassAlgebraicStrength = "algebraic-strength"
	PassMultiInstruction  = "multi-instruction"
	PassDeadCode          = "dead-code"
)

// Rule names reported to the log.
const (
	ruleAddZero    = "x+0 -> x"
	ruleMulOne     = "x*1 -> x"
	ruleMulPow2    = "x*2^k -> x<<k"
	ruleMulPow2P1  = "x*(2^k+1) -> (x<<k)+x"
	ruleMulPow2M1  = "x*(2^k-1) -> (x<<k)-x"
	ruleDivOne     = "x/1 -> x"
	ruleDivPow2    = "x/2^k -> x>>k"
	ruleCancelAdd  = "(x+c)-c -> x"
	ruleCancelSub  = "(x-c)+c -> x"
	ruleDeadBinary = "erase unused"
)

// BlockPass is an optimization confined to a single basic block.
//
// A pass reads and rewrites the shared def-use graph but never looks at
// other blocks to decide what to do. It reports whether it changed the IR.
//
// DESIGN PHILOSOPHY:
// Each optimization is a separate pass that can be:
// - Enabled/disabled independently
// - Tested in isolation
// - Composed with other passes
type BlockPass interface {
	// Name returns a human-readable name for this pass
	Name() string

	// RunOnBlock executes this pass on bb and reports whether the IR changed
	RunOnBlock(bb *ir.BasicBlock, ctx *PassContext) bool
}

var passRegistry = map[string]func() BlockPass{
	PassAlgebraicStrength: func() BlockPass { return &AlgebraicIdentityPass{} },
	PassMultiInstruction:  func() BlockPass { return &MultiInstructionPass{} },
	PassDeadCode:          func() BlockPass { return &DeadCodePass{} },
}

// DefaultPassNames is the pipeline run on every block, in order.
var DefaultPassNames = []string{PassAlgebraicStrength, PassMultiInstruction, PassDeadCode}

// NewPass returns a fresh instance of the pass called name.
func NewPass(name string) (BlockPass, error) {
	create, ok := passRegistry[name]
	if !ok {
		return nil, errors.Errorf("unknown pass %q (known: %s)", name, strings.Join(PassNames(), ", "))
	}
	return create(), nil
}

// PassNames returns the names of all registered passes, sorted.
func PassNames() []string {
	names := make([]string, 0, len(passRegistry))
	for name := range passRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PassContext carries what a pass needs besides the block itself.
type PassContext struct {
	Log   *zap.Logger
	Stats *Stats
}

// rewrite logs one applied rule. before is the instruction text prior to
// the rewrite.
func (ctx *PassContext) rewrite(pass string, bb *ir.BasicBlock, before, rule string) {
	fields := []zap.Field{
		zap.String("pass", pass),
		zap.String("rule", rule),
		zap.String("inst", before),
	}
	if bb != nil {
		fields = append(fields, zap.String("block", bb.Label))
		if bb.Parent != nil {
			fields = append(fields, zap.String("function", bb.Parent.Name))
		}
	}
	ctx.Log.Debug("rewrite", fields...)
}

// PreservedAnalyses tells the caller which analyses computed before an
// optimizer run are still valid.
type PreservedAnalyses int

const (
	// PreserveAll means nothing changed.
	PreserveAll PreservedAnalyses = iota
	// PreserveNone means instructions, opcodes or operands changed and every
	// analysis must be recomputed.
	PreserveNone
)

// Changed reports whether the run transformed the IR.
func (pa PreservedAnalyses) Changed() bool {
	return pa == PreserveNone
}

func (pa PreservedAnalyses) String() string {
	if pa == PreserveNone {
		return "none"
	}
	return "all"
}

// Optimizer coordinates the execution of block passes.
//
// Optimize applies every pass exactly once to every block of every function,
// in pass order per block. It does not iterate to a fixed point: a rewrite
// that exposes another opportunity for an earlier pass is picked up only by
// the next call. OptimizeUntilStable is the explicit, bounded wrapper for
// repeating the pipeline.
type Optimizer struct {
	// passes is the list of optimization passes to run on each block
	passes []BlockPass

	// maxIterations caps OptimizeUntilStable
	maxIterations int

	// verbose enables per-rewrite debug logging
	verbose bool

	logger *zap.Logger
	stats  *Stats
}

// NewOptimizer creates a new optimizer with the default pipeline:
//
//  1. Algebraic identities and strength reduction
//  2. Multi-instruction cancellation
//  3. Dead code elimination - removes what the first two left unused
func NewOptimizer() *Optimizer {
	o := &Optimizer{
		maxIterations: 1,
		logger:        zap.NewNop(),
		stats:         NewStats(),
	}
	for _, name := range DefaultPassNames {
		pass, _ := NewPass(name)
		o.passes = append(o.passes, pass)
	}
	return o
}

// NewOptimizerWithPasses creates an optimizer running the named passes in
// the given order.
func NewOptimizerWithPasses(names []string) (*Optimizer, error) {
	o := NewOptimizer()
	o.passes = nil
	for _, name := range names {
		pass, err := NewPass(name)
		if err != nil {
			return nil, err
		}
		o.AddPass(pass)
	}
	return o, nil
}

// AddPass appends a pass to the pipeline.
func (o *Optimizer) AddPass(pass BlockPass) {
	o.passes = append(o.passes, pass)
}

// Passes returns the names of the passes in pipeline order.
func (o *Optimizer) Passes() []string {
	names := make([]string, len(o.passes))
	for i, pass := range o.passes {
		names[i] = pass.Name()
	}
	return names
}

// SetLogger sets the logger. A nil logger disables logging.
func (o *Optimizer) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o.logger = logger
}

// SetVerbose switches to a development logger that prints every rewrite.
// Turning it off silences the optimizer.
func (o *Optimizer) SetVerbose(verbose bool) {
	o.verbose = verbose
	if !verbose {
		o.logger = zap.NewNop()
		return
	}
	if logger, err := zap.NewDevelopment(); err == nil {
		o.logger = logger
	}
}

// SetMaxIterations sets the maximum number of pipeline runs performed by
// OptimizeUntilStable. Values below 1 are treated as 1.
func (o *Optimizer) SetMaxIterations(max int) {
	if max < 1 {
		max = 1
	}
	o.maxIterations = max
}

// MaxIterations returns the cap used by OptimizeUntilStable.
func (o *Optimizer) MaxIterations() int {
	return o.maxIterations
}

// Stats returns the counters accumulated over all runs of this optimizer.
func (o *Optimizer) Stats() *Stats {
	return o.stats
}

// Optimize runs the pipeline once over the entire module.
//
// ALGORITHM:
// 1. For each function in the module
// 2. For each block of the function
// 3. Run every pass once, in order
//
// Every function is processed even after one has changed. The result is
// PreserveNone if any block changed, PreserveAll otherwise.
func (o *Optimizer) Optimize(module *ir.Module) PreservedAnalyses {
	changed := false
	before := o.stats.InstructionsRemoved

	for _, fn := range module.Functions {
		if o.OptimizeFunction(fn) {
			changed = true
		}
	}

	result := PreserveAll
	if changed {
		result = PreserveNone
	}
	o.logger.Info("optimized module",
		zap.String("module", module.Name),
		zap.Int("functions", len(module.Functions)),
		zap.Int("removed", o.stats.InstructionsRemoved-before),
		zap.Stringer("preserved", result))
	return result
}

// OptimizeFunction runs the pipeline once on every block of fn.
func (o *Optimizer) OptimizeFunction(fn *ir.Function) bool {
	changed := false
	for _, block := range fn.Blocks {
		if o.RunOnBlock(block) {
			changed = true
		}
	}
	return changed
}

// RunOnBlock runs each pass once on bb, in pipeline order.
func (o *Optimizer) RunOnBlock(bb *ir.BasicBlock) bool {
	ctx := &PassContext{Log: o.logger, Stats: o.stats}

	changed := false
	for _, pass := range o.passes {
		if o.verbose {
			o.logger.Debug("running pass", zap.String("pass", pass.Name()), zap.String("block", bb.Label))
		}
		o.stats.PassExecutions[pass.Name()]++
		if pass.RunOnBlock(bb, ctx) {
			changed = true
		}
	}
	if changed {
		o.stats.BlocksChanged++
	}
	return changed
}

// OptimizeUntilStable repeats Optimize until a run reports no change or
// MaxIterations runs have been made. It returns the number of runs and the
// combined result.
func (o *Optimizer) OptimizeUntilStable(module *ir.Module) (int, PreservedAnalyses) {
	result := PreserveAll
	runs := 0
	for runs < o.maxIterations {
		runs++
		if !o.Optimize(module).Changed() {
			break
		}
		result = PreserveNone
	}
	return runs, result
}

// Stats tracks statistics about optimization.
type Stats struct {
	// Identities counts x+0, x*1 and x/1 rewrites
	Identities int

	// StrengthReductions counts mul and sdiv rewrites into shifts
	StrengthReductions int

	// Cancellations counts collapsed add/sub pairs
	Cancellations int

	// InstructionsInserted is the number of instructions created by rewrites
	InstructionsInserted int

	// InstructionsRemoved is the number of instructions eliminated
	InstructionsRemoved int

	// BlocksChanged counts block visits in which some pass changed the IR
	BlocksChanged int

	// PassExecutions tracks how many times each pass ran
	PassExecutions map[string]int
}

// NewStats creates a new stats tracker.
func NewStats() *Stats {
	return &Stats{
		PassExecutions: make(map[string]int),
	}
}

// Rows returns the counters as name/value pairs, in a fixed order.
func (s *Stats) Rows() [][]string {
	rows := [][]string{
		{"identities", fmt.Sprint(s.Identities)},
		{"strength reductions", fmt.Sprint(s.StrengthReductions)},
		{"cancellations", fmt.Sprint(s.Cancellations)},
		{"instructions inserted", fmt.Sprint(s.InstructionsInserted)},
		{"instructions removed", fmt.Sprint(s.InstructionsRemoved)},
		{"blocks changed", fmt.Sprint(s.BlocksChanged)},
	}
	names := make([]string, 0, len(s.PassExecutions))
	for name := range s.PassExecutions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, []string{"runs of " + name, fmt.Sprint(s.PassExecutions[name])})
	}
	return rows
}

// String returns a human-readable summary of optimization statistics.
func (s *Stats) String() string {
	return fmt.Sprintf("Optimization Stats:\n"+
		"  Identities: %d\n"+
		"  Strength reductions: %d\n"+
		"  Cancellations: %d\n"+
		"  Instructions inserted: %d\n"+
		"  Instructions removed: %d\n",
		s.Identities,
		s.StrengthReductions,
		s.Cancellations,
		s.InstructionsInserted,
		s.InstructionsRemoved)
}
