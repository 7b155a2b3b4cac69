// Package lower translates structured SIR shader functions into target IR:
// instruction selection, memory access legalization, divergence guards and
// reconstruction of structured control flow.
package lower

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/abi"
	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
	"wavefront/internal/trace"
)

// Options configures a translation.
type Options struct {
	Target gpu.Target
	// ABI defaults to abi.NewDefault(false).
	ABI abi.ABI
}

// Result is a translated function together with the side tables built
// while translating it.
type Result struct {
	Module *ir.Module
	Func   *ir.Func

	// Values is indexed by sir.ValueID.
	Values []value.Value
	// Blocks holds, per sir.BlockID, the target block the source block
	// ended in.
	Blocks []*ir.Block

	Accesses   []Access
	Waterfalls int
	// Args is the argument layout the function was built with.
	Args *abi.Args
}

// Translate lowers one function. Fatal translation errors are returned
// wrapping ErrFatal; no partial result is returned with them.
func Translate(ctx context.Context, fn *sir.Func, opts Options) (res *Result, err error) {
	if fn == nil {
		return nil, errors.New("lower: nil function")
	}
	if opts.ABI == nil {
		opts.ABI = abi.NewDefault(false)
	}
	if err := opts.Target.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid target: %w", fn.Name, err)
	}

	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID

	span := trace.Begin(tracer, trace.ScopePass, "validate", parent)
	err = sir.ValidateFunc(fn)
	span.End("")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name, err)
	}

	t := newTranslator(fn, opts)
	span = trace.Begin(tracer, trace.ScopePass, "lower", parent)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var fe *FatalError
		switch e := r.(type) {
		case *FatalError:
			fe = e
		case *tir.BuildError:
			fe = &FatalError{Func: fn.Name, Block: t.curBlock, Msg: e.Msg}
		default:
			panic(r)
		}
		span.WithExtra("fatal", fe.Msg).End("failed")
		res, err = nil, fe
	}()
	t.run(tracer, span.ID())
	span.WithExtra("waterfalls", strconv.Itoa(t.waterfalls)).End("")

	span = trace.Begin(tracer, trace.ScopePass, "finalize", parent)
	err = t.b.Finalize()
	span.End("")
	if err != nil {
		return nil, fmt.Errorf("%s: assign ids: %w", fn.Name, err)
	}

	return &Result{
		Module:     t.mod,
		Func:       t.f,
		Values:     t.values.vals,
		Blocks:     t.blocks.blocks,
		Accesses:   t.accesses,
		Waterfalls: t.waterfalls,
		Args:       t.args,
	}, nil
}

// pendingPhi is a phi declared on block entry whose incoming values are
// wired once every block exists.
type pendingPhi struct {
	phi *ir.InstPhi
	src *sir.PhiInstr
	at  sir.BlockID
}

// translator is the per-function translation state. It is not shared.
type translator struct {
	fn     *sir.Func
	target gpu.Target
	abi    abi.ABI

	mod  *ir.Module
	f    *ir.Func
	b    *tir.Builder
	env  *abi.Env
	args *abi.Args

	values valueMap
	blocks blockMap
	// consts holds the raw component bits of source constants.
	consts map[sir.ValueID][]uint64
	derefs map[sir.ValueID]derefInfo
	phis   []pendingPhi

	entry    *ir.Block
	epilogue *ir.Block
	outputs  []outputSlot
	scratch  []value.Value

	accesses   []Access
	waterfalls int
	wfDepth    int
	curBlock   sir.BlockID
}

func newTranslator(fn *sir.Func, opts Options) *translator {
	return &translator{
		fn:       fn,
		target:   opts.Target,
		abi:      opts.ABI,
		values:   newValueMap(len(fn.Values)),
		blocks:   newBlockMap(fn.NumBlocks),
		consts:   make(map[sir.ValueID][]uint64),
		derefs:   make(map[sir.ValueID]derefInfo),
		curBlock: sir.NoBlockID,
	}
}

func (t *translator) run(tracer trace.Tracer, parent uint64) {
	t.args = abi.NewArgs(t.fn.Stage, t.target)
	t.abi.DeclareArgs(t.args, t.fn.Stage)

	t.mod = ir.NewModule()
	t.f = t.mod.NewFunc(t.fn.Name, types.Void, t.args.Params()...)
	t.b = tir.NewBuilder(t.mod, t.f)
	t.env = &abi.Env{B: t.b, Args: t.args, Target: t.target, Stage: t.fn.Stage}

	t.entry = t.b.NewBlock()
	t.b.SetInsert(t.entry)
	t.declareVars()
	t.declareOutputs()
	t.epilogue = t.b.NewBlock()

	t.lowerList(t.fn.Body, tracer, parent)
	t.curBlock = sir.NoBlockID

	t.b.Branch(t.epilogue)
	if t.b.FlowDepth() != 0 {
		t.fatal("unbalanced control flow at function end: %d open regions", t.b.FlowDepth())
	}
	if t.wfDepth != 0 {
		t.fatal("unbalanced waterfall at function end: depth %d", t.wfDepth)
	}
	t.b.SetInsert(t.epilogue)
	t.emitEpilogue()

	t.resolvePhis()
}
