package lower

import (
	"sort"

	"fortio.org/safecast"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/abi"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// Interpolation parameter selector of llvm.amdgcn.interp.mov.
const interpP0 = 2

// location returns the I/O location of a load or store intrinsic.
func (t *translator) location(in *sir.IntrinsicInstr) uint32 {
	loc, err := safecast.Conv[uint32](in.Base)
	if err != nil {
		t.fatal("%s: invalid location %d", in.Op, in.Base)
	}
	return loc
}

// outputSlot holds one output location as four dword allocas. Outputs
// are kept in memory until the epilogue so that stores in any block
// reach it.
type outputSlot struct {
	location uint32
	comps    [4]value.Value
}

// outputDwords returns the dword components a store_output writes.
func (t *translator) outputDwords(in *sir.IntrinsicInstr) []int {
	def := t.def(in.Srcs[0].Value)
	n := t.srcComps(in.Srcs[0])
	mask := in.WriteMask
	if mask == 0 {
		mask = 1<<n - 1
	}
	per := 1
	if def.BitSize == 64 {
		per = 2
	}
	var out []int
	for i := 0; i < n; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		for j := 0; j < per; j++ {
			out = append(out, int(in.Component)+i*per+j)
		}
	}
	return out
}

// declareOutputs creates an alloca for every output dword the function
// writes anywhere.
func (t *translator) declareOutputs() {
	slots := make(map[uint32]*outputSlot)
	sir.WalkBlocks(t.fn.Body, func(blk *sir.Block) {
		for i := range blk.Instrs {
			ins := &blk.Instrs[i]
			if ins.Kind != sir.InstrIntrinsic || ins.Intrinsic.Op != sir.IntrStoreOutput {
				continue
			}
			in := &ins.Intrinsic
			loc := t.location(in)
			s := slots[loc]
			if s == nil {
				s = &outputSlot{location: loc}
				slots[loc] = s
			}
			for _, c := range t.outputDwords(in) {
				if c >= len(s.comps) {
					t.fatal("output %d component %d out of range", loc, c)
				}
				if s.comps[c] == nil {
					a := t.entry.NewAlloca(types.I32)
					a.AddrSpace = tir.AddrSpacePrivate
					s.comps[c] = a
				}
			}
		}
	})
	for _, s := range slots {
		t.outputs = append(t.outputs, *s)
	}
	sort.Slice(t.outputs, func(i, j int) bool { return t.outputs[i].location < t.outputs[j].location })
}

func (t *translator) outputSlot(loc uint32) *outputSlot {
	for i := range t.outputs {
		if t.outputs[i].location == loc {
			return &t.outputs[i]
		}
	}
	t.fatal("store to undeclared output %d", loc)
	return nil
}

// dwords splits a value into i32 pieces; narrow components are
// zero-extended.
func (t *translator) dwords(v value.Value) []value.Value {
	v = t.b.ToInt(v)
	bits := tir.ScalarBits(v.Type())
	n := tir.NumComponents(v.Type())
	if bits < 32 {
		return t.b.Components(t.b.Resize(v, 32, false))
	}
	return t.b.Components(t.b.Reshape(v, 32, n*int(bits)/32))
}

func (t *translator) storeOutput(in *sir.IntrinsicInstr) {
	slot := t.outputSlot(t.location(in))
	words := t.dwords(t.src(in.Srcs[0]))
	per := len(words) / t.srcComps(in.Srcs[0])
	mask := in.WriteMask
	if mask == 0 {
		mask = 0xff
	}
	for i, w := range words {
		if mask&(1<<(i/per)) == 0 {
			continue
		}
		c := int(in.Component) + i
		t.cur().NewStore(w, slot.comps[c])
	}
}

// currentOutputs loads every declared output.
func (t *translator) currentOutputs() []abi.Output {
	outs := make([]abi.Output, len(t.outputs))
	for i, s := range t.outputs {
		outs[i].Location = s.location
		for c, p := range s.comps {
			if p != nil {
				outs[i].Components[c] = t.cur().NewLoad(types.I32, p)
			}
		}
	}
	return outs
}

// emitEpilogue hands outputs to the ABI and returns. Geometry shaders
// emit their outputs per vertex instead.
func (t *translator) emitEpilogue() {
	if t.fn.Stage != sir.StageGeometry && len(t.outputs) > 0 {
		t.abi.EmitStageOutputs(t.env, t.currentOutputs())
	}
	t.cur().NewRet(nil)
}

func (t *translator) emitVertex(in *sir.IntrinsicInstr) {
	t.abi.EmitVertex(t.env, in.Stream, t.currentOutputs())
}

func (t *translator) loadInput(in *sir.IntrinsicInstr) value.Value {
	def := t.def(in.Dest)
	switch t.fn.Stage {
	case sir.StageVertex:
		return t.abi.LoadVertexInput(t.env, t.location(in), in.Component, def.BitSize, def.Components)
	case sir.StageFragment:
		prim := t.arg(abi.ArgPrimMask)
		comps := make([]value.Value, def.Components)
		for i := range comps {
			ch := tir.I32(int64(in.Component) + int64(i))
			comps[i] = t.b.Call("llvm.amdgcn.interp.mov", types.Float,
				tir.I32(interpP0), ch, tir.I32(int64(in.Base)), prim)
		}
		return t.narrowInput(t.b.Gather(comps), def)
	}
	t.fatal("load_input is not supported in %s shaders", t.fn.Stage)
	return nil
}

// interpolate evaluates a fragment input at barycentric coordinates.
func (t *translator) interpolate(in *sir.IntrinsicInstr) value.Value {
	if t.fn.Stage != sir.StageFragment {
		t.fatal("interpolated input outside a fragment shader")
	}
	if in.Interp == sir.InterpFlat {
		return t.loadInput(in)
	}
	def := t.def(in.Dest)
	prim := t.arg(abi.ArgPrimMask)
	ij := t.srcFloat(in.Srcs[0])
	i, j := t.b.Extract(ij, 0), t.b.Extract(ij, 1)
	attr := tir.I32(int64(in.Base))
	comps := make([]value.Value, def.Components)
	for c := range comps {
		ch := tir.I32(int64(in.Component) + int64(c))
		p1 := t.b.Call("llvm.amdgcn.interp.p1", types.Float, i, ch, attr, prim)
		comps[c] = t.b.Call("llvm.amdgcn.interp.p2", types.Float, p1, j, ch, attr, prim)
	}
	return t.narrowInput(t.b.Gather(comps), def)
}

func (t *translator) narrowInput(v value.Value, def sir.Def) value.Value {
	if def.BitSize == 16 {
		return t.cur().NewFPTrunc(v, fvec(16, int(def.Components)))
	}
	return v
}
