package lower

import (
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// derefInfo is the lowered form of a deref chain link: an LDS byte
// offset for shared memory, a private byte pointer for function
// variables and a 64-bit address for global memory.
type derefInfo struct {
	mode sir.VarMode
	addr value.Value
}

func (d derefInfo) mem() MemKind {
	switch d.mode {
	case sir.VarShared:
		return MemShared
	case sir.VarFunction:
		return MemScratch
	default:
		return MemGlobal
	}
}

// declareVars reserves storage for function variables in the entry
// block. Shared variables live at fixed offsets of the workgroup
// allocation and need no code.
func (t *translator) declareVars() {
	t.scratch = make([]value.Value, len(t.fn.Vars))
	for i, v := range t.fn.Vars {
		if v.Mode != sir.VarFunction {
			continue
		}
		a := t.entry.NewAlloca(types.NewArray(uint64(v.Size), types.I8))
		a.AddrSpace = tir.AddrSpacePrivate
		t.scratch[i] = t.b.ToPointer(a, types.I8, tir.AddrSpacePrivate)
	}
}

func (t *translator) lowerDeref(d *sir.DerefInstr) {
	var info derefInfo
	switch d.Kind {
	case sir.DerefVar:
		if d.Var < 0 || int(d.Var) >= len(t.fn.Vars) {
			t.fatal("deref of unknown variable $%d", d.Var)
		}
		v := t.fn.Vars[d.Var]
		info.mode = v.Mode
		switch v.Mode {
		case sir.VarShared:
			info.addr = tir.I32(int64(v.Offset))
		case sir.VarFunction:
			info.addr = t.scratch[d.Var]
		default:
			t.fatal("global variable %s must be reached through a cast", v.Name)
		}
	case sir.DerefCast:
		info.mode = sir.VarGlobal
		info.addr = t.b.Resize(t.srcInt(d.Index), 64, false)
	case sir.DerefArray:
		parent := t.parentDeref(d)
		info.mode = parent.mode
		info.addr = t.indexAddr(parent, t.srcInt(d.Index), d.Stride)
	case sir.DerefStruct:
		parent := t.parentDeref(d)
		info.mode = parent.mode
		info.addr = t.advance(parent.addr, int64(d.Offset))
	default:
		t.fatal("unknown deref %s", d.Kind)
	}
	t.derefs[d.Dest] = info
	t.define(d.Dest, info.addr)
}

func (t *translator) parentDeref(d *sir.DerefInstr) derefInfo {
	p, ok := t.derefs[d.Parent]
	if !ok {
		t.fatal("deref parent %%%d is not a deref", d.Parent)
	}
	return p
}

// indexAddr offsets a parent address by index*stride.
func (t *translator) indexAddr(parent derefInfo, index value.Value, stride uint32) value.Value {
	if c, ok := tir.ConstValue(index); ok {
		return t.advance(parent.addr, int64(c)*int64(stride))
	}
	blk := t.cur()
	switch parent.mode {
	case sir.VarGlobal:
		idx := t.b.Resize(index, 64, true)
		return blk.NewAdd(parent.addr, blk.NewMul(idx, tir.I64(int64(stride))))
	case sir.VarFunction:
		idx := t.b.Resize(index, 32, true)
		off := blk.NewMul(idx, tir.I32(int64(stride)))
		return blk.NewGetElementPtr(types.I8, parent.addr, off)
	default:
		idx := t.b.Resize(index, 32, true)
		return blk.NewAdd(parent.addr, blk.NewMul(idx, tir.I32(int64(stride))))
	}
}

func (t *translator) derefOf(s sir.Src) derefInfo {
	d, ok := t.derefs[s.Value]
	if !ok {
		t.fatal("%%%d is not a deref", s.Value)
	}
	return d
}

func (t *translator) loadDeref(in *sir.IntrinsicInstr) {
	d := t.derefOf(in.Srcs[0])
	t.define(in.Dest, t.loadPointer(in, d.mem(), d.addr))
}

func (t *translator) storeDeref(in *sir.IntrinsicInstr) {
	d := t.derefOf(in.Srcs[0])
	t.storePointer(in, d.mem(), in.Srcs[1], d.addr)
}

func (t *translator) derefAtomic(in *sir.IntrinsicInstr, swap bool) {
	d := t.derefOf(in.Srcs[0])
	if d.mode == sir.VarFunction {
		t.define(in.Dest, t.privateAtomic(in, d.addr, in.Srcs[1:], swap))
		return
	}
	t.define(in.Dest, t.pointerAtomic(in, d.mem(), d.addr, in.Srcs[1:], swap))
}
