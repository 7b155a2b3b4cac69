package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// Sync scopes attached to atomics by memory kind.
const (
	scopeAgent     = "agent"
	scopeWorkgroup = "workgroup"
	scopeWavefront = "wavefront"
)

// intrinsicAtomicName is the operation suffix of buffer and image atomic
// intrinsics.
func intrinsicAtomicName(op sir.AtomicOp) string {
	switch op {
	case sir.AtomicAdd:
		return "add"
	case sir.AtomicIMin:
		return "smin"
	case sir.AtomicUMin:
		return "umin"
	case sir.AtomicIMax:
		return "smax"
	case sir.AtomicUMax:
		return "umax"
	case sir.AtomicAnd:
		return "and"
	case sir.AtomicOr:
		return "or"
	case sir.AtomicXor:
		return "xor"
	case sir.AtomicExchange:
		return "swap"
	case sir.AtomicCompSwap:
		return "cmpswap"
	case sir.AtomicFAdd:
		return "fadd"
	case sir.AtomicFMin:
		return "fmin"
	case sir.AtomicFMax:
		return "fmax"
	case sir.AtomicIncWrap:
		return "inc"
	case sir.AtomicDecWrap:
		return "dec"
	}
	return ""
}

func floatAtomic(op sir.AtomicOp) bool {
	return op == sir.AtomicFAdd || op == sir.AtomicFMin || op == sir.AtomicFMax
}

// rmwOps maps atomics that have an atomicrmw form.
var rmwOps = map[sir.AtomicOp]enum.AtomicOp{
	sir.AtomicAdd:      enum.AtomicOpAdd,
	sir.AtomicIMin:     enum.AtomicOpMin,
	sir.AtomicUMin:     enum.AtomicOpUMin,
	sir.AtomicIMax:     enum.AtomicOpMax,
	sir.AtomicUMax:     enum.AtomicOpUMax,
	sir.AtomicAnd:      enum.AtomicOpAnd,
	sir.AtomicOr:       enum.AtomicOpOr,
	sir.AtomicXor:      enum.AtomicOpXor,
	sir.AtomicExchange: enum.AtomicOpXChg,
	sir.AtomicFAdd:     enum.AtomicOpFAdd,
}

// atomicOperands splits the sources following the address into the
// compare value (nil unless swap) and the data value.
func (t *translator) atomicOperands(in *sir.IntrinsicInstr, rest []sir.Src, swap bool) (cmp, data value.Value) {
	want := 1
	if swap {
		want = 2
	}
	if len(rest) != want {
		t.fatal("%s has %d data operands, want %d", in.Op, len(rest), want)
	}
	if swap {
		return t.srcInt(rest[0]), t.srcInt(rest[1])
	}
	if floatAtomic(in.Atomic) {
		return nil, t.srcFloat(rest[0])
	}
	return nil, t.srcInt(rest[0])
}

func (t *translator) atomicOp(in *sir.IntrinsicInstr, swap bool) sir.AtomicOp {
	if swap {
		return sir.AtomicCompSwap
	}
	if in.Atomic == sir.AtomicCompSwap {
		t.fatal("compare-swap through %s", in.Op)
	}
	return in.Atomic
}

func (t *translator) ssboAtomic(in *sir.IntrinsicInstr, swap bool) {
	op := t.atomicOp(in, swap)
	var wf waterfall
	desc := t.ssboDescriptor(in, in.Srcs[0], true, &wf)
	guarded := wf.active
	off := t.offset(in.Srcs[1], in.Base)
	cmp, data := t.atomicOperands(in, in.Srcs[2:], swap)
	def := t.def(in.Dest)

	var v value.Value
	if swap && def.BitSize == 64 {
		v = t.bufferCmpSwap64(desc, off, cmp, data)
	} else {
		policy := cachePolicy(t.target, in.Access, false, true) & PolicySLC
		ty := data.Type()
		name := tir.Overload("llvm.amdgcn.raw.buffer.atomic."+intrinsicAtomicName(op), ty)
		args := []value.Value{data}
		if swap {
			args = append(args, cmp)
		}
		args = append(args, desc, off, tir.I32(0), tir.I32(int64(policy)))
		v = t.b.Call(name, ty, args...)
	}
	t.record(Access{
		Value: in.Dest, Memory: MemSSBO, Kind: AccessAtomic,
		Size: uint32(elemBytes(def.BitSize)), Waterfall: guarded,
	})
	t.define(in.Dest, t.exitWaterfall(&wf, v))
}

// descriptorAddress rebuilds the 48-bit base address of a buffer
// descriptor as an i64.
func (t *translator) descriptorAddress(desc value.Value) value.Value {
	blk := t.cur()
	lo := t.b.Extract(desc, 0)
	hi := blk.NewAnd(t.b.Extract(desc, 1), tir.I32(0xffff))
	hi16 := blk.NewTrunc(hi, types.I16)
	hiExt := blk.NewSExt(hi16, types.I32)
	return t.b.ConvertTo(t.b.Gather([]value.Value{lo, hiExt}), types.I64)
}

// bufferCmpSwap64 performs a 64-bit compare-exchange on a buffer through
// a global pointer, bounds checked against num_records when the ABI asks
// for robust access.
func (t *translator) bufferCmpSwap64(desc, off, cmp, data value.Value) value.Value {
	base := t.descriptorAddress(desc)
	addr := t.cur().NewAdd(base, t.cur().NewZExt(off, types.I64))
	ptr := t.b.ToPointer(addr, types.I64, tir.AddrSpaceGlobal)

	if !t.abi.RobustBufferAccess() {
		return t.cmpxchg(ptr, cmp, data, scopeAgent)
	}
	pre := t.cur()
	size := t.b.Extract(desc, 2)
	t.b.If(pre.NewICmp(enum.IPredULT, off, size))
	v := t.cmpxchg(ptr, cmp, data, scopeAgent)
	then := t.cur()
	t.b.EndIf()
	return t.b.PhiOf(types.I64,
		ir.NewIncoming(tir.I64(0), pre),
		ir.NewIncoming(v, then))
}

func (t *translator) cmpxchg(ptr, cmp, data value.Value, scope string) value.Value {
	x := t.cur().NewCmpXchg(ptr, cmp, data, enum.AtomicOrderingMonotonic, enum.AtomicOrderingMonotonic)
	x.SyncScope = scope
	return t.cur().NewExtractValue(x, 0)
}

// pointerAtomic lowers an atomic on shared or global memory.
func (t *translator) pointerAtomic(in *sir.IntrinsicInstr, mem MemKind, addr value.Value, rest []sir.Src, swap bool) value.Value {
	op := t.atomicOp(in, swap)
	cmp, data := t.atomicOperands(in, rest, swap)
	ty := data.Type()
	ptr := t.memPointer(mem, addr, ty)
	scope := scopeAgent
	if mem == MemShared {
		scope = scopeWorkgroup
	}
	t.record(Access{
		Value: in.Dest, Memory: mem, Kind: AccessAtomic,
		Size: uint32(elemBytes(tir.ScalarBits(ty))),
	})

	if swap {
		return t.cmpxchg(ptr, cmp, data, scope)
	}
	if rop, ok := rmwOps[op]; ok {
		x := t.cur().NewAtomicRMW(rop, ptr, data, enum.AtomicOrderingMonotonic)
		x.SyncScope = scope
		return x
	}
	switch op {
	case sir.AtomicFMin, sir.AtomicFMax:
		name := intrinsicAtomicName(op)
		if mem == MemShared {
			return t.b.Call(tir.Overload("llvm.amdgcn.ds."+name, ty), ty,
				ptr, data, tir.I32(0), tir.I32(0), tir.Bool(false))
		}
		return t.b.Call(tir.Overload("llvm.amdgcn.global.atomic."+name, ty, ptr.Type(), ty), ty, ptr, data)
	case sir.AtomicIncWrap, sir.AtomicDecWrap:
		name := tir.Overload("llvm.amdgcn.atomic."+intrinsicAtomicName(op), ty, ptr.Type())
		return t.b.Call(name, ty, ptr, data, tir.I32(0), tir.I32(0), tir.Bool(false))
	}
	t.fatal("unsupported atomic %s on %s memory", op, mem)
	return nil
}

// privateAtomic emulates an atomic on per-invocation memory with a
// plain load, update and store.
func (t *translator) privateAtomic(in *sir.IntrinsicInstr, addr value.Value, rest []sir.Src, swap bool) value.Value {
	op := t.atomicOp(in, swap)
	cmp, data := t.atomicOperands(in, rest, swap)
	ty := data.Type()
	ptr := t.memPointer(MemScratch, addr, ty)
	old := t.cur().NewLoad(ty, ptr)
	blk := t.cur()

	var upd value.Value
	switch op {
	case sir.AtomicCompSwap:
		upd = blk.NewSelect(blk.NewICmp(enum.IPredEQ, old, cmp), data, old)
	case sir.AtomicExchange:
		upd = data
	case sir.AtomicIncWrap:
		wrap := blk.NewICmp(enum.IPredUGE, old, data)
		upd = blk.NewSelect(wrap, zero(ty), blk.NewAdd(old, t.iconst(ty, 1)))
	case sir.AtomicDecWrap:
		isZero := blk.NewICmp(enum.IPredEQ, old, zero(ty))
		over := blk.NewICmp(enum.IPredUGT, old, data)
		upd = blk.NewSelect(blk.NewOr(isZero, over), data, blk.NewSub(old, t.iconst(ty, 1)))
	default:
		upd = t.binary(privateAtomicOps[op], old, data)
	}
	t.cur().NewStore(upd, ptr)
	t.record(Access{
		Value: in.Dest, Memory: MemScratch, Kind: AccessAtomic,
		Size: uint32(elemBytes(tir.ScalarBits(ty))),
	})
	return old
}

var privateAtomicOps = map[sir.AtomicOp]sir.Op{
	sir.AtomicAdd:  sir.OpIAdd,
	sir.AtomicIMin: sir.OpIMin,
	sir.AtomicUMin: sir.OpUMin,
	sir.AtomicIMax: sir.OpIMax,
	sir.AtomicUMax: sir.OpUMax,
	sir.AtomicAnd:  sir.OpIAnd,
	sir.AtomicOr:   sir.OpIOr,
	sir.AtomicXor:  sir.OpIXor,
	sir.AtomicFAdd: sir.OpFAdd,
	sir.AtomicFMin: sir.OpFMin,
	sir.AtomicFMax: sir.OpFMax,
}

func (t *translator) sharedAtomic(in *sir.IntrinsicInstr, swap bool) {
	addr := t.sharedAddr(in.Srcs[0], in.Base)
	t.define(in.Dest, t.pointerAtomic(in, MemShared, addr, in.Srcs[1:], swap))
}

func (t *translator) globalAtomic(in *sir.IntrinsicInstr, swap bool) {
	addr := t.globalAddr(in.Srcs[0], in.Base)
	t.define(in.Dest, t.pointerAtomic(in, MemGlobal, addr, in.Srcs[1:], swap))
}
