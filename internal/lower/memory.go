package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// nonUniform reports whether a resource index needs a divergence guard.
func (t *translator) nonUniform(access sir.Access, s sir.Src) bool {
	return access&sir.AccessNonUniform != 0 && !t.isConst(s)
}

// addOffset adds a constant to an integer offset, folding constants.
func (t *translator) addOffset(v value.Value, add int64) value.Value {
	bits := tir.ScalarBits(v.Type())
	if c, ok := tir.ConstValue(v); ok {
		return tir.ConstInt(bits, c+uint64(add))
	}
	if add == 0 {
		return v
	}
	return t.cur().NewAdd(v, tir.ConstInt(bits, uint64(add)))
}

// offset returns an i32 byte offset from a source plus a constant base.
func (t *translator) offset(s sir.Src, base int32) value.Value {
	return t.addOffset(t.srcI32(s), int64(base))
}

// memBits is the in-memory width of a value's elements; booleans occupy
// a dword.
func memBits(bits uint8) uint8 {
	if bits == 1 {
		return 32
	}
	return bits
}

// toMemory widens booleans for storing.
func (t *translator) toMemory(v value.Value) value.Value {
	v = t.b.ToInt(v)
	if tir.ScalarBits(v.Type()) == 1 {
		return t.b.Resize(v, 32, false)
	}
	return v
}

// fromMemory narrows a loaded value back to the width of def.
func (t *translator) fromMemory(v value.Value, def sir.Def) value.Value {
	if def.BitSize == 1 {
		return t.cur().NewICmp(enum.IPredNE, v, zero(v.Type()))
	}
	return v
}

func elemBytes(bits uint8) int {
	if bits < 8 {
		return 1
	}
	return int(bits) / 8
}

func (t *translator) ssboDescriptor(in *sir.IntrinsicInstr, s sir.Src, write bool, wf *waterfall) value.Value {
	idx := t.enterWaterfall(wf, t.srcI32(s), t.nonUniform(in.Access, s))
	return t.abi.LoadStorageBuffer(t.env, in.Set, in.Binding, idx, write)
}

func (t *translator) uboDescriptor(in *sir.IntrinsicInstr, s sir.Src, wf *waterfall) value.Value {
	idx := t.enterWaterfall(wf, t.srcI32(s), t.nonUniform(in.Access, s))
	return t.abi.LoadUniformBuffer(t.env, in.Set, in.Binding, idx)
}

// loadBuffer loads the destination of in from a buffer descriptor,
// splitting it into hardware-sized pieces. Scalar loads are used when
// smem is set and the piece is at least a dword.
func (t *translator) loadBuffer(in *sir.IntrinsicInstr, mem MemKind, desc, off value.Value, smem, guarded bool) value.Value {
	def := t.def(in.Dest)
	bits := memBits(def.BitSize)
	eb := elemBytes(bits)
	policy := cachePolicy(t.target, in.Access, false, true)

	var pieces []value.Value
	for _, c := range planLoad(bits, int(def.Components), in.Align) {
		bytes := c.count * eb
		at := t.addOffset(off, int64(c.start*eb))
		raw := t.bufferLoad(desc, at, bytes, policy, smem)
		pieces = append(pieces, t.b.ConvertTo(raw, ivec(bits, c.count)))
		t.record(Access{
			Value: in.Dest, Memory: mem, Kind: AccessLoad,
			Offset: uint32(c.start * eb), Size: uint32(bytes),
			Policy: policy, Waterfall: guarded,
		})
	}
	v := pieces[0]
	if len(pieces) > 1 {
		v = t.b.Concat(pieces...)
	}
	return t.fromMemory(v, def)
}

// bufferLoad fetches bytes from a buffer and returns them as an integer
// of that width, or a byte vector when the width has no integer view.
func (t *translator) bufferLoad(desc, off value.Value, bytes int, policy Policy, smem bool) value.Value {
	ch := loadChannels(t.target, bytes)
	if ch == 0 {
		ty := tir.IntType(uint8(bytes * 8))
		return t.b.Call(tir.Overload("llvm.amdgcn.raw.buffer.load", ty), ty,
			desc, off, tir.I32(0), tir.I32(int64(policy)))
	}
	ty := tir.Vec(types.I32, ch)
	var raw value.Value
	if smem {
		raw = t.b.Call(tir.Overload("llvm.amdgcn.s.buffer.load", ty), ty,
			desc, off, tir.I32(int64(policy)))
	} else {
		raw = t.b.Call(tir.Overload("llvm.amdgcn.raw.buffer.load", ty), ty,
			desc, off, tir.I32(0), tir.I32(int64(policy)))
	}
	if ch*4 == bytes {
		return raw
	}
	return t.b.Trim(t.b.Reshape(raw, 8, ch*4), bytes)
}

// storeBuffer writes the masked components of v through desc.
func (t *translator) storeBuffer(in *sir.IntrinsicInstr, mem MemKind, v sir.Src, desc, off value.Value, guarded bool) {
	data := t.toMemory(t.src(v))
	bits := tir.ScalarBits(data.Type())
	n := tir.NumComponents(data.Type())
	eb := elemBytes(bits)
	mask := in.WriteMask
	if mask == 0 {
		mask = 1<<n - 1
	}
	aligned := in.Align == 0 || in.Align%4 == 0
	policy := cachePolicy(t.target, in.Access, true, aligned)

	for _, c := range planStore(t.target, bits, n, mask) {
		bytes := c.count * eb
		piece := t.b.ExtractRange(data, c.start, c.count)
		var out value.Value
		if bytes <= 2 {
			out = t.b.ConvertTo(piece, tir.IntType(uint8(bytes*8)))
		} else {
			out = t.b.Reshape(piece, 32, bytes/4)
		}
		at := t.addOffset(off, int64(c.start*eb))
		t.b.Call(tir.Overload("llvm.amdgcn.raw.buffer.store", out.Type()), types.Void,
			out, desc, at, tir.I32(0), tir.I32(int64(policy)))
		t.record(Access{
			Value: v.Value, Memory: mem, Kind: AccessStore,
			Offset: uint32(c.start * eb), Size: uint32(bytes),
			Policy: policy, Waterfall: guarded,
		})
	}
}

func (t *translator) loadSSBO(in *sir.IntrinsicInstr) {
	var wf waterfall
	desc := t.ssboDescriptor(in, in.Srcs[0], false, &wf)
	guarded := wf.active
	v := t.loadBuffer(in, MemSSBO, desc, t.offset(in.Srcs[1], in.Base), false, guarded)
	t.define(in.Dest, t.exitWaterfall(&wf, v))
}

func (t *translator) storeSSBO(in *sir.IntrinsicInstr) {
	var wf waterfall
	desc := t.ssboDescriptor(in, in.Srcs[1], true, &wf)
	guarded := wf.active
	t.storeBuffer(in, MemSSBO, in.Srcs[0], desc, t.offset(in.Srcs[2], in.Base), guarded)
	t.exitWaterfall(&wf, nil)
}

// loadUBO uses scalar loads when the offset is uniform.
func (t *translator) loadUBO(in *sir.IntrinsicInstr) {
	var wf waterfall
	desc := t.uboDescriptor(in, in.Srcs[0], &wf)
	guarded := wf.active
	smem := !t.divergent(in.Srcs[1])
	v := t.loadBuffer(in, MemUBO, desc, t.offset(in.Srcs[1], in.Base), smem, guarded)
	t.define(in.Dest, t.exitWaterfall(&wf, v))
}

func (t *translator) getSSBOSize(in *sir.IntrinsicInstr) {
	var wf waterfall
	desc := t.ssboDescriptor(in, in.Srcs[0], false, &wf)
	size := t.b.Extract(desc, 2)
	t.define(in.Dest, t.exitWaterfall(&wf, size))
}

func (t *translator) loadPushConstant(in *sir.IntrinsicInstr) {
	def := t.def(in.Dest)
	bits := memBits(def.BitSize)
	v := t.abi.LoadPushConstant(t.env, t.offset(in.Srcs[0], in.Base), bits, def.Components)
	t.record(Access{
		Value: in.Dest, Memory: MemPushConstant, Kind: AccessLoad,
		Size: uint32(int(def.Components) * elemBytes(bits)),
	})
	t.define(in.Dest, t.fromMemory(v, def))
}

// memPointer turns an address of a pointer-addressed memory into a
// typed pointer: an LDS byte offset, a 64-bit global address, or a
// private byte pointer.
func (t *translator) memPointer(mem MemKind, addr value.Value, elem types.Type) value.Value {
	switch mem {
	case MemShared:
		return t.b.ToPointer(t.b.Resize(addr, 32, false), elem, tir.AddrSpaceLDS)
	case MemGlobal:
		return t.b.ToPointer(addr, elem, tir.AddrSpaceGlobal)
	case MemScratch:
		return t.b.ToPointer(addr, elem, tir.AddrSpacePrivate)
	}
	t.fatal("%s memory is not pointer addressed", mem)
	return nil
}

// loadPointer loads the destination of in through a pointer.
func (t *translator) loadPointer(in *sir.IntrinsicInstr, mem MemKind, addr value.Value) value.Value {
	def := t.def(in.Dest)
	ty := tir.Legalize(memBits(def.BitSize), def.Components)
	ld := t.cur().NewLoad(ty, t.memPointer(mem, addr, ty))
	ld.Volatile = in.Access&sir.AccessVolatile != 0
	if in.Align != 0 {
		ld.Align = ir.Align(in.Align)
	}
	t.record(Access{
		Value: in.Dest, Memory: mem, Kind: AccessLoad,
		Size: uint32(int(def.Components) * elemBytes(memBits(def.BitSize))),
	})
	return t.fromMemory(ld, def)
}

// storePointer writes the masked components of v through a pointer, one
// store per consecutive run of written components.
func (t *translator) storePointer(in *sir.IntrinsicInstr, mem MemKind, v sir.Src, addr value.Value) {
	data := t.toMemory(t.src(v))
	bits := tir.ScalarBits(data.Type())
	n := tir.NumComponents(data.Type())
	eb := elemBytes(bits)
	mask := in.WriteMask
	if mask == 0 {
		mask = 1<<n - 1
	}
	for start := 0; start < n; {
		if mask&(1<<start) == 0 {
			start++
			continue
		}
		end := start
		for end < n && mask&(1<<end) != 0 {
			end++
		}
		piece := t.b.ExtractRange(data, start, end-start)
		at := t.advance(addr, int64(start*eb))
		st := t.cur().NewStore(piece, t.memPointer(mem, at, piece.Type()))
		st.Volatile = in.Access&sir.AccessVolatile != 0
		t.record(Access{
			Value: v.Value, Memory: mem, Kind: AccessStore,
			Offset: uint32(start * eb), Size: uint32((end - start) * eb),
		})
		start = end
	}
}

// advance moves an address forward by a byte count. Pointers step
// through a byte GEP.
func (t *translator) advance(addr value.Value, bytes int64) value.Value {
	if bytes == 0 {
		return addr
	}
	if pt, ok := addr.Type().(*types.PointerType); ok {
		p := t.b.ToPointer(addr, types.I8, pt.AddrSpace)
		return t.cur().NewGetElementPtr(types.I8, p, tir.I32(bytes))
	}
	return t.addOffset(addr, bytes)
}

func (t *translator) sharedAddr(s sir.Src, base int32) value.Value {
	return t.offset(s, base)
}

func (t *translator) globalAddr(s sir.Src, base int32) value.Value {
	addr := t.b.Resize(t.srcInt(s), 64, false)
	return t.addOffset(addr, int64(base))
}
