package sir

import (
	"fmt"
	"math"

	"fortio.org/safecast"
)

// Builder constructs a structured SIR function in program order.
type Builder struct {
	f     *Func
	lists []*[]Node
	cur   *Block
}

// NewBuilder returns a builder positioned in the entry block of a new function.
func NewBuilder(name string, stage Stage) *Builder {
	b := &Builder{f: &Func{Name: name, Stage: stage}}
	b.lists = []*[]Node{&b.f.Body}
	b.startBlock()
	return b
}

func (b *Builder) startBlock() {
	blk := &Block{Index: BlockID(b.f.NumBlocks)}
	b.f.NumBlocks++
	list := b.lists[len(b.lists)-1]
	*list = append(*list, BlockNode(blk))
	b.cur = blk
}

func (b *Builder) emit(ins Instr) {
	b.cur.Instrs = append(b.cur.Instrs, ins)
}

// CurrentBlock returns the index of the block instructions are appended to.
func (b *Builder) CurrentBlock() BlockID { return b.cur.Index }

// NewValue declares a value without defining it.
func (b *Builder) NewValue(bits, comps uint8) ValueID {
	id := ValueID(len(b.f.Values))
	b.f.Values = append(b.f.Values, Def{ID: id, BitSize: bits, Components: comps})
	return id
}

// SetDivergent marks v as lane-varying.
func (b *Builder) SetDivergent(v ValueID) ValueID {
	b.f.Values[v].Divergent = true
	return v
}

// Const defines a constant with one raw bit pattern per component.
func (b *Builder) Const(bits uint8, comps ...uint64) ValueID {
	n, err := safecast.Conv[uint8](len(comps))
	if err != nil {
		panic(fmt.Sprintf("sir: constant with %d components", len(comps)))
	}
	dst := b.NewValue(bits, n)
	b.emit(Instr{Kind: InstrConst, Const: ConstInstr{Dest: dst, Bits: comps}})
	return dst
}

// ConstF32 defines a 32-bit float constant.
func (b *Builder) ConstF32(vals ...float32) ValueID {
	raw := make([]uint64, len(vals))
	for i, v := range vals {
		raw[i] = uint64(math.Float32bits(v))
	}
	return b.Const(32, raw...)
}

// ConstU32 defines a 32-bit integer constant.
func (b *Builder) ConstU32(vals ...uint32) ValueID {
	raw := make([]uint64, len(vals))
	for i, v := range vals {
		raw[i] = uint64(v)
	}
	return b.Const(32, raw...)
}

// Undef defines a value with unspecified contents.
func (b *Builder) Undef(bits, comps uint8) ValueID {
	dst := b.NewValue(bits, comps)
	b.emit(Instr{Kind: InstrUndef, Undef: UndefInstr{Dest: dst}})
	return dst
}

// ALU appends an ALU instruction and returns its result.
func (b *Builder) ALU(op Op, bits, comps uint8, srcs ...Src) ValueID {
	dst := b.NewValue(bits, comps)
	b.emit(Instr{Kind: InstrALU, ALU: ALUInstr{Op: op, Dest: dst, Srcs: srcs}})
	return dst
}

// Intrinsic appends an intrinsic. A zero comps means the intrinsic has
// no result and NoValueID is returned.
func (b *Builder) Intrinsic(in IntrinsicInstr, bits, comps uint8) ValueID {
	in.Dest = NoValueID
	if comps > 0 {
		in.Dest = b.NewValue(bits, comps)
	}
	b.emit(Instr{Kind: InstrIntrinsic, Intrinsic: in})
	return in.Dest
}

// Tex appends a texture instruction.
func (b *Builder) Tex(t TexInstr, bits, comps uint8) ValueID {
	t.Dest = b.NewValue(bits, comps)
	b.emit(Instr{Kind: InstrTex, Tex: t})
	return t.Dest
}

// Deref appends an address computation. Shared and function derefs are
// 32-bit offsets, global derefs are 64-bit addresses.
func (b *Builder) Deref(d DerefInstr) ValueID {
	bits := uint8(32)
	if d.Mode == VarGlobal {
		bits = 64
	}
	d.Dest = b.NewValue(bits, 1)
	b.emit(Instr{Kind: InstrDeref, Deref: d})
	return d.Dest
}

// Var declares a variable.
func (b *Builder) Var(name string, mode VarMode, size, offset uint32, elemBits uint8) VarID {
	id := VarID(len(b.f.Vars))
	b.f.Vars = append(b.f.Vars, Var{ID: id, Name: name, Mode: mode, Size: size, Offset: offset, ElemBits: elemBits})
	if mode == VarShared && offset+size > b.f.SharedSize {
		b.f.SharedSize = offset + size
	}
	return id
}

// Phi appends a phi to the current block. Sources may be added later with
// AddPhiSrc once the predecessors exist.
func (b *Builder) Phi(bits, comps uint8, srcs ...PhiSrc) ValueID {
	dst := b.NewValue(bits, comps)
	b.emit(Instr{Kind: InstrPhi, Phi: PhiInstr{Dest: dst, Srcs: srcs}})
	return dst
}

// AddPhiSrc appends a source to the phi defining v.
func (b *Builder) AddPhiSrc(v ValueID, pred BlockID, value ValueID) {
	WalkBlocks(b.f.Body, func(blk *Block) {
		for i := range blk.Instrs {
			ins := &blk.Instrs[i]
			if ins.Kind == InstrPhi && ins.Phi.Dest == v {
				ins.Phi.Srcs = append(ins.Phi.Srcs, PhiSrc{Pred: pred, Value: value})
			}
		}
	})
}

// If emits a structured branch. Either arm may be nil; the arms always get
// at least one block. Instructions after If go to a fresh merge block.
func (b *Builder) If(cond Src, then, els func()) {
	n := &If{Cond: cond}
	list := b.lists[len(b.lists)-1]
	*list = append(*list, IfNode(n))

	b.lists = append(b.lists, &n.Then)
	b.startBlock()
	if then != nil {
		then()
	}
	b.lists[len(b.lists)-1] = &n.Else
	b.startBlock()
	if els != nil {
		els()
	}
	b.lists = b.lists[:len(b.lists)-1]
	b.startBlock()
}

// Loop emits a structured loop. The body must leave the loop through Break.
func (b *Builder) Loop(body func()) {
	n := &Loop{}
	list := b.lists[len(b.lists)-1]
	*list = append(*list, LoopNode(n))

	b.lists = append(b.lists, &n.Body)
	b.startBlock()
	if body != nil {
		body()
	}
	b.lists = b.lists[:len(b.lists)-1]
	b.startBlock()
}

// Break ends the current block with a loop break.
func (b *Builder) Break() { b.emit(Instr{Kind: InstrJump, Jump: JumpInstr{Kind: JumpBreak}}) }

// Continue ends the current block with a loop continue.
func (b *Builder) Continue() { b.emit(Instr{Kind: InstrJump, Jump: JumpInstr{Kind: JumpContinue}}) }

// Return ends the current block with a function return.
func (b *Builder) Return() { b.emit(Instr{Kind: InstrJump, Jump: JumpInstr{Kind: JumpReturn}}) }

// SetWorkgroupSize records the compute workgroup shape.
func (b *Builder) SetWorkgroupSize(x, y, z uint16) {
	b.f.WorkgroupSize = [3]uint16{x, y, z}
}

// Func returns the function under construction.
func (b *Builder) Func() *Func { return b.f }
