package lower

import (
	"strconv"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
	"wavefront/internal/trace"
)

func (t *translator) lowerList(list []sir.Node, tracer trace.Tracer, parent uint64) {
	for i := range list {
		n := &list[i]
		switch n.Kind {
		case sir.NodeBlock:
			t.lowerBlock(n.Block, tracer, parent)
		case sir.NodeIf:
			t.lowerIf(n.If, tracer, parent)
		case sir.NodeLoop:
			t.b.BeginLoop()
			t.lowerList(n.Loop.Body, tracer, parent)
			t.b.EndLoop()
		default:
			t.fatal("unknown control-flow node %s", n.Kind)
		}
	}
}

func (t *translator) lowerIf(n *sir.If, tracer trace.Tracer, parent uint64) {
	cond := t.b.Convert(t.src(n.Cond), tir.ReprInt)
	if tir.ScalarBits(cond.Type()) != 1 || tir.NumComponents(cond.Type()) != 1 {
		t.fatal("if condition is %s, want i1", cond.Type())
	}
	t.b.If(cond)
	t.lowerList(n.Then, tracer, parent)
	t.b.Else()
	t.lowerList(n.Else, tracer, parent)
	t.b.EndIf()
}

func (t *translator) lowerBlock(blk *sir.Block, tracer trace.Tracer, parent uint64) {
	t.curBlock = blk.Index
	span := trace.Begin(tracer, trace.ScopeBlock, "bb"+strconv.Itoa(int(blk.Index)), parent)
	for i := range blk.Instrs {
		t.lowerInstr(&blk.Instrs[i])
	}
	t.setBlock(blk.Index, t.b.Cur())
	span.End("")
}

func (t *translator) lowerInstr(ins *sir.Instr) {
	switch ins.Kind {
	case sir.InstrALU:
		t.define(ins.ALU.Dest, t.lowerALU(&ins.ALU))
	case sir.InstrConst:
		t.lowerConst(&ins.Const)
	case sir.InstrUndef:
		t.define(ins.Undef.Dest, tir.Undef(t.legal(ins.Undef.Dest)))
	case sir.InstrPhi:
		phi := t.b.Phi(t.legal(ins.Phi.Dest))
		t.phis = append(t.phis, pendingPhi{phi: phi, src: &ins.Phi, at: t.curBlock})
		t.define(ins.Phi.Dest, phi)
	case sir.InstrJump:
		t.lowerJump(ins.Jump.Kind)
	case sir.InstrDeref:
		t.lowerDeref(&ins.Deref)
	case sir.InstrIntrinsic:
		t.lowerIntrinsic(&ins.Intrinsic)
	case sir.InstrTex:
		t.lowerTex(&ins.Tex)
	default:
		t.fatal("unsupported instruction kind %s", ins.Kind)
	}
}

func (t *translator) lowerJump(kind sir.JumpKind) {
	switch kind {
	case sir.JumpBreak:
		t.b.Break()
	case sir.JumpContinue:
		t.b.Continue()
	case sir.JumpReturn:
		t.b.Branch(t.epilogue)
	default:
		t.fatal("unknown jump %s", kind)
	}
}

func (t *translator) lowerConst(c *sir.ConstInstr) {
	def := t.def(c.Dest)
	if len(c.Bits) != int(def.Components) {
		t.fatal("constant %%%d has %d components, want %d", c.Dest, len(c.Bits), def.Components)
	}
	t.consts[c.Dest] = c.Bits
	if len(c.Bits) == 1 {
		t.define(c.Dest, tir.ConstInt(def.BitSize, c.Bits[0]))
		return
	}
	t.define(c.Dest, t.b.Gather(t.constComponents(c.Dest)))
}

// resolvePhis wires one incoming value per predecessor edge. It runs
// after every block exists, so back-edge sources are defined.
func (t *translator) resolvePhis() {
	for _, p := range t.phis {
		t.curBlock = p.at
		for _, s := range p.src.Srcs {
			t.b.AddIncoming(p.phi, t.value(s.Value), t.block(s.Pred))
		}
	}
	t.curBlock = sir.NoBlockID
}
