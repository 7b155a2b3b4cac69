package tir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

type flowKind uint8

const (
	flowIf flowKind = iota
	flowLoop
)

type flowFrame struct {
	kind flowKind
	// next is the else/endif block of an if, or the exit block of a loop.
	next  *ir.Block
	entry *ir.Block
}

// If opens a region executed when cond is true.
func (b *Builder) If(cond value.Value) {
	then := b.NewBlock()
	next := b.NewBlock()
	b.CondBranch(cond, then, next)
	b.flow = append(b.flow, flowFrame{kind: flowIf, next: next})
	b.SetInsert(then)
}

// Else closes the then-region and opens the else-region.
func (b *Builder) Else() {
	fr := b.top(flowIf)
	endif := b.NewBlock()
	b.Branch(endif)
	b.SetInsert(fr.next)
	fr.next = endif
}

// EndIf closes the innermost if and positions at its merge block.
func (b *Builder) EndIf() {
	fr := b.top(flowIf)
	b.Branch(fr.next)
	b.flow = b.flow[:len(b.flow)-1]
	b.SetInsert(fr.next)
}

// BeginLoop opens a loop and positions at its header.
func (b *Builder) BeginLoop() *ir.Block {
	entry := b.NewBlock()
	exit := b.NewBlock()
	b.Branch(entry)
	b.flow = append(b.flow, flowFrame{kind: flowLoop, next: exit, entry: entry})
	b.SetInsert(entry)
	return entry
}

// Break branches to the exit of the innermost loop.
func (b *Builder) Break() {
	b.Branch(b.loop().next)
}

// Continue branches to the header of the innermost loop.
func (b *Builder) Continue() {
	b.Branch(b.loop().entry)
}

// EndLoop closes the innermost loop with a back edge and positions at
// the loop exit.
func (b *Builder) EndLoop() {
	fr := b.top(flowLoop)
	b.Branch(fr.entry)
	b.flow = b.flow[:len(b.flow)-1]
	b.SetInsert(fr.next)
}

// FlowDepth returns the number of open ifs and loops.
func (b *Builder) FlowDepth() int { return len(b.flow) }

func (b *Builder) top(kind flowKind) *flowFrame {
	if len(b.flow) == 0 || b.flow[len(b.flow)-1].kind != kind {
		failf("unbalanced control flow: no open %s", kind)
	}
	return &b.flow[len(b.flow)-1]
}

func (b *Builder) loop() *flowFrame {
	for i := len(b.flow) - 1; i >= 0; i-- {
		if b.flow[i].kind == flowLoop {
			return &b.flow[i]
		}
	}
	failf("break or continue outside of a loop")
	return nil
}

func (k flowKind) String() string {
	if k == flowLoop {
		return "loop"
	}
	return "if"
}
