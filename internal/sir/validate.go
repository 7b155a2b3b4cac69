package sir

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks SIR module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := ValidateFunc(f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunc checks the invariants of a single function.
func ValidateFunc(f *Func) error {
	if f == nil {
		return nil
	}

	var errs []error

	// 1. Value table is dense and widths are legal
	if err := validateDefs(f); err != nil {
		errs = append(errs, err)
	}

	// 2. CF lists are well-formed, block indices dense
	if err := validateStructure(f); err != nil {
		errs = append(errs, err)
	}

	// 3. Every value defined once, every use defined
	if err := validateSSA(f); err != nil {
		errs = append(errs, err)
	}

	// 4. Phi sources match structural predecessors
	if err := validatePhis(f); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateDefs(f *Func) error {
	var errs []error
	for i, d := range f.Values {
		if d.ID != ValueID(i) {
			errs = append(errs, fmt.Errorf("%%%d: value table slot holds id %%%d", i, d.ID))
		}
		if !ValidBitSize(d.BitSize) {
			errs = append(errs, fmt.Errorf("%%%d: invalid bit size %d", i, d.BitSize))
		}
		if d.Components == 0 || d.Components > MaxComponents {
			errs = append(errs, fmt.Errorf("%%%d: invalid component count %d", i, d.Components))
		}
	}
	return errors.Join(errs...)
}

func validateStructure(f *Func) error {
	var errs []error
	seen := make([]bool, f.NumBlocks)

	var walk func(list []Node, where string, loopDepth int)
	walk = func(list []Node, where string, loopDepth int) {
		if len(list) == 0 {
			errs = append(errs, fmt.Errorf("%s: empty CF list", where))
			return
		}
		if list[0].Kind != NodeBlock || list[len(list)-1].Kind != NodeBlock {
			errs = append(errs, fmt.Errorf("%s: CF list must start and end with a block", where))
		}
		for i := range list {
			n := &list[i]
			if i > 0 && n.Kind != NodeBlock && list[i-1].Kind != NodeBlock {
				errs = append(errs, fmt.Errorf("%s: control-flow nodes must be separated by blocks", where))
			}
			switch n.Kind {
			case NodeBlock:
				b := n.Block
				if b == nil {
					errs = append(errs, fmt.Errorf("%s: nil block", where))
					continue
				}
				if b.Index < 0 || int(b.Index) >= f.NumBlocks {
					errs = append(errs, fmt.Errorf("bb%d: index out of range [0,%d)", b.Index, f.NumBlocks))
				} else if seen[b.Index] {
					errs = append(errs, fmt.Errorf("bb%d: block appears twice", b.Index))
				} else {
					seen[b.Index] = true
				}
				errs = append(errs, validateBlockShape(b, i == len(list)-1, loopDepth)...)
			case NodeIf:
				if n.If == nil {
					errs = append(errs, fmt.Errorf("%s: nil if", where))
					continue
				}
				walk(n.If.Then, where+"/then", loopDepth)
				walk(n.If.Else, where+"/else", loopDepth)
			case NodeLoop:
				if n.Loop == nil {
					errs = append(errs, fmt.Errorf("%s: nil loop", where))
					continue
				}
				walk(n.Loop.Body, where+"/loop", loopDepth+1)
			default:
				errs = append(errs, fmt.Errorf("%s: unknown node kind %d", where, n.Kind))
			}
		}
	}
	walk(f.Body, "body", 0)

	for i, ok := range seen {
		if !ok {
			errs = append(errs, fmt.Errorf("bb%d: block index not used", i))
		}
	}
	return errors.Join(errs...)
}

func validateBlockShape(b *Block, last bool, loopDepth int) []error {
	var errs []error
	phisDone := false
	for i := range b.Instrs {
		ins := &b.Instrs[i]
		switch ins.Kind {
		case InstrPhi:
			if phisDone {
				errs = append(errs, fmt.Errorf("bb%d: phi after non-phi instruction", b.Index))
			}
		case InstrJump:
			phisDone = true
			if i != len(b.Instrs)-1 {
				errs = append(errs, fmt.Errorf("bb%d: %s is not the last instruction", b.Index, ins.Jump.Kind))
			}
			if !last {
				errs = append(errs, fmt.Errorf("bb%d: %s in a block that is not last in its list", b.Index, ins.Jump.Kind))
			}
			if ins.Jump.Kind != JumpReturn && loopDepth == 0 {
				errs = append(errs, fmt.Errorf("bb%d: %s outside of a loop", b.Index, ins.Jump.Kind))
			}
		case InstrTex:
			phisDone = true
			if !ins.Tex.Op.Valid() {
				errs = append(errs, fmt.Errorf("bb%d: unknown texture operation %d", b.Index, ins.Tex.Op))
			}
		default:
			phisDone = true
		}
	}
	return errs
}

func validateSSA(f *Func) error {
	var errs []error
	defined := make([]bool, len(f.Values))

	checkUse := func(b *Block, v ValueID, swz []uint8) {
		if v < 0 || int(v) >= len(f.Values) {
			errs = append(errs, fmt.Errorf("bb%d: use of undefined value %%%d", b.Index, v))
			return
		}
		for _, c := range swz {
			if c >= f.Values[v].Components {
				errs = append(errs, fmt.Errorf("bb%d: swizzle component %d out of range for %%%d", b.Index, c, v))
			}
		}
	}
	def := func(b *Block, v ValueID) {
		if v == NoValueID {
			return
		}
		if v < 0 || int(v) >= len(f.Values) {
			errs = append(errs, fmt.Errorf("bb%d: definition of unknown value %%%d", b.Index, v))
			return
		}
		if defined[v] {
			errs = append(errs, fmt.Errorf("bb%d: value %%%d defined twice", b.Index, v))
		}
		defined[v] = true
	}

	var conds []Src
	var collect func(list []Node)
	collect = func(list []Node) {
		for i := range list {
			switch list[i].Kind {
			case NodeIf:
				if list[i].If != nil {
					conds = append(conds, list[i].If.Cond)
					collect(list[i].If.Then)
					collect(list[i].If.Else)
				}
			case NodeLoop:
				if list[i].Loop != nil {
					collect(list[i].Loop.Body)
				}
			}
		}
	}
	collect(f.Body)

	WalkBlocks(f.Body, func(b *Block) {
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			forEachSrc(ins, func(s Src) { checkUse(b, s.Value, s.Swizzle) })
			if ins.Kind == InstrPhi {
				for _, ps := range ins.Phi.Srcs {
					checkUse(b, ps.Value, nil)
				}
			}
			def(b, ins.Dest())
		}
	})
	for _, c := range conds {
		if c.Value < 0 || int(c.Value) >= len(f.Values) || !defined[c.Value] {
			errs = append(errs, fmt.Errorf("if condition uses undefined value %%%d", c.Value))
		}
	}
	for i, ok := range defined {
		if !ok {
			errs = append(errs, fmt.Errorf("%%%d: declared but never defined", i))
		}
	}
	return errors.Join(errs...)
}

func validatePhis(f *Func) error {
	if f.NumBlocks == 0 {
		return nil
	}
	preds := Preds(f)
	var errs []error
	WalkBlocks(f.Body, func(b *Block) {
		if b.Index < 0 || int(b.Index) >= len(preds) {
			return
		}
		want := slices.Clone(preds[b.Index])
		slices.Sort(want)
		for i := range b.Instrs {
			ins := &b.Instrs[i]
			if ins.Kind != InstrPhi {
				continue
			}
			got := make([]BlockID, 0, len(ins.Phi.Srcs))
			for _, s := range ins.Phi.Srcs {
				got = append(got, s.Pred)
			}
			slices.Sort(got)
			if !slices.Equal(got, want) {
				errs = append(errs, fmt.Errorf("bb%d: phi %%%d sources %v do not match predecessors %v",
					b.Index, ins.Phi.Dest, got, want))
			}
		}
	})
	return errors.Join(errs...)
}

// Preds returns the structural predecessors of every block, indexed by
// BlockID, in the order the edges are created by a program-order walk.
func Preds(f *Func) [][]BlockID {
	preds := make([][]BlockID, f.NumBlocks)
	type loopCtx struct {
		breaks []BlockID
		conts  []BlockID
	}
	var loops []*loopCtx

	var walk func(list []Node, cur []BlockID) []BlockID
	walk = func(list []Node, cur []BlockID) []BlockID {
		for i := range list {
			n := &list[i]
			switch n.Kind {
			case NodeBlock:
				b := n.Block
				if b == nil || b.Index < 0 || int(b.Index) >= len(preds) {
					continue
				}
				preds[b.Index] = append(preds[b.Index], cur...)
				cur = []BlockID{b.Index}
				if !b.Terminated() {
					continue
				}
				switch b.Instrs[len(b.Instrs)-1].Jump.Kind {
				case JumpBreak:
					if len(loops) > 0 {
						top := loops[len(loops)-1]
						top.breaks = append(top.breaks, b.Index)
					}
				case JumpContinue:
					if len(loops) > 0 {
						top := loops[len(loops)-1]
						top.conts = append(top.conts, b.Index)
					}
				}
				cur = nil
			case NodeIf:
				if n.If == nil {
					continue
				}
				thenOut := walk(n.If.Then, cur)
				elseOut := walk(n.If.Else, cur)
				cur = append(thenOut, elseOut...)
			case NodeLoop:
				if n.Loop == nil {
					continue
				}
				ctx := &loopCtx{}
				loops = append(loops, ctx)
				end := walk(n.Loop.Body, cur)
				loops = loops[:len(loops)-1]
				if head := FirstBlock(n.Loop.Body); head != nil && head.Index >= 0 && int(head.Index) < len(preds) {
					preds[head.Index] = append(preds[head.Index], end...)
					preds[head.Index] = append(preds[head.Index], ctx.conts...)
				}
				cur = ctx.breaks
			}
		}
		return cur
	}
	walk(f.Body, nil)
	return preds
}

// forEachSrc calls fn for every value operand of ins except phi sources.
func forEachSrc(ins *Instr, fn func(Src)) {
	switch ins.Kind {
	case InstrALU:
		for _, s := range ins.ALU.Srcs {
			fn(s)
		}
	case InstrIntrinsic:
		for _, s := range ins.Intrinsic.Srcs {
			fn(s)
		}
	case InstrTex:
		for _, s := range ins.Tex.Srcs {
			fn(s.Src)
		}
	case InstrDeref:
		if ins.Deref.Kind != DerefVar && ins.Deref.Kind != DerefCast && ins.Deref.Parent != NoValueID {
			fn(Use(ins.Deref.Parent))
		}
		if ins.Deref.Kind == DerefArray || ins.Deref.Kind == DerefCast {
			fn(ins.Deref.Index)
		}
	}
}
