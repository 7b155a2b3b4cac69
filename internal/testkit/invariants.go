// Package testkit holds checks shared by tests of translated functions.
package testkit

import (
	"fmt"

	"github.com/llir/llvm/ir"
)

// CheckFunc runs the structural invariants of a translated function:
// 1) every block ends in a terminator whose successors belong to f
// 2) phis lead their block
// 3) the incoming blocks of every phi are exactly the block's predecessors
func CheckFunc(f *ir.Func) error {
	if f == nil {
		return fmt.Errorf("nil function")
	}
	if len(f.Blocks) == 0 {
		return fmt.Errorf("%s: no blocks", f.Name())
	}
	owned := make(map[*ir.Block]bool, len(f.Blocks))
	for _, blk := range f.Blocks {
		owned[blk] = true
	}

	preds := make(map[*ir.Block]map[*ir.Block]bool)
	for i, blk := range f.Blocks {
		if blk.Term == nil {
			return fmt.Errorf("%s: block %d has no terminator", f.Name(), i)
		}
		for _, succ := range blk.Term.Succs() {
			if !owned[succ] {
				return fmt.Errorf("%s: block %d branches outside the function", f.Name(), i)
			}
			if preds[succ] == nil {
				preds[succ] = make(map[*ir.Block]bool)
			}
			preds[succ][blk] = true
		}
	}

	for i, blk := range f.Blocks {
		leading := true
		for _, inst := range blk.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				leading = false
				continue
			}
			if !leading {
				return fmt.Errorf("%s: block %d has a phi after other instructions", f.Name(), i)
			}
			if err := checkPhi(phi, preds[blk]); err != nil {
				return fmt.Errorf("%s: block %d: %w", f.Name(), i, err)
			}
		}
	}
	return nil
}

func checkPhi(phi *ir.InstPhi, preds map[*ir.Block]bool) error {
	seen := make(map[*ir.Block]bool, len(phi.Incs))
	for _, inc := range phi.Incs {
		pred, ok := inc.Pred.(*ir.Block)
		if !ok {
			return fmt.Errorf("phi incoming from %T", inc.Pred)
		}
		if !preds[pred] {
			return fmt.Errorf("phi incoming from a block that is not a predecessor")
		}
		seen[pred] = true
	}
	if len(seen) != len(preds) {
		return fmt.Errorf("phi covers %d of %d predecessors", len(seen), len(preds))
	}
	return nil
}
