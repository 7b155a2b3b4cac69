package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/tir"
)

// waterfall is the state of one divergence guard. While active, the
// enclosed access runs once per distinct index with a wave-uniform copy
// of it, until every lane has been serviced.
type waterfall struct {
	active bool
	// pred[0] is the block that skips the region, pred[1] the block that
	// ran it.
	pred [2]*ir.Block
}

// enterWaterfall opens a guard around index. Uniform indices pass
// through and leave the guard inactive.
func (t *translator) enterWaterfall(wf *waterfall, index value.Value, divergent bool) value.Value {
	wf.active = divergent
	if !divergent {
		return index
	}
	t.wfDepth++
	t.waterfalls++

	t.b.BeginLoop()
	uniform := t.b.ReadFirstLane(index)
	same := t.sameIndex(index, uniform)
	wf.pred[0] = t.cur()
	t.b.If(same)
	return uniform
}

// sameIndex compares every component of a lane's index with the scalar copy.
func (t *translator) sameIndex(index, uniform value.Value) value.Value {
	x, y := t.b.ToInt(index), t.b.ToInt(uniform)
	eq := t.cur().NewICmp(enum.IPredEQ, x, y)
	n := tir.NumComponents(x.Type())
	if n == 1 {
		return eq
	}
	all := t.b.Extract(eq, 0)
	for i := 1; i < n; i++ {
		all = t.cur().NewAnd(all, t.b.Extract(eq, i))
	}
	return all
}

// exitWaterfall closes a guard. The region result v, when non-nil, is
// merged with undef so it stays defined on the skip edge.
func (t *translator) exitWaterfall(wf *waterfall, v value.Value) value.Value {
	if !wf.active {
		return v
	}
	if t.wfDepth == 0 {
		t.fatal("waterfall exit without matching enter")
	}
	t.wfDepth--
	wf.active = false

	wf.pred[1] = t.cur()
	t.b.EndIf()

	var merged value.Value
	if v != nil {
		merged = t.b.PhiOf(v.Type(),
			ir.NewIncoming(tir.Undef(v.Type()), wf.pred[0]),
			ir.NewIncoming(v, wf.pred[1]))
	}
	done := t.b.PhiOf(types.I32,
		ir.NewIncoming(tir.I32(0), wf.pred[0]),
		ir.NewIncoming(tir.I32(-1), wf.pred[1]))
	cc := t.b.Barrier(done)
	t.b.If(t.cur().NewICmp(enum.IPredNE, cc, tir.I32(0)))
	t.b.Break()
	t.b.EndIf()
	t.b.EndLoop()
	return merged
}
