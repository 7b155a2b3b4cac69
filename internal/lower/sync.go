package lower

import (
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

func syncScope(s sir.Scope) string {
	switch s {
	case sir.ScopeSubgroup:
		return scopeWavefront
	case sir.ScopeWorkgroup:
		return scopeWorkgroup
	}
	return scopeAgent
}

func (t *translator) fence(ord enum.AtomicOrdering, scope sir.Scope) {
	if scope == sir.ScopeNone {
		return
	}
	f := t.cur().NewFence(ord)
	f.SyncScope = syncScope(scope)
}

// controlBarrier releases memory at MemScope, waits for the workgroup and
// acquires again. A subgroup execution barrier needs no instruction.
func (t *translator) controlBarrier(in *sir.IntrinsicInstr) {
	t.fence(enum.AtomicOrderingRelease, in.MemScope)
	if in.Scope >= sir.ScopeWorkgroup {
		t.b.Call("llvm.amdgcn.s.barrier", types.Void)
	}
	t.fence(enum.AtomicOrderingAcquire, in.MemScope)
}

func (t *translator) shaderClock(in *sir.IntrinsicInstr) value.Value {
	var clk value.Value
	if in.Scope == sir.ScopeDevice {
		clk = t.b.Call("llvm.amdgcn.s.memrealtime", types.I64)
	} else {
		clk = t.b.Call("llvm.readcyclecounter", types.I64)
	}
	return t.b.ConvertTo(clk, t.legal(in.Dest))
}

// kill turns off the lanes where live is false. Demoted lanes keep
// running as helpers for derivatives.
func (t *translator) kill(live value.Value, demote bool) {
	name := "llvm.amdgcn.kill"
	if demote {
		name = "llvm.amdgcn.wqm.demote"
	}
	t.b.Call(name, types.Void, live)
}

func (t *translator) killIf(s sir.Src, demote bool) {
	cond := t.b.Resize(t.srcInt(s), 1, false)
	t.kill(t.cur().NewXor(cond, tir.Bool(true)), demote)
}

// terminate kills every lane and leaves the function. Code after it is
// lowered into an unreachable block.
func (t *translator) terminate() {
	if t.fn.Stage == sir.StageFragment {
		t.kill(tir.Bool(false), false)
	}
	t.b.Branch(t.epilogue)
	t.b.SetInsert(t.b.NewBlock())
}
