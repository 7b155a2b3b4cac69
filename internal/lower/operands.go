package lower

import (
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

func (t *translator) def(id sir.ValueID) sir.Def {
	d, ok := t.fn.Def(id)
	if !ok {
		t.fatal("reference to unknown value %%%d", id)
	}
	return d
}

// legal returns the legalized integer type of a source value.
func (t *translator) legal(id sir.ValueID) types.Type {
	d := t.def(id)
	return tir.Legalize(d.BitSize, d.Components)
}

// srcComps returns the number of components a source reads.
func (t *translator) srcComps(s sir.Src) int {
	if len(s.Swizzle) > 0 {
		return len(s.Swizzle)
	}
	return int(t.def(s.Value).Components)
}

// src returns the components a source reads, in the value's natural
// representation.
func (t *translator) src(s sir.Src) value.Value {
	v := t.value(s.Value)
	if len(s.Swizzle) == 0 {
		return v
	}
	n := tir.NumComponents(v.Type())
	identity := len(s.Swizzle) == n
	for i, c := range s.Swizzle {
		if int(c) >= n {
			t.fatal("swizzle component %d of %d-component value %%%d", c, n, s.Value)
		}
		if int(c) != i {
			identity = false
		}
	}
	if identity {
		return v
	}
	vals := make([]value.Value, len(s.Swizzle))
	for i, c := range s.Swizzle {
		vals[i] = t.b.Extract(v, int(c))
	}
	return t.b.Gather(vals)
}

// srcAs returns a source in representation r.
func (t *translator) srcAs(s sir.Src, r tir.Repr) value.Value {
	return t.b.Convert(t.src(s), r)
}

func (t *translator) srcInt(s sir.Src) value.Value   { return t.srcAs(s, tir.ReprInt) }
func (t *translator) srcFloat(s sir.Src) value.Value { return t.srcAs(s, tir.ReprFloat) }

// srcI32 returns a scalar source as i32, zero-extending or truncating.
func (t *translator) srcI32(s sir.Src) value.Value {
	return t.b.Resize(t.srcInt(s), 32, false)
}

// broadcast splats a scalar to n components; vectors pass through.
func (t *translator) broadcast(v value.Value, n int) value.Value {
	if n > 1 && tir.NumComponents(v.Type()) == 1 {
		return t.b.Splat(v, n)
	}
	return v
}

// constBits returns the raw bits of a source when it reads a constant.
func (t *translator) constBits(s sir.Src) ([]uint64, bool) {
	bits, ok := t.consts[s.Value]
	if !ok {
		return nil, false
	}
	if len(s.Swizzle) == 0 {
		return bits, true
	}
	out := make([]uint64, len(s.Swizzle))
	for i, c := range s.Swizzle {
		if int(c) >= len(bits) {
			return nil, false
		}
		out[i] = bits[c]
	}
	return out, true
}

// isConst reports whether a source reads a constant.
func (t *translator) isConst(s sir.Src) bool {
	_, ok := t.constBits(s)
	return ok
}

// constScalar returns the first component of a constant source.
func (t *translator) constScalar(s sir.Src) (uint64, bool) {
	bits, ok := t.constBits(s)
	if !ok || len(bits) == 0 {
		return 0, false
	}
	return bits[0], true
}

func (t *translator) constComponents(id sir.ValueID) []value.Value {
	d := t.def(id)
	bits := t.consts[id]
	vals := make([]value.Value, len(bits))
	for i, raw := range bits {
		vals[i] = tir.ConstInt(d.BitSize, raw)
	}
	return vals
}

// divergent reports whether a source may differ across lanes.
func (t *translator) divergent(s sir.Src) bool {
	return t.def(s.Value).Divergent
}
