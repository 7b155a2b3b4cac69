package tir

import (
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Extract returns component i of v. Scalars are returned as is for i == 0.
func (b *Builder) Extract(v value.Value, i int) value.Value {
	if _, ok := v.Type().(*types.VectorType); !ok {
		if i != 0 {
			failf("component %d of scalar %s", i, v.Type())
		}
		return v
	}
	return b.cur.NewExtractElement(v, I32(int64(i)))
}

// Gather builds a vector from scalars of one type. One scalar is returned
// as is.
func (b *Builder) Gather(vals []value.Value) value.Value {
	switch len(vals) {
	case 0:
		failf("gather of no values")
	case 1:
		return vals[0]
	}
	elem := vals[0].Type()
	var vec value.Value = Undef(types.NewVector(uint64(len(vals)), elem))
	for i, v := range vals {
		if !types.Equal(v.Type(), elem) {
			v = b.ConvertTo(v, elem)
		}
		vec = b.cur.NewInsertElement(vec, v, I32(int64(i)))
	}
	return vec
}

// Components splits v into scalars.
func (b *Builder) Components(v value.Value) []value.Value {
	n := NumComponents(v.Type())
	out := make([]value.Value, n)
	for i := range out {
		out[i] = b.Extract(v, i)
	}
	return out
}

// Splat broadcasts a scalar to n components.
func (b *Builder) Splat(v value.Value, n int) value.Value {
	if n <= 1 {
		return v
	}
	vals := make([]value.Value, n)
	for i := range vals {
		vals[i] = v
	}
	return b.Gather(vals)
}

// ExtractRange returns count components of v starting at start.
func (b *Builder) ExtractRange(v value.Value, start, count int) value.Value {
	if start == 0 && count == NumComponents(v.Type()) {
		return v
	}
	vals := make([]value.Value, count)
	for i := range vals {
		vals[i] = b.Extract(v, start+i)
	}
	return b.Gather(vals)
}

// Trim keeps the first count components of v.
func (b *Builder) Trim(v value.Value, count int) value.Value {
	return b.ExtractRange(v, 0, count)
}

// Pad widens v to n components with undef.
func (b *Builder) Pad(v value.Value, n int) value.Value {
	have := NumComponents(v.Type())
	if have >= n {
		return v
	}
	vals := b.Components(v)
	for len(vals) < n {
		vals = append(vals, Undef(ElemType(v.Type())))
	}
	return b.Gather(vals)
}

// Concat joins the components of several values of one element type.
func (b *Builder) Concat(vals ...value.Value) value.Value {
	var comps []value.Value
	for _, v := range vals {
		comps = append(comps, b.Components(v)...)
	}
	return b.Gather(comps)
}

// Reshape reinterprets v as count components of bits each. The total
// width must match.
func (b *Builder) Reshape(v value.Value, bits uint8, count int) value.Value {
	return b.ConvertTo(v, Vec(IntType(bits), count))
}
