package tir

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Repr is the representation a consumer needs a value in.
type Repr uint8

const (
	// ReprInt is an integer (or vector of integers) of the value's width.
	ReprInt Repr = iota
	// ReprFloat is a float (or vector of floats) of the value's width.
	ReprFloat
	// ReprPointer is a global-memory pointer built from a 64-bit address.
	ReprPointer
)

// String returns the string representation of Repr.
func (r Repr) String() string {
	switch r {
	case ReprInt:
		return "int"
	case ReprFloat:
		return "float"
	case ReprPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// ReprOf returns the representation a type is in.
func ReprOf(t types.Type) Repr {
	switch ElemType(t).(type) {
	case *types.FloatType:
		return ReprFloat
	case *types.PointerType:
		return ReprPointer
	default:
		return ReprInt
	}
}

// FloatOf returns the float type with the shape of the integer type t.
func FloatOf(t types.Type) types.Type {
	bits := ScalarBits(t)
	ft := FloatType(bits)
	if ft == nil {
		failf("no float view of %s", t)
	}
	return Vec(ft, NumComponents(t))
}

// IntOf returns the integer type with the shape of t.
func IntOf(t types.Type) types.Type {
	return Vec(IntType(ScalarBits(t)), NumComponents(t))
}

// Convert returns v in representation r. A value already in r is returned
// unchanged; no instruction is emitted for it. Integer constants are
// reinterpreted at build time.
func (b *Builder) Convert(v value.Value, r Repr) value.Value {
	if ReprOf(v.Type()) == r {
		return v
	}
	switch r {
	case ReprInt:
		if pt, ok := v.Type().(*types.PointerType); ok {
			return b.cur.NewPtrToInt(v, IntType(ScalarBits(pt)))
		}
		return b.cur.NewBitCast(v, IntOf(v.Type()))
	case ReprFloat:
		v = b.Convert(v, ReprInt)
		ft := FloatOf(v.Type())
		if c, ok := v.(*constant.Int); ok {
			if st, ok := ft.(*types.FloatType); ok {
				return floatBits(c, st)
			}
		}
		return b.cur.NewBitCast(v, ft)
	case ReprPointer:
		return b.ToPointer(v, types.I8, AddrSpaceGlobal)
	}
	failf("unknown representation %d", r)
	return nil
}

// ConvertTo returns v reinterpreted as t, which must have the same width.
func (b *Builder) ConvertTo(v value.Value, t types.Type) value.Value {
	if types.Equal(v.Type(), t) {
		return v
	}
	if pt, ok := t.(*types.PointerType); ok {
		return b.ToPointer(v, pt.ElemType, pt.AddrSpace)
	}
	if NumComponents(v.Type()) != NumComponents(t) || ScalarBits(v.Type()) != ScalarBits(t) {
		v = b.Convert(v, ReprInt)
		return b.cur.NewBitCast(v, t)
	}
	return b.Convert(v, ReprOf(t))
}

// ToInt is shorthand for Convert(v, ReprInt).
func (b *Builder) ToInt(v value.Value) value.Value { return b.Convert(v, ReprInt) }

// ToFloat is shorthand for Convert(v, ReprFloat).
func (b *Builder) ToFloat(v value.Value) value.Value { return b.Convert(v, ReprFloat) }

// ToPointer turns an address into a pointer to elem in address space as.
func (b *Builder) ToPointer(v value.Value, elem types.Type, as types.AddrSpace) value.Value {
	want := Pointer(elem, as)
	if pt, ok := v.Type().(*types.PointerType); ok {
		if types.Equal(pt, want) {
			return v
		}
		if pt.AddrSpace != as {
			return b.cur.NewAddrSpaceCast(v, want)
		}
		return b.cur.NewBitCast(v, want)
	}
	v = b.Convert(v, ReprInt)
	return b.cur.NewIntToPtr(v, want)
}

// Resize zero- or sign-extends or truncates an integer to bits.
func (b *Builder) Resize(v value.Value, bits uint8, signed bool) value.Value {
	v = b.ToInt(v)
	have := ScalarBits(v.Type())
	to := Vec(IntType(bits), NumComponents(v.Type()))
	switch {
	case have == bits:
		return v
	case have > bits:
		return b.cur.NewTrunc(v, to)
	case signed:
		return b.cur.NewSExt(v, to)
	default:
		return b.cur.NewZExt(v, to)
	}
}
