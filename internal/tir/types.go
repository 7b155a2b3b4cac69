// Package tir holds helpers for building the target IR (LLVM IR through
// github.com/llir/llvm): type legalization, representation conversion,
// vector plumbing, intrinsic declarations and structured control flow.
package tir

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir/types"
)

// Address spaces used by the target.
const (
	AddrSpaceGlobal   types.AddrSpace = 1
	AddrSpaceLDS      types.AddrSpace = 3
	AddrSpaceConstant types.AddrSpace = 4
	AddrSpacePrivate  types.AddrSpace = 5
)

// IntType returns the integer type of the given width.
func IntType(bits uint8) *types.IntType {
	switch bits {
	case 1:
		return types.I1
	case 8:
		return types.I8
	case 16:
		return types.I16
	case 32:
		return types.I32
	case 64:
		return types.I64
	default:
		return types.NewInt(uint64(bits))
	}
}

// FloatType returns the float type of the given width, or nil when no
// float of that width exists.
func FloatType(bits uint8) *types.FloatType {
	switch bits {
	case 16:
		return types.Half
	case 32:
		return types.Float
	case 64:
		return types.Double
	default:
		return nil
	}
}

// Legalize maps a bit size and component count to the integer type of
// matching total width: iB for one component, <N x iB> otherwise.
func Legalize(bits, comps uint8) types.Type {
	elem := IntType(bits)
	if comps <= 1 {
		return elem
	}
	return types.NewVector(uint64(comps), elem)
}

// Vec returns elem for n == 1 and <n x elem> otherwise.
func Vec(elem types.Type, n int) types.Type {
	if n <= 1 {
		return elem
	}
	return types.NewVector(uint64(n), elem)
}

// ElemType returns the element type of a vector, or t itself.
func ElemType(t types.Type) types.Type {
	if vt, ok := t.(*types.VectorType); ok {
		return vt.ElemType
	}
	return t
}

// NumComponents returns the vector length of t, or 1 for scalars.
func NumComponents(t types.Type) int {
	if vt, ok := t.(*types.VectorType); ok {
		return int(vt.Len)
	}
	return 1
}

// ScalarBits returns the width of the scalar element of t.
func ScalarBits(t types.Type) uint8 {
	switch et := ElemType(t).(type) {
	case *types.IntType:
		return uint8(et.BitSize)
	case *types.FloatType:
		switch et.Kind {
		case types.FloatKindHalf:
			return 16
		case types.FloatKindFloat:
			return 32
		case types.FloatKindDouble:
			return 64
		}
	case *types.PointerType:
		if et.AddrSpace == AddrSpaceLDS || et.AddrSpace == AddrSpacePrivate {
			return 32
		}
		return 64
	}
	return 0
}

// Suffix returns the overload suffix LLVM uses for t in intrinsic names:
// i32, f16, v4f32, p1i8.
func Suffix(t types.Type) string {
	switch tt := t.(type) {
	case *types.IntType:
		return fmt.Sprintf("i%d", tt.BitSize)
	case *types.FloatType:
		return fmt.Sprintf("f%d", ScalarBits(tt))
	case *types.VectorType:
		return fmt.Sprintf("v%d%s", tt.Len, Suffix(tt.ElemType))
	case *types.PointerType:
		return fmt.Sprintf("p%d%s", tt.AddrSpace, Suffix(tt.ElemType))
	case *types.StructType:
		parts := make([]string, len(tt.Fields))
		for i, f := range tt.Fields {
			parts[i] = Suffix(f)
		}
		return "sl_" + strings.Join(parts, "")
	default:
		return strings.TrimPrefix(t.String(), "%")
	}
}

// Pointer returns a pointer to elem in the given address space.
func Pointer(elem types.Type, as types.AddrSpace) *types.PointerType {
	pt := types.NewPointer(elem)
	pt.AddrSpace = as
	return pt
}
