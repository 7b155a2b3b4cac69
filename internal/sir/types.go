package sir

type ValueID int32
type BlockID int32
type VarID int32

const (
	NoValueID ValueID = -1
	NoBlockID BlockID = -1
	NoVarID   VarID   = -1
)

// MaxComponents is the widest vector a source value may have.
const MaxComponents = 5

// Stage identifies the pipeline stage a function runs in.
type Stage uint8

const (
	StageVertex Stage = iota
	StageGeometry
	StageFragment
	StageCompute
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// Def describes an SSA value: its width, component count and whether an
// upstream divergence analysis considers it lane-varying.
type Def struct {
	ID         ValueID
	BitSize    uint8
	Components uint8
	Divergent  bool
}

// ValidBitSize reports whether bits is a legal scalar width.
func ValidBitSize(bits uint8) bool {
	switch bits {
	case 1, 8, 16, 32, 64:
		return true
	}
	return false
}

// Src references a value, optionally reordering its components.
// A nil Swizzle selects components 0..n-1 in order.
type Src struct {
	Value   ValueID
	Swizzle []uint8
}

// Use returns a source that reads v unswizzled.
func Use(v ValueID) Src { return Src{Value: v} }

// Comp returns a source that reads component c of v as a scalar.
func Comp(v ValueID, c uint8) Src { return Src{Value: v, Swizzle: []uint8{c}} }

// Swz returns a source reading the given components of v.
func Swz(v ValueID, comps ...uint8) Src { return Src{Value: v, Swizzle: comps} }

// VarMode is the storage class of a variable.
type VarMode uint8

const (
	// VarShared lives in workgroup-shared memory.
	VarShared VarMode = iota
	// VarFunction is private per-invocation scratch.
	VarFunction
	// VarGlobal is reached through a 64-bit address.
	VarGlobal
)

// String returns the string representation of VarMode.
func (m VarMode) String() string {
	switch m {
	case VarShared:
		return "shared"
	case VarFunction:
		return "function"
	case VarGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Var is a variable addressed through Deref instructions.
type Var struct {
	ID   VarID
	Name string
	Mode VarMode
	// Size in bytes; for VarShared this is the byte offset span in the
	// workgroup allocation starting at Offset.
	Size   uint32
	Offset uint32
	// ElemBits is the width of the scalar element the variable holds.
	ElemBits uint8
}
