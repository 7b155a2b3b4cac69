package sir

// InstrKind enumerates instruction kinds in SIR.
type InstrKind uint8

const (
	// InstrALU represents an arithmetic/logic instruction.
	InstrALU InstrKind = iota
	// InstrConst represents a load-const instruction.
	InstrConst
	// InstrUndef represents an undefined value.
	InstrUndef
	// InstrIntrinsic represents an intrinsic call.
	InstrIntrinsic
	// InstrTex represents a texture operation.
	InstrTex
	// InstrPhi represents a phi node.
	InstrPhi
	// InstrJump represents a control-flow jump.
	InstrJump
	// InstrDeref represents a variable dereference.
	InstrDeref

	numInstrKinds
)

// NumInstrKinds is the number of instruction kinds.
const NumInstrKinds = int(numInstrKinds)

// String returns the string representation of InstrKind.
func (k InstrKind) String() string {
	switch k {
	case InstrALU:
		return "alu"
	case InstrConst:
		return "const"
	case InstrUndef:
		return "undef"
	case InstrIntrinsic:
		return "intrinsic"
	case InstrTex:
		return "tex"
	case InstrPhi:
		return "phi"
	case InstrJump:
		return "jump"
	case InstrDeref:
		return "deref"
	default:
		return "unknown"
	}
}

// Instr represents a SIR instruction.
type Instr struct {
	Kind InstrKind

	ALU       ALUInstr
	Const     ConstInstr
	Undef     UndefInstr
	Intrinsic IntrinsicInstr
	Tex       TexInstr
	Phi       PhiInstr
	Jump      JumpInstr
	Deref     DerefInstr
}

// Dest returns the value defined by the instruction, or NoValueID.
func (ins *Instr) Dest() ValueID {
	switch ins.Kind {
	case InstrALU:
		return ins.ALU.Dest
	case InstrConst:
		return ins.Const.Dest
	case InstrUndef:
		return ins.Undef.Dest
	case InstrIntrinsic:
		return ins.Intrinsic.Dest
	case InstrTex:
		return ins.Tex.Dest
	case InstrPhi:
		return ins.Phi.Dest
	case InstrDeref:
		return ins.Deref.Dest
	default:
		return NoValueID
	}
}

// ALUInstr represents an ALU instruction.
type ALUInstr struct {
	Op   Op
	Dest ValueID
	Srcs []Src
	// Exact forbids value-changing float reassociation.
	Exact bool
}

// ConstInstr materializes a constant. Bits holds the raw bit pattern of
// each component.
type ConstInstr struct {
	Dest ValueID
	Bits []uint64
}

// UndefInstr defines a value with unspecified contents.
type UndefInstr struct {
	Dest ValueID
}

// PhiSrc is the value flowing in from one predecessor block.
type PhiSrc struct {
	Pred  BlockID
	Value ValueID
}

// PhiInstr merges values at a control-flow join.
type PhiInstr struct {
	Dest ValueID
	Srcs []PhiSrc
}

// JumpKind distinguishes jumps.
type JumpKind uint8

const (
	// JumpBreak leaves the innermost loop.
	JumpBreak JumpKind = iota
	// JumpContinue restarts the innermost loop.
	JumpContinue
	// JumpReturn leaves the function through the epilogue.
	JumpReturn
)

// String returns the string representation of JumpKind.
func (k JumpKind) String() string {
	switch k {
	case JumpBreak:
		return "break"
	case JumpContinue:
		return "continue"
	case JumpReturn:
		return "return"
	default:
		return "unknown"
	}
}

// JumpInstr ends a block with a structured jump.
type JumpInstr struct {
	Kind JumpKind
}

// DerefKind distinguishes deref chain links.
type DerefKind uint8

const (
	// DerefVar addresses a variable.
	DerefVar DerefKind = iota
	// DerefArray offsets a parent deref by Index*Stride.
	DerefArray
	// DerefStruct offsets a parent deref by a constant member offset.
	DerefStruct
	// DerefCast reinterprets a 64-bit address as global memory.
	DerefCast
)

// String returns the string representation of DerefKind.
func (k DerefKind) String() string {
	switch k {
	case DerefVar:
		return "var"
	case DerefArray:
		return "array"
	case DerefStruct:
		return "struct"
	case DerefCast:
		return "cast"
	default:
		return "unknown"
	}
}

// DerefInstr computes an address.
type DerefInstr struct {
	Dest   ValueID
	Kind   DerefKind
	Mode   VarMode
	Var    VarID
	Parent ValueID
	// Index is the element index for DerefArray and the address for DerefCast.
	Index  Src
	Stride uint32
	Offset uint32
}
