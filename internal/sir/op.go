package sir

// Op is an ALU opcode.
type Op uint16

// TypeClass describes how an opcode interprets its result.
type TypeClass uint8

const (
	ClassAny TypeClass = iota
	ClassFloat
	ClassInt
	ClassUint
	ClassBool
)

// OpInfo describes an ALU opcode.
type OpInfo struct {
	Name string
	// Inputs is the number of sources; 0 means one source per destination
	// component (vector construction).
	Inputs int
	Output TypeClass
}

const (
	OpMov Op = iota
	OpVec2
	OpVec3
	OpVec4
	OpVec5

	OpFNeg
	OpFAbs
	OpFSat
	OpFSign
	OpFRcp
	OpFRsq
	OpFSqrt
	OpFExp2
	OpFLog2
	OpFSin
	OpFCos
	OpFFloor
	OpFCeil
	OpFTrunc
	OpFRoundEven
	OpFFract
	OpFDdx
	OpFDdy
	OpFDdxFine
	OpFDdyFine
	OpFDdxCoarse
	OpFDdyCoarse
	OpFrexpSig
	OpFrexpExp
	OpFQuantize2F16

	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFMod
	OpFRem
	OpFPow
	OpFMin
	OpFMax
	OpFLdexp

	OpFFma
	OpFLrp
	OpFMin3
	OpFMax3
	OpFMed3

	OpFDot2
	OpFDot3
	OpFDot4

	OpFLt
	OpFGe
	OpFEq
	OpFNeu

	OpINeg
	OpIAbs
	OpISign
	OpINot
	OpBitCount
	OpBitfieldReverse
	OpUFindMSB
	OpIFindMSB
	OpFindLSB

	OpIAdd
	OpISub
	OpIMul
	OpIMulHigh
	OpUMulHigh
	OpIDiv
	OpUDiv
	OpIMod
	OpIRem
	OpUMod
	OpIMin
	OpIMax
	OpUMin
	OpUMax
	OpIAddSat
	OpUAddSat
	OpISubSat
	OpUSubSat
	OpIShl
	OpIShr
	OpUShr
	OpURol
	OpURor
	OpIAnd
	OpIOr
	OpIXor
	OpUAddCarry
	OpUSubBorrow
	OpBfm

	OpUBfe
	OpIBfe
	OpIMin3
	OpIMax3
	OpUMin3
	OpUMax3
	OpIMed3
	OpUMed3
	OpSadU8

	OpBitfieldInsert

	OpILt
	OpIGe
	OpIEq
	OpINe
	OpULt
	OpUGe

	OpBCsel
	OpB2F
	OpB2I
	OpF2B
	OpI2B

	OpF2I
	OpF2U
	OpI2F
	OpU2F
	OpF2F
	OpF2F16
	OpF2F16Rtz
	OpF2F16Rtne
	OpI2I
	OpU2U

	OpPackHalf2x16Split
	OpUnpackHalf2x16SplitX
	OpUnpackHalf2x16SplitY
	OpPackSnorm2x16
	OpPackUnorm2x16
	OpPackUint2x16
	OpPackSint2x16
	OpPack64_2x32
	OpPack64_2x32Split
	OpUnpack64_2x32
	OpUnpack64_2x32SplitX
	OpUnpack64_2x32SplitY
	OpPack32_2x16
	OpPack32_2x16Split
	OpUnpack32_2x16
	OpPack32_4x8
	OpUnpack32_4x8
	OpExtractU8
	OpExtractI8
	OpExtractU16
	OpExtractI16

	OpSDot4x8
	OpUDot4x8
	OpSDot2x16
	OpUDot2x16

	OpCubeFaceCoord
	OpCubeFaceIndex

	numOps
)

// NumOps is the number of ALU opcodes.
const NumOps = int(numOps)

var opInfos = [numOps]OpInfo{
	OpMov:  {"mov", 1, ClassAny},
	OpVec2: {"vec2", 0, ClassAny},
	OpVec3: {"vec3", 0, ClassAny},
	OpVec4: {"vec4", 0, ClassAny},
	OpVec5: {"vec5", 0, ClassAny},

	OpFNeg:          {"fneg", 1, ClassFloat},
	OpFAbs:          {"fabs", 1, ClassFloat},
	OpFSat:          {"fsat", 1, ClassFloat},
	OpFSign:         {"fsign", 1, ClassFloat},
	OpFRcp:          {"frcp", 1, ClassFloat},
	OpFRsq:          {"frsq", 1, ClassFloat},
	OpFSqrt:         {"fsqrt", 1, ClassFloat},
	OpFExp2:         {"fexp2", 1, ClassFloat},
	OpFLog2:         {"flog2", 1, ClassFloat},
	OpFSin:          {"fsin", 1, ClassFloat},
	OpFCos:          {"fcos", 1, ClassFloat},
	OpFFloor:        {"ffloor", 1, ClassFloat},
	OpFCeil:         {"fceil", 1, ClassFloat},
	OpFTrunc:        {"ftrunc", 1, ClassFloat},
	OpFRoundEven:    {"fround_even", 1, ClassFloat},
	OpFFract:        {"ffract", 1, ClassFloat},
	OpFDdx:          {"fddx", 1, ClassFloat},
	OpFDdy:          {"fddy", 1, ClassFloat},
	OpFDdxFine:      {"fddx_fine", 1, ClassFloat},
	OpFDdyFine:      {"fddy_fine", 1, ClassFloat},
	OpFDdxCoarse:    {"fddx_coarse", 1, ClassFloat},
	OpFDdyCoarse:    {"fddy_coarse", 1, ClassFloat},
	OpFrexpSig:      {"frexp_sig", 1, ClassFloat},
	OpFrexpExp:      {"frexp_exp", 1, ClassInt},
	OpFQuantize2F16: {"fquantize2f16", 1, ClassFloat},

	OpFAdd:   {"fadd", 2, ClassFloat},
	OpFSub:   {"fsub", 2, ClassFloat},
	OpFMul:   {"fmul", 2, ClassFloat},
	OpFDiv:   {"fdiv", 2, ClassFloat},
	OpFMod:   {"fmod", 2, ClassFloat},
	OpFRem:   {"frem", 2, ClassFloat},
	OpFPow:   {"fpow", 2, ClassFloat},
	OpFMin:   {"fmin", 2, ClassFloat},
	OpFMax:   {"fmax", 2, ClassFloat},
	OpFLdexp: {"ldexp", 2, ClassFloat},

	OpFFma:  {"ffma", 3, ClassFloat},
	OpFLrp:  {"flrp", 3, ClassFloat},
	OpFMin3: {"fmin3", 3, ClassFloat},
	OpFMax3: {"fmax3", 3, ClassFloat},
	OpFMed3: {"fmed3", 3, ClassFloat},

	OpFDot2: {"fdot2", 2, ClassFloat},
	OpFDot3: {"fdot3", 2, ClassFloat},
	OpFDot4: {"fdot4", 2, ClassFloat},

	OpFLt:  {"flt", 2, ClassBool},
	OpFGe:  {"fge", 2, ClassBool},
	OpFEq:  {"feq", 2, ClassBool},
	OpFNeu: {"fneu", 2, ClassBool},

	OpINeg:            {"ineg", 1, ClassInt},
	OpIAbs:            {"iabs", 1, ClassInt},
	OpISign:           {"isign", 1, ClassInt},
	OpINot:            {"inot", 1, ClassInt},
	OpBitCount:        {"bit_count", 1, ClassUint},
	OpBitfieldReverse: {"bitfield_reverse", 1, ClassUint},
	OpUFindMSB:        {"ufind_msb", 1, ClassInt},
	OpIFindMSB:        {"ifind_msb", 1, ClassInt},
	OpFindLSB:         {"find_lsb", 1, ClassInt},

	OpIAdd:       {"iadd", 2, ClassInt},
	OpISub:       {"isub", 2, ClassInt},
	OpIMul:       {"imul", 2, ClassInt},
	OpIMulHigh:   {"imul_high", 2, ClassInt},
	OpUMulHigh:   {"umul_high", 2, ClassUint},
	OpIDiv:       {"idiv", 2, ClassInt},
	OpUDiv:       {"udiv", 2, ClassUint},
	OpIMod:       {"imod", 2, ClassInt},
	OpIRem:       {"irem", 2, ClassInt},
	OpUMod:       {"umod", 2, ClassUint},
	OpIMin:       {"imin", 2, ClassInt},
	OpIMax:       {"imax", 2, ClassInt},
	OpUMin:       {"umin", 2, ClassUint},
	OpUMax:       {"umax", 2, ClassUint},
	OpIAddSat:    {"iadd_sat", 2, ClassInt},
	OpUAddSat:    {"uadd_sat", 2, ClassUint},
	OpISubSat:    {"isub_sat", 2, ClassInt},
	OpUSubSat:    {"usub_sat", 2, ClassUint},
	OpIShl:       {"ishl", 2, ClassInt},
	OpIShr:       {"ishr", 2, ClassInt},
	OpUShr:       {"ushr", 2, ClassUint},
	OpURol:       {"urol", 2, ClassUint},
	OpURor:       {"uror", 2, ClassUint},
	OpIAnd:       {"iand", 2, ClassInt},
	OpIOr:        {"ior", 2, ClassInt},
	OpIXor:       {"ixor", 2, ClassInt},
	OpUAddCarry:  {"uadd_carry", 2, ClassUint},
	OpUSubBorrow: {"usub_borrow", 2, ClassUint},
	OpBfm:        {"bfm", 2, ClassUint},

	OpUBfe:  {"ubfe", 3, ClassUint},
	OpIBfe:  {"ibfe", 3, ClassInt},
	OpIMin3: {"imin3", 3, ClassInt},
	OpIMax3: {"imax3", 3, ClassInt},
	OpUMin3: {"umin3", 3, ClassUint},
	OpUMax3: {"umax3", 3, ClassUint},
	OpIMed3: {"imed3", 3, ClassInt},
	OpUMed3: {"umed3", 3, ClassUint},
	OpSadU8: {"sad_u8x4", 3, ClassUint},

	OpBitfieldInsert: {"bitfield_insert", 4, ClassUint},

	OpILt: {"ilt", 2, ClassBool},
	OpIGe: {"ige", 2, ClassBool},
	OpIEq: {"ieq", 2, ClassBool},
	OpINe: {"ine", 2, ClassBool},
	OpULt: {"ult", 2, ClassBool},
	OpUGe: {"uge", 2, ClassBool},

	OpBCsel: {"bcsel", 3, ClassAny},
	OpB2F:   {"b2f", 1, ClassFloat},
	OpB2I:   {"b2i", 1, ClassInt},
	OpF2B:   {"f2b", 1, ClassBool},
	OpI2B:   {"i2b", 1, ClassBool},

	OpF2I:       {"f2i", 1, ClassInt},
	OpF2U:       {"f2u", 1, ClassUint},
	OpI2F:       {"i2f", 1, ClassFloat},
	OpU2F:       {"u2f", 1, ClassFloat},
	OpF2F:       {"f2f", 1, ClassFloat},
	OpF2F16:     {"f2f16", 1, ClassFloat},
	OpF2F16Rtz:  {"f2f16_rtz", 1, ClassFloat},
	OpF2F16Rtne: {"f2f16_rtne", 1, ClassFloat},
	OpI2I:       {"i2i", 1, ClassInt},
	OpU2U:       {"u2u", 1, ClassUint},

	OpPackHalf2x16Split:    {"pack_half_2x16_split", 2, ClassUint},
	OpUnpackHalf2x16SplitX: {"unpack_half_2x16_split_x", 1, ClassFloat},
	OpUnpackHalf2x16SplitY: {"unpack_half_2x16_split_y", 1, ClassFloat},
	OpPackSnorm2x16:        {"pack_snorm_2x16", 1, ClassUint},
	OpPackUnorm2x16:        {"pack_unorm_2x16", 1, ClassUint},
	OpPackUint2x16:         {"pack_uint_2x16", 1, ClassUint},
	OpPackSint2x16:         {"pack_sint_2x16", 1, ClassUint},
	OpPack64_2x32:          {"pack_64_2x32", 1, ClassUint},
	OpPack64_2x32Split:     {"pack_64_2x32_split", 2, ClassUint},
	OpUnpack64_2x32:        {"unpack_64_2x32", 1, ClassUint},
	OpUnpack64_2x32SplitX:  {"unpack_64_2x32_split_x", 1, ClassUint},
	OpUnpack64_2x32SplitY:  {"unpack_64_2x32_split_y", 1, ClassUint},
	OpPack32_2x16:          {"pack_32_2x16", 1, ClassUint},
	OpPack32_2x16Split:     {"pack_32_2x16_split", 2, ClassUint},
	OpUnpack32_2x16:        {"unpack_32_2x16", 1, ClassUint},
	OpPack32_4x8:           {"pack_32_4x8", 1, ClassUint},
	OpUnpack32_4x8:         {"unpack_32_4x8", 1, ClassUint},
	OpExtractU8:            {"extract_u8", 2, ClassUint},
	OpExtractI8:            {"extract_i8", 2, ClassInt},
	OpExtractU16:           {"extract_u16", 2, ClassUint},
	OpExtractI16:           {"extract_i16", 2, ClassInt},

	OpSDot4x8:  {"sdot_4x8_iadd", 3, ClassInt},
	OpUDot4x8:  {"udot_4x8_uadd", 3, ClassUint},
	OpSDot2x16: {"sdot_2x16_iadd", 3, ClassInt},
	OpUDot2x16: {"udot_2x16_uadd", 3, ClassUint},

	OpCubeFaceCoord: {"cube_face_coord", 1, ClassFloat},
	OpCubeFaceIndex: {"cube_face_index", 1, ClassFloat},
}

// Info returns the table entry for op. ok is false for unknown opcodes.
func (op Op) Info() (OpInfo, bool) {
	if int(op) >= len(opInfos) || opInfos[op].Name == "" {
		return OpInfo{}, false
	}
	return opInfos[op], true
}

// String returns the opcode mnemonic.
func (op Op) String() string {
	if info, ok := op.Info(); ok {
		return info.Name
	}
	return "op?"
}

// OpByName looks up an opcode by mnemonic.
func OpByName(name string) (Op, bool) {
	for i := range opInfos {
		if opInfos[i].Name == name {
			return Op(i), true
		}
	}
	return 0, false
}

// VecOp returns the vector-construction opcode for n components.
func VecOp(n int) (Op, bool) {
	switch n {
	case 2:
		return OpVec2, true
	case 3:
		return OpVec3, true
	case 4:
		return OpVec4, true
	case 5:
		return OpVec5, true
	default:
		return 0, false
	}
}
