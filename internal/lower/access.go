package lower

import (
	"wavefront/internal/gpu"
	"wavefront/internal/sir"
)

// MemKind is the memory an access reaches.
type MemKind uint8

const (
	MemSSBO MemKind = iota
	MemUBO
	MemPushConstant
	MemShared
	MemGlobal
	MemScratch
	MemImage
)

// String returns the string representation of MemKind.
func (k MemKind) String() string {
	switch k {
	case MemSSBO:
		return "ssbo"
	case MemUBO:
		return "ubo"
	case MemPushConstant:
		return "push_constant"
	case MemShared:
		return "shared"
	case MemGlobal:
		return "global"
	case MemScratch:
		return "scratch"
	case MemImage:
		return "image"
	default:
		return "unknown"
	}
}

// AccessKind distinguishes reads, writes and read-modify-writes.
type AccessKind uint8

const (
	AccessLoad AccessKind = iota
	AccessStore
	AccessAtomic
)

// String returns the string representation of AccessKind.
func (k AccessKind) String() string {
	switch k {
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	case AccessAtomic:
		return "atomic"
	default:
		return "unknown"
	}
}

// Policy is the cache policy operand of buffer and image intrinsics.
type Policy uint8

const (
	PolicyGLC Policy = 1 << iota
	PolicySLC
	PolicyDLC
)

// Access records one emitted memory operation.
type Access struct {
	// Value is the source value loaded, stored or returned.
	Value  sir.ValueID
	Block  sir.BlockID
	Memory MemKind
	Kind   AccessKind
	// Offset is the byte offset of the piece within the source access.
	Offset uint32
	// Size is the number of bytes the piece covers.
	Size      uint32
	Policy    Policy
	Waterfall bool
}

func (t *translator) record(a Access) {
	a.Block = t.curBlock
	t.accesses = append(t.accesses, a)
}

// cachePolicy computes the policy bits of a buffer or image access.
func cachePolicy(target gpu.Target, access sir.Access, store, aligned bool) Policy {
	var p Policy
	if access&(sir.AccessCoherent|sir.AccessVolatile) != 0 {
		p |= PolicyGLC
	}
	if store && access&sir.AccessNonReadable != 0 {
		p |= PolicyGLC
	}
	if store && !aligned && target.Gen == gpu.GFX6 {
		p |= PolicyGLC
	}
	if access&sir.AccessStream != 0 {
		p |= PolicySLC | PolicyGLC
	}
	if p&PolicyGLC != 0 && target.UsesDLC() {
		p |= PolicyDLC
	}
	return p
}

// chunk is a run of components moved by one hardware access.
type chunk struct {
	start int
	count int
}

// planStore splits a masked store of comps elements of elemBits each into
// hardware-sized pieces. Unwritten components are skipped.
func planStore(target gpu.Target, elemBits uint8, comps int, mask uint8) []chunk {
	elemBytes := int(elemBits) / 8
	if elemBytes == 0 {
		elemBytes = 1
	}
	var out []chunk
	for start := 0; start < comps; {
		if mask&(1<<start) == 0 {
			start++
			continue
		}
		end := start
		for end < comps && mask&(1<<end) != 0 {
			end++
		}
		for start < end {
			n := storeCount(target, elemBytes, start, end-start)
			out = append(out, chunk{start: start, count: n})
			start += n
		}
	}
	return out
}

// storeCount returns how many of the remaining elements one store moves.
func storeCount(target gpu.Target, elemBytes, start, remaining int) int {
	n := remaining
	if limit := 16 / elemBytes; n > limit {
		n = limit
	}
	if n == 3 && (elemBytes != 4 || !target.HasVec3Stores()) {
		n = 2
	}
	if elemBytes == 2 && n > 1 && start%2 == 1 {
		n = 1
	}
	if elemBytes < 4 && n > 1 && target.HasSubDwordStoreBug() {
		n = 1
	}
	for n > 1 && !storeWidth(n*elemBytes) {
		n--
	}
	return n
}

// storeWidth reports whether a store of that many bytes has an opcode.
func storeWidth(bytes int) bool {
	switch bytes {
	case 1, 2, 4, 8, 12, 16:
		return true
	}
	return false
}

// planLoad splits a load of comps elements. Sub-dword elements without
// dword alignment are loaded one at a time.
func planLoad(elemBits uint8, comps int, align uint32) []chunk {
	elemBytes := int(elemBits) / 8
	if elemBytes == 0 {
		elemBytes = 1
	}
	per := 16 / elemBytes
	if elemBytes < 4 && align%4 != 0 {
		per = 1
	}
	var out []chunk
	for start := 0; start < comps; start += per {
		n := per
		if start+n > comps {
			n = comps - start
		}
		out = append(out, chunk{start: start, count: n})
	}
	return out
}

// loadChannels returns the number of dwords fetched for a load of bytes;
// zero means a byte or short load.
func loadChannels(target gpu.Target, bytes int) int {
	if bytes <= 2 {
		return 0
	}
	p := 4
	for p < bytes {
		p *= 2
	}
	ch := p / 4
	if bytes <= 12 && bytes > 8 {
		ch = 3
		if !target.HasVec3Loads() {
			ch = 4
		}
	}
	return ch
}
