package sir

// Module is a set of shader functions translated together.
type Module struct {
	Name  string
	Funcs []*Func
}

// Func is a shader entry point in structured SSA form.
type Func struct {
	Name  string
	Stage Stage

	// Values is indexed by ValueID.
	Values []Def
	Vars   []Var
	Body   []Node

	// SharedSize is the workgroup-shared allocation in bytes.
	SharedSize uint32
	// WorkgroupSize is the compute workgroup shape; zero outside compute.
	WorkgroupSize [3]uint16
	// NumBlocks is one past the largest BlockID used in Body.
	NumBlocks int
}

// Def returns the definition of v, or false if v is out of range.
func (f *Func) Def(v ValueID) (Def, bool) {
	if f == nil || v < 0 || int(v) >= len(f.Values) {
		return Def{}, false
	}
	return f.Values[v], true
}

// NodeKind distinguishes structured control-flow nodes.
type NodeKind uint8

const (
	// NodeBlock is a straight-line basic block.
	NodeBlock NodeKind = iota
	// NodeIf is a two-way structured branch.
	NodeIf
	// NodeLoop is a structured loop.
	NodeLoop
)

// String returns the string representation of NodeKind.
func (k NodeKind) String() string {
	switch k {
	case NodeBlock:
		return "block"
	case NodeIf:
		return "if"
	case NodeLoop:
		return "loop"
	default:
		return "unknown"
	}
}

// Node is one element of a structured control-flow list.
type Node struct {
	Kind NodeKind

	Block *Block
	If    *If
	Loop  *Loop
}

// Block is a basic block. Phis, when present, come first.
type Block struct {
	Index  BlockID
	Instrs []Instr
}

// Terminated reports whether the block ends with a jump.
func (b *Block) Terminated() bool {
	if b == nil || len(b.Instrs) == 0 {
		return false
	}
	return b.Instrs[len(b.Instrs)-1].Kind == InstrJump
}

// If branches on a 1-bit scalar condition. Both lists are non-empty.
type If struct {
	Cond Src
	Then []Node
	Else []Node
}

// Loop repeats Body until a break is taken.
type Loop struct {
	Body []Node
}

// BlockNode wraps b in a Node.
func BlockNode(b *Block) Node { return Node{Kind: NodeBlock, Block: b} }

// IfNode wraps i in a Node.
func IfNode(i *If) Node { return Node{Kind: NodeIf, If: i} }

// LoopNode wraps l in a Node.
func LoopNode(l *Loop) Node { return Node{Kind: NodeLoop, Loop: l} }

// FirstBlock returns the first block of a CF list.
func FirstBlock(list []Node) *Block {
	if len(list) == 0 || list[0].Kind != NodeBlock {
		return nil
	}
	return list[0].Block
}

// LastBlock returns the last block of a CF list.
func LastBlock(list []Node) *Block {
	if len(list) == 0 || list[len(list)-1].Kind != NodeBlock {
		return nil
	}
	return list[len(list)-1].Block
}

// WalkBlocks calls fn for every block in program order.
func WalkBlocks(list []Node, fn func(*Block)) {
	for i := range list {
		n := &list[i]
		switch n.Kind {
		case NodeBlock:
			if n.Block != nil {
				fn(n.Block)
			}
		case NodeIf:
			if n.If != nil {
				WalkBlocks(n.If.Then, fn)
				WalkBlocks(n.If.Else, fn)
			}
		case NodeLoop:
			if n.Loop != nil {
				WalkBlocks(n.Loop.Body, fn)
			}
		}
	}
}
