package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
)

// valueMap holds the target value of every source value. Each entry is
// written once.
type valueMap struct {
	vals []value.Value
}

func newValueMap(n int) valueMap {
	return valueMap{vals: make([]value.Value, n)}
}

func (m *valueMap) lookup(id sir.ValueID) (value.Value, bool) {
	if id < 0 || int(id) >= len(m.vals) || m.vals[id] == nil {
		return nil, false
	}
	return m.vals[id], true
}

func (t *translator) value(id sir.ValueID) value.Value {
	v, ok := t.values.lookup(id)
	if !ok {
		t.fatal("use of undefined value %%%d", id)
	}
	return v
}

func (t *translator) define(id sir.ValueID, v value.Value) {
	if id < 0 || int(id) >= len(t.values.vals) {
		t.fatal("definition of out-of-range value %%%d", id)
	}
	if t.values.vals[id] != nil {
		t.fatal("value %%%d defined twice", id)
	}
	if v == nil {
		t.fatal("value %%%d defined as nothing", id)
	}
	t.values.vals[id] = v
}

// blockMap records, for every source block, the target block that is
// current when the source block ends. Phi incoming edges come from there.
type blockMap struct {
	blocks []*ir.Block
}

func newBlockMap(n int) blockMap {
	return blockMap{blocks: make([]*ir.Block, n)}
}

func (t *translator) setBlock(id sir.BlockID, blk *ir.Block) {
	if id < 0 || int(id) >= len(t.blocks.blocks) {
		t.fatal("out-of-range block bb%d", id)
	}
	if t.blocks.blocks[id] != nil {
		t.fatal("block bb%d lowered twice", id)
	}
	t.blocks.blocks[id] = blk
}

func (t *translator) block(id sir.BlockID) *ir.Block {
	if id < 0 || int(id) >= len(t.blocks.blocks) || t.blocks.blocks[id] == nil {
		t.fatal("reference to unlowered block bb%d", id)
	}
	return t.blocks.blocks[id]
}
