package lower

import (
	"errors"
	"fmt"

	"wavefront/internal/sir"
)

// ErrFatal marks a translation that hit a construct the target cannot
// express. The function is abandoned; nothing partial is returned.
var ErrFatal = errors.New("fatal translation error")

// FatalError carries the location of a fatal translation error.
type FatalError struct {
	Func  string
	Block sir.BlockID
	Msg   string
}

func (e *FatalError) Error() string {
	if e.Block != sir.NoBlockID {
		return fmt.Sprintf("%s: bb%d: %s", e.Func, e.Block, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Func, e.Msg)
}

// Unwrap lets errors.Is match ErrFatal.
func (e *FatalError) Unwrap() error { return ErrFatal }

// fatal aborts the translation with a FatalError located at the block
// being lowered.
func (t *translator) fatal(format string, args ...any) {
	panic(&FatalError{Func: t.fn.Name, Block: t.curBlock, Msg: fmt.Sprintf(format, args...)})
}
