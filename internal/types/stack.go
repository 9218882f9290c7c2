// internal/types/stack.go
package types

import (
	"errors"
	"fmt"
	"strings"
)

/*
 * Block paths and path-tagged errors.
 *
 * Every collapse and resolve call receives the Stack of field names leading
 * to the block it is looking at. Errors raised anywhere in the tree carry a
 * copy of that stack so a diagnostic reads "actions.mine.run.0.value: ...".
 */

// Stack is the dotted path of field names from an entity root to a block.
type Stack []string

// Push returns a new stack extended with keys. The receiver is never
// modified, so sibling branches can share a prefix safely.
func (s Stack) Push(keys ...string) Stack {
	out := make(Stack, len(s), len(s)+len(keys))
	copy(out, s)
	return append(out, keys...)
}

// Index pushes an array position.
func (s Stack) Index(i int) Stack {
	return s.Push(fmt.Sprint(i))
}

// String renders the stack as a dotted path.
func (s Stack) String() string {
	return strings.Join(s, ".")
}

// BlockError is a path-tagged failure raised while validating, collapsing or
// resolving a block. Err is the taxonomy sentinel used with errors.Is.
type BlockError struct {
	Err     error
	Message string
	Stack   Stack
}

// NewBlockError builds a BlockError with a copy of stack.
func NewBlockError(err error, stack Stack, format string, args ...any) *BlockError {
	return &BlockError{
		Err:     err,
		Message: fmt.Sprintf(format, args...),
		Stack:   stack.Push(),
	}
}

func (e *BlockError) Error() string {
	if len(e.Stack) == 0 {
		return e.Message
	}
	return e.Stack.String() + ": " + e.Message
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// Depth returns the number of stack entries, or -1 when err carries no
// BlockError. Deeper errors come from closer to the offending block.
func Depth(err error) int {
	var be *BlockError
	if !errors.As(err, &be) {
		return -1
	}
	return len(be.Stack)
}
