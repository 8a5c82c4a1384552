package exprjit

import "fmt"

// CompilerError represents a recoverable compilation failure: resource
// exhaustion the caller can react to, as opposed to a programming-error
// invariant violation, which panics instead.
type CompilerError struct {
	Stage   string
	Message string
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("exprjit: %s: %s", e.Stage, e.Message)
}

func newCompilerError(stage, format string, args ...interface{}) *CompilerError {
	return &CompilerError{Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// assertf panics with a formatted message when cond is false. Used for
// invariants that spec.md classifies as fatal programming errors -
// they are never caught and continued past.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic("exprjit: assertion failed: " + fmt.Sprintf(format, args...))
	}
}
