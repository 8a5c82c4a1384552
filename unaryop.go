package exprjit

import "fmt"

// UnaryOp negates a single child value.
type UnaryOp struct {
	nodeBase
	Child Node
}

// NewUnaryOp builds a negation node for child. If it ends up wired
// into more than one parent, Pass2 materializes it exactly once
// automatically.
func NewUnaryOp(child Node) *UnaryOp {
	countParent(child)
	return &UnaryOp{Child: child}
}

func (u *UnaryOp) LabelSubtree() { u.Child.LabelSubtree() }

func (u *UnaryOp) CodeGenCache(tree *ExpressionTree) int  { return u.emitValue(tree) }
func (u *UnaryOp) CompileAsRoot(tree *ExpressionTree) int { return u.emitValue(tree) }

func (u *UnaryOp) emitValue(tree *ExpressionTree) int {
	if u.hasValue {
		return u.value
	}
	src := childValue(tree, u.Child)
	dst := tree.Allocate()
	// neg dst = 0 - src, via sub from a zeroed register to avoid adding
	// a dedicated NEG encoding for a single-opcode node kind.
	tree.Code.MovImm64(dst, 0)
	tree.Code.SubRegReg(dst, src)
	tree.Registers.Release(src)

	u.hasValue = true
	u.value = dst
	return dst
}

func (u *UnaryOp) Print() string { return fmt.Sprintf("(-%s)", u.Child.Print()) }
