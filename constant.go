package exprjit

import "fmt"

// Constant is a compile-time known integer value, materialized into a
// register with a single `mov reg, imm64` when first needed.
type Constant struct {
	nodeBase
	Value int64
}

// NewConstant returns a node for an immediate integer value.
func NewConstant(value int64) *Constant {
	return &Constant{Value: value}
}

func (c *Constant) LabelSubtree() {}

func (c *Constant) CodeGenCache(tree *ExpressionTree) int {
	return c.emitValue(tree)
}

func (c *Constant) CompileAsRoot(tree *ExpressionTree) int {
	return c.emitValue(tree)
}

func (c *Constant) emitValue(tree *ExpressionTree) int {
	if c.hasValue {
		return c.value
	}
	reg := tree.Allocate()
	tree.Code.MovImm64(reg, c.Value)
	c.hasValue = true
	c.value = reg
	return reg
}

func (c *Constant) Print() string { return fmt.Sprintf("Constant(%d)", c.Value) }
