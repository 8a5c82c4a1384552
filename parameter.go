package exprjit

import "fmt"

// Parameter represents one of the function's incoming arguments. Its
// register is assigned during ExpressionTree.Pass1, before any other
// node compiles.
type Parameter struct {
	nodeBase

	Name    string
	IsFloat bool

	reg   int
	isXmm bool
}

// NewParameter declares a function parameter; IsFloat selects whether
// it arrives in an XMM register or a general-purpose one.
func NewParameter(name string, isFloat bool) *Parameter {
	return &Parameter{Name: name, IsFloat: isFloat}
}

func (p *Parameter) LabelSubtree() {}

func (p *Parameter) CodeGenCache(tree *ExpressionTree) int { return p.emitValue(tree) }

func (p *Parameter) CompileAsRoot(tree *ExpressionTree) int { return p.emitValue(tree) }

func (p *Parameter) emitValue(tree *ExpressionTree) int {
	assertf(p.hasValue, "parameter %q has no register - Pass1 must run before any node compiles", p.Name)
	return p.value
}

func (p *Parameter) Print() string {
	kind := "rxx"
	if p.isXmm {
		kind = "xmm"
	}
	return fmt.Sprintf("Parameter(%s, %s%d)", p.Name, kind, p.reg)
}

// Reg returns the register this parameter was assigned; valid only
// after Pass1.
func (p *Parameter) Reg() int { return p.reg }

// IsXmm reports whether the parameter arrived in an XMM register.
func (p *Parameter) IsXmm() bool { return p.isXmm }
