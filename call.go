package exprjit

import (
	"fmt"
	"strings"
)

// Call emits an indirect call to a function pointer already fixed at
// tree-construction time, passing up to four integer arguments in the
// Microsoft x64 argument registers and returning the value from RAX.
// Its nodeBase.hasValue guard means emitValue only ever runs once
// regardless of caching, so a Call read by more than one parent is
// never re-emitted even before Pass2 materializes it.
type Call struct {
	nodeBase
	Target uintptr
	Args   []Node
}

// NewCall builds a call node. Args must be integer-valued and number
// at most four, matching the Microsoft x64 integer argument registers.
func NewCall(target uintptr, args ...Node) *Call {
	assertf(len(args) <= 4, "Call supports at most 4 integer arguments, got %d", len(args))
	for _, a := range args {
		countParent(a)
	}
	return &Call{Target: target, Args: args}
}

func (c *Call) LabelSubtree() {
	for _, a := range c.Args {
		a.LabelSubtree()
	}
}

func (c *Call) CodeGenCache(tree *ExpressionTree) int  { return c.emitValue(tree) }
func (c *Call) CompileAsRoot(tree *ExpressionTree) int { return c.emitValue(tree) }

func (c *Call) emitValue(tree *ExpressionTree) int {
	if c.hasValue {
		return c.value
	}

	argRegs := [4]int{RegRCX, RegRDX, RegR8, RegR9}
	argVals := make([]int, len(c.Args))
	for i, a := range c.Args {
		argVals[i] = childValue(tree, a)
	}

	// Move argument values into the calling-convention registers.
	// Claim each destination first so a later move can't clobber an
	// earlier argument still waiting to be placed.
	for i := range argVals {
		if !tree.Registers.IsAvailable(argRegs[i]) {
			continue
		}
		tree.Registers.Claim(argRegs[i])
	}
	for i, v := range argVals {
		if v != argRegs[i] {
			tree.Code.MovRegReg(argRegs[i], v)
		}
		tree.Registers.Release(v)
	}

	target := tree.Allocate()
	tree.Code.MovImm64(target, int64(c.Target))
	tree.Code.CallReg(target)
	tree.Registers.Release(target)

	for i := range argVals {
		tree.Registers.Release(argRegs[i])
	}

	dst := tree.Allocate()
	if dst != RegRAX {
		tree.Code.MovRegReg(dst, RegRAX)
	}

	c.hasValue = true
	c.value = dst
	return dst
}

func (c *Call) Print() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.Print()
	}
	return fmt.Sprintf("Call(0x%x, %s)", c.Target, strings.Join(parts, ", "))
}
