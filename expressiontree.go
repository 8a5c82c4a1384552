package exprjit

import (
	"fmt"
	"os"
)

// ExpressionTree drives the three-pass compilation protocol: Pass1
// reserves parameter registers, Pass2 materializes cached (CSE)
// subexpressions exactly once each in topological order, and Pass3
// emits the designated root as the function's result.
type ExpressionTree struct {
	Registers *RegisterFile
	Code      *CodeBuffer

	cache map[Node]int

	pass1Done bool
	pass2Done bool
}

// NewExpressionTree returns a tree with every register available and
// no code emitted yet.
func NewExpressionTree() *ExpressionTree {
	return &ExpressionTree{
		Registers: NewRegisterFile(),
		Code:      &CodeBuffer{},
		cache:     make(map[Node]int),
	}
}

// Pass1 reserves the registers that the Microsoft x64 calling
// convention assigns to each parameter, in argument order, removing
// them from the free pool before any node compiles. The register is
// chosen by argument position: position i takes the i-th of RCX, RDX,
// R8, R9 for an integer or XMMi for a float. Calling Pass2 or Pass3
// before Pass1 is a programming error.
func (t *ExpressionTree) Pass1(params []*Parameter) {
	intArgs := [4]int{RegRCX, RegRDX, RegR8, RegR9}
	floatArgs := [4]int{0, 1, 2, 3} // xmm0-xmm3

	intIdx, floatIdx := 0, 0
	for i, p := range params {
		assertf(i < len(intArgs), "more than %d parameters is unsupported", len(intArgs))
		if p.IsFloat {
			p.reg = floatArgs[i]
			p.isXmm = true
			t.Registers.ClaimXmm(p.reg)
			floatIdx++
		} else {
			p.reg = intArgs[i]
			t.Registers.Claim(p.reg)
			intIdx++
		}
		p.hasValue = true
		p.value = p.reg
	}
	t.pass1Done = true

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "exprjit: pass1 reserved %d int + %d float parameter registers\n", intIdx, floatIdx)
	}
}

// Pass2 walks nodes in caller-supplied topological order (children
// before parents) and materializes, exactly once, the value of every
// node whose ParentCount is greater than 1. This is eager CSE: a
// node wired to more than one parent is detected automatically here -
// no node-author opt-in is needed - and its CodeGenCache runs
// regardless of how many parents will later read it back out of the
// cache.
func (t *ExpressionTree) Pass2(nodesInTopoOrder []Node) {
	assertf(t.pass1Done, "Pass2 called before Pass1 reserved parameter registers")

	for _, n := range nodesInTopoOrder {
		if n.ParentCount() <= 1 || n.IsCached() {
			continue
		}
		reg := n.CodeGenCache(t)
		t.cache[n] = reg
		if cm, ok := n.(cacheMarker); ok {
			cm.markCached()
		}
		if VerboseMode {
			fmt.Fprintf(os.Stderr, "exprjit: pass2 materialized cached node %q into reg %d\n", n.Print(), reg)
		}
	}
	t.pass2Done = true
}

// Pass3 labels the root's subtree and emits it, returning the
// register holding the function's result.
func (t *ExpressionTree) Pass3(root Node) int {
	assertf(t.pass1Done, "Pass3 called before Pass1")
	assertf(t.pass2Done, "Pass3 called before Pass2 materialized cached subexpressions")

	root.LabelSubtree()
	result := root.CompileAsRoot(t)

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "exprjit: pass3 compiled root %q into reg %d (%d bytes emitted)\n",
			root.Print(), result, t.Code.Len())
	}
	return result
}

// cachedValue returns the already-materialized register for a cached
// node, panicking if Pass2 has not yet materialized it - a node
// declaring IsCached() true but not appearing in the topological
// order passed to Pass2 is a programming error.
func (t *ExpressionTree) cachedValue(n Node) int {
	reg, ok := t.cache[n]
	assertf(ok, "node %q is marked cached but was not materialized by Pass2", n.Print())
	return reg
}

// Allocate claims and returns any available general-purpose register.
// Panics if the pool is exhausted; an expression complex enough to
// exhaust 16 registers with no spilling support is a programming
// error in this minimal allocator, not a recoverable runtime state.
func (t *ExpressionTree) Allocate() int {
	reg, err := t.Registers.AnyAvailable()
	assertf(err == nil, "register pool exhausted: %v", err)
	t.Registers.Claim(reg)
	return reg
}

// AllocateXmm is the XMM counterpart of Allocate.
func (t *ExpressionTree) AllocateXmm() int {
	reg, err := t.Registers.AnyAvailableXmm()
	assertf(err == nil, "xmm register pool exhausted: %v", err)
	t.Registers.ClaimXmm(reg)
	return reg
}
