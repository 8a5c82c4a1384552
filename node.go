package exprjit

// Node is the public surface every expression-tree node exposes to
// ExpressionTree. Concrete node kinds live in this package and call
// each other's unexported emitValue directly; Node itself only needs
// to support the three-pass protocol from the outside.
type Node interface {
	// ParentCount returns how many other nodes reference this one.
	// Pass2 materializes any node whose ParentCount is greater than 1
	// exactly once, before Pass3 runs - this is what drives CSE.
	ParentCount() int

	// IsCached reports whether this node's value has already been
	// materialized by Pass2. A node does not opt into caching itself;
	// ExpressionTree flips this once ParentCount > 1 triggers
	// materialization.
	IsCached() bool

	// CodeGenCache emits this node's value exactly once during Pass2,
	// for nodes with ParentCount > 1 that are not yet cached, and
	// returns the register holding the result.
	CodeGenCache(tree *ExpressionTree) int

	// LabelSubtree walks the node's children depth-first to let nodes
	// precompute anything they need before CompileAsRoot runs. The
	// root calls this once at the start of Pass3.
	LabelSubtree()

	// CompileAsRoot emits the full subtree for this node as the
	// function's result value and returns the register holding it.
	// Only ever called on the designated root node.
	CompileAsRoot(tree *ExpressionTree) int

	// Print writes a short human-readable description, used by the
	// cmd/exprjit CLI smoke test and in panic messages.
	Print() string
}

// valuer is implemented by every concrete node kind in this package.
// It is the single place emission logic lives; CodeGenCache and
// CompileAsRoot on each concrete type are thin wrappers around it, so
// that a parent node can ask for a child's value whether or not that
// child turned out to be cached.
type valuer interface {
	emitValue(tree *ExpressionTree) int
}

// childValue returns the register holding a child node's value,
// reading it out of the CSE cache if Pass2 already materialized it,
// or emitting it on demand otherwise.
func childValue(tree *ExpressionTree, child Node) int {
	if child.IsCached() {
		return tree.cachedValue(child)
	}
	v, ok := child.(valuer)
	assertf(ok, "node %q does not implement emitValue", child.Print())
	return v.emitValue(tree)
}

// nodeBase holds the bookkeeping every concrete node kind shares:
// parent count and whether its value has already been materialized
// this compilation.
type nodeBase struct {
	parents int
	cached  bool

	hasValue bool
	value    int // register id, valid only once hasValue is true
}

func (b *nodeBase) ParentCount() int { return b.parents }
func (b *nodeBase) IsCached() bool   { return b.cached }
func (b *nodeBase) AddParent()       { b.parents++ }
func (b *nodeBase) markCached()      { b.cached = true }

// cacheMarker is implemented by nodeBase; Pass2 uses it to flip a
// node's "already materialized" bit itself, rather than requiring
// node authors to opt in by setting it themselves.
type cacheMarker interface {
	markCached()
}

// parentCounter is implemented by nodeBase; every constructor calls
// this on each child it wires in, so ParentCount reflects the real
// fan-in.
type parentCounter interface {
	AddParent()
}

// countParent bumps a child's parent count if it tracks one - every
// concrete node in this package does, via embedded nodeBase.
func countParent(child Node) {
	if pc, ok := child.(parentCounter); ok {
		pc.AddParent()
	}
}
