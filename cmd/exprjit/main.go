// Command exprjit is a smoke-test harness: it builds one sample
// expression tree, compiles a function around it, and prints the
// resulting prolog/epilog byte counts and unwind-code disassembly.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/exprjit"
)

func main() {
	verbose := flag.Bool("verbose", false, "print Pass1-Pass3 and prolog/epilog trace output")
	useFramePointer := flag.Bool("frame-pointer", true, "use RBP as a frame pointer")
	flag.Parse()

	exprjit.VerboseMode = *verbose

	tree := exprjit.NewExpressionTree()

	a := exprjit.NewParameter("a", false)
	b := exprjit.NewParameter("b", false)
	tree.Pass1([]*exprjit.Parameter{a, b})

	sum := exprjit.NewBinaryOp(exprjit.OpAdd, a, b)
	result := exprjit.NewBinaryOp(exprjit.OpMul, sum, sum) // sum's ParentCount reaches 2, so Pass2 caches it automatically

	tree.Pass2([]exprjit.Node{a, b, sum, result})
	resultReg := tree.Pass3(result)

	fmt.Printf("compiled body: %d bytes, result in %s\n", tree.Code.Len(), exprjit.RXXName(resultReg))

	baseRegisterType := exprjit.BaseRegisterNone
	if *useFramePointer {
		baseRegisterType = exprjit.BaseRegisterSetRbpToOriginalRsp
	}
	fs, err := exprjit.NewFunctionSpecification(-1, 0, []int{exprjit.RegRBX}, nil, baseRegisterType)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Printf("prolog: %d bytes, epilog: %d bytes, offsetToOriginalRsp: %d bytes\n",
		fs.Prolog.Len(), fs.Epilog.Len(), fs.OffsetToOriginalRsp())
	fmt.Printf("unwind codes (%d slots):\n", fs.Unwind.CountOfCodes())
	for _, c := range fs.Unwind.Codes {
		fmt.Printf("  offset=%3d op=%-2d opinfo=%-2d extra=%d\n", c.CodeOffset, c.UnwindOp, c.OpInfo, c.Extra)
	}
}
