package exprjit

// Register ids follow real x64 encoding, confirmed against the
// corpus rather than any single source's literal constants.
const (
	RegRAX = 0
	RegRCX = 1
	RegRDX = 2
	RegRBX = 3
	RegRSP = 4
	RegRBP = 5
	RegRSI = 6
	RegRDI = 7
	RegR8  = 8
	RegR9  = 9
	RegR10 = 10
	RegR11 = 11
	RegR12 = 12
	RegR13 = 13
	RegR14 = 14
	RegR15 = 15

	NumRXX = 16
	NumXMM = 16

	// StackPointerID and BasePointerID resolve spec.md's open question:
	// RSP and RBP under real x64 encoding, not the source's literal ids.
	StackPointerID = RegRSP
	BasePointerID  = RegRBP
)

var rxxNames = [NumRXX]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

// RXXName returns the lowercase assembly mnemonic for a general-purpose
// register id. Panics on an out-of-range id; callers only ever pass ids
// that came from this package.
func RXXName(id int) string {
	if id < 0 || id >= NumRXX {
		panic("exprjit: invalid RXX register id")
	}
	return rxxNames[id]
}

// XMMName returns the lowercase assembly mnemonic for an XMM register id.
func XMMName(id int) string {
	if id < 0 || id >= NumXMM {
		panic("exprjit: invalid XMM register id")
	}
	return "xmm" + itoa(id)
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// IsNonvolatileRXX reports whether an RXX register is callee-saved under
// the Microsoft x64 ABI.
func IsNonvolatileRXX(id int) bool {
	switch id {
	case RegRBX, RegRBP, RegRDI, RegRSI, RegR12, RegR13, RegR14, RegR15:
		return true
	default:
		return false
	}
}

// IsNonvolatileXMM reports whether an XMM register is callee-saved
// under the Microsoft x64 ABI (XMM6-XMM15).
func IsNonvolatileXMM(id int) bool {
	return id >= 6 && id < NumXMM
}
