//go:build windows

package exprjit

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// InstalledFunction is an emitted function made executable and, on
// Windows, registered with the OS unwinder so that a call into it
// participates correctly in structured exception handling.
type InstalledFunction struct {
	base uintptr
	size int
}

// Install copies code into an executable page and, when unwind is not
// nil, registers it with RtlAddFunctionTable so SEH can walk through
// it. Non-Windows builds use install_other.go instead, which copies
// the code into ordinary non-executable memory and registers nothing.
func Install(code []byte, unwind *UnwindInfo) (*InstalledFunction, error) {
	size := len(code)
	if size == 0 {
		return nil, fmt.Errorf("exprjit: cannot install zero-length function")
	}

	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("exprjit: VirtualAlloc failed: %w", err)
	}

	dst := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	copy(dst, code)

	var oldProtect uint32
	if err := windows.VirtualProtect(addr, uintptr(size), windows.PAGE_EXECUTE_READ, &oldProtect); err != nil {
		return nil, fmt.Errorf("exprjit: VirtualProtect failed: %w", err)
	}

	fn := &InstalledFunction{base: addr, size: size}

	if unwind != nil {
		if err := registerUnwind(fn, unwind); err != nil {
			return nil, err
		}
	}

	return fn, nil
}

// registerUnwind builds a RUNTIME_FUNCTION entry describing the whole
// installed function and calls RtlAddFunctionTable with it, pointing
// at the UNWIND_INFO this package already built.
func registerUnwind(fn *InstalledFunction, unwind *UnwindInfo) error {
	infoBytes := encodeUnwindInfo(unwind)
	infoAddr, err := windows.VirtualAlloc(0, uintptr(len(infoBytes)), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return fmt.Errorf("exprjit: VirtualAlloc for unwind info failed: %w", err)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(infoAddr)), len(infoBytes)), infoBytes)

	type runtimeFunction struct {
		BeginAddress uint32
		EndAddress   uint32
		UnwindInfo   uint32
	}
	rf := runtimeFunction{
		BeginAddress: 0,
		EndAddress:   uint32(fn.size),
		UnwindInfo:   uint32(infoAddr - fn.base),
	}

	ret, _, callErr := rtlAddFunctionTable.Call(uintptr(unsafe.Pointer(&rf)), 1, fn.base)
	if ret == 0 {
		return fmt.Errorf("exprjit: RtlAddFunctionTable failed: %w", callErr)
	}
	return nil
}

// RtlAddFunctionTable is exported by kernel32.dll as a forwarder to
// ntdll; x/sys/windows does not wrap it directly, so it is resolved
// lazily the same way the package resolves any other uncommon API.
var rtlAddFunctionTable = windows.NewLazySystemDLL("kernel32.dll").NewProc("RtlAddFunctionTable")

// Call invokes the installed function as a niladic function returning
// an integer.
func (f *InstalledFunction) Call() int64 {
	// A Go func value points at a word holding the code address, so
	// build that extra level of indirection around f.base.
	code := f.base
	codePtr := unsafe.Pointer(&code)
	fn := *(*func() int64)(unsafe.Pointer(&codePtr))
	return fn()
}
