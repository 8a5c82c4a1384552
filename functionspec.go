package exprjit

import (
	"fmt"
	"os"
)

// BaseRegisterType selects how (or whether) FunctionSpecification
// materializes a frame pointer.
type BaseRegisterType int

const (
	// BaseRegisterNone emits no frame pointer; the function addresses
	// its frame entirely through RSP.
	BaseRegisterNone BaseRegisterType = iota
	// BaseRegisterSetRbpToOriginalRsp forces RBP into the saved-register
	// set and, at the end of the prolog, points it at the original
	// (pre-sub) RSP value via `lea`.
	BaseRegisterSetRbpToOriginalRsp
)

// FunctionSpecification builds the prolog byte sequence, the matching
// UNWIND_INFO/UNWIND_CODE array, and the epilog byte sequence in
// lockstep, so that the two emitted instruction streams and the
// unwind metadata stay consistent with each other.
//
// The frame is laid out low-to-high as: outgoing call-argument home
// space, saved RXX registers (one slot each), an optional alignment
// pad, saved XMM registers (two slots each), then local temporaries.
// Every register save is a `mov [rsp+slot*8], reg` at a fixed slot,
// never a `push` - this lets the epilog restore registers in any
// order the unwind-code array dictates, and lets a frame pointer be
// derived with a `lea` instead of UWOP_SET_FPREG (see emitProlog).
type FunctionSpecification struct {
	baseRegisterType BaseRegisterType
	rxxSaveMask      uint32 // excludes RSP; includes RBP when a frame pointer is requested
	xmmSaveMask      uint32

	functionParamsSlotCount int
	localStackSlotCount     int

	offsetToOriginalRsp int // `sub rsp, N` amount, in bytes; always == totalStackSlotCount*8

	Prolog *CodeBuffer
	Epilog *CodeBuffer
	Unwind *UnwindInfo
}

// NewFunctionSpecification builds a complete prolog/epilog/UnwindInfo
// triple. maxFunctionCallParameters is the largest argument count any
// call this function makes passes, or -1 if it makes no calls; it
// drives the outgoing-call-argument home space every call site needs
// reserved below it on the stack. localStackSlotCount is local
// temporary storage, in 8-byte slots. rxxUsed and xmmUsed are the
// nonvolatile registers the function body claims and must restore.
// baseRegisterType requests an RBP-based frame. Returns a
// *CompilerError, not a panic, when the resulting frame exceeds what
// UWOP_ALLOC_LARGE can encode - that is a resource limit, not a
// programming error.
func NewFunctionSpecification(maxFunctionCallParameters, localStackSlotCount int, rxxUsed, xmmUsed []int, baseRegisterType BaseRegisterType) (*FunctionSpecification, error) {
	if localStackSlotCount < 0 {
		return nil, newCompilerError("FunctionSpecification", "negative local stack slot count %d", localStackSlotCount)
	}

	rxxMask := buildRegisterMask(rxxUsed, NumRXX)
	for r := 0; r < NumRXX; r++ {
		if rxxMask&(1<<uint(r)) != 0 {
			assertf(r != StackPointerID, "the stack pointer can never appear in a save list")
			assertf(IsNonvolatileRXX(r), "register %s is not nonvolatile, cannot appear in a save list", RXXName(r))
		}
	}
	xmmMask := buildRegisterMask(xmmUsed, NumXMM)
	for x := 0; x < NumXMM; x++ {
		if xmmMask&(1<<uint(x)) != 0 {
			assertf(IsNonvolatileXMM(x), "xmm%d is not nonvolatile, cannot appear in a save list", x)
		}
	}

	if baseRegisterType == BaseRegisterSetRbpToOriginalRsp {
		rxxMask |= 1 << uint(BasePointerID)
	}
	// The stack pointer is never itself saved this way, regardless of
	// what the caller passed in.
	rxxMask &^= 1 << uint(StackPointerID)

	fps := 0
	if maxFunctionCallParameters >= 0 {
		fps = maxFunctionCallParameters
		if fps < 4 {
			fps = 4
		}
	}

	var rxxSlotOf, xmmSlotOf [NumRXX]int
	slot := fps
	for r := 0; r < NumRXX; r++ {
		if rxxMask&(1<<uint(r)) != 0 {
			rxxSlotOf[r] = slot
			slot++
		}
	}
	if xmmMask != 0 && slot%2 != 0 {
		slot++ // pad so XMM saves land on an even (16-byte-aligned) slot
	}
	for x := 0; x < NumXMM; x++ {
		if xmmMask&(1<<uint(x)) != 0 {
			xmmSlotOf[x] = slot
			slot += 2
		}
	}
	slot += localStackSlotCount

	// Forced odd: offsetToOriginalRsp mod 16 == 8 always holds, which is
	// exactly the padding a `call` site downstream needs (return
	// address (8) + an odd number of slots (odd*8) is a multiple of 16).
	totalStackSlotCount := slot | 1
	offsetToOriginalRsp := totalStackSlotCount * 8

	if offsetToOriginalRsp > c_maxStackSize {
		return nil, newCompilerError("FunctionSpecification",
			"frame size %d exceeds maximum encodable size %d", offsetToOriginalRsp, c_maxStackSize)
	}

	fs := &FunctionSpecification{
		baseRegisterType:        baseRegisterType,
		rxxSaveMask:             rxxMask,
		xmmSaveMask:             xmmMask,
		functionParamsSlotCount: fps,
		localStackSlotCount:     localStackSlotCount,
		offsetToOriginalRsp:     offsetToOriginalRsp,
		Prolog:                  &CodeBuffer{},
		Epilog:                  &CodeBuffer{},
		Unwind:                  &UnwindInfo{Version: 1, Flags: 0},
	}

	fs.emitProlog(rxxSlotOf, xmmSlotOf, totalStackSlotCount)
	fs.emitEpilog()
	fs.Unwind.SizeOfProlog = byte(fs.Prolog.Len())

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "exprjit: prolog=%d bytes epilog=%d bytes offsetToOriginalRsp=%d unwindcodes=%d\n",
			fs.Prolog.Len(), fs.Epilog.Len(), fs.offsetToOriginalRsp, fs.Unwind.CountOfCodes())
	}

	return fs, nil
}

func buildRegisterMask(ids []int, limit int) uint32 {
	var m uint32
	for _, id := range ids {
		assertf(id >= 0 && id < limit, "register id %d out of range", id)
		m |= 1 << uint(id)
	}
	return m
}

// emitProlog writes the single stack allocation, every RXX save at
// its fixed slot, every XMM save at its fixed slot, and - if a frame
// pointer was requested - a closing `lea`. It does not emit
// UWOP_SET_FPREG: instead, once the `lea` is in place, it overwrites
// the code-offset of the unwind code that ends up first in the stored
// (reverse-of-prolog) array, so the unwinder still sees the end of the
// prolog as including the `lea`. This is only correct because the
// `lea`, when present, is always the last instruction emitted here -
// i.e. it immediately follows the final register save.
func (fs *FunctionSpecification) emitProlog(rxxSlotOf, xmmSlotOf [NumRXX]int, totalStackSlotCount int) {
	fs.Prolog.SubImm32(StackPointerID, int32(fs.offsetToOriginalRsp))

	// Codes are built here in prolog chronological order, then reversed
	// before being stored: the UNWIND_CODE array the ABI expects is read
	// forward by the unwinder during the epilog, which undoes the
	// prolog's steps back to front.
	codes := make([]UnwindCode, 0, fs.Unwind.CountOfCodes()+8)
	codes = append(codes, allocUnwindCode(totalStackSlotCount, byte(fs.Prolog.Len())))

	for r := 0; r < NumRXX; r++ {
		if fs.rxxSaveMask&(1<<uint(r)) == 0 {
			continue
		}
		slotN := rxxSlotOf[r]
		fs.Prolog.MovRegToMem(r, StackPointerID, int32(slotN*8))
		codes = append(codes, UnwindCode{
			CodeOffset: byte(fs.Prolog.Len()),
			UnwindOp:   UwopSaveNonvol,
			OpInfo:     byte(r),
			Extra:      uint16(slotN),
		})
	}

	for x := 0; x < NumXMM; x++ {
		if fs.xmmSaveMask&(1<<uint(x)) == 0 {
			continue
		}
		slotN := xmmSlotOf[x]
		fs.Prolog.MovqStoreXmm(x, StackPointerID, int32(slotN*8))
		codes = append(codes, UnwindCode{
			CodeOffset: byte(fs.Prolog.Len()),
			UnwindOp:   UwopSaveXmm128,
			OpInfo:     byte(x),
			Extra:      uint16(slotN / 2),
		})
	}

	if fs.baseRegisterType == BaseRegisterSetRbpToOriginalRsp {
		assertf(fs.rxxSaveMask&(1<<uint(BasePointerID)) != 0, "a frame pointer requires RBP to be in the save mask")
		fs.Prolog.Lea(BasePointerID, StackPointerID, int32(fs.offsetToOriginalRsp))
	}

	for i, j := 0, len(codes)-1; i < j; i, j = i+1, j-1 {
		codes[i], codes[j] = codes[j], codes[i]
	}
	if fs.baseRegisterType == BaseRegisterSetRbpToOriginalRsp {
		codes[0].CodeOffset = byte(fs.Prolog.Len())
	}
	for _, c := range codes {
		fs.Unwind.AddCode(c)
	}
}

// allocUnwindCode builds the single code describing the prolog's one
// stack allocation: a one-code UWOP_ALLOC_SMALL when the whole frame
// fits in its 4-bit slot-count field, otherwise a UWOP_ALLOC_LARGE
// carrying the full slot count in its Extra companion slot.
func allocUnwindCode(totalStackSlotCount int, codeOffset byte) UnwindCode {
	if totalStackSlotCount*8 <= 128 {
		return UnwindCode{CodeOffset: codeOffset, UnwindOp: UwopAllocSmall, OpInfo: byte(totalStackSlotCount - 1)}
	}
	return UnwindCode{CodeOffset: codeOffset, UnwindOp: UwopAllocLarge, OpInfo: 0, Extra: uint16(totalStackSlotCount)}
}

// emitEpilog replays the unwind-code array forward - which, since the
// array is stored in reverse-of-prolog order, is exactly epilog order
// - translating each code into the instruction that undoes it. A
// code this function doesn't recognize is a programming error: the
// only opcodes FunctionSpecification ever emits are the four handled
// below.
func (fs *FunctionSpecification) emitEpilog() {
	for _, c := range fs.Unwind.Codes {
		switch c.UnwindOp {
		case UwopAllocLarge:
			fs.Epilog.AddImm32(StackPointerID, int32(c.Extra)*8)
		case UwopAllocSmall:
			fs.Epilog.AddImm32(StackPointerID, (int32(c.OpInfo)+1)*8)
		case UwopSaveNonvol:
			fs.Epilog.MovMemToReg(int(c.OpInfo), StackPointerID, int32(c.Extra)*8)
		case UwopSaveXmm128:
			fs.Epilog.MovqLoadXmm(int(c.OpInfo), StackPointerID, int32(c.Extra)*16)
		default:
			assertf(false, "unwind code %d has no epilog lowering", c.UnwindOp)
		}
	}
	fs.Epilog.Ret()
}

// OffsetToOriginalRsp returns the `sub rsp, N` amount emitted in the
// prolog: the distance, in bytes, from the current RSP back to its
// value on function entry.
func (fs *FunctionSpecification) OffsetToOriginalRsp() int { return fs.offsetToOriginalRsp }

// FrameSize is a synonym for OffsetToOriginalRsp, kept for callers
// that think of the frame by its total size rather than the offset
// back to the caller's stack pointer.
func (fs *FunctionSpecification) FrameSize() int { return fs.offsetToOriginalRsp }
