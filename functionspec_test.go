package exprjit

import "testing"

// Scenario 1: empty frame, leaf function. sub SP,8; one UWOP_ALLOC_SMALL
// with info=0; epilog is add SP,8; ret.
func TestFunctionSpecificationEmptyFrame(t *testing.T) {
	fs, err := NewFunctionSpecification(-1, 1, nil, nil, BaseRegisterNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.OffsetToOriginalRsp() != 8 {
		t.Errorf("offsetToOriginalRsp = %d, want 8", fs.OffsetToOriginalRsp())
	}
	if fs.Prolog.Len() == 0 {
		t.Errorf("even an empty frame must emit sub SP,8, got 0 prolog bytes")
	}
	if got := fs.Unwind.CountOfCodes(); got != 1 {
		t.Errorf("CountOfCodes() = %d, want 1", got)
	}
	if fs.Unwind.Codes[0].UnwindOp != UwopAllocSmall || fs.Unwind.Codes[0].OpInfo != 0 {
		t.Errorf("expected a single UWOP_ALLOC_SMALL with info=0, got op=%d info=%d",
			fs.Unwind.Codes[0].UnwindOp, fs.Unwind.Codes[0].OpInfo)
	}
	epilog := fs.Epilog.Bytes()
	if len(epilog) == 0 || epilog[len(epilog)-1] != 0xC3 {
		t.Errorf("epilog must end in a ret (0xC3), got %v", epilog)
	}
}

// Scenario 2: single nonvolatile save, no calls. sub SP,8; mov [SP+0],R12;
// two codes (SAVE_NONVOL R12@slot0, ALLOC_SMALL info=0), occupying three
// UNWIND_CODE slots since SAVE_NONVOL carries a second slot.
func TestFunctionSpecificationSingleNonvolatileSave(t *testing.T) {
	fs, err := NewFunctionSpecification(-1, 0, []int{RegR12}, nil, BaseRegisterNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.OffsetToOriginalRsp() != 8 {
		t.Errorf("offsetToOriginalRsp = %d, want 8", fs.OffsetToOriginalRsp())
	}
	if got := fs.Unwind.CountOfCodes(); got != 3 {
		t.Errorf("CountOfCodes() = %d, want 3 (2-slot SAVE_NONVOL + 1-slot ALLOC_SMALL)", got)
	}
	// Codes are stored in reverse-of-prolog order: the save (last
	// emitted) comes first, the allocation (first emitted) comes last.
	if fs.Unwind.Codes[0].UnwindOp != UwopSaveNonvol ||
		fs.Unwind.Codes[0].OpInfo != byte(RegR12) ||
		fs.Unwind.Codes[0].Extra != 0 {
		t.Errorf("codes[0] = %+v, want SAVE_NONVOL R12 at slot 0", fs.Unwind.Codes[0])
	}
	if fs.Unwind.Codes[1].UnwindOp != UwopAllocSmall || fs.Unwind.Codes[1].OpInfo != 0 {
		t.Errorf("codes[1] = %+v, want ALLOC_SMALL info=0", fs.Unwind.Codes[1])
	}
}

// Scenario 3: frame pointer plus one call. functionParamsSlotCount =
// max(2,4) = 4, totalSlots = (4+1+0)|1 = 5, offset = 40. sub SP,40;
// mov [SP+32],RBP; lea RBP,[SP+40]; codes[0].CodeOffset == prolog length.
func TestFunctionSpecificationFramePointerPlusCall(t *testing.T) {
	fs, err := NewFunctionSpecification(2, 0, nil, nil, BaseRegisterSetRbpToOriginalRsp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.functionParamsSlotCount != 4 {
		t.Errorf("functionParamsSlotCount = %d, want 4", fs.functionParamsSlotCount)
	}
	if fs.OffsetToOriginalRsp() != 40 {
		t.Errorf("offsetToOriginalRsp = %d, want 40", fs.OffsetToOriginalRsp())
	}
	if got := fs.Unwind.CountOfCodes(); got != 3 {
		t.Errorf("CountOfCodes() = %d, want 3 (2-slot RBP save + 1-slot alloc)", got)
	}
	if fs.Unwind.Codes[0].UnwindOp != UwopSaveNonvol ||
		fs.Unwind.Codes[0].OpInfo != byte(RegRBP) ||
		fs.Unwind.Codes[0].Extra != 4 {
		t.Errorf("codes[0] = %+v, want SAVE_NONVOL RBP at slot 4", fs.Unwind.Codes[0])
	}
	if fs.Unwind.Codes[0].CodeOffset != byte(fs.Prolog.Len()) {
		t.Errorf("codes[0].CodeOffset = %d, want prolog length %d", fs.Unwind.Codes[0].CodeOffset, fs.Prolog.Len())
	}
	if fs.Unwind.SizeOfProlog != byte(fs.Prolog.Len()) {
		t.Errorf("SizeOfProlog = %d, want prolog length %d", fs.Unwind.SizeOfProlog, fs.Prolog.Len())
	}
	if fs.Unwind.FrameReg != 0 {
		t.Errorf("FrameReg = %d, want 0 (frame pointer is never announced via this field)", fs.Unwind.FrameReg)
	}
	// No UWOP_SET_FPREG anywhere: the frame pointer is recovered purely
	// from RBP's own save slot plus the `lea`.
	for _, c := range fs.Unwind.Codes {
		if c.UnwindOp == UwopSetFpreg {
			t.Errorf("UWOP_SET_FPREG must never be emitted")
		}
	}
}

// Scenario 4: large allocation. totalSlots = (0+0+100)|1 = 101, offset
// = 808 (> 128, so ALLOC_LARGE info=0 plus companion=101); epilog adds
// 101*8 = 808.
func TestFunctionSpecificationLargeAllocation(t *testing.T) {
	fs, err := NewFunctionSpecification(-1, 100, nil, nil, BaseRegisterNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.OffsetToOriginalRsp() != 808 {
		t.Errorf("offsetToOriginalRsp = %d, want 808", fs.OffsetToOriginalRsp())
	}
	last := fs.Unwind.Codes[len(fs.Unwind.Codes)-1]
	if last.UnwindOp != UwopAllocLarge || last.OpInfo != 0 || last.Extra != 101 {
		t.Errorf("alloc code = %+v, want ALLOC_LARGE info=0 extra=101", last)
	}
}

// Scenario 5: XMM save alongside an RXX save. slots: 0(RBX), 1(pad),
// 2-3(XMM6). totalSlots = (0+4+0)|1 = 5, offset = 40. XMM code
// info=6, companion offset = slot/2 = 1.
func TestFunctionSpecificationXmmSave(t *testing.T) {
	fs, err := NewFunctionSpecification(-1, 0, []int{RegRBX}, []int{6}, BaseRegisterNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.OffsetToOriginalRsp() != 40 {
		t.Errorf("offsetToOriginalRsp = %d, want 40", fs.OffsetToOriginalRsp())
	}
	var sawXmm, sawRbx bool
	for _, c := range fs.Unwind.Codes {
		switch {
		case c.UnwindOp == UwopSaveXmm128:
			sawXmm = true
			if c.OpInfo != 6 || c.Extra != 1 {
				t.Errorf("xmm save = %+v, want OpInfo=6 Extra=1", c)
			}
		case c.UnwindOp == UwopSaveNonvol && c.OpInfo == byte(RegRBX):
			sawRbx = true
			if c.Extra != 0 {
				t.Errorf("rbx save = %+v, want Extra=0", c)
			}
		}
	}
	if !sawXmm || !sawRbx {
		t.Errorf("expected both an RBX save and an XMM6 save, codes: %+v", fs.Unwind.Codes)
	}
}

// Scenario 6: overflow rejection before any bytes are written.
func TestFunctionSpecificationOverflowRejected(t *testing.T) {
	_, err := NewFunctionSpecification(-1, c_maxStackSize/8+1, nil, nil, BaseRegisterNone)
	if err == nil {
		t.Fatalf("expected an error for a local stack slot count beyond c_maxStackSize")
	}
	if _, ok := err.(*CompilerError); !ok {
		t.Errorf("expected a *CompilerError, got %T", err)
	}
}

func TestFunctionSpecificationRejectsVolatileRegister(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic when asked to save a volatile register")
		}
	}()
	NewFunctionSpecification(-1, 0, []int{RegRAX}, nil, BaseRegisterNone)
}

// Testable Property #1: offsetToOriginalRsp mod 16 == 8 always holds,
// across a spread of inputs including the all-zero empty frame.
func TestFunctionSpecificationOffsetAlwaysOddSlotCount(t *testing.T) {
	cases := []struct {
		maxCallParams, localSlots int
		rxx, xmm                  []int
		base                      BaseRegisterType
	}{
		{-1, 0, nil, nil, BaseRegisterNone},
		{-1, 1, nil, nil, BaseRegisterNone},
		{-1, 0, []int{RegR12}, nil, BaseRegisterNone},
		{2, 0, nil, nil, BaseRegisterSetRbpToOriginalRsp},
		{-1, 100, nil, nil, BaseRegisterNone},
		{-1, 0, []int{RegRBX}, []int{6}, BaseRegisterNone},
	}
	for _, c := range cases {
		fs, err := NewFunctionSpecification(c.maxCallParams, c.localSlots, c.rxx, c.xmm, c.base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fs.OffsetToOriginalRsp()%16 != 8 {
			t.Errorf("case %+v: offsetToOriginalRsp=%d mod 16 = %d, want 8",
				c, fs.OffsetToOriginalRsp(), fs.OffsetToOriginalRsp()%16)
		}
	}
}

func TestFunctionSpecificationPrologEpilogByteSymmetry(t *testing.T) {
	fs, err := NewFunctionSpecification(2, 5, []int{RegRBX, RegRSI, RegRDI}, []int{6}, BaseRegisterSetRbpToOriginalRsp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Every UWOP_SAVE_NONVOL/UWOP_SAVE_XMM128 code in the prolog must
	// have a matching mov-load in the epilog, and the epilog must end
	// in ret.
	saveCount := 0
	for _, c := range fs.Unwind.Codes {
		if c.UnwindOp == UwopSaveNonvol || c.UnwindOp == UwopSaveXmm128 {
			saveCount++
		}
	}
	if saveCount != 5 { // RBX, RSI, RDI, RBP (forced by the frame pointer), plus xmm6
		t.Errorf("expected 5 saves (4 RXX + 1 XMM), got %d", saveCount)
	}
	epilog := fs.Epilog.Bytes()
	if epilog[len(epilog)-1] != 0xC3 {
		t.Errorf("epilog must end in ret")
	}
}
