package exprjit

// CodeBuffer accumulates emitted machine-code bytes along with the
// small slice of x64 encodings the prolog/epilog and concrete node
// kinds need. A general-purpose instruction encoder is out of scope;
// this only covers what this package emits itself.
type CodeBuffer struct {
	bytes []byte
}

func (c *CodeBuffer) Bytes() []byte { return c.bytes }
func (c *CodeBuffer) Len() int      { return len(c.bytes) }

func (c *CodeBuffer) emit(b ...byte) { c.bytes = append(c.bytes, b...) }

// rex builds a REX prefix from the W/R/X/B bits; returns 0 (omit) if
// none of the bits nor the "force" flag are set.
func rex(w, r, x, b bool, force bool) (byte, bool) {
	if !w && !r && !x && !b && !force {
		return 0, false
	}
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v, true
}

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// MovRegReg emits `mov dst, src` for 64-bit general-purpose registers.
func (c *CodeBuffer) MovRegReg(dst, src int) {
	prefix, _ := rex(true, src >= 8, false, dst >= 8, true)
	c.emit(prefix, 0x89, modrm(3, byte(src), byte(dst)))
}

// SubImm32 emits `sub reg, imm32` (0x81 /5) or the imm8 form (0x83 /5)
// when imm fits in a signed byte.
func (c *CodeBuffer) SubImm32(reg int, imm int32) {
	prefix, _ := rex(true, false, false, reg >= 8, true)
	c.emit(prefix)
	if imm >= -128 && imm <= 127 {
		c.emit(0x83, modrm(3, 5, byte(reg)), byte(imm))
		return
	}
	c.emit(0x81, modrm(3, 5, byte(reg)))
	c.emit(byte(imm), byte(imm>>8), byte(imm>>16), byte(imm>>24))
}

// AddImm32 emits `add reg, imm32`/`add reg, imm8`.
func (c *CodeBuffer) AddImm32(reg int, imm int32) {
	prefix, _ := rex(true, false, false, reg >= 8, true)
	c.emit(prefix)
	if imm >= -128 && imm <= 127 {
		c.emit(0x83, modrm(3, 0, byte(reg)), byte(imm))
		return
	}
	c.emit(0x81, modrm(3, 0, byte(reg)))
	c.emit(byte(imm), byte(imm>>8), byte(imm>>16), byte(imm>>24))
}

// MovRegToMem emits `mov [base+disp], reg` - a slot-addressed store,
// used by FunctionSpecification to save a nonvolatile GPR instead of
// pushing it.
func (c *CodeBuffer) MovRegToMem(reg, base int, disp int32) {
	prefix, _ := rex(true, reg >= 8, false, base >= 8, true)
	c.emit(prefix, 0x89)
	c.emitModrmDisp(byte(reg), byte(base), disp)
}

// MovMemToReg emits `mov reg, [base+disp]`, the load counterpart of
// MovRegToMem.
func (c *CodeBuffer) MovMemToReg(reg, base int, disp int32) {
	prefix, _ := rex(true, reg >= 8, false, base >= 8, true)
	c.emit(prefix, 0x8B)
	c.emitModrmDisp(byte(reg), byte(base), disp)
}

// Lea emits `lea dst, [base+disp]`, used to derive a frame pointer
// from the stack pointer without a dedicated UWOP_SET_FPREG code.
func (c *CodeBuffer) Lea(dst, base int, disp int32) {
	prefix, _ := rex(true, dst >= 8, false, base >= 8, true)
	c.emit(prefix, 0x8D)
	c.emitModrmDisp(byte(dst), byte(base), disp)
}

// MovqStoreXmm emits a placeholder 16-byte-aligned store of xmm into
// [base+disp] using the SSE2 MOVQ encoding (66 0F D6); a real
// implementation would prefer MOVAPS, left as the minimal placeholder
// needed to keep prolog/epilog byte-length bookkeeping exercised.
func (c *CodeBuffer) MovqStoreXmm(xmm, base int, disp int32) {
	prefix, _ := rex(false, xmm >= 8, false, base >= 8, false)
	c.emit(0x66)
	if prefix != 0 {
		c.emit(prefix)
	}
	c.emit(0x0F, 0xD6)
	c.emitModrmDisp(byte(xmm), byte(base), disp)
}

// MovqLoadXmm is the load counterpart of MovqStoreXmm (0F 7E).
func (c *CodeBuffer) MovqLoadXmm(xmm, base int, disp int32) {
	prefix, _ := rex(false, xmm >= 8, false, base >= 8, false)
	c.emit(0xF3)
	if prefix != 0 {
		c.emit(prefix)
	}
	c.emit(0x0F, 0x7E)
	c.emitModrmDisp(byte(xmm), byte(base), disp)
}

// emitModrmDisp emits a [base+disp] ModRM, inserting the mandatory SIB
// byte (no index, scale 0) whenever base's low 3 bits are 4 (RSP or
// R12), since those encode "SIB follows" rather than a direct base.
func (c *CodeBuffer) emitModrmDisp(reg, base byte, disp int32) {
	needsSib := base&7 == 4
	mod := byte(2)
	switch {
	case disp == 0 && base&7 != 5:
		mod = 0
	case disp >= -128 && disp <= 127:
		mod = 1
	}

	c.emit(modrm(mod, reg, base))
	if needsSib {
		c.emit(0x24) // scale=00, index=100 (none), base=100 (RSP/R12)
	}
	switch mod {
	case 1:
		c.emit(byte(disp))
	case 2:
		c.emit(byte(disp), byte(disp>>8), byte(disp>>16), byte(disp>>24))
	}
}

// MovqGprToXmm emits `movq xmm, gpr` (66 REX.W 0F 6E), a direct
// bit-reinterpreting move with no conversion, used by Cast.
func (c *CodeBuffer) MovqGprToXmm(xmm, gpr int) {
	prefix, _ := rex(true, xmm >= 8, false, gpr >= 8, true)
	c.emit(0x66, prefix, 0x0F, 0x6E, modrm(3, byte(xmm), byte(gpr)))
}

// MovqXmmToGpr emits `movq gpr, xmm` (66 REX.W 0F 7E).
func (c *CodeBuffer) MovqXmmToGpr(gpr, xmm int) {
	prefix, _ := rex(true, xmm >= 8, false, gpr >= 8, true)
	c.emit(0x66, prefix, 0x0F, 0x7E, modrm(3, byte(xmm), byte(gpr)))
}

// Ret emits a near return.
func (c *CodeBuffer) Ret() { c.emit(0xC3) }

// Cmovcc emits a conditional move `cmovCC dst, src`, used by the
// Conditional node to select branchlessly instead of jump patching.
func (c *CodeBuffer) Cmovcc(cc byte, dst, src int) {
	prefix, _ := rex(true, dst >= 8, false, src >= 8, true)
	c.emit(prefix, 0x0F, 0x40+cc, modrm(3, byte(dst), byte(src)))
}

// AddRegReg emits `add dst, src`.
func (c *CodeBuffer) AddRegReg(dst, src int) {
	prefix, _ := rex(true, src >= 8, false, dst >= 8, true)
	c.emit(prefix, 0x01, modrm(3, byte(src), byte(dst)))
}

// SubRegReg emits `sub dst, src`.
func (c *CodeBuffer) SubRegReg(dst, src int) {
	prefix, _ := rex(true, src >= 8, false, dst >= 8, true)
	c.emit(prefix, 0x29, modrm(3, byte(src), byte(dst)))
}

// IMulRegReg emits `imul dst, src`.
func (c *CodeBuffer) IMulRegReg(dst, src int) {
	prefix, _ := rex(true, dst >= 8, false, src >= 8, true)
	c.emit(prefix, 0x0F, 0xAF, modrm(3, byte(dst), byte(src)))
}

// MovImm64 emits `mov reg, imm64` (0xB8+reg with REX.W).
func (c *CodeBuffer) MovImm64(reg int, imm int64) {
	prefix, _ := rex(true, false, false, reg >= 8, true)
	c.emit(prefix, 0xB8+byte(reg&7))
	u := uint64(imm)
	c.emit(byte(u), byte(u>>8), byte(u>>16), byte(u>>24), byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56))
}

// CallReg emits an indirect call through a register: `call reg`.
func (c *CodeBuffer) CallReg(reg int) {
	if prefix, ok := rex(false, false, false, reg >= 8, false); ok {
		c.emit(prefix)
	}
	c.emit(0xFF, modrm(3, 2, byte(reg)))
}
