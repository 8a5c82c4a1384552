package exprjit

// encodeUnwindInfo serializes the UNWIND_INFO header and UNWIND_CODE
// array into the flat byte layout the Windows x64 ABI defines:
//
//	byte 0: version (3 bits) | flags (5 bits)
//	byte 1: size of prolog
//	byte 2: count of unwind codes
//	byte 3: frame register (4 bits) | scaled frame offset (4 bits)
//	...followed by CountOfCodes() UNWIND_CODE slots.
func encodeUnwindInfo(u *UnwindInfo) []byte {
	header := []byte{
		(u.Version & 0x7) | (u.Flags << 3),
		u.SizeOfProlog,
		byte(u.CountOfCodes()),
		(u.FrameReg & 0xF) | (u.FrameOffset << 4),
	}
	return append(header, u.EncodeCodeArray()...)
}
