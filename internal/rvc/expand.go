// Package rvc expands 16-bit RVC (RISC-V compressed) encodings into
// their equivalent 32-bit RV64 encoding. Table precomputes all 65536
// entries once so the decoder's hot path is a single slice lookup,
// with the generator (Expand) kept available to regenerate it.
package rvc

const (
	regZero = 0
	regSP   = 2
)

func signExtend(x uint32, bits uint) uint32 {
	m := uint32(1) << bits
	return (x ^ m) - m
}

func composeI(funct3, rd, rs1, imm, opcodeType uint32) uint32 {
	return (funct3 << 12) | (rd << 7) | (rs1 << 15) | (imm << 20) | (opcodeType << 2) | 0x3
}

func composeR(funct3, funct7, rd, rs1, rs2, opcodeType uint32) uint32 {
	return (funct3 << 12) | (funct7 << 25) | (rd << 7) | (rs1 << 15) | (rs2 << 20) | (opcodeType << 2) | 0x3
}

func composeS(funct3, rs1, rs2, imm, opcodeType uint32) uint32 {
	i := ((imm << 7) & 0xf80) | ((imm << 20) & 0xfe000000)
	return (funct3 << 12) | (rs1 << 15) | (rs2 << 20) | i | (opcodeType << 2) | 0x3
}

func composeU(rd, imm, opcodeType uint32) uint32 {
	return (rd << 7) | (imm << 12) | (opcodeType << 2) | 0x3
}

func composeJ(offset, opcodeType uint32) uint32 {
	offset = ((offset << 11) & 0x80000000) |
		((offset << 20) & 0x7fe00000) |
		((offset << 9) & 0x00100000) |
		(offset & 0x000ff000)
	return offset | (opcodeType << 2) | 0x3
}

func composeB(funct3, rs1, rs2, imm, opcodeType uint32) uint32 {
	offset := ((imm << 19) & 0x80000000) | ((imm << 20) & 0x7e000000) |
		((imm << 7) & 0xf00) | ((imm >> 4) & 0x80)
	return (funct3 << 12) | (rs1 << 15) | (rs2 << 20) | offset | (opcodeType << 2) | 0x3
}

// Expand maps one 16-bit RVC half-word to its 32-bit RV64 equivalent.
// Returns 0 for an unrecognized or reserved encoding.
func Expand(x uint16) uint32 {
	var op32 uint32
	op2 := uint32(x) & 0x3
	const rprimeOffset = 8
	funct3 := uint32(x>>13) & 0x7
	bit12 := uint32(x>>12) & 1

	switch op2 {
	case 0:
		pImm := (uint32(x>>7) & 0x38) | (uint32(x<<1) & 0xc0)
		pRs1 := (uint32(x>>7)&0x7 + rprimeOffset)
		pRdRs2 := (uint32(x>>2)&0x7 + rprimeOffset)

		switch funct3 {
		case 0: // c.addi4spn
			amount := (uint32(x>>7) & 0x30) | (uint32(x>>1) & 0x3c0) | (uint32(x>>4) & 0x4) | (uint32(x>>2) & 0x8)
			if amount != 0 {
				op32 = composeI(0, pRdRs2, regSP, amount, 0x4)
			}
		case 1: // c.fld
			op32 = composeI(3, pRdRs2, pRs1, pImm, 1)
		case 2: // c.lw
			pImm = (uint32(x>>7) & 0x38) | (uint32(x>>4) & 0x4) | (uint32(x<<1) & 0x40)
			op32 = composeI(2, pRdRs2, pRs1, pImm, 0)
		case 3: // c.ld
			op32 = composeI(3, pRdRs2, pRs1, pImm, 0)
		case 4: // reserved
		case 5: // c.fsd
			op32 = composeS(3, pRs1, pRdRs2, pImm, 9)
		case 6: // c.sw
			pImm = (uint32(x>>7) & 0x38) | (uint32(x>>4) & 0x4) | (uint32(x<<1) & 0x40)
			op32 = composeS(2, pRs1, pRdRs2, pImm, 8)
		case 7: // c.sd
			op32 = composeS(3, pRs1, pRdRs2, pImm, 8)
		}

	case 1:
		pImm := signExtend((uint32(x>>7)&0x20)|(uint32(x>>2)&0x1f), 5)
		pRs1Rd := uint32(x>>7) & 0x1f

		switch funct3 {
		case 0: // c.addi
			op32 = composeI(0, pRs1Rd, pRs1Rd, pImm, 4)
		case 1: // c.addiw
			op32 = composeI(0, pRs1Rd, pRs1Rd, pImm, 6)
		case 2: // c.li
			op32 = composeI(0, pRs1Rd, regZero, pImm, 4)
		case 3:
			if pRs1Rd == 2 { // c.addi16sp
				amount := (uint32(x>>3) & 0x200) | (uint32(x>>2) & 0x10) | (uint32(x<<1) & 0x40) |
					(uint32(x<<4) & 0x180) | (uint32(x<<3) & 0x20)
				amount = signExtend(amount, 9)
				op32 = composeI(0, regSP, regSP, amount, 0x4)
			} else if pRs1Rd != 0 { // c.lui
				amount := (uint32(x<<5) & 0x20000) | (uint32(x<<10) & 0x1f000)
				amount = signExtend(amount, 17)
				amount = uint32(int32(amount) >> 12)
				op32 = composeU(pRs1Rd, amount, 0xd)
			}
		case 4: // many
			funct1110 := uint32(x>>10) & 0x3
			pRs1Rd2 := uint32(x>>7)&0x7 + rprimeOffset
			pRs2 := uint32(x>>2)&0x7 + rprimeOffset

			switch funct1110 {
			case 0: // c.srli
				amount := (uint32(x>>7) & 0x20) | (uint32(x>>2) & 0x1f)
				op32 = composeI(5, pRs1Rd2, pRs1Rd2, amount, 4)
			case 1: // c.srai
				amount := (uint32(x>>7) & 0x20) | (uint32(x>>2) & 0x1f)
				amount |= 0x400
				op32 = composeI(5, pRs1Rd2, pRs1Rd2, amount, 4)
			case 2: // c.andi
				op32 = composeI(7, pRs1Rd2, pRs1Rd2, pImm, 4)
			case 3:
				funct65 := uint32(x>>5) & 0x3
				if bit12 == 0 {
					switch funct65 {
					case 0: // c.sub
						op32 = composeR(0, 0x20, pRs1Rd2, pRs1Rd2, pRs2, 0xc)
					case 1: // c.xor
						op32 = composeR(4, 0, pRs1Rd2, pRs1Rd2, pRs2, 0xc)
					case 2: // c.or
						op32 = composeR(6, 0, pRs1Rd2, pRs1Rd2, pRs2, 0xc)
					case 3: // c.and
						op32 = composeR(7, 0, pRs1Rd2, pRs1Rd2, pRs2, 0xc)
					}
				} else {
					switch funct65 {
					case 0: // c.subw
						op32 = composeR(0, 0x20, pRs1Rd2, pRs1Rd2, pRs2, 0xe)
					case 1: // c.addw
						op32 = composeR(0, 0, pRs1Rd2, pRs1Rd2, pRs2, 0xe)
					}
				}
			}
		case 5: // c.j
			offset := (uint32(x>>1) & 0x800) | (uint32(x>>7) & 0x10) | (uint32(x>>1) & 0x300) | (uint32(x<<2) & 0x400) |
				(uint32(x>>1) & 0x40) | (uint32(x<<1) & 0x80) | (uint32(x>>2) & 0xe) | (uint32(x<<3) & 0x20)
			offset = signExtend(offset, 11)
			op32 = composeJ(offset, 0x1b)
		case 6: // c.beqz
			pRs1 := uint32(x>>7)&0x7 + rprimeOffset
			offset := (uint32(x>>4) & 0x100) | (uint32(x>>7) & 0x18) | (uint32(x<<1) & 0xc0) |
				(uint32(x>>2) & 0x6) | (uint32(x<<3) & 0x20)
			offset = signExtend(offset, 8)
			op32 = composeB(0, pRs1, regZero, offset, 0x18)
		case 7: // c.bnez
			pRs1 := uint32(x>>7)&0x7 + rprimeOffset
			offset := (uint32(x>>4) & 0x100) | (uint32(x>>7) & 0x18) | (uint32(x<<1) & 0xc0) |
				(uint32(x>>2) & 0x6) | (uint32(x<<3) & 0x20)
			offset = signExtend(offset, 8)
			op32 = composeB(1, pRs1, regZero, offset, 0x18)
		}

	case 2:
		pRs1Rd := uint32(x>>7) & 0x1f
		pRs2 := uint32(x>>2) & 0x1f

		switch funct3 {
		case 0: // c.slli
			if !(bit12 == 0 && pRs2 == 0) { // ignore slli64
				amount := (uint32(x>>7) & 0x20) | pRs2
				op32 = composeI(1, pRs1Rd, pRs1Rd, amount, 4)
			}
		case 1: // c.fldsp
			i := (uint32(x>>7) & 0x20) | (uint32(x>>2) & 0x18) | (uint32(x<<4) & 0x1c0)
			op32 = composeI(3, pRs1Rd, regSP, i, 1)
		case 2: // c.lwsp
			i := (uint32(x>>7) & 0x20) | (uint32(x>>2) & 0x1c) | (uint32(x<<4) & 0x0c0)
			op32 = composeI(2, pRs1Rd, regSP, i, 0)
		case 3: // c.ldsp
			i := (uint32(x>>7) & 0x20) | (uint32(x>>2) & 0x18) | (uint32(x<<4) & 0x1c0)
			op32 = composeI(3, pRs1Rd, regSP, i, 0)
		case 4: // several
			if bit12 == 0 {
				if pRs2 == 0 { // c.jr
					op32 = composeI(0, 0, pRs1Rd, 0, 0x19)
				} else { // c.mv
					op32 = composeI(0, pRs1Rd, pRs2, 0, 4)
				}
			} else {
				if pRs1Rd == 0 { // c.ebreak
					op32 = 0x00100073
				} else if pRs2 == 0 { // c.jalr
					op32 = composeI(0, 1, pRs1Rd, 0, 0x19)
				} else { // c.add
					op32 = composeR(0, 0, pRs1Rd, pRs1Rd, pRs2, 0xc)
				}
			}
		case 5: // c.fsdsp
			pImm := (uint32(x>>7) & 0x38) | (uint32(x>>1) & 0x1c0)
			pRs2b := uint32(x>>2) & 0x1f
			op32 = composeS(3, regSP, pRs2b, pImm, 9)
		case 6: // c.swsp
			pImm := (uint32(x>>7) & 0x3c) | (uint32(x>>1) & 0xc0)
			pRs2b := uint32(x>>2) & 0x1f
			op32 = composeS(2, regSP, pRs2b, pImm, 8)
		case 7: // c.sdsp
			pImm := (uint32(x>>7) & 0x38) | (uint32(x>>1) & 0x1c0)
			pRs2b := uint32(x>>2) & 0x1f
			op32 = composeS(3, regSP, pRs2b, pImm, 8)
		}
	}

	return op32
}

// Table is the precomputed 65536-entry lookup table, keyed by the raw
// 16-bit value. A zero entry means "illegal / not a compressed encoding".
var Table = generateTable()

func generateTable() [65536]uint32 {
	var t [65536]uint32
	for i := 0; i < 65536; i++ {
		t[i] = Expand(uint16(i))
	}
	return t
}

// Lookup returns the 32-bit expansion for a 16-bit encoding via the
// precomputed table — this is the runtime fast path the decoder uses.
func Lookup(x uint16) uint32 {
	return Table[x]
}
