package cpu

// Field-extraction helpers for the six base RV64 instruction formats
// (I/R/S/B/U/J) plus the shift-amount variant. Each takes the already
// RVC-expanded 32-bit word.

type iFields struct {
	funct3   uint32
	rd, rs1  uint32
	imm      int64
	immU     uint64
	shamt5   uint32
	shamt6   uint32
	top2     uint32
}

func decodeI(raw uint32) iFields {
	var f iFields
	f.funct3 = (raw >> 12) & 0x7
	f.rd = (raw >> 7) & 0x1f
	f.rs1 = (raw >> 15) & 0x1f
	f.immU = uint64(raw>>20) & 0xfff
	f.imm = signExtend(f.immU, 12)
	f.shamt5 = (raw >> 20) & 0x1f
	f.shamt6 = (raw >> 20) & 0x3f
	f.top2 = raw >> 30
	return f
}

type rFields struct {
	funct3, funct7  uint32
	rd, rs1, rs2    uint32
}

func decodeR(raw uint32) rFields {
	return rFields{
		funct3: (raw >> 12) & 0x7,
		funct7: (raw >> 25) & 0x7f,
		rd:     (raw >> 7) & 0x1f,
		rs1:    (raw >> 15) & 0x1f,
		rs2:    (raw >> 20) & 0x1f,
	}
}

type sFields struct {
	funct3   uint32
	rs1, rs2 uint32
	imm      int64
}

func decodeS(raw uint32) sFields {
	var f sFields
	f.funct3 = (raw >> 12) & 0x7
	f.rs1 = (raw >> 15) & 0x1f
	f.rs2 = (raw >> 20) & 0x1f
	u := (uint64(raw>>20) & (0x7f << 5)) | (uint64(raw>>7) & 0x1f)
	f.imm = signExtend(u, 12)
	return f
}

type bFields struct {
	funct3   uint32
	rs1, rs2 uint32
	imm      int64
}

func decodeB(raw uint32) bFields {
	var f bFields
	f.funct3 = (raw >> 12) & 0x7
	f.rs1 = (raw >> 15) & 0x1f
	f.rs2 = (raw >> 20) & 0x1f
	u := (uint64(raw>>7) & 0x1e) | (uint64(raw<<4) & 0x800) | (uint64(raw>>20) & 0x7e0) | (uint64(raw>>19) & 0x1000)
	f.imm = signExtend(u, 13)
	return f
}

type uFields struct {
	rd   uint32
	imm  int64
	immU uint64
}

func decodeU(raw uint32) uFields {
	var f uFields
	f.rd = (raw >> 7) & 0x1f
	f.immU = uint64(raw>>12) & 0xfffff
	f.imm = signExtend(f.immU, 20)
	return f
}

type jFields struct {
	rd  uint32
	imm int64
}

func decodeJ(raw uint32) jFields {
	var f jFields
	f.rd = (raw >> 7) & 0x1f
	r := uint64(raw&0xff000) | (uint64(raw>>9) & 0x800) | (uint64(raw>>20) & 0x7fe) | (uint64(raw>>11) & 0x100000)
	f.imm = signExtend(r, 21)
	return f
}
