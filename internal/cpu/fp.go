package cpu

import "math"

// Floating registers are stored as raw bits in a single uint64 per
// register: a float32 occupies the low 32 bits, a float64 the full 64.

func (c *CPU) f32(i uint32) float32        { return math.Float32frombits(uint32(c.F[i])) }
func (c *CPU) setF32(i uint32, v float32)  { c.F[i] = (c.F[i] &^ 0xffffffff) | uint64(math.Float32bits(v)) }
func (c *CPU) f64(i uint32) float64        { return math.Float64frombits(c.F[i]) }
func (c *CPU) setF64(i uint32, v float64)  { c.F[i] = math.Float64bits(v) }

func (c *CPU) execLoadFP(raw uint32) error {
	f := decodeI(raw)
	addr := c.X[f.rs1] + uint64(f.imm)
	switch f.funct3 {
	case 2: // flw
		v, err := c.Image.F32(addr)
		if err != nil {
			return err
		}
		c.setF32(f.rd, v)
	case 3: // fld
		v, err := c.Image.F64(addr)
		if err != nil {
			return err
		}
		c.setF64(f.rd, v)
	default:
		return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled LOAD-FP funct3"}
	}
	return nil
}

func (c *CPU) execStoreFP(raw uint32) error {
	f := decodeS(raw)
	addr := c.X[f.rs1] + uint64(f.imm)
	switch f.funct3 {
	case 2: // fsw
		return c.Image.SetF32(addr, c.f32(f.rs2))
	case 3: // fsd
		return c.Image.SetF64(addr, c.f64(f.rs2))
	default:
		return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled STORE-FP funct3"}
	}
}

type fmaKind int

const (
	fmaAdd fmaKind = iota
	fmaSub
	fmaNMSub
	fmaNMAdd
)

func (c *CPU) execFusedMA(raw uint32, kind fmaKind) error {
	f := decodeR(raw)
	rs3 := (f.funct7 >> 2) & 0x1f
	fmt := f.funct7 & 0x3
	switch fmt {
	case 0:
		a, b, d := c.f32(f.rs1), c.f32(f.rs2), c.f32(rs3)
		var r float32
		switch kind {
		case fmaAdd:
			r = a*b + d
		case fmaSub:
			r = a*b - d
		case fmaNMSub:
			r = -1.0*(a*b) + d
		case fmaNMAdd:
			r = -1.0*(a*b) - d
		}
		c.setF32(f.rd, r)
	case 1:
		a, b, d := c.f64(f.rs1), c.f64(f.rs2), c.f64(rs3)
		var r float64
		switch kind {
		case fmaAdd:
			r = a*b + d
		case fmaSub:
			r = a*b - d
		case fmaNMSub:
			r = -1.0*(a*b) + d
		case fmaNMAdd:
			r = -1.0*(a*b) - d
		}
		c.setF64(f.rd, r)
	default:
		return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fused-multiply-add fmt"}
	}
	return nil
}

// execOpFP implements the OP-FP opcode: funct7 selects the operation
// and, for most, the single/double format.
func (c *CPU) execOpFP(raw uint32) error {
	f := decodeR(raw)
	switch f.funct7 {
	case 0: // fadd.s
		c.setF32(f.rd, c.f32(f.rs1)+c.f32(f.rs2))
	case 1: // fadd.d
		c.setF64(f.rd, c.f64(f.rs1)+c.f64(f.rs2))
	case 4: // fsub.s
		c.setF32(f.rd, c.f32(f.rs1)-c.f32(f.rs2))
	case 5: // fsub.d
		c.setF64(f.rd, c.f64(f.rs1)-c.f64(f.rs2))
	case 8: // fmul.s
		c.setF32(f.rd, c.f32(f.rs1)*c.f32(f.rs2))
	case 9: // fmul.d
		c.setF64(f.rd, c.f64(f.rs1)*c.f64(f.rs2))
	case 0xc: // fdiv.s
		c.setF32(f.rd, c.f32(f.rs1)/c.f32(f.rs2))
	case 0xd: // fdiv.d
		c.setF64(f.rd, c.f64(f.rs1)/c.f64(f.rs2))
	case 0x10: // fsgnj/fsgnjn/fsgnjx.s
		return c.execSgnj32(f, raw)
	case 0x11: // fsgnj/fsgnjn/fsgnjx.d
		return c.execSgnj64(f, raw)
	case 0x14: // fmin.s/fmax.s
		switch f.funct3 {
		case 0:
			c.setF32(f.rd, minF32(c.f32(f.rs1), c.f32(f.rs2)))
		case 1:
			c.setF32(f.rd, maxF32(c.f32(f.rs1), c.f32(f.rs2)))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fmin/fmax.s funct3"}
		}
	case 0x15: // fmin.d/fmax.d
		switch f.funct3 {
		case 0:
			c.setF64(f.rd, minF64(c.f64(f.rs1), c.f64(f.rs2)))
		case 1:
			c.setF64(f.rd, maxF64(c.f64(f.rs1), c.f64(f.rs2)))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fmin/fmax.d funct3"}
		}
	case 0x20: // fcvt.s.d
		if f.rs2 != 1 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fcvt.s.d rs2"}
		}
		c.setF32(f.rd, float32(c.f64(f.rs1)))
	case 0x21: // fcvt.d.s
		if f.rs2 != 0 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fcvt.d.s rs2"}
		}
		c.setF64(f.rd, float64(c.f32(f.rs1)))
	case 0x2c: // fsqrt.s
		if f.rs2 != 0 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fsqrt.s rs2"}
		}
		c.setF32(f.rd, float32(math.Sqrt(float64(c.f32(f.rs1)))))
	case 0x2d: // fsqrt.d
		if f.rs2 != 0 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fsqrt.d rs2"}
		}
		c.setF64(f.rd, math.Sqrt(c.f64(f.rs1)))
	case 0x50: // fle.s/flt.s/feq.s
		a, b := c.f32(f.rs1), c.f32(f.rs2)
		switch f.funct3 {
		case 0:
			c.setX(f.rd, boolU64(a <= b))
		case 1:
			c.setX(f.rd, boolU64(a < b))
		case 2:
			c.setX(f.rd, boolU64(a == b))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled compare.s funct3"}
		}
	case 0x51: // fle.d/flt.d/feq.d
		a, b := c.f64(f.rs1), c.f64(f.rs2)
		switch f.funct3 {
		case 0:
			c.setX(f.rd, boolU64(a <= b))
		case 1:
			c.setX(f.rd, boolU64(a < b))
		case 2:
			c.setX(f.rd, boolU64(a == b))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled compare.d funct3"}
		}
	case 0x60: // fcvt.w/wu/l/lu.s
		v := c.f32(f.rs1)
		switch f.rs2 {
		case 0:
			c.setX(f.rd, uint64(int64(int32(v))))
		case 1:
			c.setX(f.rd, uint64(uint32(v)))
		case 2:
			c.setX(f.rd, uint64(int64(v)))
		case 3:
			c.setX(f.rd, uint64(v))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fcvt.*.s rs2"}
		}
	case 0x61: // fcvt.w/wu/l/lu.d
		v := c.f64(f.rs1)
		switch f.rs2 {
		case 0:
			c.setX(f.rd, uint64(int64(int32(v))))
		case 1:
			c.setX(f.rd, uint64(uint32(v)))
		case 2:
			c.setX(f.rd, uint64(int64(v)))
		case 3:
			c.setX(f.rd, uint64(v))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fcvt.*.d rs2"}
		}
	case 0x68: // fcvt.s.w/wu/l/lu
		switch f.rs2 {
		case 0:
			c.setF32(f.rd, float32(int32(uint32(c.X[f.rs1]))))
		case 1:
			c.setF32(f.rd, float32(uint32(c.X[f.rs1])))
		case 2:
			c.setF32(f.rd, float32(int64(c.X[f.rs1])))
		case 3:
			c.setF32(f.rd, float32(c.X[f.rs1]))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fcvt.s.* rs2"}
		}
	case 0x69: // fcvt.d.w/wu/l/lu
		switch f.rs2 {
		case 0:
			c.setF64(f.rd, float64(int32(uint32(c.X[f.rs1]))))
		case 1:
			c.setF64(f.rd, float64(uint32(c.X[f.rs1])))
		case 2:
			c.setF64(f.rd, float64(int64(c.X[f.rs1])))
		case 3:
			c.setF64(f.rd, float64(c.X[f.rs1]))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fcvt.d.* rs2"}
		}
	case 0x70: // fmv.x.w / fclass.s
		if f.rs2 != 0 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled 0x70 rs2"}
		}
		switch f.funct3 {
		case 0:
			c.setX(f.rd, uint64(uint32(c.F[f.rs1])))
		case 1:
			c.setX(f.rd, fclass32(c.f32(f.rs1)))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fmv.x.w/fclass.s funct3"}
		}
	case 0x71: // fmv.x.d / fclass.d
		if f.rs2 != 0 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled 0x71 rs2"}
		}
		switch f.funct3 {
		case 0:
			c.setX(f.rd, c.F[f.rs1])
		case 1:
			c.setX(f.rd, fclass64(c.f64(f.rs1)))
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fmv.x.d/fclass.d funct3"}
		}
	case 0x78: // fmv.w.x
		if f.rs2 != 0 || f.funct3 != 0 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fmv.w.x encoding"}
		}
		c.F[f.rd] = (c.F[f.rd] &^ 0xffffffff) | (c.X[f.rs1] & 0xffffffff)
	case 0x79: // fmv.d.x
		if f.rs2 != 0 || f.funct3 != 0 {
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fmv.d.x encoding"}
		}
		c.F[f.rd] = c.X[f.rs1]
	default:
		return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled OP-FP funct7"}
	}
	return nil
}

func (c *CPU) execSgnj32(f rFields, raw uint32) error {
	a, b := c.f32(f.rs1), c.f32(f.rs2)
	mag := float32(math.Abs(float64(a)))
	switch f.funct3 {
	case 0: // fsgnj
		if b < 0 {
			mag = -mag
		}
	case 1: // fsgnjn
		if b >= 0 {
			mag = -mag
		}
	case 2: // fsgnjx
		if (a < 0) != (b < 0) {
			mag = -mag
		}
	default:
		return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fsgnj.s funct3"}
	}
	c.setF32(f.rd, mag)
	return nil
}

func (c *CPU) execSgnj64(f rFields, raw uint32) error {
	a, b := c.f64(f.rs1), c.f64(f.rs2)
	mag := math.Abs(a)
	switch f.funct3 {
	case 0:
		if b < 0 {
			mag = -mag
		}
	case 1:
		if b >= 0 {
			mag = -mag
		}
	case 2:
		if (a < 0) != (b < 0) {
			mag = -mag
		}
	default:
		return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled fsgnj.d funct3"}
	}
	c.setF64(f.rd, mag)
	return nil
}

// fclass32/fclass64 implement the RISC-V fclass bit encoding: bit i
// set selects category i.
func fclass32(f float32) uint64 {
	switch {
	case math.IsNaN(float64(f)):
		return 0x200 // quiet NaN (signaling NaN detection needs libm support Go lacks; treat all as quiet)
	case math.IsInf(float64(f), -1):
		return 0x1
	case math.IsInf(float64(f), 1):
		return 0x80
	case f == 0:
		if math.Signbit(float64(f)) {
			return 0x8
		}
		return 0x10
	case f < 0:
		return 0x2
	default:
		return 0x40
	}
}

func fclass64(d float64) uint64 {
	switch {
	case math.IsNaN(d):
		return 0x200
	case math.IsInf(d, -1):
		return 0x1
	case math.IsInf(d, 1):
		return 0x80
	case d == 0:
		if math.Signbit(d) {
			return 0x8
		}
		return 0x10
	case d < 0:
		return 0x2
	default:
		return 0x40
	}
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
func minF64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
func maxF64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
