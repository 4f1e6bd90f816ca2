package cpu

// execAtomic implements the A-extension (AMO) instructions. With a
// single hart, aq/rl ordering bits are irrelevant: LR always succeeds,
// SC always succeeds and returns 0.
func (c *CPU) execAtomic(raw uint32) error {
	f := decodeR(raw)
	top5 := f.funct7 >> 2
	addr := c.X[f.rs1]

	switch top5 {
	case 0: // amoadd
		return c.amo(raw, f, func(mem, reg uint32) uint32 { return mem + reg }, func(mem, reg uint64) uint64 { return mem + reg })
	case 1: // amoswap
		return c.amo(raw, f, func(mem, reg uint32) uint32 { return reg }, func(mem, reg uint64) uint64 { return reg })
	case 2: // lr: read-only, sign-extends the .w result
		switch f.funct3 {
		case 2:
			v, err := c.Image.U32(addr)
			if err != nil {
				return err
			}
			c.setX(f.rd, uint64(signExtend(v, 32)))
			return nil
		case 3:
			v, err := c.Image.U64(addr)
			if err != nil {
				return err
			}
			c.setX(f.rd, v)
			return nil
		}
	case 3: // sc: always succeeds, writes, returns 0
		switch f.funct3 {
		case 2:
			if err := c.Image.SetU32(addr, uint32(c.X[f.rs2])); err != nil {
				return err
			}
			c.setX(f.rd, 0)
			return nil
		case 3:
			if err := c.Image.SetU64(addr, c.X[f.rs2]); err != nil {
				return err
			}
			c.setX(f.rd, 0)
			return nil
		}
	case 4: // amoxor
		return c.amo(raw, f, func(mem, reg uint32) uint32 { return reg ^ mem }, func(mem, reg uint64) uint64 { return reg ^ mem })
	case 8: // amoor
		return c.amo(raw, f, func(mem, reg uint32) uint32 { return reg | mem }, func(mem, reg uint64) uint64 { return reg | mem })
	case 0xc: // amoand
		return c.amo(raw, f, func(mem, reg uint32) uint32 { return reg & mem }, func(mem, reg uint64) uint64 { return reg & mem })
	case 0x10: // amomin (signed)
		return c.amo(raw, f,
			func(mem, reg uint32) uint32 { return uint32(minI32(int32(reg), int32(mem))) },
			func(mem, reg uint64) uint64 { return uint64(minI64(int64(reg), int64(mem))) })
	case 0x14: // amomax (signed)
		return c.amo(raw, f,
			func(mem, reg uint32) uint32 { return uint32(maxI32(int32(reg), int32(mem))) },
			func(mem, reg uint64) uint64 { return uint64(maxI64(int64(reg), int64(mem))) })
	case 0x18: // amominu
		return c.amo(raw, f, minU32, minU64)
	case 0x1c: // amomaxu
		return c.amo(raw, f, maxU32, maxU64)
	}
	return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled AMO top5"}
}

// amo performs a read-modify-write at (rs1) using opW for the 32-bit
// variant (funct3==2, rd sign-extended per "AMOs always sign-extend
// value placed in rd") or opD for the 64-bit variant (funct3==3).
func (c *CPU) amo(raw uint32, f rFields, opW func(mem, reg uint32) uint32, opD func(mem, reg uint64) uint64) error {
	addr := c.X[f.rs1]
	switch f.funct3 {
	case 2:
		mem, err := c.Image.U32(addr)
		if err != nil {
			return err
		}
		memval := uint32(mem)
		if err := c.Image.SetU32(addr, opW(memval, uint32(c.X[f.rs2]))); err != nil {
			return err
		}
		c.setX(f.rd, uint64(signExtend(uint64(memval), 32)))
		return nil
	case 3:
		memval, err := c.Image.U64(addr)
		if err != nil {
			return err
		}
		if err := c.Image.SetU64(addr, opD(memval, c.X[f.rs2])); err != nil {
			return err
		}
		c.setX(f.rd, memval)
		return nil
	}
	return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled AMO funct3"}
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
