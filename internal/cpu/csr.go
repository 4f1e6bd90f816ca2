package cpu

import "time"

// execSystem implements the SYSTEM opcode: ECALL, EBREAK, and the
// small set of CSRs real guest programs probe (fflags/frm stubs,
// cycle/time/instret counters, the vendor/arch/impl/hart id quad).
func (c *CPU) execSystem(raw uint32) error {
	f := decodeI(raw)
	csr := f.immU

	switch f.funct3 {
	case 0: // ecall / ebreak
		switch raw {
		case 0x73:
			if c.Syscall == nil {
				return &Fault{PC: c.PC, Raw: raw, Msg: "ecall with no syscall dispatcher wired"}
			}
			return c.Syscall(c)
		case 0x100073:
			return nil // ebreak: ignored
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled SYSTEM/0 encoding"}
		}
	case 1: // csrrw
		switch csr {
		case 0x1, 0x2: // fflags, frm
			c.setX(f.rd, 0)
		case 0xc00: // cycle
			c.setX(f.rd, c.Cycles*1000) // fake microseconds
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled csrrw target"}
		}
	case 2: // csrrs
		if f.rd == 0 {
			return nil
		}
		switch csr {
		case 0x1, 0x2: // fflags, frm
			c.X[f.rd] = 0
		case 0xb00, 0xc00, 0xc02: // mcycle/cycle, minstret/instret (one cycle per instruction)
			c.X[f.rd] = c.Cycles
		case 0xb02:
			c.X[f.rd] = c.Cycles
		case 0xc01: // time
			c.X[f.rd] = uint64(time.Now().UnixNano())
		case 0xf11, 0xf12, 0xf13: // mvendorid, marchid, mimpid
			c.X[f.rd] = 0xbeabad00bee
		case 0xf14: // mhartid: single hart, always 0
			c.X[f.rd] = 0
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled csrrs source"}
		}
	case 6: // csrrsi
		switch csr {
		case 0x1:
			c.setX(f.rd, 0)
		default:
			return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled csrrsi target"}
		}
	default:
		return &Fault{PC: c.PC, Raw: raw, Msg: "unhandled SYSTEM funct3"}
	}
	return nil
}
