package cpu

import "math/bits"

// 128-bit multiply helpers for mulh/mulhsu/mulhu. Go's math/bits.Mul64
// gives the unsigned 128-bit product directly; the signed variants
// adjust the high word for two's-complement sign.

func mulU64U64(a, b uint64) (low, high uint64) {
	high, low = bits.Mul64(a, b)
	return low, high
}

func mulS64S64(a, b int64) (low uint64, high int64) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return lo, int64(hi)
}

// mulS64U64High returns the high 64 bits of a signed*unsigned 128-bit
// product (mulhsu): rs1 is signed, rs2 is unsigned.
func mulS64U64High(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return int64(hi)
}
