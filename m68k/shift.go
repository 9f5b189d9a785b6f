package m68k

// Shift and rotate kinds, as encoded in the instruction.
const (
	shiftArithmetic = iota
	shiftLogical
	rotateExtend
	rotate
)

// shift handles the register and memory forms of ASx, LSx, ROXx and
// ROx.
func (c *CPU) shift(op uint16) {
	left := op&0x0100 != 0

	// Memory form: a single bit, word sized.
	if (op>>6)&3 == 3 {
		if op&0x0800 != 0 {
			// 68020 bit field instructions
			c.illegal()
		}
		dst := c.dataAlterable((op>>3)&7, op&7, 2)
		if dst.kind != kindMem {
			c.illegal()
		}
		r := c.rotateShift((op>>9)&3, left, c.get(dst), 1, 2)
		c.set(dst, r)
		return
	}

	size := c.sizeOf(op >> 6)
	reg := op & 7

	count := uint32((op >> 9) & 7)
	if op&0x0020 != 0 {
		count = c.D[count] % 64
	} else if count == 0 {
		count = 8
	}

	r := c.rotateShift((op>>3)&3, left, c.D[reg]&mask(size), count, size)
	c.setD(int(reg), r, size)
}

// rotateShift performs the operation one bit at a time, which keeps the
// carry and overflow rules easy to follow.
func (c *CPU) rotateShift(kind uint16, left bool, v, count uint32, size int) uint32 {
	m := mask(size)
	top := msb(size)
	v &= m

	x := c.Flag(FlagX)
	carry := false
	overflow := false

	for i := uint32(0); i < count; i++ {
		var out bool
		if left {
			out = v&top != 0
		} else {
			out = v&1 != 0
		}

		switch kind {
		case shiftArithmetic:
			if left {
				v = (v << 1) & m
				if (v&top != 0) != out {
					overflow = true
				}
			} else {
				v = v>>1 | v&top
			}
		case shiftLogical:
			if left {
				v = (v << 1) & m
			} else {
				v >>= 1
			}
		case rotateExtend:
			if left {
				v = (v << 1) & m
				if x {
					v |= 1
				}
			} else {
				v >>= 1
				if x {
					v |= top
				}
			}
			x = out
		case rotate:
			if left {
				v = (v << 1) & m
				if out {
					v |= 1
				}
			} else {
				v >>= 1
				if out {
					v |= top
				}
			}
		}
		carry = out
	}
	c.Cycles += uint64(2 * count)

	c.setNZ(v, size)
	c.setFlag(FlagV, overflow)

	switch kind {
	case rotateExtend:
		c.setFlag(FlagX, x)
		c.setFlag(FlagC, x)
	case rotate:
		c.setFlag(FlagC, count > 0 && carry)
	default:
		c.setFlag(FlagC, count > 0 && carry)
		if count > 0 {
			c.setFlag(FlagX, carry)
		}
	}
	return v
}
