package m68k

// binary implements the two-operand forms shared by ADD, SUB, AND and
// OR.  With opmode 0-2 the result goes to the data register, with
// opmode 4-6 it goes to the effective address.
func (c *CPU) binary(op uint16, fn func(s, d uint32, size int) uint32) {
	reg := int((op >> 9) & 7)
	opmode := (op >> 6) & 7
	size := c.sizeOf(opmode)

	if opmode < 4 {
		src := c.ea((op>>3)&7, op&7, size)
		if src.kind == kindA && size == 1 {
			c.illegal()
		}
		r := fn(c.get(src), c.D[reg]&mask(size), size)
		c.setD(reg, r, size)
		return
	}

	dst := c.ea((op>>3)&7, op&7, size)
	if dst.kind != kindMem || dst.pcRel {
		c.illegal()
	}
	c.set(dst, fn(c.D[reg]&mask(size), c.get(dst), size))
}

// logic wraps a bitwise operation with the MOVE-style flag update.
func (c *CPU) logic(fn func(a, b uint32) uint32) func(s, d uint32, size int) uint32 {
	return func(s, d uint32, size int) uint32 {
		r := fn(s, d) & mask(size)
		c.setLogic(r, size)
		return r
	}
}

// group8 handles OR, DIVU and DIVS.
func (c *CPU) group8(op uint16) {
	switch {
	case op&0x01C0 == 0x00C0:
		c.divu(op)
	case op&0x01C0 == 0x01C0:
		c.divs(op)
	case op&0x01F0 == 0x0100:
		// SBCD
		c.illegal()
	default:
		c.binary(op, c.logic(func(a, b uint32) uint32 { return a | b }))
	}
}

// groupC handles AND, MULU, MULS and EXG.
func (c *CPU) groupC(op uint16) {
	rx := (op >> 9) & 7
	ry := op & 7

	switch {
	case op&0x01C0 == 0x00C0:
		// MULU
		s := c.get(c.source((op>>3)&7, ry, 2))
		r := (c.D[rx] & 0xFFFF) * s
		c.D[rx] = r
		c.setLogic(r, 4)
	case op&0x01C0 == 0x01C0:
		// MULS
		s := int32(int16(c.get(c.source((op>>3)&7, ry, 2))))
		r := uint32(int32(int16(c.D[rx])) * s)
		c.D[rx] = r
		c.setLogic(r, 4)
	case op&0x01F8 == 0x0140:
		c.D[rx], c.D[ry] = c.D[ry], c.D[rx]
	case op&0x01F8 == 0x0148:
		c.A[rx], c.A[ry] = c.A[ry], c.A[rx]
	case op&0x01F8 == 0x0188:
		c.D[rx], c.A[ry] = c.A[ry], c.D[rx]
	case op&0x01F0 == 0x0100:
		// ABCD
		c.illegal()
	default:
		c.binary(op, c.logic(func(a, b uint32) uint32 { return a & b }))
	}
}

// divu divides a 32-bit register by an unsigned word.
func (c *CPU) divu(op uint16) {
	reg := (op >> 9) & 7
	s := c.get(c.source((op>>3)&7, op&7, 2))
	if s == 0 {
		c.exception(5)
	}

	d := c.D[reg]
	q := d / s
	if q > 0xFFFF {
		c.setFlag(FlagV, true)
		c.setFlag(FlagC, false)
		return
	}
	c.D[reg] = (d%s)<<16 | q
	c.setLogic(q, 2)
}

// divs divides a 32-bit register by a signed word.
func (c *CPU) divs(op uint16) {
	reg := (op >> 9) & 7
	s := int64(int16(c.get(c.source((op>>3)&7, op&7, 2))))
	if s == 0 {
		c.exception(5)
	}

	d := int64(int32(c.D[reg]))
	q := d / s
	if q < -0x8000 || q > 0x7FFF {
		c.setFlag(FlagV, true)
		c.setFlag(FlagC, false)
		return
	}
	r := d % s
	c.D[reg] = uint32(r)<<16 | uint32(q)&0xFFFF
	c.setLogic(uint32(q), 2)
}

// addSub handles ADD/ADDA/ADDX (group D) and SUB/SUBA/SUBX (group 9).
func (c *CPU) addSub(op uint16, isAdd bool) {
	reg := (op >> 9) & 7
	opmode := (op >> 6) & 7

	// ADDA / SUBA
	if opmode == 3 || opmode == 7 {
		size := 2
		if opmode == 7 {
			size = 4
		}
		s := sext(c.get(c.ea((op>>3)&7, op&7, size)), size)
		if isAdd {
			c.A[reg] += s
		} else {
			c.A[reg] -= s
		}
		return
	}

	// ADDX / SUBX
	if opmode >= 4 && op&0x0030 == 0 {
		size := c.sizeOf(opmode)
		rx := int(op & 7)
		ry := int(reg)

		fn := c.subx
		if isAdd {
			fn = c.addx
		}

		if op&0x0008 == 0 {
			c.setD(ry, fn(c.D[rx]&mask(size), c.D[ry]&mask(size), size), size)
			return
		}

		// -(Ax),-(Ay)
		src := c.ea(4, uint16(rx), size)
		s := c.get(src)
		dst := c.ea(4, uint16(ry), size)
		c.set(dst, fn(s, c.get(dst), size))
		return
	}

	if isAdd {
		c.binary(op, c.add)
	} else {
		c.binary(op, c.sub)
	}
}

// groupB handles CMP, CMPA, CMPM and EOR.
func (c *CPU) groupB(op uint16) {
	reg := (op >> 9) & 7
	opmode := (op >> 6) & 7
	mode := (op >> 3) & 7

	switch {
	case opmode == 3 || opmode == 7:
		// CMPA
		size := 2
		if opmode == 7 {
			size = 4
		}
		s := sext(c.get(c.ea(mode, op&7, size)), size)
		c.cmp(s, c.A[reg], 4)

	case opmode < 3:
		size := c.sizeOf(opmode)
		src := c.ea(mode, op&7, size)
		c.cmp(c.get(src), c.D[reg]&mask(size), size)

	case mode == 1:
		// CMPM (Ay)+,(Ax)+
		size := c.sizeOf(opmode)
		s := c.get(c.ea(3, op&7, size))
		d := c.get(c.ea(3, reg, size))
		c.cmp(s, d, size)

	default:
		// EOR Dn,<ea>
		size := c.sizeOf(opmode)
		dst := c.dataAlterable(mode, op&7, size)
		r := (c.get(dst) ^ c.D[reg]) & mask(size)
		c.set(dst, r)
		c.setLogic(r, size)
	}
}
