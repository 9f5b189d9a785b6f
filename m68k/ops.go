package m68k

// group0 handles the immediate and bit manipulation instructions.
func (c *CPU) group0(op uint16) {
	mode := (op >> 3) & 7
	reg := op & 7

	// Dynamic bit number, in a data register.
	if op&0x0100 != 0 {
		if mode == 1 {
			// MOVEP
			c.illegal()
		}
		c.bitOp((op>>6)&3, c.D[(op>>9)&7], mode, reg)
		return
	}

	switch (op >> 9) & 7 {
	case 0, 1, 5:
		c.logicImmediate(op)
	case 2:
		size := c.sizeOf(op >> 6)
		s := c.immediate(size)
		dst := c.dataAlterable(mode, reg, size)
		c.set(dst, c.sub(s, c.get(dst), size))
	case 3:
		size := c.sizeOf(op >> 6)
		s := c.immediate(size)
		dst := c.dataAlterable(mode, reg, size)
		c.set(dst, c.add(s, c.get(dst), size))
	case 4:
		bit := uint32(c.fetch16() & 0xFF)
		c.bitOp((op>>6)&3, bit, mode, reg)
	case 6:
		size := c.sizeOf(op >> 6)
		s := c.immediate(size)
		dst := c.ea(mode, reg, size)
		if dst.kind == kindA || dst.kind == kindImm {
			c.illegal()
		}
		c.cmp(s, c.get(dst), size)
	default:
		c.illegal()
	}
}

// immediate fetches an immediate operand of the given size.
func (c *CPU) immediate(size int) uint32 {
	if size == 4 {
		return c.fetch32()
	}
	return uint32(c.fetch16()) & mask(size)
}

// dataAlterable decodes a destination which may not be an address
// register or an immediate.
func (c *CPU) dataAlterable(mode, reg uint16, size int) operand {
	dst := c.ea(mode, reg, size)
	if dst.kind == kindA || dst.kind == kindImm || dst.pcRel {
		c.illegal()
	}
	return dst
}

// logicImmediate handles ORI, ANDI and EORI, including the forms which
// target the condition codes and the status register.
func (c *CPU) logicImmediate(op uint16) {
	var fn func(a, b uint32) uint32
	switch (op >> 9) & 7 {
	case 0:
		fn = func(a, b uint32) uint32 { return a | b }
	case 1:
		fn = func(a, b uint32) uint32 { return a & b }
	default:
		fn = func(a, b uint32) uint32 { return a ^ b }
	}

	switch op & 0xFF {
	case 0x3C:
		imm := uint32(c.fetch16())
		ccr := fn(uint32(c.SR&0xFF), imm&0xFF)
		c.SR = c.SR&0xFF00 | uint16(ccr)&ccrMask
		return
	case 0x7C:
		c.privileged()
		imm := uint32(c.fetch16())
		c.SetSR(uint16(fn(uint32(c.SR), imm)))
		return
	}

	size := c.sizeOf(op >> 6)
	s := c.immediate(size)
	dst := c.dataAlterable((op>>3)&7, op&7, size)
	r := fn(c.get(dst), s) & mask(size)
	c.set(dst, r)
	c.setLogic(r, size)
}

// bitOp implements BTST, BCHG, BCLR and BSET.  Register operands are
// 32 bits wide, memory operands a single byte.
func (c *CPU) bitOp(kind uint16, bit uint32, mode, reg uint16) {
	size := 1
	if mode == 0 {
		size = 4
	}
	dst := c.ea(mode, reg, size)
	if dst.kind == kindA {
		c.illegal()
	}

	m := uint32(1) << (bit % uint32(size*8))
	v := c.get(dst)
	c.setFlag(FlagZ, v&m == 0)

	switch kind {
	case 0:
		return
	case 1:
		v ^= m
	case 2:
		v &^= m
	case 3:
		v |= m
	}
	c.set(dst, v)
}

// move handles MOVE and MOVEA.
func (c *CPU) move(op uint16) {
	var size int
	switch op >> 12 {
	case 1:
		size = 1
	case 3:
		size = 2
	default:
		size = 4
	}

	src := c.ea((op>>3)&7, op&7, size)
	v := c.get(src)

	dmode := (op >> 6) & 7
	dreg := (op >> 9) & 7

	if dmode == 1 {
		if size == 1 {
			c.illegal()
		}
		c.A[dreg] = sext(v, size)
		return
	}

	dst := c.dataAlterable(dmode, dreg, size)
	c.set(dst, v)
	c.setLogic(v, size)
}

// moveq loads a sign-extended byte into a data register.
func (c *CPU) moveq(op uint16) {
	if op&0x0100 != 0 {
		c.illegal()
	}
	v := sext(uint32(op), 1)
	c.D[(op>>9)&7] = v
	c.setLogic(v, 4)
}

// group4 handles the miscellaneous instructions.
func (c *CPU) group4(op uint16) {
	mode := (op >> 3) & 7
	reg := op & 7

	switch {
	case op == 0x4AFC:
		// ILLEGAL
		c.illegal()

	case op == 0x4E70:
		// RESET: there are no devices to reset.
		c.privileged()

	case op == 0x4E71:
		// NOP

	case op == 0x4E72:
		// STOP
		c.privileged()
		c.SetSR(c.fetch16())
		panic(c.fault(Halt, c.opPC, nil))

	case op == 0x4E73:
		// RTE
		c.privileged()
		sr := c.pop16()
		pc := c.pop32()
		c.SetSR(sr)
		c.PC = pc

	case op == 0x4E75:
		// RTS
		c.PC = c.pop32()

	case op == 0x4E76:
		// TRAPV
		if c.Flag(FlagV) {
			c.exception(7)
		}

	case op == 0x4E77:
		// RTR
		ccr := c.pop16()
		c.SR = c.SR&0xFF00 | ccr&ccrMask
		c.PC = c.pop32()

	case op&0xFFF0 == 0x4E40:
		// TRAP #n
		c.exception(32 + int(op&0xF))

	case op&0xFFF8 == 0x4E50:
		// LINK An,#disp
		disp := sext(uint32(c.fetch16()), 2)
		c.push32(c.A[reg])
		c.A[reg] = c.A[7]
		c.A[7] += disp

	case op&0xFFF8 == 0x4E58:
		// UNLK An
		c.A[7] = c.A[reg]
		c.A[reg] = c.pop32()

	case op&0xFFF8 == 0x4E60:
		// MOVE An,USP
		c.privileged()
		c.USP = c.A[reg]

	case op&0xFFF8 == 0x4E68:
		// MOVE USP,An
		c.privileged()
		c.A[reg] = c.USP

	case op&0xFFC0 == 0x4E80:
		// JSR
		addr := c.control(mode, reg)
		c.push32(c.PC)
		c.PC = addr

	case op&0xFFC0 == 0x4EC0:
		// JMP
		c.PC = c.control(mode, reg)

	case op&0xF1C0 == 0x41C0 && mode != 0:
		// LEA, the data register form is EXTB
		c.A[(op>>9)&7] = c.control(mode, reg)

	case op&0xF1C0 == 0x4180:
		c.chk(op)

	case op&0xFFC0 == 0x40C0:
		// MOVE from SR
		dst := c.dataAlterable(mode, reg, 2)
		c.set(dst, uint32(c.SR))

	case op&0xFFC0 == 0x44C0:
		// MOVE to CCR
		v := c.get(c.source(mode, reg, 2))
		c.SR = c.SR&0xFF00 | uint16(v)&ccrMask

	case op&0xFFC0 == 0x46C0:
		// MOVE to SR
		c.privileged()
		v := c.get(c.source(mode, reg, 2))
		c.SetSR(uint16(v))

	case op&0xFF00 == 0x4000:
		// NEGX
		size := c.sizeOf(op >> 6)
		dst := c.dataAlterable(mode, reg, size)
		c.set(dst, c.subx(c.get(dst), 0, size))

	case op&0xFF00 == 0x4200:
		// CLR
		size := c.sizeOf(op >> 6)
		dst := c.dataAlterable(mode, reg, size)
		c.set(dst, 0)
		c.setLogic(0, size)

	case op&0xFF00 == 0x4400:
		// NEG
		size := c.sizeOf(op >> 6)
		dst := c.dataAlterable(mode, reg, size)
		c.set(dst, c.sub(c.get(dst), 0, size))

	case op&0xFF00 == 0x4600:
		// NOT
		size := c.sizeOf(op >> 6)
		dst := c.dataAlterable(mode, reg, size)
		r := ^c.get(dst) & mask(size)
		c.set(dst, r)
		c.setLogic(r, size)

	case op&0xFFF8 == 0x4840:
		// SWAP
		v := c.D[reg]
		v = v<<16 | v>>16
		c.D[reg] = v
		c.setLogic(v, 4)

	case op&0xFFC0 == 0x4840:
		// PEA
		c.push32(c.control(mode, reg))

	case op&0xFFF8 == 0x4880:
		// EXT.W
		v := sext(c.D[reg], 1)
		c.setD(int(reg), v, 2)
		c.setLogic(v, 2)

	case op&0xFFF8 == 0x48C0:
		// EXT.L
		v := sext(c.D[reg], 2)
		c.D[reg] = v
		c.setLogic(v, 4)

	case op&0xFFF8 == 0x49C0:
		// EXTB.L
		v := sext(c.D[reg], 1)
		c.D[reg] = v
		c.setLogic(v, 4)

	case op&0xFB80 == 0x4880:
		c.movem(op)

	case op&0xFFC0 == 0x4AC0:
		// TAS
		dst := c.dataAlterable(mode, reg, 1)
		v := c.get(dst)
		c.setLogic(v, 1)
		c.set(dst, v|0x80)

	case op&0xFF00 == 0x4A00:
		// TST
		size := c.sizeOf(op >> 6)
		src := c.ea(mode, reg, size)
		c.setLogic(c.get(src), size)

	default:
		c.illegal()
	}
}

// source decodes a source operand, which may be anything except an
// address register.
func (c *CPU) source(mode, reg uint16, size int) operand {
	src := c.ea(mode, reg, size)
	if src.kind == kindA {
		c.illegal()
	}
	return src
}

// chk raises exception 6 if a data register is outside 0..bound.
func (c *CPU) chk(op uint16) {
	bound := int16(c.get(c.source((op>>3)&7, op&7, 2)))
	v := int16(c.D[(op>>9)&7])

	switch {
	case v < 0:
		c.setFlag(FlagN, true)
		c.exception(6)
	case v > bound:
		c.setFlag(FlagN, false)
		c.exception(6)
	}
}

// movem moves a set of registers to or from memory.
//
// Registers are numbered 0-15, D0-D7 followed by A0-A7.  In the
// predecrement form the mask is reversed, bit zero meaning A7.
func (c *CPU) movem(op uint16) {
	size := 2
	if op&0x0040 != 0 {
		size = 4
	}
	list := c.fetch16()
	mode := (op >> 3) & 7
	reg := op & 7

	regGet := func(r int) uint32 {
		if r < 8 {
			return c.D[r]
		}
		return c.A[r-8]
	}
	regSet := func(r int, v uint32) {
		if r < 8 {
			c.D[r] = v
		} else {
			c.A[r-8] = v
		}
	}

	// Registers to memory.
	if op&0x0400 == 0 {
		if mode == 4 {
			addr := c.A[reg]
			for r := 15; r >= 0; r-- {
				if list&(1<<(15-r)) != 0 {
					addr -= uint32(size)
					c.write(addr, size, regGet(r)&mask(size))
				}
			}
			c.A[reg] = addr
			return
		}

		addr := c.control(mode, reg)
		if mode == 7 && reg > 1 {
			c.illegal()
		}
		for r := 0; r < 16; r++ {
			if list&(1<<r) != 0 {
				c.write(addr, size, regGet(r)&mask(size))
				addr += uint32(size)
			}
		}
		return
	}

	// Memory to registers.
	var addr uint32
	if mode == 3 {
		addr = c.A[reg]
	} else {
		addr = c.control(mode, reg)
	}
	for r := 0; r < 16; r++ {
		if list&(1<<r) != 0 {
			regSet(r, sext(c.read(addr, size), size))
			addr += uint32(size)
		}
	}
	if mode == 3 {
		c.A[reg] = addr
	}
}

// group5 handles ADDQ, SUBQ, Scc and DBcc.
func (c *CPU) group5(op uint16) {
	mode := (op >> 3) & 7
	reg := op & 7

	if (op>>6)&3 == 3 {
		cc := (op >> 8) & 0xF

		if mode == 1 {
			// DBcc
			base := c.PC
			disp := sext(uint32(c.fetch16()), 2)
			if !c.condition(cc) {
				w := uint16(c.D[reg]) - 1
				c.setD(int(reg), uint32(w), 2)
				if w != 0xFFFF {
					c.PC = base + disp
				}
			}
			return
		}

		// Scc
		dst := c.dataAlterable(mode, reg, 1)
		if c.condition(cc) {
			c.set(dst, 0xFF)
		} else {
			c.set(dst, 0x00)
		}
		return
	}

	data := uint32((op >> 9) & 7)
	if data == 0 {
		data = 8
	}
	size := c.sizeOf(op >> 6)

	// Address registers are updated in full, without flags.
	if mode == 1 {
		if size == 1 {
			c.illegal()
		}
		if op&0x0100 != 0 {
			c.A[reg] -= data
		} else {
			c.A[reg] += data
		}
		return
	}

	dst := c.dataAlterable(mode, reg, size)
	if op&0x0100 != 0 {
		c.set(dst, c.sub(data, c.get(dst), size))
	} else {
		c.set(dst, c.add(data, c.get(dst), size))
	}
}

// branch handles Bcc, BRA and BSR.
func (c *CPU) branch(op uint16) {
	base := c.PC
	cc := (op >> 8) & 0xF

	var disp uint32
	switch op & 0xFF {
	case 0x00:
		disp = sext(uint32(c.fetch16()), 2)
	case 0xFF:
		disp = c.fetch32()
	default:
		disp = sext(uint32(op), 1)
	}

	switch cc {
	case condT:
		c.PC = base + disp
	case condF:
		// BSR
		c.push32(c.PC)
		c.PC = base + disp
	default:
		if c.condition(cc) {
			c.PC = base + disp
		}
	}
}
