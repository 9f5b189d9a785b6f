package m68k

// kind is the class of an effective address.
type kind int

const (
	kindD kind = iota
	kindA
	kindMem
	kindImm
)

// operand is a decoded effective address.
//
// Decoding has side effects (extension words are fetched, and the
// predecrement/postincrement modes adjust their register) so each
// operand must be decoded exactly once per instruction.
type operand struct {
	kind  kind
	reg   int
	addr  uint32
	imm   uint32
	size  int
	pcRel bool
}

// sizeOf maps the common two-bit size field to a byte count.
func (c *CPU) sizeOf(bits uint16) int {
	switch bits & 3 {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	}
	c.illegal()
	return 0
}

// mask returns the value mask for an operand size.
func mask(size int) uint32 {
	switch size {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	}
	return 0xFFFFFFFF
}

// msb returns the sign bit for an operand size.
func msb(size int) uint32 {
	switch size {
	case 1:
		return 0x80
	case 2:
		return 0x8000
	}
	return 0x80000000
}

// sext sign-extends a value of the given size to 32 bits.
func sext(v uint32, size int) uint32 {
	switch size {
	case 1:
		return uint32(int32(int8(v)))
	case 2:
		return uint32(int32(int16(v)))
	}
	return v
}

// step is the postincrement/predecrement amount, the stack pointer is
// always kept word aligned.
func step(reg, size int) uint32 {
	if size == 1 && reg == 7 {
		return 2
	}
	return uint32(size)
}

// ea decodes the effective address with the given mode and register
// fields.
func (c *CPU) ea(mode, reg uint16, size int) operand {
	r := int(reg & 7)

	switch mode & 7 {
	case 0:
		return operand{kind: kindD, reg: r, size: size}
	case 1:
		return operand{kind: kindA, reg: r, size: size}
	case 2:
		return operand{kind: kindMem, addr: c.A[r], size: size}
	case 3:
		addr := c.A[r]
		c.A[r] += step(r, size)
		return operand{kind: kindMem, addr: addr, size: size}
	case 4:
		c.A[r] -= step(r, size)
		return operand{kind: kindMem, addr: c.A[r], size: size}
	case 5:
		disp := sext(uint32(c.fetch16()), 2)
		return operand{kind: kindMem, addr: c.A[r] + disp, size: size}
	case 6:
		return operand{kind: kindMem, addr: c.index(c.A[r]), size: size}
	}

	switch r {
	case 0:
		return operand{kind: kindMem, addr: sext(uint32(c.fetch16()), 2), size: size}
	case 1:
		return operand{kind: kindMem, addr: c.fetch32(), size: size}
	case 2:
		base := c.PC
		disp := sext(uint32(c.fetch16()), 2)
		return operand{kind: kindMem, addr: base + disp, size: size, pcRel: true}
	case 3:
		return operand{kind: kindMem, addr: c.index(c.PC), size: size, pcRel: true}
	case 4:
		var v uint32
		switch size {
		case 1:
			v = uint32(c.fetch16()) & 0xFF
		case 2:
			v = uint32(c.fetch16())
		default:
			v = c.fetch32()
		}
		return operand{kind: kindImm, imm: v, size: size}
	}

	c.illegal()
	return operand{}
}

// index computes a brief-format indexed address: base + d8 + Xn*scale.
func (c *CPU) index(base uint32) uint32 {
	ext := c.fetch16()

	// Full-format extension words (68020 memory indirect) aren't
	// something door code emits.
	if ext&0x0100 != 0 {
		c.illegal()
	}

	r := int(ext>>12) & 7
	var x uint32
	if ext&0x8000 != 0 {
		x = c.A[r]
	} else {
		x = c.D[r]
	}
	if ext&0x0800 == 0 {
		x = sext(x, 2)
	}
	scale := (ext >> 9) & 3

	return base + sext(uint32(ext), 1) + x<<scale
}

// control decodes a control addressing mode, as used by LEA, PEA, JMP,
// JSR and MOVEM, returning the address itself.
func (c *CPU) control(mode, reg uint16) uint32 {
	switch mode & 7 {
	case 2, 5, 6:
	case 7:
		if reg&7 > 3 {
			c.illegal()
		}
	default:
		c.illegal()
	}
	return c.ea(mode, reg, 4).addr
}

// get reads the value of an operand, masked to its size.
func (c *CPU) get(o operand) uint32 {
	switch o.kind {
	case kindD:
		return c.D[o.reg] & mask(o.size)
	case kindA:
		return c.A[o.reg] & mask(o.size)
	case kindImm:
		return o.imm & mask(o.size)
	}
	return c.read(o.addr, o.size)
}

// set writes a value to an operand.  Data registers keep their
// untouched upper bits; address registers are always written in full.
func (c *CPU) set(o operand, v uint32) {
	switch o.kind {
	case kindD:
		m := mask(o.size)
		c.D[o.reg] = c.D[o.reg]&^m | v&m
	case kindA:
		c.A[o.reg] = v
	case kindImm:
		c.illegal()
	default:
		if o.pcRel {
			c.illegal()
		}
		c.write(o.addr, o.size, v)
	}
}

// setD writes the low size bytes of a data register.
func (c *CPU) setD(reg int, v uint32, size int) {
	m := mask(size)
	c.D[reg] = c.D[reg]&^m | v&m
}
