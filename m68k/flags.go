package m68k

// Condition codes, as encoded in Bcc, DBcc and Scc.
const (
	condT = iota
	condF
	condHI
	condLS
	condCC
	condCS
	condNE
	condEQ
	condVC
	condVS
	condPL
	condMI
	condGE
	condLT
	condGT
	condLE
)

// Flag returns true if the given status bit is set.
func (c *CPU) Flag(f uint16) bool {
	return c.SR&f != 0
}

// setFlag sets or clears a status bit.
func (c *CPU) setFlag(f uint16, on bool) {
	if on {
		c.SR |= f
	} else {
		c.SR &^= f
	}
}

// setNZ updates N and Z for a result, leaving the other flags alone.
func (c *CPU) setNZ(r uint32, size int) {
	c.setFlag(FlagN, r&msb(size) != 0)
	c.setFlag(FlagZ, r&mask(size) == 0)
}

// setLogic sets the flags as MOVE and the logical operations do:
// N and Z from the result, V and C cleared, X untouched.
func (c *CPU) setLogic(r uint32, size int) {
	c.setNZ(r, size)
	c.SR &^= FlagV | FlagC
}

// addFlags sets the flags for r = d + s.
func (c *CPU) addFlags(s, d, r uint32, size int) {
	m := msb(size)
	sm := s&m != 0
	dm := d&m != 0
	rm := r&m != 0

	carry := (sm && dm) || (!rm && dm) || (sm && !rm)

	c.setNZ(r, size)
	c.setFlag(FlagV, (sm && dm && !rm) || (!sm && !dm && rm))
	c.setFlag(FlagC, carry)
	c.setFlag(FlagX, carry)
}

// subFlags sets the flags for r = d - s.  CMP leaves X alone.
func (c *CPU) subFlags(s, d, r uint32, size int, setX bool) {
	m := msb(size)
	sm := s&m != 0
	dm := d&m != 0
	rm := r&m != 0

	borrow := (sm && !dm) || (rm && !dm) || (sm && rm)

	c.setNZ(r, size)
	c.setFlag(FlagV, (!sm && dm && !rm) || (sm && !dm && rm))
	c.setFlag(FlagC, borrow)
	if setX {
		c.setFlag(FlagX, borrow)
	}
}

// add returns d + s, updating every flag.
func (c *CPU) add(s, d uint32, size int) uint32 {
	r := (d + s) & mask(size)
	c.addFlags(s, d, r, size)
	return r
}

// sub returns d - s, updating every flag.
func (c *CPU) sub(s, d uint32, size int) uint32 {
	r := (d - s) & mask(size)
	c.subFlags(s, d, r, size, true)
	return r
}

// cmp sets the flags for d - s, without storing the result.
func (c *CPU) cmp(s, d uint32, size int) {
	r := (d - s) & mask(size)
	c.subFlags(s, d, r, size, false)
}

// addx returns d + s + X.  Z is only ever cleared, so that multiple
// precision results test correctly.
func (c *CPU) addx(s, d uint32, size int) uint32 {
	var x uint32
	if c.Flag(FlagX) {
		x = 1
	}
	r := (d + s + x) & mask(size)
	z := c.Flag(FlagZ)
	c.addFlags(s, d, r, size)
	c.setFlag(FlagZ, z && r == 0)
	return r
}

// subx returns d - s - X, with the same Z rule as addx.
func (c *CPU) subx(s, d uint32, size int) uint32 {
	var x uint32
	if c.Flag(FlagX) {
		x = 1
	}
	r := (d - s - x) & mask(size)
	z := c.Flag(FlagZ)
	c.subFlags(s, d, r, size, true)
	c.setFlag(FlagZ, z && r == 0)
	return r
}

// condition evaluates one of the sixteen condition codes.
func (c *CPU) condition(cc uint16) bool {
	n := c.Flag(FlagN)
	z := c.Flag(FlagZ)
	v := c.Flag(FlagV)
	cy := c.Flag(FlagC)

	switch cc & 0xF {
	case condT:
		return true
	case condF:
		return false
	case condHI:
		return !cy && !z
	case condLS:
		return cy || z
	case condCC:
		return !cy
	case condCS:
		return cy
	case condNE:
		return !z
	case condEQ:
		return z
	case condVC:
		return !v
	case condVS:
		return v
	case condPL:
		return !n
	case condMI:
		return n
	case condGE:
		return n == v
	case condLT:
		return n != v
	case condGT:
		return !z && n == v
	}
	return z || n != v
}
