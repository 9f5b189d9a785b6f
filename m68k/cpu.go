// Package m68k is an interpreter for the user-level instruction set of
// the Motorola 68000 family, as used by Amiga door programs.
//
// The CPU never blocks: Execute runs a bounded number of cycles and then
// returns, either because the budget was consumed, because the program
// counter reached one of the registered breakpoints (which is how host
// traps are implemented), or because the program faulted.
package m68k

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBreakPoint is returned by Execute when the program counter reaches
// an address present in CPU.BreakPoints.  No instruction is fetched from
// that address.
//
// It should be handled and expected by callers.
var ErrBreakPoint = errors.New("BREAKPOINT")

// Bus is the memory the CPU executes from.
type Bus interface {
	// Read returns the big-endian value of width bytes at addr.
	Read(addr uint32, width int) (uint32, error)

	// Write stores the low width bytes of value at addr.
	Write(addr uint32, width int, value uint32) error
}

// Status register bits.
const (
	FlagC uint16 = 0x0001
	FlagV uint16 = 0x0002
	FlagZ uint16 = 0x0004
	FlagN uint16 = 0x0008
	FlagX uint16 = 0x0010
	FlagS uint16 = 0x2000
	FlagT uint16 = 0x8000

	ccrMask uint16 = 0x001F
	srMask  uint16 = 0xA71F
)

// CPU holds the architectural state of one processor.
type CPU struct {
	// D holds the data registers.
	D [8]uint32

	// A holds the address registers, A[7] is the active stack pointer.
	A [8]uint32

	// PC is the program counter.
	PC uint32

	// SR is the status register; the low byte is the condition codes.
	SR uint16

	// USP holds the user stack pointer while in supervisor mode.
	USP uint32

	// SSP holds the supervisor stack pointer while in user mode.
	SSP uint32

	// Cycles is a running count of the (coarse) work performed.
	Cycles uint64

	// BreakPoints contains the addresses at which Execute stops
	// and returns ErrBreakPoint.
	BreakPoints map[uint32]struct{}

	// Bus is the memory we execute from.
	Bus Bus

	// opPC is the address of the instruction being executed.
	opPC uint32

	// opcode is the first word of the instruction being executed.
	opcode uint16
}

// New returns a CPU attached to the given memory.
//
// Call Reset before executing anything.
func New(bus Bus) *CPU {
	return &CPU{
		Bus:         bus,
		BreakPoints: make(map[uint32]struct{}),
	}
}

// Reset clears the registers and loads the initial stack pointer and
// program counter from the longs at offset zero and four.
func (c *CPU) Reset() (err error) {
	defer c.recoverFault(&err)

	c.D = [8]uint32{}
	c.A = [8]uint32{}
	c.USP = 0
	c.SSP = 0
	c.SR = 0x2700
	c.opPC = 0
	c.opcode = 0

	c.A[7] = c.read(0, 4)
	c.PC = c.read(4, 4)
	return nil
}

// Execute runs instructions until at least budget cycles have been
// consumed, returning the number actually used.
//
// The error is nil when the budget ran out, ErrBreakPoint when a
// breakpoint was reached, and a *Fault when execution cannot continue.
func (c *CPU) Execute(budget int) (used int, err error) {
	start := c.Cycles

	defer func() {
		if r := recover(); r != nil {
			err = asFault(r)
		}
		used = int(c.Cycles - start)
	}()

	for c.Cycles-start < uint64(budget) {
		if _, hit := c.BreakPoints[c.PC]; hit {
			return 0, ErrBreakPoint
		}
		c.step()
	}
	return 0, nil
}

// Step executes a single instruction.
func (c *CPU) Step() (err error) {
	defer c.recoverFault(&err)

	if _, hit := c.BreakPoints[c.PC]; hit {
		return ErrBreakPoint
	}
	c.step()
	return nil
}

// Supervisor returns true if the S bit is set.
func (c *CPU) Supervisor() bool {
	return c.SR&FlagS != 0
}

// SetSR updates the status register, swapping stack pointers if the
// supervisor bit changes.
func (c *CPU) SetSR(v uint16) {
	v &= srMask
	was := c.SR&FlagS != 0
	now := v&FlagS != 0

	switch {
	case was && !now:
		c.SSP = c.A[7]
		c.A[7] = c.USP
	case !was && now:
		c.USP = c.A[7]
		c.A[7] = c.SSP
	}
	c.SR = v
}

// String returns a register dump, for diagnostics.
func (c *CPU) String() string {
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "D%d=%08X ", i, c.D[i])
	}
	sb.WriteString("\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, "A%d=%08X ", i, c.A[i])
	}
	fmt.Fprintf(&sb, "\nPC=%08X SR=%04X", c.PC, c.SR)
	return sb.String()
}

// recoverFault converts a fault raised while executing into an error.
func (c *CPU) recoverFault(err *error) {
	if r := recover(); r != nil {
		*err = asFault(r)
	}
}

// read performs a checked data read.
func (c *CPU) read(addr uint32, size int) uint32 {
	v, err := c.Bus.Read(addr, size)
	if err != nil {
		panic(c.fault(MemoryOutOfBounds, addr, err))
	}
	c.Cycles += accessCost(size)
	return v
}

// write performs a checked data write.
func (c *CPU) write(addr uint32, size int, v uint32) {
	if err := c.Bus.Write(addr, size, v); err != nil {
		panic(c.fault(MemoryOutOfBounds, addr, err))
	}
	c.Cycles += accessCost(size)
}

// accessCost is the coarse cycle cost of one bus access.
func accessCost(size int) uint64 {
	if size == 4 {
		return 8
	}
	return 4
}

// fetch16 reads the next instruction word.
func (c *CPU) fetch16() uint16 {
	if c.PC&1 != 0 {
		panic(&Fault{Kind: MisalignedFetch, PC: c.PC, Addr: c.PC})
	}
	v, err := c.Bus.Read(c.PC, 2)
	if err != nil {
		panic(&Fault{Kind: MemoryOutOfBounds, PC: c.PC, Addr: c.PC, Err: err})
	}
	c.PC += 2
	c.Cycles += 4
	return uint16(v)
}

// fetch32 reads the next two instruction words as a long.
func (c *CPU) fetch32() uint32 {
	hi := uint32(c.fetch16())
	lo := uint32(c.fetch16())
	return hi<<16 | lo
}

func (c *CPU) push32(v uint32) {
	c.A[7] -= 4
	c.write(c.A[7], 4, v)
}

func (c *CPU) pop32() uint32 {
	v := c.read(c.A[7], 4)
	c.A[7] += 4
	return v
}

func (c *CPU) push16(v uint16) {
	c.A[7] -= 2
	c.write(c.A[7], 2, uint32(v))
}

func (c *CPU) pop16() uint16 {
	v := c.read(c.A[7], 2)
	c.A[7] += 2
	return uint16(v)
}

// Pop32 removes a long from the stack, as an RTS would.
//
// This is used by the host to return from a trap.
func (c *CPU) Pop32() (v uint32, err error) {
	defer c.recoverFault(&err)
	return c.pop32(), nil
}

// Push32 pushes a long onto the stack.
func (c *CPU) Push32(v uint32) (err error) {
	defer c.recoverFault(&err)
	c.push32(v)
	return nil
}

// step decodes and executes one instruction.
func (c *CPU) step() {
	c.opPC = c.PC
	op := c.fetch16()
	c.opcode = op

	switch op >> 12 {
	case 0x0:
		c.group0(op)
	case 0x1, 0x2, 0x3:
		c.move(op)
	case 0x4:
		c.group4(op)
	case 0x5:
		c.group5(op)
	case 0x6:
		c.branch(op)
	case 0x7:
		c.moveq(op)
	case 0x8:
		c.group8(op)
	case 0x9:
		c.addSub(op, false)
	case 0xA:
		c.exception(10)
	case 0xB:
		c.groupB(op)
	case 0xC:
		c.groupC(op)
	case 0xD:
		c.addSub(op, true)
	case 0xE:
		c.shift(op)
	case 0xF:
		c.exception(11)
	}
}
