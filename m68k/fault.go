package m68k

import (
	"errors"
	"fmt"
)

// FaultKind identifies why execution stopped.
type FaultKind int

// The kinds of fault the CPU reports.
const (
	IllegalOpcode FaultKind = iota + 1
	MisalignedFetch
	MemoryOutOfBounds
	Halt
	Exception
)

var (
	// ErrIllegalOpcode matches faults of kind IllegalOpcode, via errors.Is.
	ErrIllegalOpcode = errors.New("illegal opcode")

	// ErrMisalignedFetch matches faults of kind MisalignedFetch.
	ErrMisalignedFetch = errors.New("misaligned instruction fetch")

	// ErrMemoryOutOfBounds matches faults of kind MemoryOutOfBounds.
	ErrMemoryOutOfBounds = errors.New("memory out of bounds")

	// ErrHalt matches faults of kind Halt, raised by STOP.
	ErrHalt = errors.New("HALT")

	// ErrException matches faults of kind Exception.
	ErrException = errors.New("unhandled exception")
)

// Err returns the sentinel error for the kind.
func (k FaultKind) Err() error {
	switch k {
	case IllegalOpcode:
		return ErrIllegalOpcode
	case MisalignedFetch:
		return ErrMisalignedFetch
	case MemoryOutOfBounds:
		return ErrMemoryOutOfBounds
	case Halt:
		return ErrHalt
	case Exception:
		return ErrException
	}
	return errors.New("unknown fault")
}

// String returns the kind's name.
func (k FaultKind) String() string {
	return k.Err().Error()
}

// Fault describes a condition which stopped execution.
type Fault struct {
	// Kind is the type of fault.
	Kind FaultKind

	// PC is the address of the faulting instruction.
	PC uint32

	// Opcode is the first word of the faulting instruction, if it
	// was fetched.
	Opcode uint16

	// Addr is the address involved, for memory and fetch faults.
	Addr uint32

	// Vector is the 68000 exception vector number, for Exception
	// and IllegalOpcode faults.
	Vector int

	// Err is the underlying bus error, if any.
	Err error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	switch f.Kind {
	case MisalignedFetch, MemoryOutOfBounds:
		return fmt.Sprintf("%s at PC 0x%08X, address 0x%08X", f.Kind, f.PC, f.Addr)
	case Exception:
		return fmt.Sprintf("%s (vector %d) at PC 0x%08X, opcode 0x%04X", f.Kind, f.Vector, f.PC, f.Opcode)
	}
	return fmt.Sprintf("%s at PC 0x%08X, opcode 0x%04X", f.Kind, f.PC, f.Opcode)
}

// Is allows errors.Is(err, ErrIllegalOpcode) and friends.
func (f *Fault) Is(target error) bool {
	return target == f.Kind.Err()
}

// Unwrap returns the underlying bus error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// asFault converts a recovered value into an error, re-panicking
// anything we didn't raise ourselves.
func asFault(r any) error {
	if f, ok := r.(*Fault); ok {
		return f
	}
	panic(r)
}

// fault builds a fault for the current instruction.
func (c *CPU) fault(kind FaultKind, addr uint32, err error) *Fault {
	return &Fault{
		Kind:   kind,
		PC:     c.opPC,
		Opcode: c.opcode,
		Addr:   addr,
		Err:    err,
	}
}

// illegal aborts the current instruction as undecodable.
func (c *CPU) illegal() {
	f := c.fault(IllegalOpcode, c.opPC, nil)
	f.Vector = 4
	panic(f)
}

// exception aborts the current instruction with the given vector.
//
// We have no vector table to dispatch through, so every exception is
// fatal to the program.
func (c *CPU) exception(vector int) {
	f := c.fault(Exception, c.opPC, nil)
	f.Vector = vector
	panic(f)
}

// privileged raises a privilege violation unless in supervisor mode.
func (c *CPU) privileged() {
	if !c.Supervisor() {
		c.exception(8)
	}
}
