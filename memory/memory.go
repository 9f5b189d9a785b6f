// Package memory provides the flat RAM within which the emulator
// executes door programs.
//
// All accesses are big-endian, as the 68000 family expects, and every
// access is bounds-checked: touching memory outside the buffer is an
// error, never undefined behaviour.
package memory

import (
	"errors"
	"fmt"
)

// DefaultSize is the capacity used when a session doesn't specify one.
const DefaultSize = 1024 * 1024

var (
	// ErrOutOfBounds is returned, wrapped in an AccessError, when an
	// access falls outside the buffer.
	ErrOutOfBounds = errors.New("memory access out of bounds")

	// ErrBadWidth is returned when an access width isn't 1, 2, or 4.
	ErrBadWidth = errors.New("unsupported access width")
)

// AccessError records the details of a failed access.
type AccessError struct {
	// Addr is the first byte of the access.
	Addr uint32

	// Width is the number of bytes involved.
	Width int

	// Write is true for stores.
	Write bool
}

// Error implements the error interface.
func (e *AccessError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	return fmt.Sprintf("%s of %d byte(s) at 0x%08X: %s", op, e.Width, e.Addr, ErrOutOfBounds)
}

// Unwrap allows errors.Is(err, ErrOutOfBounds).
func (e *AccessError) Unwrap() error {
	return ErrOutOfBounds
}

// Memory is a fixed-size byte array.
type Memory struct {
	buf []uint8
}

// New returns a zeroed memory of the given size, in bytes.
func New(size int) *Memory {
	if size <= 0 {
		size = DefaultSize
	}
	return &Memory{buf: make([]uint8, size)}
}

// Size returns the capacity of the memory.
func (m *Memory) Size() int {
	return len(m.buf)
}

// check returns an error if [addr, addr+n) isn't inside the buffer.
func (m *Memory) check(addr uint32, n int, write bool) error {
	if uint64(addr)+uint64(n) > uint64(len(m.buf)) {
		return &AccessError{Addr: addr, Width: n, Write: write}
	}
	return nil
}

// Read returns the big-endian value of the given width at addr.
func (m *Memory) Read(addr uint32, width int) (uint32, error) {
	if width != 1 && width != 2 && width != 4 {
		return 0, ErrBadWidth
	}
	if err := m.check(addr, width, false); err != nil {
		return 0, err
	}

	var v uint32
	for i := 0; i < width; i++ {
		v = v<<8 | uint32(m.buf[int(addr)+i])
	}
	return v, nil
}

// Write stores the low width bytes of value at addr, big-endian.
func (m *Memory) Write(addr uint32, width int, value uint32) error {
	if width != 1 && width != 2 && width != 4 {
		return ErrBadWidth
	}
	if err := m.check(addr, width, true); err != nil {
		return err
	}

	for i := width - 1; i >= 0; i-- {
		m.buf[int(addr)+i] = uint8(value)
		value >>= 8
	}
	return nil
}

// Get returns the byte at addr.
func (m *Memory) Get(addr uint32) (uint8, error) {
	v, err := m.Read(addr, 1)
	return uint8(v), err
}

// Set sets the byte at addr.
func (m *Memory) Set(addr uint32, value uint8) error {
	return m.Write(addr, 1, uint32(value))
}

// GetU16 returns the word at addr.
func (m *Memory) GetU16(addr uint32) (uint16, error) {
	v, err := m.Read(addr, 2)
	return uint16(v), err
}

// SetU16 stores a word at addr.
func (m *Memory) SetU16(addr uint32, value uint16) error {
	return m.Write(addr, 2, uint32(value))
}

// GetU32 returns the long at addr.
func (m *Memory) GetU32(addr uint32) (uint32, error) {
	return m.Read(addr, 4)
}

// SetU32 stores a long at addr.
func (m *Memory) SetU32(addr uint32, value uint32) error {
	return m.Write(addr, 4, value)
}

// SetRange copies bytes from the given data to the specified
// starting address in RAM.
func (m *Memory) SetRange(addr uint32, data ...uint8) error {
	if err := m.check(addr, len(data), true); err != nil {
		return err
	}
	copy(m.buf[addr:], data)
	return nil
}

// FillRange fills an area of memory with the given byte.
func (m *Memory) FillRange(addr uint32, size int, char uint8) error {
	if err := m.check(addr, size, true); err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		m.buf[int(addr)+i] = char
	}
	return nil
}

// GetRange returns a copy of the contents of the given range.
func (m *Memory) GetRange(addr uint32, size int) ([]uint8, error) {
	if err := m.check(addr, size, false); err != nil {
		return nil, err
	}
	ret := make([]uint8, size)
	copy(ret, m.buf[addr:])
	return ret, nil
}
