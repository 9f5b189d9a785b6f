// Package trap describes the operating system routines a door may call,
// and the reserved addresses which stand in for them.
//
// Each routine has a slot in a range of memory that never holds code.
// When the program counter reaches a slot the CPU stops and the host
// performs the routine instead, before returning to the caller.
package trap

import "fmt"

// ID identifies one host routine.
type ID int

// The routines we provide, in slot order.
const (
	GetOutputHandle ID = iota
	GetInputHandle
	Write
	Read
	Close
	AllocMem
	FreeMem
	Exit

	count
)

const (
	// Base is the address of the first slot.
	Base uint32 = 0x00FFFF00

	// Stride is the distance between slots.
	Stride uint32 = 8

	// LibraryBase is where the jump table used by library-style
	// calls is based.  The table grows downwards from here, in the
	// conventional six byte entries.
	LibraryBase uint32 = 0x00000800

	// EntrySize is the size of one jump table entry.
	EntrySize uint32 = 6
)

var names = [count]string{
	GetOutputHandle: "Output",
	GetInputHandle:  "Input",
	Write:           "Write",
	Read:            "Read",
	Close:           "Close",
	AllocMem:        "AllocMem",
	FreeMem:         "FreeMem",
	Exit:            "Exit",
}

// table maps slot addresses to routines; it is built once and never
// modified.
var table = func() map[uint32]ID {
	m := make(map[uint32]ID, count)
	for id := ID(0); id < count; id++ {
		m[id.Address()] = id
	}
	return m
}()

// String returns the name of the routine.
func (id ID) String() string {
	if id < 0 || id >= count {
		return fmt.Sprintf("ID(%d)", int(id))
	}
	return names[id]
}

// Address returns the slot address of the routine.
func (id ID) Address() uint32 {
	return Base + uint32(id)*Stride
}

// Offset returns the negative library offset at which the jump table
// entry for the routine lives, relative to LibraryBase.
func (id ID) Offset() int32 {
	return -int32(EntrySize) * int32(id+1)
}

// Lookup returns the routine whose slot is at addr.
func Lookup(addr uint32) (ID, bool) {
	id, ok := table[addr]
	return id, ok
}

// All returns every routine, in slot order.
func All() []ID {
	ids := make([]ID, count)
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Addresses returns the slot address of every routine, in slot order.
func Addresses() []uint32 {
	addrs := make([]uint32, count)
	for i := range addrs {
		addrs[i] = ID(i).Address()
	}
	return addrs
}
