package hunk

import (
	"fmt"
)

const (
	// DefaultBase is the address the first segment is loaded at.
	DefaultBase = 0x1000

	// Alignment is the boundary every segment starts on.
	Alignment = 256
)

// Bus is the memory an image is loaded into.
type Bus interface {
	Read(addr uint32, width int) (uint32, error)
	Write(addr uint32, width int, value uint32) error
}

// Placement records where a segment was loaded.
type Placement struct {
	Kind Kind
	Addr uint32
	Size uint32
}

// End returns the address after the last byte of the segment.
func (p Placement) End() uint32 {
	return p.Addr + p.Size
}

// Image describes a loaded executable.
type Image struct {
	// Segments holds the placement of each segment, in file order.
	Segments []Placement

	// Entry is the address execution starts at.
	Entry uint32

	// End is the address after the last loaded byte.
	End uint32
}

// alignUp rounds addr up to the next multiple of Alignment.
func alignUp(addr uint64) uint64 {
	return (addr + Alignment - 1) &^ (Alignment - 1)
}

// Load places the segments of f into bus, starting at base, and applies
// their relocations.
//
// Segments are placed in order, each starting on the first Alignment
// boundary after the end of the one before.  Zero-sized segments take no
// space but are still given an address, as relocations refer to them by
// index.
func Load(bus Bus, f *File, base uint32) (*Image, error) {
	entry := f.Entry()
	if entry < 0 {
		return nil, fmt.Errorf("%w: no code hunk", ErrMalformedContainer)
	}

	img := &Image{}

	addr := uint64(base)
	for i, s := range f.Segments {
		addr = alignUp(addr)
		if addr+uint64(s.Size) > 1<<32 {
			return nil, fmt.Errorf("%w: hunk %d at 0x%X overflows the address space", ErrRelocationOutOfRange, i, addr)
		}
		p := Placement{Kind: s.Kind, Addr: uint32(addr), Size: s.Size}

		for off := uint32(0); off < s.Size; off++ {
			var b uint32
			if int(off) < len(s.Data) {
				b = uint32(s.Data[off])
			}
			if err := bus.Write(p.Addr+off, 1, b); err != nil {
				return nil, fmt.Errorf("%w: hunk %d (%d bytes at 0x%08X): %w", ErrRelocationOutOfRange, i, s.Size, p.Addr, err)
			}
		}

		img.Segments = append(img.Segments, p)
		addr += uint64(s.Size)
	}
	img.End = uint32(addr)

	for i, s := range f.Segments {
		at := img.Segments[i].Addr
		for _, r := range s.Relocs {
			if r.Target < 0 || r.Target >= len(img.Segments) {
				return nil, fmt.Errorf("%w: hunk %d relocates against hunk %d", ErrMalformedContainer, i, r.Target)
			}
			if err := relocate(bus, at+r.Offset, img.Segments[r.Target].Addr); err != nil {
				return nil, fmt.Errorf("%w: hunk %d offset 0x%X: %w", ErrRelocationOutOfRange, i, r.Offset, err)
			}
		}
	}

	img.Entry = img.Segments[entry].Addr
	return img, nil
}

// relocate adds delta to the long at addr.
func relocate(bus Bus, addr, delta uint32) error {
	v, err := bus.Read(addr, 4)
	if err != nil {
		return err
	}
	return bus.Write(addr, 4, v+delta)
}
