package hunk

import (
	"encoding/binary"
	"fmt"
)

// MarshalBinary encodes the file as a hunk executable.
//
// Relocations are always written as HUNK_RELOC32, grouped by target, and
// names and symbols are preserved.  Parse(f.MarshalBinary()) yields an
// equivalent File.
func (f *File) MarshalBinary() ([]byte, error) {
	var out []byte
	long := func(v ...uint32) {
		for _, x := range v {
			out = binary.BigEndian.AppendUint32(out, x)
		}
	}
	str := func(s string) {
		n := (len(s) + 3) / 4
		long(uint32(n))
		b := make([]byte, n*4)
		copy(b, s)
		out = append(out, b...)
	}

	if len(f.Segments) == 0 {
		return nil, fmt.Errorf("%w: no hunks", ErrMalformedContainer)
	}

	n := uint32(len(f.Segments))
	long(blockHeader, 0, n, f.First, f.First+n-1)

	for i, s := range f.Segments {
		if s.Size%4 != 0 {
			return nil, fmt.Errorf("%w: hunk %d size %d is not a multiple of four", ErrMalformedContainer, i, s.Size)
		}
		if s.Flags > 2 {
			long(s.Size/4|3<<flagShift, s.Flags)
		} else {
			long(s.Size/4 | s.Flags<<flagShift)
		}
	}

	for i, s := range f.Segments {
		if s.Name != "" {
			long(blockName)
			str(s.Name)
		}

		switch s.Kind {
		case Code, Data:
			if uint32(len(s.Data)) > s.Size {
				return nil, fmt.Errorf("%w: hunk %d holds more data than its size", ErrMalformedContainer, i)
			}
			id := uint32(blockCode)
			if s.Kind == Data {
				id = blockData
			}
			words := (len(s.Data) + 3) / 4
			long(id, uint32(words))
			b := make([]byte, words*4)
			copy(b, s.Data)
			out = append(out, b...)
		case BSS:
			long(blockBSS, s.Size/4)
		default:
			return nil, fmt.Errorf("%w: hunk %d has kind %s", ErrMalformedContainer, i, s.Kind)
		}

		if len(s.Relocs) > 0 {
			for _, r := range s.Relocs {
				if r.Target < 0 || r.Target >= len(f.Segments) {
					return nil, fmt.Errorf("%w: hunk %d relocates against hunk %d", ErrMalformedContainer, i, r.Target)
				}
			}
			long(blockReloc32)
			for target := range f.Segments {
				var offsets []uint32
				for _, r := range s.Relocs {
					if r.Target == target {
						offsets = append(offsets, r.Offset)
					}
				}
				if len(offsets) == 0 {
					continue
				}
				long(uint32(len(offsets)), uint32(target))
				long(offsets...)
			}
			long(0)
		}

		if len(s.Symbols) > 0 {
			long(blockSymbol)
			for _, sym := range s.Symbols {
				str(sym.Name)
				long(sym.Value)
			}
			long(0)
		}

		long(blockEnd)
	}
	return out, nil
}
