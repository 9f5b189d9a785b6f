// Package hunk parses AmigaDOS "hunk" executables, and places them into
// memory ready to run.
//
// A hunk file is a sequence of big-endian longs.  It begins with a header
// listing the size of every hunk, and then contains one block-group per
// hunk: a content block (code, data or bss) optionally followed by
// relocation, symbol and debug blocks, terminated by HUNK_END.
//
// Relocation adds the load address of the target hunk to the long
// already stored at each offset, as AmigaDOS does.  Linkers usually
// store the offset within the target hunk there, which is zero for a
// reference to its start, and then the long ends up holding exactly the
// target's load address.
package hunk

import (
	"errors"
	"fmt"
)

// Block identifiers.
const (
	blockName         = 0x3E8
	blockCode         = 0x3E9
	blockData         = 0x3EA
	blockBSS          = 0x3EB
	blockReloc32      = 0x3EC
	blockReloc16      = 0x3ED
	blockReloc8       = 0x3EE
	blockExt          = 0x3EF
	blockSymbol       = 0x3F0
	blockDebug        = 0x3F1
	blockEnd          = 0x3F2
	blockHeader       = 0x3F3
	blockOverlay      = 0x3F5
	blockBreak        = 0x3F6
	blockDrel32       = 0x3F7
	blockDrel16       = 0x3F8
	blockDrel8        = 0x3F9
	blockLib          = 0x3FA
	blockIndex        = 0x3FB
	blockReloc32Short = 0x3FC
	blockRelReloc32   = 0x3FD
	blockAbsReloc16   = 0x3FE
)

// The top two bits of a size, or of a block identifier, select the type
// of memory the hunk wants.  We have only one type of memory, so they're
// recorded and otherwise ignored.
const (
	flagShift = 30
	sizeMask  = 0x3FFFFFFF
)

var (
	// ErrMalformedContainer is returned when the file is truncated, or
	// its blocks are not in a valid order.
	ErrMalformedContainer = errors.New("malformed hunk file")

	// ErrUnsupportedFormat is returned for valid hunk files which use
	// features we cannot load, such as overlays or 16-bit relocations.
	ErrUnsupportedFormat = errors.New("unsupported hunk file")

	// ErrRelocationOutOfRange is returned by Load when a segment, or a
	// relocation within it, would lie outside of memory.
	ErrRelocationOutOfRange = errors.New("relocation out of range")
)

// Kind is the type of a segment.
type Kind int

// Segment kinds.
const (
	Code Kind = iota
	Data
	BSS
)

// String returns the conventional name of the segment kind.
func (k Kind) String() string {
	switch k {
	case Code:
		return "CODE"
	case Data:
		return "DATA"
	case BSS:
		return "BSS"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Reloc asks for the load address of segment Target to be added to the
// long at Offset within the segment holding the relocation.
type Reloc struct {
	Offset uint32
	Target int
}

// Symbol is an entry from a HUNK_SYMBOL block.
type Symbol struct {
	Name  string
	Value uint32
}

// Segment is one hunk of the executable.
type Segment struct {
	// Kind is the type of the segment.
	Kind Kind

	// Size is the number of bytes the segment occupies in memory.
	Size uint32

	// Flags holds the memory-type bits from the header.
	Flags uint32

	// Data holds the initialized contents, which may be shorter than
	// Size.  It is always empty for BSS segments.
	Data []byte

	// Relocs lists the 32-bit relocations to apply.
	Relocs []Reloc

	// Name is the value of any HUNK_NAME block.
	Name string

	// Symbols holds any HUNK_SYMBOL entries.
	Symbols []Symbol
}

// File is a parsed executable.
type File struct {
	// Segments holds the hunks in file order.
	Segments []*Segment

	// First is the number of the first hunk, as given in the header.
	First uint32
}

// Entry returns the index of the segment execution starts in.
func (f *File) Entry() int {
	for i, s := range f.Segments {
		if s.Kind == Code {
			return i
		}
	}
	return -1
}

// Parse decodes the given executable.
func Parse(data []byte) (*File, error) {
	r := &reader{data: data}

	magic, err := r.long()
	if err != nil {
		return nil, err
	}
	if magic != blockHeader {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrUnsupportedFormat, magic)
	}

	// Resident libraries; executables never have any.
	n, err := r.long()
	if err != nil {
		return nil, err
	}
	if n != 0 {
		return nil, fmt.Errorf("%w: resident library list", ErrUnsupportedFormat)
	}

	table, err := r.long()
	if err != nil {
		return nil, err
	}
	first, err := r.long()
	if err != nil {
		return nil, err
	}
	last, err := r.long()
	if err != nil {
		return nil, err
	}
	if last < first || last-first >= table {
		return nil, fmt.Errorf("%w: hunk range %d-%d with table size %d", ErrMalformedContainer, first, last, table)
	}

	count := int(last-first) + 1
	if count > r.remaining()/4 {
		return nil, fmt.Errorf("%w: %d hunks declared", ErrMalformedContainer, count)
	}

	f := &File{First: first}
	for i := 0; i < count; i++ {
		v, err := r.long()
		if err != nil {
			return nil, err
		}
		s := &Segment{
			Size:  (v & sizeMask) * 4,
			Flags: v >> flagShift,
		}
		if s.Flags == 3 {
			if s.Flags, err = r.long(); err != nil {
				return nil, err
			}
		}
		f.Segments = append(f.Segments, s)
	}

	for i, s := range f.Segments {
		if err := r.segment(i, s, count); err != nil {
			return nil, err
		}
	}

	if f.Entry() < 0 {
		return nil, fmt.Errorf("%w: no code hunk", ErrMalformedContainer)
	}
	return f, nil
}

// segment reads the blocks which make up one hunk, up to and including
// its HUNK_END.
func (r *reader) segment(index int, s *Segment, count int) error {
	content := false

	for {
		at := r.off
		v, err := r.long()
		if err != nil {
			return fmt.Errorf("%w: hunk %d has no HUNK_END", ErrMalformedContainer, index)
		}
		id := v & sizeMask

		switch id {
		case blockCode, blockData, blockBSS:
			if content {
				return fmt.Errorf("%w: hunk %d has two content blocks (offset %d)", ErrMalformedContainer, index, at)
			}
			content = true

			n, err := r.long()
			if err != nil {
				return err
			}
			size := uint64(n&sizeMask) * 4
			if size > uint64(s.Size) {
				return fmt.Errorf("%w: hunk %d has %d bytes, header says %d", ErrMalformedContainer, index, size, s.Size)
			}

			switch id {
			case blockCode:
				s.Kind = Code
			case blockData:
				s.Kind = Data
			case blockBSS:
				s.Kind = BSS
				continue
			}
			if s.Data, err = r.bytes(int(size)); err != nil {
				return err
			}

		case blockReloc32, blockReloc32Short:
			if !content {
				return fmt.Errorf("%w: relocations before content in hunk %d", ErrMalformedContainer, index)
			}
			read := r.long
			if id == blockReloc32Short {
				read = r.word
			}
			if err := r.relocs(index, s, count, read); err != nil {
				return err
			}
			if id == blockReloc32Short {
				r.align()
			}

		case blockSymbol:
			if err := r.symbols(s); err != nil {
				return err
			}

		case blockName:
			name, err := r.name()
			if err != nil {
				return err
			}
			s.Name = name

		case blockDebug:
			n, err := r.long()
			if err != nil {
				return err
			}
			if _, err := r.bytes(int(n) * 4); err != nil {
				return err
			}

		case blockEnd:
			if !content {
				return fmt.Errorf("%w: hunk %d is empty", ErrMalformedContainer, index)
			}
			return nil

		case blockReloc16, blockReloc8, blockDrel32, blockDrel16, blockDrel8,
			blockRelReloc32, blockAbsReloc16, blockOverlay, blockBreak,
			blockExt, blockLib, blockIndex:
			return fmt.Errorf("%w: block 0x%03X in hunk %d", ErrUnsupportedFormat, id, index)

		default:
			return fmt.Errorf("%w: unknown block 0x%08X at offset %d", ErrMalformedContainer, v, at)
		}
	}
}

// relocs reads a relocation block, using read for each number so that
// the same code serves both the long and short forms.
func (r *reader) relocs(index int, s *Segment, count int, read func() (uint32, error)) error {
	for {
		n, err := read()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if int(n) > r.remaining() {
			return fmt.Errorf("%w: %d relocations in hunk %d", ErrMalformedContainer, n, index)
		}

		target, err := read()
		if err != nil {
			return err
		}
		if int(target) >= count {
			return fmt.Errorf("%w: hunk %d relocates against hunk %d of %d", ErrMalformedContainer, index, target, count)
		}

		for i := uint32(0); i < n; i++ {
			off, err := read()
			if err != nil {
				return err
			}
			if uint64(off)+4 > uint64(s.Size) {
				return fmt.Errorf("%w: relocation at 0x%X beyond end of hunk %d", ErrMalformedContainer, off, index)
			}
			s.Relocs = append(s.Relocs, Reloc{Offset: off, Target: int(target)})
		}
	}
}

// symbols reads a HUNK_SYMBOL block.
func (r *reader) symbols(s *Segment) error {
	for {
		n, err := r.long()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		b, err := r.bytes(int(n&0xFFFFFF) * 4)
		if err != nil {
			return err
		}
		v, err := r.long()
		if err != nil {
			return err
		}
		s.Symbols = append(s.Symbols, Symbol{Name: trimName(b), Value: v})
	}
}

// name reads the body of a HUNK_NAME block.
func (r *reader) name() (string, error) {
	n, err := r.long()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n) * 4)
	if err != nil {
		return "", err
	}
	return trimName(b), nil
}

// trimName drops the NUL padding from a name.
func trimName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
