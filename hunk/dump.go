package hunk

import (
	"fmt"
	"io"
	"sort"
)

// Dump writes a human-readable description of the file to w.
func (f *File) Dump(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("%d hunk(s), first %d, entry in hunk %d\n", len(f.Segments), f.First, f.Entry())

	for i, s := range f.Segments {
		printf("hunk %d: %-4s size %d", i, s.Kind, s.Size)
		if s.Kind != BSS {
			printf(" (%d initialized)", len(s.Data))
		}
		if s.Flags != 0 {
			printf(" flags 0x%X", s.Flags)
		}
		if s.Name != "" {
			printf(" name %q", s.Name)
		}
		printf("\n")

		if len(s.Relocs) > 0 {
			printf("  %d relocation(s)\n", len(s.Relocs))
			for _, r := range s.Relocs {
				printf("    0x%08X -> hunk %d\n", r.Offset, r.Target)
			}
		}

		syms := append([]Symbol(nil), s.Symbols...)
		sort.Slice(syms, func(a, b int) bool { return syms[a].Value < syms[b].Value })
		for _, sym := range syms {
			printf("  0x%08X %s\n", sym.Value, sym.Name)
		}
	}
	return err
}

// Dump writes the placement of each segment to w.
func (img *Image) Dump(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	for i, p := range img.Segments {
		printf("hunk %d: %-4s 0x%08X-0x%08X\n", i, p.Kind, p.Addr, p.End())
	}
	printf("entry 0x%08X, end 0x%08X\n", img.Entry, img.End)
	return err
}
