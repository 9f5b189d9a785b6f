package hunk

import (
	"encoding/binary"
	"fmt"
)

// reader walks the big-endian contents of an executable, failing with
// ErrMalformedContainer rather than running off the end.
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) long() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: truncated at offset %d", ErrMalformedContainer, r.off)
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) word() (uint32, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("%w: truncated at offset %d", ErrMalformedContainer, r.off)
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return uint32(v), nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: truncated at offset %d", ErrMalformedContainer, r.off)
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:])
	r.off += n
	return b, nil
}

// align skips the padding which follows a block of words.
func (r *reader) align() {
	if r.off%4 != 0 && r.remaining() >= 2 {
		r.off += 2
	}
}
