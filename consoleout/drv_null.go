package consoleout

import (
	"io"
	"sync/atomic"
)

// NullOutputDriver throws a door's output away, counting the bytes so
// a headless run can still report how much was produced.
type NullOutputDriver struct {
	discarded atomic.Int64
}

// GetName returns the name of this driver.
func (no *NullOutputDriver) GetName() string {
	return "null"
}

// PutCharacter discards the character.
func (no *NullOutputDriver) PutCharacter(c uint8) {
	no.discarded.Add(1)
}

// WriteChunk discards the chunk.
func (no *NullOutputDriver) WriteChunk(p []byte) {
	no.discarded.Add(int64(len(p)))
}

// SetWriter is ignored, there is never anything to write.
func (no *NullOutputDriver) SetWriter(w io.Writer) {
}

// Discarded returns the number of bytes thrown away.
func (no *NullOutputDriver) Discarded() int64 {
	return no.discarded.Load()
}

func init() {
	Register("null", func() ConsoleOutput {
		return new(NullOutputDriver)
	})
}
