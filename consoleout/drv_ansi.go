package consoleout

import (
	"io"
	"os"
)

// AnsiOutputDriver sends a door's output untouched, for terminals which
// already understand what the door sends.
//
// A chunk of output from the door is written in one call, so a screen
// update isn't split into a write per byte.
type AnsiOutputDriver struct {
	writer io.Writer
}

// GetName returns the name of this driver.
func (ad *AnsiOutputDriver) GetName() string {
	return "ansi"
}

// PutCharacter writes a single byte.
func (ad *AnsiOutputDriver) PutCharacter(c uint8) {
	ad.WriteChunk([]byte{c})
}

// WriteChunk writes the bytes, as one write.
func (ad *AnsiOutputDriver) WriteChunk(p []byte) {
	_, _ = ad.writer.Write(p)
}

// SetWriter will update the writer.
func (ad *AnsiOutputDriver) SetWriter(w io.Writer) {
	ad.writer = w
}

func init() {
	Register("ansi", func() ConsoleOutput {
		return &AnsiOutputDriver{writer: os.Stdout}
	})
}
