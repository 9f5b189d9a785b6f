package consoleout

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// csi is the single-byte control sequence introducer of the Amiga
// console, equivalent to "ESC [".
const csi = 0x9B

// AmigaOutputDriver translates the dialect of the Amiga console device
// into something a modern ANSI terminal understands.
//
// The Amiga text is Latin-1, line feeds imply a carriage return, and a
// handful of private sequences control the cursor and window.
type AmigaOutputDriver struct {

	// status contains our state, in the state-machine
	status int

	// params holds the parameters of the sequence being read.
	params []byte

	// last is the previous byte written, in the ground state.
	last uint8

	// writer is where we send our output
	writer io.Writer
}

// The states of the machine.
const (
	amigaGround = iota
	amigaEscape
	amigaSequence
)

// GetName returns the name of this driver.
//
// This is part of the OutputDriver interface.
func (ad *AmigaOutputDriver) GetName() string {
	return "amiga"
}

// PutCharacter writes the character to the console.
//
// This is part of the OutputDriver interface.
func (ad *AmigaOutputDriver) PutCharacter(c uint8) {

	switch ad.status {
	case amigaGround:
		switch {
		case c == 0x1B:
			ad.status = amigaEscape
		case c == csi:
			ad.status = amigaSequence
			ad.params = ad.params[:0]
		case c == 0x0C: /* form feed: clear screen */
			fmt.Fprintf(ad.writer, "\033[H\033[2J")
		case c == 0x0A && ad.last != 0x0D:
			fmt.Fprintf(ad.writer, "\r\n")
		case c >= 0x80 && c < 0xA0:
			// Other C1 controls mean nothing to us.
		case c >= 0xA0:
			ad.writer.Write(utf8.AppendRune(nil, rune(c)))
		default:
			ad.writer.Write([]byte{c})
		}
		ad.last = c
	case amigaEscape:
		if c == '[' {
			ad.status = amigaSequence
			ad.params = ad.params[:0]
			return
		}
		ad.status = amigaGround
		ad.writer.Write([]byte{0x1B, c})
	case amigaSequence:
		// Parameters and intermediates, then a final byte.
		if c >= 0x20 && c <= 0x3F {
			ad.params = append(ad.params, c)
			if len(ad.params) > 32 {
				ad.status = amigaGround
			}
			return
		}
		ad.status = amigaGround
		ad.sequence(c)
	}
}

// sequence emits the translation of a complete control sequence.
func (ad *AmigaOutputDriver) sequence(final uint8) {
	params := string(ad.params)

	switch final {
	case 'p': /* cursor visibility */
		switch params {
		case "0 ":
			fmt.Fprintf(ad.writer, "\033[?25l")
		case " ", "1 ":
			fmt.Fprintf(ad.writer, "\033[?25h")
		}
		return
	case 't', 'u', 'x', 'y': /* window bounds and offsets */
		if len(params) > 0 && params[len(params)-1] == ' ' {
			return
		}
	case 'q': /* window status request */
		if params == "0 " {
			return
		}
	case '{', '}': /* raw event reports */
		return
	}

	fmt.Fprintf(ad.writer, "\033[%s%c", params, final)
}

// SetWriter will update the writer.
func (ad *AmigaOutputDriver) SetWriter(w io.Writer) {
	ad.writer = w
}

// init registers our driver, by name.
func init() {
	Register("amiga", func() ConsoleOutput {
		return &AmigaOutputDriver{
			writer: os.Stdout,
		}
	})
}
