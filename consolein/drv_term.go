// drv_term.go uses the Termbox library to handle console-based input.
//
// A goroutine is launched which collects any keyboard input and
// saves that to a buffer where it can be peeled off on-demand.
//
// Keys without a character, such as the cursor keys, are converted to
// the ANSI sequences a remote terminal would send, which is what door
// programs expect.

package consolein

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nsf/termbox-go"
	"golang.org/x/term"
)

// sequences maps special keys to the bytes an ANSI terminal sends.
var sequences = map[termbox.Key]string{
	termbox.KeyArrowUp:    "\x1b[A",
	termbox.KeyArrowDown:  "\x1b[B",
	termbox.KeyArrowRight: "\x1b[C",
	termbox.KeyArrowLeft:  "\x1b[D",
	termbox.KeyHome:       "\x1b[H",
	termbox.KeyEnd:        "\x1b[F",
	termbox.KeyDelete:     "\x7f",
	termbox.KeyPgup:       "\x1b[5~",
	termbox.KeyPgdn:       "\x1b[6~",
	termbox.KeyInsert:     "\x1b[2~",
	termbox.KeyF1:         "\x1bOP",
	termbox.KeyF2:         "\x1bOQ",
	termbox.KeyF3:         "\x1bOR",
	termbox.KeyF4:         "\x1bOS",
}

// TermboxInput is our input-driver, using termbox
type TermboxInput struct {

	// oldState contains the state of the terminal, before switching to RAW mode
	oldState *term.State

	// mu guards keyBuffer and done.
	mu sync.Mutex

	// keyBuffer builds up keys read "in the background", via termbox
	keyBuffer []byte

	// done is set when we're tearing down.
	done bool
}

// Setup ensures that the termbox init functions are called, and our
// terminal is set into RAW mode.
func (ti *TermboxInput) Setup() error {

	var err error

	// switch STDIN into 'raw' mode - we must do this before
	// we setup termbox.
	ti.oldState, err = term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error making raw terminal %s", err)
	}

	// Setup the terminal.
	err = termbox.Init()
	if err != nil {
		_ = term.Restore(int(os.Stdin.Fd()), ti.oldState)
		return fmt.Errorf("error initializing termbox %s", err)
	}

	// This is "Show Cursor" which termbox hides by default.
	//
	// Sigh.
	fmt.Printf("\x1b[?25h")

	// Start polling for keyboard input "in the background".
	go ti.pollKeyboard()
	return nil
}

// pollKeyboard runs in a goroutine and collects keyboard input
// into a buffer where it will be read from in the future.
func (ti *TermboxInput) pollKeyboard() {
	for {
		ev := termbox.PollEvent()

		ti.mu.Lock()
		if ti.done {
			ti.mu.Unlock()
			return
		}
		if ev.Type == termbox.EventKey {
			ti.keyBuffer = append(ti.keyBuffer, translate(ev)...)
		}
		ti.mu.Unlock()
	}
}

// translate converts a key event into the bytes to send.
func translate(ev termbox.Event) []byte {
	if ev.Ch != 0 {
		// The Amiga character set is Latin-1.
		if ev.Ch < 0x100 {
			return []byte{byte(ev.Ch)}
		}
		return []byte{'?'}
	}
	if seq, ok := sequences[ev.Key]; ok {
		return []byte(seq)
	}
	if ev.Key < 0x80 {
		return []byte{byte(ev.Key)}
	}
	return nil
}

// TearDown resets the state of the terminal, disables the background polling of characters
// and generally gets us ready for exit.
func (ti *TermboxInput) TearDown() error {
	ti.mu.Lock()
	ti.done = true
	ti.mu.Unlock()

	// Wake the poller, then terminate the GUI.
	termbox.Interrupt()
	termbox.Close()

	// Restore the terminal
	if ti.oldState != nil {
		return term.Restore(int(os.Stdin.Fd()), ti.oldState)
	}
	return nil
}

// PendingInput returns true if there is pending input from STDIN.
func (ti *TermboxInput) PendingInput() bool {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return len(ti.keyBuffer) > 0
}

// BlockForCharacterNoEcho returns the next character from the console, blocking until
// one is available.
func (ti *TermboxInput) BlockForCharacterNoEcho() (byte, error) {
	for {
		ti.mu.Lock()
		if len(ti.keyBuffer) > 0 {
			c := ti.keyBuffer[0]
			ti.keyBuffer = ti.keyBuffer[1:]
			ti.mu.Unlock()
			return c, nil
		}
		ti.mu.Unlock()

		time.Sleep(1 * time.Millisecond)
	}
}

// GetName is part of the module API, and returns the name of this driver.
func (ti *TermboxInput) GetName() string {
	return "term"
}

// init registers our driver, by name.
func init() {
	Register("term", func() ConsoleInput {
		return new(TermboxInput)
	})
}
