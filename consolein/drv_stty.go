//go:build unix

// drv_stty creates a console input-driver which uses the
// `stty` binary to disable echoing, and select(2) to poll for input.
//
// This is obviously not portable outwith Unix-like systems.

package consolein

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/term"
)

// STTYInput is an input-driver that executes the 'stty' binary
// to disable echoing for the lifetime of the session.
//
// The terminal is switched into RAW mode once, at setup, so that
// keystrokes are delivered as they are typed.
type STTYInput struct {

	// oldState contains the state of the terminal, before switching to RAW mode
	oldState *term.State
}

// Setup disables echoing, and switches the terminal into RAW mode.
func (si *STTYInput) Setup() error {
	_ = exec.Command("stty", "-F", "/dev/tty", "-echo").Run()

	var err error
	si.oldState, err = term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		si.oldState = nil
	}
	return nil
}

// TearDown restores the state of the terminal.
func (si *STTYInput) TearDown() error {
	if si.oldState != nil {
		if err := term.Restore(int(os.Stdin.Fd()), si.oldState); err != nil {
			return fmt.Errorf("error restoring terminal state %s", err)
		}
		si.oldState = nil
	}
	_ = exec.Command("stty", "-F", "/dev/tty", "echo").Run()
	return nil
}

// PendingInput returns true if there is pending input from STDIN.
func (si *STTYInput) PendingInput() bool {
	return canSelect()
}

// BlockForCharacterNoEcho returns the next character from the console, blocking until
// one is available.
func (si *STTYInput) BlockForCharacterNoEcho() (byte, error) {

	// read only a single byte
	b := make([]byte, 1)
	_, err := os.Stdin.Read(b)
	if err != nil {
		return 0x00, fmt.Errorf("error reading a byte from stdin %w", err)
	}

	// Return the character we read
	return b[0], nil
}

// GetName is part of the module API, and returns the name of this driver.
func (si *STTYInput) GetName() string {
	return "stty"
}

// init registers our driver, by name.
func init() {
	Register("stty", func() ConsoleInput {
		return new(STTYInput)
	})
}
