package consoleout

import (
	"io"
	"os"
	"strings"
)

// OutputLoggingDriver holds our state.
type OutputLoggingDriver struct {

	// writer is where we send our output
	writer io.Writer

	// history stores our history
	history strings.Builder
}

// GetName returns the name of this driver.
//
// This is part of the OutputDriver interface.
func (ol *OutputLoggingDriver) GetName() string {
	return "logger"
}

// PutCharacter saves the specified character into our history, rather
// than writing it anywhere.
//
// This is part of the OutputDriver interface.
func (ol *OutputLoggingDriver) PutCharacter(c uint8) {
	ol.history.WriteByte(c)
}

// SetWriter will update the writer.
func (ol *OutputLoggingDriver) SetWriter(w io.Writer) {
	ol.writer = w
}

// GetOutput returns our history.
//
// This is part of the ConsoleRecorder interface
func (ol *OutputLoggingDriver) GetOutput() string {
	return ol.history.String()
}

// Reset truncates our history.
//
// This is part of the ConsoleRecorder interface
func (ol *OutputLoggingDriver) Reset() {
	ol.history.Reset()
}

// init registers our driver, by name.
func init() {
	Register("logger", func() ConsoleOutput {
		return &OutputLoggingDriver{
			writer: os.Stdout,
		}
	})
}
