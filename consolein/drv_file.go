// drv_file creates a console input-driver which reads and
// returns fake console input from a file, "input.txt" by default.
//
// The intent is that this driver will be useful for scripted
// automation.  We add a small delay to all operations just to
// make things seem a little real, and "#" characters introduce
// a longer delay.

package consolein

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"
)

// FileInput is an input-driver that returns fake "console input"
// by reading the content of a file.
//
// The file may start with a header of "key: value" options, ended by
// a line containing "--".  The only option understood is "newline",
// which may be "n" (the default), "m" to send Ctrl-M instead, or "both"
// to send Ctrl-M then Ctrl-J.
//
// A "#" character pauses the input for a while, which is useful for
// doors that poll for input and discard anything typed too early.
type FileInput struct {

	// fileName is the file to read, set via options.
	fileName string

	// offset shows the offset into the buffer we're at
	offset int

	// content contains the content of the input file
	content []byte

	// options holds any options from the file header.
	options map[string]string

	// pending holds a character to send before the next one from
	// the file.
	pending []byte

	// delayUntil is used to see if we're in the middle of a delay,
	// where we pretend we have no input.
	delayUntil time.Time

	// delaySmall is the sleep made on every poll.
	delaySmall time.Duration

	// delayLarge is the pause introduced by "#".
	delayLarge time.Duration
}

// SetOptions sets the name of the file to read.
func (fi *FileInput) SetOptions(options string) {
	fi.fileName = options
}

// Setup reads the contents of the input file, and saves it away as
// a source of fake console input.
//
// The file given as an option is used, falling back to the
// environmental variable $INPUT_FILE, and then to "input.txt".
func (fi *FileInput) Setup() error {

	fileName := fi.fileName
	if fileName == "" {
		fileName = os.Getenv("INPUT_FILE")
	}
	if fileName == "" {
		fileName = "input.txt"
	}

	dat, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	// Save our offset and data.
	fi.offset = 0
	fi.content = fi.parseOptions(dat)
	fi.delayUntil = time.Now()
	return nil
}

// parseOptions strips any header from the given data, recording the
// options found within it, and returns the rest.
func (fi *FileInput) parseOptions(data []byte) []byte {

	if fi.options == nil {
		fi.options = make(map[string]string)
	}
	if fi.delaySmall == 0 {
		fi.delaySmall = 15 * time.Millisecond
	}
	if fi.delayLarge == 0 {
		fi.delayLarge = 5 * time.Second
	}

	idx := bytes.Index(data, []byte("--\n"))
	if idx < 0 {
		return data
	}

	header := string(data[:idx])
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fi.options[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}

	return data[idx+3:]
}

// TearDown is a NOP.
func (fi *FileInput) TearDown() error {
	return nil
}

// Exhausted returns true once the whole file has been read.
func (fi *FileInput) Exhausted() bool {
	return fi.offset >= len(fi.content) && len(fi.pending) == 0
}

// PendingInput returns true if there is pending input which we
// can return.  This is always true unless we've exhausted the contents
// of our input-file, or are in the middle of a delay.
func (fi *FileInput) PendingInput() bool {

	time.Sleep(fi.delaySmall)

	// If we're not in a delay period return the real result
	if time.Now().After(fi.delayUntil) {
		return !fi.Exhausted()
	}

	// We're in a delay period, so just pretend nothing is happening.
	return false
}

// BlockForCharacterNoEcho returns the next character from the file we
// use to fake our input.
func (fi *FileInput) BlockForCharacterNoEcho() (byte, error) {

	if len(fi.pending) > 0 {
		c := fi.pending[0]
		fi.pending = fi.pending[1:]
		return c, nil
	}

	// Skip over any delays.
	for fi.offset < len(fi.content) && fi.content[fi.offset] == '#' {
		fi.delayUntil = time.Now().Add(fi.delayLarge)
		fi.offset++
	}

	// Input is over.
	if fi.offset >= len(fi.content) {
		return 0x00, io.EOF
	}

	// Get the next character, and move past it.
	x := fi.content[fi.offset]
	fi.offset++

	if x == '\n' {
		switch fi.options["newline"] {
		case "m":
			x = '\r'
		case "both":
			fi.pending = append(fi.pending, '\n')
			x = '\r'
		}
	}

	return x, nil
}

// GetName is part of the module API, and returns the name of this driver.
func (fi *FileInput) GetName() string {
	return "file"
}

// init registers our driver, by name.
func init() {
	Register("file", func() ConsoleInput {
		return new(FileInput)
	})
}
